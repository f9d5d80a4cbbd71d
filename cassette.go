package grpcvcr

import (
	"os"
	"sync"
)

// Cassette is the in-memory, mutex-guarded store of recorded episodes
// backing one file on disk. A single instance may be shared by many
// concurrent calls through a Channel; Find takes the lock for the
// duration of its scan and Record/Save serialize writers.
type Cassette struct {
	mu      sync.Mutex
	path    string
	mode    RecordMode
	matcher Matcher

	episodes []Episode
	dirty    bool

	// openedEmpty is fixed at Open time: true when the file was absent or
	// held zero episodes. Once mode can only record while this holds.
	openedEmpty bool
}

// Open loads the cassette at path. A nil matcher defaults to
// DefaultMatcher. In None mode a missing file fails with
// *CassetteNotFoundError; in every other mode a missing file yields an
// empty cassette.
func Open(path string, mode RecordMode, matcher Matcher) (*Cassette, error) {
	if matcher == nil {
		matcher = DefaultMatcher
	}

	episodes, err := loadEpisodes(path)
	openedEmpty := false
	if err != nil {
		if os.IsNotExist(err) {
			if mode == None {
				return nil, &CassetteNotFoundError{Path: path}
			}
			episodes = nil
			openedEmpty = true
		} else {
			return nil, err
		}
	} else if len(episodes) == 0 {
		openedEmpty = true
	}

	return &Cassette{
		path:        path,
		mode:        mode,
		matcher:     matcher,
		episodes:    episodes,
		openedEmpty: openedEmpty,
	}, nil
}

// Path returns the cassette's backing file path.
func (c *Cassette) Path() string { return c.path }

// RecordMode returns the mode the cassette was opened with.
func (c *Cassette) RecordMode() RecordMode { return c.mode }

// Find returns the first episode, in insertion order, whose request the
// configured matcher accepts against live. Episodes are never consumed.
func (c *Cassette) Find(live RequestRecord) (Episode, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return findMatchingInteraction(c.episodes, live, c.matcher)
}

// CanRecord reports whether this cassette may forward a live request to
// the real transport: true for All and NewEpisodes, true for Once only
// while the cassette was empty at open time, false for None.
func (c *Cassette) CanRecord() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canRecordLocked()
}

func (c *Cassette) canRecordLocked() bool {
	switch c.mode {
	case All, NewEpisodes:
		return true
	case Once:
		return c.openedEmpty
	default:
		return false
	}
}

// Record appends ep to the cassette. In All mode, any previously stored
// episode whose request the configured matcher accepts against ep's
// request is removed first, so a cassette opened in All mode never holds
// two episodes the matcher would consider equivalent.
func (c *Cassette) Record(ep Episode) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode == All {
		kept := make([]Episode, 0, len(c.episodes))
		for _, existing := range c.episodes {
			if !c.matcher.Matches(ep.Request, existing.Request) {
				kept = append(kept, existing)
			}
		}
		c.episodes = append(kept, ep)
	} else {
		c.episodes = append(c.episodes, ep)
	}
	c.dirty = true
}

// Save serializes the cassette to its path if it has unsaved changes; a
// clean cassette is a no-op. Failures are returned as
// *CassetteWriteFailureError.
func (c *Cassette) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dirty {
		return nil
	}
	if err := saveEpisodes(c.path, c.episodes); err != nil {
		return err
	}
	c.dirty = false
	return nil
}

// Episodes returns a snapshot of the currently stored episodes, in
// insertion order. Intended for inspection tooling, not for mutation.
func (c *Cassette) Episodes() []Episode {
	c.mu.Lock()
	defer c.mu.Unlock()
	snapshot := make([]Episode, len(c.episodes))
	copy(snapshot, c.episodes)
	return snapshot
}
