package grpcvcr

import "os"

// RecordMode controls how a Cassette arbitrates between replaying a
// recorded episode and forwarding a call to the real transport.
type RecordMode string

const (
	// None forbids forwarding: every call must match a recorded episode.
	None RecordMode = "none"
	// NewEpisodes replays a match and records anything new.
	NewEpisodes RecordMode = "new_episodes"
	// All always forwards and records, replacing any previous match.
	All RecordMode = "all"
	// Once records only while the cassette was empty at open time; once
	// it held episodes on disk it behaves like None.
	Once RecordMode = "once"
)

// DefaultRecordMode returns NewEpisodes, except when the CI environment
// variable is set to any non-empty value, in which case it returns None.
// This mirrors the common CI-safety default: a test run in CI should never
// silently start talking to a real server because a cassette was missing.
func DefaultRecordMode() RecordMode {
	if v := os.Getenv("CI"); v != "" {
		return None
	}
	return NewEpisodes
}

// canRecord reports whether this mode permits forwarding calls to the real
// transport in principle. Once's file-was-empty-at-open gating is applied
// separately by the Cassette, not here.
func (m RecordMode) canRecord() bool {
	switch m {
	case All, NewEpisodes, Once:
		return true
	default:
		return false
	}
}
