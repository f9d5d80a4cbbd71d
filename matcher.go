package grpcvcr

// Matcher decides whether a live request is satisfied by a candidate
// recorded request. Matchers are pure and side-effect free.
type Matcher interface {
	Matches(live, candidate RequestRecord) bool
}

// And combines matchers into one that requires all of them to hold,
// short-circuiting on the first false. Any AllMatcher already at the head
// of the chain is flattened rather than nested, so repeated calls to And
// build one flat conjunction instead of a chain of wrappers.
func And(matchers ...Matcher) Matcher {
	flat := make([]Matcher, 0, len(matchers))
	for i, m := range matchers {
		if i == 0 {
			if all, ok := m.(AllMatcher); ok {
				flat = append(flat, all...)
				continue
			}
		}
		flat = append(flat, m)
	}
	return AllMatcher(flat)
}

// MatcherFunc lets an ordinary function satisfy Matcher.
type MatcherFunc func(live, candidate RequestRecord) bool

func (f MatcherFunc) Matches(live, candidate RequestRecord) bool { return f(live, candidate) }

// And returns a matcher requiring both f and other, built by the free
// function And.
func (f MatcherFunc) And(other Matcher) Matcher { return And(f, other) }

// MethodMatcher compares the canonical gRPC method path.
type MethodMatcher struct{}

func (MethodMatcher) Matches(live, candidate RequestRecord) bool {
	return live.Method == candidate.Method
}

func (m MethodMatcher) And(other Matcher) Matcher { return And(m, other) }

// RequestMatcher compares the serialized request body byte-exactly.
type RequestMatcher struct{}

func (RequestMatcher) Matches(live, candidate RequestRecord) bool {
	return string(live.Body) == string(candidate.Body)
}

func (m RequestMatcher) And(other Matcher) Matcher { return And(m, other) }

// MetadataMatcher compares header values. When Keys is non-nil, only those
// keys are compared and Ignore is not consulted. When Keys is nil, every
// key present in either request's metadata is compared except those named
// in Ignore (the "ignore-mode" form). The zero-value MetadataMatcher is the
// ignore-mode form with no keys ignored. An empty, non-nil Keys compares no
// keys, so it accepts every pair of requests.
type MetadataMatcher struct {
	Keys   []string
	Ignore []string
}

func (m MetadataMatcher) Matches(live, candidate RequestRecord) bool {
	return metadataEqual(live.Metadata, candidate.Metadata, m.Keys, m.Ignore)
}

func (m MetadataMatcher) And(other Matcher) Matcher { return And(m, other) }

// CustomMatcher delegates to a caller-supplied predicate.
type CustomMatcher struct {
	Fn func(live, candidate RequestRecord) bool
}

func (m CustomMatcher) Matches(live, candidate RequestRecord) bool {
	return m.Fn(live, candidate)
}

func (m CustomMatcher) And(other Matcher) Matcher { return And(m, other) }

// AllMatcher requires every contained matcher to hold, short-circuiting on
// the first false.
type AllMatcher []Matcher

func (m AllMatcher) Matches(live, candidate RequestRecord) bool {
	for _, sub := range m {
		if !sub.Matches(live, candidate) {
			return false
		}
	}
	return true
}

func (m AllMatcher) And(other Matcher) Matcher { return And(m, other) }

// DefaultMatcher is used when a Cassette is opened without an explicit
// matcher: method path equality alone.
var DefaultMatcher Matcher = MethodMatcher{}

// findMatchingInteraction returns the first episode whose request the
// matcher accepts against live, scanning in insertion order. Episodes are
// never consumed by a match.
func findMatchingInteraction(episodes []Episode, live RequestRecord, m Matcher) (Episode, bool) {
	for _, ep := range episodes {
		if m.Matches(live, ep.Request) {
			return ep, true
		}
	}
	return Episode{}, false
}
