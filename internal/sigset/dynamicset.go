package sigset

import "github.com/sfi-go/sfi/internal/digest"

// DynamicCallAttribute returns the attribute digest for one observed or
// declared API call name: digest(call_name_bytes) per §4.4 step 3 — a
// plain digest, not the event-type-wrapped composition §4.1 reserves for
// behavioral attributes.
func DynamicCallAttribute(call string) digest.Digest {
	return digest.OfBytes([]byte(call))
}

// DynamicSet matches a sandboxed run's API-call trace against signatures
// built from sets of call names (§3 "dynamic API-call traces"), over the
// shared inverted-bitmap Matcher.
type DynamicSet struct {
	matcher      *Matcher
	descriptions map[SignatureID]string
	calls        map[SignatureID][]string
}

// NewDynamicSet returns an empty DynamicSet.
func NewDynamicSet() *DynamicSet {
	return &DynamicSet{
		matcher:      NewMatcher(),
		descriptions: make(map[SignatureID]string),
		calls:        make(map[SignatureID][]string),
	}
}

// AddSignature registers one signature's declared call list.
func (s *DynamicSet) AddSignature(id SignatureID, description string, calls []string) error {
	attrs := make([]digest.Digest, len(calls))
	for i, c := range calls {
		attrs[i] = DynamicCallAttribute(c)
	}
	if err := s.matcher.AppendSignature(id, attrs); err != nil {
		return err
	}
	s.descriptions[id] = description
	s.calls[id] = calls
	return nil
}

// Match evaluates an observed call trace against every registered
// signature and returns the winning one, its description, and its full
// declared call list (for cause formatting), if any.
func (s *DynamicSet) Match(observedCalls []string) (id SignatureID, description string, calls []string, ok bool) {
	attrs := make([]digest.Digest, len(observedCalls))
	for i, c := range observedCalls {
		attrs[i] = DynamicCallAttribute(c)
	}
	id, ok = s.matcher.Match(attrs)
	if !ok {
		return 0, "", nil, false
	}
	return id, s.descriptions[id], s.calls[id], true
}

// Matcher exposes the underlying bitmap matcher for container serialization.
func (s *DynamicSet) Matcher() *Matcher { return s.matcher }

// Description returns the description registered for id.
func (s *DynamicSet) Description(id SignatureID) string { return s.descriptions[id] }
