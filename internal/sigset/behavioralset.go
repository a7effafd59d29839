package sigset

import (
	"github.com/sfi-go/sfi/internal/digest"
	"github.com/sfi-go/sfi/internal/event"
)

// BehavioralSet matches kernel-streamed events against signatures declared
// as an event type plus a set of required attribute values (§3 "kernel-
// streamed behavioral events"), over the shared inverted-bitmap Matcher.
// Because each attribute digest already folds in its event type (§4.1),
// one Matcher can hold signatures spanning every event class without
// cross-class collisions.
type BehavioralSet struct {
	matcher      *Matcher
	descriptions map[SignatureID]string
	tokens       map[SignatureID][]string
}

// NewBehavioralSet returns an empty BehavioralSet.
func NewBehavioralSet() *BehavioralSet {
	return &BehavioralSet{
		matcher:      NewMatcher(),
		descriptions: make(map[SignatureID]string),
		tokens:       make(map[SignatureID][]string),
	}
}

// SetTokens records the declared "event_type=...", "attr_name=value"
// tokens a signature was built from, so the container can carry enough
// to unpack it back to a document later. Unlike AddSignature's attrs,
// these are never matched against — they exist purely for round-trip.
func (s *BehavioralSet) SetTokens(id SignatureID, tokens []string) {
	s.tokens[id] = tokens
}

// Tokens returns the declared tokens for id, if any were recorded.
func (s *BehavioralSet) Tokens(id SignatureID) []string { return s.tokens[id] }

// AddSignature registers one signature's required (event_type, attr_name,
// attr_value) triples, already composed into digests by the caller (the
// YAML loader owns the event_type + attributes map → digest projection,
// §4.4).
func (s *BehavioralSet) AddSignature(id SignatureID, description string, attrs []digest.Digest) error {
	if err := s.matcher.AppendSignature(id, attrs); err != nil {
		return err
	}
	s.descriptions[id] = description
	return nil
}

// MatchEvent projects e to its attribute digests and evaluates them
// against every registered signature.
func (s *BehavioralSet) MatchEvent(e event.Event) (SignatureID, string, bool) {
	id, ok := s.matcher.Match(e.HashMembers())
	if !ok {
		return 0, "", false
	}
	return id, s.descriptions[id], true
}

// Matcher exposes the underlying bitmap matcher for container serialization.
func (s *BehavioralSet) Matcher() *Matcher { return s.matcher }

// Description returns the description registered for id.
func (s *BehavioralSet) Description(id SignatureID) string { return s.descriptions[id] }
