package sigset

import (
	"fmt"
	"strings"

	"github.com/sfi-go/sfi/internal/digest"
)

// ImportEntry is one (library, symbol) pair a signature declares.
type ImportEntry struct {
	Library string
	Symbol  string
}

// ImportAttribute returns the attribute digest for one declared import, so
// callers evaluating a PE file's import table can project it the same way
// the builder does: digest(lower(library) || "+" || lower(symbol)), per
// §4.4 step 3 — a plain digest with no event-type wrapper, unlike the
// triple-composition §4.1 reserves for behavioral attributes. Matching is
// case-insensitive (§3), so both halves are lowercased first.
func ImportAttribute(e ImportEntry) digest.Digest {
	token := strings.ToLower(e.Library) + "+" + strings.ToLower(e.Symbol)
	return digest.OfBytes([]byte(token))
}

// ImportSet matches PE import-table contents against signatures built from
// library+symbol tokens, over the shared inverted-bitmap Matcher (§3
// "static import heuristics").
type ImportSet struct {
	matcher      *Matcher
	descriptions map[SignatureID]string
	imports      map[SignatureID][]ImportEntry
}

// NewImportSet returns an empty ImportSet.
func NewImportSet() *ImportSet {
	return &ImportSet{
		matcher:      NewMatcher(),
		descriptions: make(map[SignatureID]string),
		imports:      make(map[SignatureID][]ImportEntry),
	}
}

// AddSignature registers one signature's declared import list.
func (s *ImportSet) AddSignature(id SignatureID, description string, imports []ImportEntry) error {
	attrs := make([]digest.Digest, len(imports))
	for i, im := range imports {
		attrs[i] = ImportAttribute(im)
	}
	if err := s.matcher.AppendSignature(id, attrs); err != nil {
		return err
	}
	s.descriptions[id] = description
	s.imports[id] = imports
	return nil
}

// Match evaluates an observed import list (from a parsed PE file) against
// every registered signature and returns the winning one, its description,
// and its full declared import list (for cause formatting), if any.
func (s *ImportSet) Match(observed []ImportEntry) (id SignatureID, description string, imports []ImportEntry, ok bool) {
	attrs := make([]digest.Digest, len(observed))
	for i, im := range observed {
		attrs[i] = ImportAttribute(im)
	}
	id, ok = s.matcher.Match(attrs)
	if !ok {
		return 0, "", nil, false
	}
	return id, s.descriptions[id], s.imports[id], true
}

// Matcher exposes the underlying bitmap matcher for container serialization.
func (s *ImportSet) Matcher() *Matcher { return s.matcher }

// Description returns the description registered for id.
func (s *ImportSet) Description(id SignatureID) string { return s.descriptions[id] }
