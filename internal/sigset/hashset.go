package sigset

import "github.com/sfi-go/sfi/internal/digest"

// HashSet is the direct-lookup kind (§3 "static hash match"): no bitmap,
// just a digest → (SignatureID, description) map, since a whole-file
// SHA-256 either equals a known-bad digest or it doesn't.
type HashSet struct {
	byDigest map[digest.Digest]hashEntry
	order    []digest.Digest // insertion order, preserved for deterministic container output
}

type hashEntry struct {
	ID          SignatureID
	Description string
	// Text is the sha256 exactly as it appeared in the signature document
	// (or as rendered by compile-raw), replayed verbatim in cause strings.
	Text string
	// RawDoc is the exact bytes of the signature document this entry was
	// compiled from (the whole file, not just its parsed fields), so
	// Unpack can write it back unchanged (§8 testable property 1).
	RawDoc []byte
}

// NewHashSet returns an empty HashSet.
func NewHashSet() *HashSet {
	return &HashSet{byDigest: make(map[digest.Digest]hashEntry)}
}

// Add registers one known-bad file digest. Ids must be unique; duplicate
// digests overwrite the prior entry's description but keep its id. rawDoc
// is the verbatim signature document text this entry was compiled from.
func (h *HashSet) Add(id SignatureID, d digest.Digest, text, description string, rawDoc []byte) error {
	if id >= MaxSignatures {
		return &BuildError{Kind: TooManySignatures, Detail: "hash set"}
	}
	if prev, exists := h.byDigest[d]; exists {
		id = prev.ID
	} else {
		h.order = append(h.order, d)
	}
	h.byDigest[d] = hashEntry{ID: id, Description: description, Text: text, RawDoc: rawDoc}
	return nil
}

// Len returns the number of distinct digests registered.
func (h *HashSet) Len() int { return len(h.byDigest) }

// Match reports whether d is a known-bad digest, and its signature id,
// literal sha256 text, and description if so.
func (h *HashSet) Match(d digest.Digest) (id SignatureID, text, description string, ok bool) {
	e, ok := h.byDigest[d]
	return e.ID, e.Text, e.Description, ok
}

// Ascend calls fn for every entry in insertion order, used by the
// container serializer.
func (h *HashSet) Ascend(fn func(d digest.Digest, id SignatureID, text, description string, rawDoc []byte) bool) {
	for _, d := range h.order {
		e := h.byDigest[d]
		if !fn(d, e.ID, e.Text, e.Description, e.RawDoc) {
			return
		}
	}
}
