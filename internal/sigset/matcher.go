package sigset

import (
	"math/bits"

	"github.com/google/btree"
	"github.com/sfi-go/sfi/internal/digest"
)

// slotEntry is one entry of the ordered attr_index map: an attribute
// digest and the bitmap slot it was assigned. Ordering is
// byte-lexicographic on Digest, which is what makes the container's
// serialization deterministic (§4.6, §8 property 2).
type slotEntry struct {
	Digest digest.Digest
	Slot   uint32
}

func slotLess(a, b slotEntry) bool {
	return a.Digest.Less(b.Digest)
}

// Matcher is the inverted-bitmap core of §4.5: attribute digest → slot,
// slot → bitset of signatures referencing it. It is built incrementally by
// AppendSignature and is immutable once a Set is compiled or loaded.
type Matcher struct {
	importCount uint32
	attrIndex   *btree.BTreeG[slotEntry]
	attrBitmap  []uint32
	sigCount    int
}

// NewMatcher returns an empty Matcher ready for incremental construction.
func NewMatcher() *Matcher {
	return &Matcher{
		attrIndex: btree.NewG(32, slotLess),
	}
}

// ImportCount returns the number of distinct attribute digests observed.
func (m *Matcher) ImportCount() uint32 { return m.importCount }

// SigCount returns the number of signatures appended so far.
func (m *Matcher) SigCount() int { return m.sigCount }

// slotOf returns the bitmap slot for digest d, if one has been assigned.
func (m *Matcher) slotOf(d digest.Digest) (uint32, bool) {
	got, ok := m.attrIndex.Get(slotEntry{Digest: d})
	return got.Slot, ok
}

// AppendSignature registers one signature's attribute list against the
// next SignatureID, per §4.4 step 4. Signature ids must be appended in
// increasing order starting at 0 (the builder enforces this).
func (m *Matcher) AppendSignature(sigID SignatureID, attrs []digest.Digest) error {
	if sigID >= MaxSignatures {
		return &BuildError{Kind: TooManySignatures, Detail: "bitmap width exceeded"}
	}
	bit := uint32(1) << sigID
	for _, d := range attrs {
		if slot, ok := m.slotOf(d); ok {
			m.attrBitmap[slot] |= bit
			continue
		}
		slot := m.importCount
		m.attrIndex.ReplaceOrInsert(slotEntry{Digest: d, Slot: slot})
		m.attrBitmap = append(m.attrBitmap, bit)
		m.importCount++
	}
	m.sigCount++
	return nil
}

// Match implements the contract of §4.5: it returns the lowest-id
// signature all of whose declared attributes appear in attrs, or false if
// none survive.
//
// The canonical (NOT-OR) form: copy attr_bitmap, zero the entries whose
// slot was hit by an observed attribute, fold the rest with OR, then
// negate and mask to the live signature range. Any bit still set in the
// result names a signature none of whose required attributes failed to
// appear.
func (m *Matcher) Match(attrs []digest.Digest) (SignatureID, bool) {
	if m.sigCount == 0 {
		return 0, false
	}

	bitmap := make([]uint32, len(m.attrBitmap))
	copy(bitmap, m.attrBitmap)

	for _, d := range attrs {
		if slot, ok := m.slotOf(d); ok {
			bitmap[slot] = 0
		}
	}

	var folded uint32
	for _, b := range bitmap {
		folded |= b
	}

	mask := (uint32(1) << uint(m.sigCount)) - 1
	survivors := ^folded & mask
	if survivors == 0 {
		return 0, false
	}
	return SignatureID(bits.TrailingZeros32(survivors)), true
}

// AscendAttrIndex calls fn for every (digest, slot) pair in ascending
// digest order, used by the container serializer (§4.6) to emit a
// deterministic attr listing.
func (m *Matcher) AscendAttrIndex(fn func(d digest.Digest, slot uint32) bool) {
	m.attrIndex.Ascend(func(e slotEntry) bool {
		return fn(e.Digest, e.Slot)
	})
}
