// Package event implements the behavioral event model of §4.3: four typed
// variants produced by the kernel-mode filter, a shared framed wire format,
// and a deterministic attribute-hash projection consumed by the behavioral
// matcher.
package event

import (
	"fmt"

	"github.com/sfi-go/sfi/internal/digest"
	"github.com/sfi-go/sfi/internal/wire"
)

// Class tags, one per event variant (§6).
const (
	ClassProcessCreate     uint32 = 0x204F5250 // "PRO "
	ClassImageLoad         uint32 = 0x204C4C44 // "DLL "
	ClassRegistrySetValue  uint32 = 0x20474552 // "REG "
	ClassFileCreate        uint32 = 0x20455243 // "CRE "
	HeaderSize                    = 8
)

// Event is implemented by every behavioral event variant.
type Event interface {
	// Class returns the variant's wire class tag.
	Class() uint32
	// BlobSize returns the encoded payload size, excluding the header.
	BlobSize() int
	// EncodeBlob writes the variant's payload (no header) to w.
	EncodeBlob(w *wire.Writer)
	// HashMembers projects the event's fields to attribute digests per §4.1.
	HashMembers() []digest.Digest
	// Name returns the event's short wire name, e.g. "RegSetValue", used
	// in report cause strings.
	Name() string
	// AttributeMap returns the event's fields relevant to a human reading
	// a match cause, as string-keyed, string-valued pairs. Process/thread
	// identity fields (pid, tid) are intentionally excluded: they vary per
	// run and never appear in a signature's declared attributes.
	AttributeMap() map[string]string
}

// Header is the 8-byte frame prefix preceding every event's payload.
type Header struct {
	Class   uint32
	Size    uint32
}

// GetEventType peeks the class tag of a framed buffer without decoding
// the rest of it.
func GetEventType(buf []byte) (uint32, error) {
	r := wire.NewReader(buf)
	return r.Uint32()
}

// DecodeHeader decodes the 8-byte frame header at the start of buf.
func DecodeHeader(buf []byte) (Header, error) {
	r := wire.NewReader(buf)
	class, err := r.Uint32()
	if err != nil {
		return Header{}, fmt.Errorf("decode event header: %w", err)
	}
	size, err := r.Uint32()
	if err != nil {
		return Header{}, fmt.Errorf("decode event header: %w", err)
	}
	return Header{Class: class, Size: size}, nil
}

// Serialize frames e as EventHeader{class, payload_size} || payload.
func Serialize(e Event) []byte {
	w := wire.NewWriter(HeaderSize + e.BlobSize())
	w.PutUint32(e.Class())
	w.PutUint32(uint32(e.BlobSize()))
	e.EncodeBlob(w)
	return w.Bytes()
}

// ErrWrongClass is returned by a variant's Deserialize when the frame's
// class tag does not match.
type ErrWrongClass struct {
	Want, Got uint32
}

func (e *ErrWrongClass) Error() string {
	return fmt.Sprintf("event: wrong class tag: want %#x, got %#x", e.Want, e.Got)
}

// payload extracts the payload slice described by a decoded Header,
// shared by every variant's Deserialize.
func payload(buf []byte, hdr Header) ([]byte, error) {
	end := HeaderSize + int(hdr.Size)
	if end > len(buf) {
		return nil, fmt.Errorf("event: frame shorter than declared payload size")
	}
	return buf[HeaderSize:end], nil
}
