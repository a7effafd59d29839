package event

import (
	"github.com/sfi-go/sfi/internal/digest"
	"github.com/sfi-go/sfi/internal/wire"
)

// FileCreateEvent fires when the kernel minifilter observes a new file
// being created.
type FileCreateEvent struct {
	Path string
}

const fileCreateEventName = "FileCreate"

func (e *FileCreateEvent) Class() uint32 { return ClassFileCreate }

func (e *FileCreateEvent) BlobSize() int {
	return wire.StringSize(e.Path)
}

func (e *FileCreateEvent) EncodeBlob(w *wire.Writer) {
	w.PutString(e.Path)
}

func (e *FileCreateEvent) HashMembers() []digest.Digest {
	return []digest.Digest{
		digest.Attribute(fileCreateEventName, "path", e.Path),
	}
}

func (e *FileCreateEvent) Name() string { return fileCreateEventName }

func (e *FileCreateEvent) AttributeMap() map[string]string {
	return map[string]string{"path": e.Path}
}

// DecodeFileCreateEvent decodes a full framed FileCreateEvent buffer.
func DecodeFileCreateEvent(buf []byte) (*FileCreateEvent, error) {
	hdr, err := DecodeHeader(buf)
	if err != nil {
		return nil, err
	}
	if hdr.Class != ClassFileCreate {
		return nil, &ErrWrongClass{Want: ClassFileCreate, Got: hdr.Class}
	}
	body, err := payload(buf, hdr)
	if err != nil {
		return nil, err
	}
	r := wire.NewReader(body)
	path, err := r.String()
	if err != nil {
		return nil, err
	}
	return &FileCreateEvent{Path: path}, nil
}
