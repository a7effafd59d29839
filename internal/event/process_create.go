package event

import (
	"fmt"

	"github.com/sfi-go/sfi/internal/digest"
	"github.com/sfi-go/sfi/internal/wire"
)

// ProcessCreateEvent fires when the kernel observes a new process being
// created.
type ProcessCreateEvent struct {
	Pid      uint32
	ParentID uint32
	Path     string
}

const processCreateEventName = "ProcessCreate"

func (e *ProcessCreateEvent) Class() uint32 { return ClassProcessCreate }

func (e *ProcessCreateEvent) BlobSize() int {
	return 4 + 4 + wire.StringSize(e.Path)
}

func (e *ProcessCreateEvent) EncodeBlob(w *wire.Writer) {
	w.PutUint32(e.Pid)
	w.PutUint32(e.ParentID)
	w.PutString(e.Path)
}

func (e *ProcessCreateEvent) HashMembers() []digest.Digest {
	return []digest.Digest{
		digest.Attribute(processCreateEventName, "pid", e.Pid),
		digest.Attribute(processCreateEventName, "parent_id", e.ParentID),
		digest.Attribute(processCreateEventName, "path", e.Path),
	}
}

func (e *ProcessCreateEvent) Name() string { return processCreateEventName }

func (e *ProcessCreateEvent) AttributeMap() map[string]string {
	return map[string]string{
		"parent_id": fmt.Sprint(e.ParentID),
		"path":      e.Path,
	}
}

// DecodeProcessCreateEvent decodes a full framed ProcessCreateEvent buffer.
func DecodeProcessCreateEvent(buf []byte) (*ProcessCreateEvent, error) {
	hdr, err := DecodeHeader(buf)
	if err != nil {
		return nil, err
	}
	if hdr.Class != ClassProcessCreate {
		return nil, &ErrWrongClass{Want: ClassProcessCreate, Got: hdr.Class}
	}
	body, err := payload(buf, hdr)
	if err != nil {
		return nil, err
	}
	r := wire.NewReader(body)
	pid, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	parentID, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	path, err := r.String()
	if err != nil {
		return nil, err
	}
	return &ProcessCreateEvent{Pid: pid, ParentID: parentID, Path: path}, nil
}
