package event

import (
	"fmt"

	"github.com/sfi-go/sfi/internal/digest"
	"github.com/sfi-go/sfi/internal/wire"
)

// ImageLoadEvent fires when the kernel observes a PE image (DLL or EXE)
// being mapped into a process.
type ImageLoadEvent struct {
	Pid       uint32
	ImageBase uint64
	ImageSize uint64
	Path      string
}

const imageLoadEventName = "ImageLoad"

func (e *ImageLoadEvent) Class() uint32 { return ClassImageLoad }

func (e *ImageLoadEvent) BlobSize() int {
	return 4 + 8 + 8 + wire.StringSize(e.Path)
}

func (e *ImageLoadEvent) EncodeBlob(w *wire.Writer) {
	w.PutUint32(e.Pid)
	w.PutUint64(e.ImageBase)
	w.PutUint64(e.ImageSize)
	w.PutString(e.Path)
}

func (e *ImageLoadEvent) HashMembers() []digest.Digest {
	return []digest.Digest{
		digest.Attribute(imageLoadEventName, "pid", e.Pid),
		digest.Attribute(imageLoadEventName, "image_base", e.ImageBase),
		digest.Attribute(imageLoadEventName, "image_size", e.ImageSize),
		digest.Attribute(imageLoadEventName, "path", e.Path),
	}
}

func (e *ImageLoadEvent) Name() string { return imageLoadEventName }

func (e *ImageLoadEvent) AttributeMap() map[string]string {
	return map[string]string{
		"image_base": fmt.Sprint(e.ImageBase),
		"image_size": fmt.Sprint(e.ImageSize),
		"path":       e.Path,
	}
}

// DecodeImageLoadEvent decodes a full framed ImageLoadEvent buffer.
func DecodeImageLoadEvent(buf []byte) (*ImageLoadEvent, error) {
	hdr, err := DecodeHeader(buf)
	if err != nil {
		return nil, err
	}
	if hdr.Class != ClassImageLoad {
		return nil, &ErrWrongClass{Want: ClassImageLoad, Got: hdr.Class}
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
	base, err := r.Uint64()
	if err != nil {
		return nil, err
	}
	size, err := r.Uint64()
	if err != nil {
		return nil, err
	}
	path, err := r.String()
	if err != nil {
		return nil, err
	}
	return &ImageLoadEvent{Pid: pid, ImageBase: base, ImageSize: size, Path: path}, nil
}
