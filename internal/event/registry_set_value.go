package event

import (
	"fmt"

	"github.com/sfi-go/sfi/internal/digest"
	"github.com/sfi-go/sfi/internal/wire"
)

// Registry value data types that carry string-shaped payloads (winreg.h).
const (
	RegSZ       uint32 = 1
	RegExpandSZ uint32 = 2
	RegMultiSZ  uint32 = 7
)

// RegistrySetValueEvent fires when the kernel observes a registry value
// being written.
type RegistrySetValueEvent struct {
	Pid       uint32
	Tid       uint32
	KeyName   string
	ValueName string
	DataType  uint32
	Data      []byte
}

const registrySetValueEventName = "RegSetValue"

func (e *RegistrySetValueEvent) Class() uint32 { return ClassRegistrySetValue }

func (e *RegistrySetValueEvent) BlobSize() int {
	return 4 + 4 + wire.StringSize(e.KeyName) + wire.StringSize(e.ValueName) + 4 + wire.ByteVectorSize(e.Data)
}

func (e *RegistrySetValueEvent) EncodeBlob(w *wire.Writer) {
	w.PutUint32(e.Pid)
	w.PutUint32(e.Tid)
	w.PutString(e.KeyName)
	w.PutString(e.ValueName)
	w.PutUint32(e.DataType)
	w.PutByteVector(e.Data)
}

// dataAsString narrows e.Data to ASCII when its declared type is one of
// the REG_SZ family, by interpreting it as UTF-16LE and stopping at the
// first null code unit. Non-string data types contribute no attribute.
func (e *RegistrySetValueEvent) dataAsString() (string, bool) {
	switch e.DataType {
	case RegSZ, RegExpandSZ, RegMultiSZ:
	default:
		return "", false
	}

	out := make([]byte, 0, len(e.Data)/2)
	for i := 0; i+1 < len(e.Data); i += 2 {
		unit := uint16(e.Data[i]) | uint16(e.Data[i+1])<<8
		if unit == 0 {
			break
		}
		out = append(out, byte(unit))
	}
	return string(out), true
}

func (e *RegistrySetValueEvent) HashMembers() []digest.Digest {
	members := []digest.Digest{
		digest.Attribute(registrySetValueEventName, "pid", e.Pid),
		digest.Attribute(registrySetValueEventName, "tid", e.Tid),
		digest.Attribute(registrySetValueEventName, "key_name", e.KeyName),
		digest.Attribute(registrySetValueEventName, "value_name", e.ValueName),
		digest.Attribute(registrySetValueEventName, "data_type", e.DataType),
	}
	if s, ok := e.dataAsString(); ok {
		members = append(members, digest.Attribute(registrySetValueEventName, "data", s))
	}
	return members
}

func (e *RegistrySetValueEvent) Name() string { return registrySetValueEventName }

// AttributeMap reports key_name, value_name, data_type, and (when
// narrowable) data — the fields that identify a registry write
// independent of which process performed it.
func (e *RegistrySetValueEvent) AttributeMap() map[string]string {
	m := map[string]string{
		"key_name":   e.KeyName,
		"value_name": e.ValueName,
		"data_type":  fmt.Sprint(e.DataType),
	}
	if s, ok := e.dataAsString(); ok {
		m["data"] = s
	}
	return m
}

// DecodeRegistrySetValueEvent decodes a full framed RegistrySetValueEvent buffer.
func DecodeRegistrySetValueEvent(buf []byte) (*RegistrySetValueEvent, error) {
	hdr, err := DecodeHeader(buf)
	if err != nil {
		return nil, err
	}
	if hdr.Class != ClassRegistrySetValue {
		return nil, &ErrWrongClass{Want: ClassRegistrySetValue, Got: hdr.Class}
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
	tid, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	keyName, err := r.String()
	if err != nil {
		return nil, err
	}
	valueName, err := r.String()
	if err != nil {
		return nil, err
	}
	dataType, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	data, err := r.ByteVector()
	if err != nil {
		return nil, err
	}
	return &RegistrySetValueEvent{
		Pid:       pid,
		Tid:       tid,
		KeyName:   keyName,
		ValueName: valueName,
		DataType:  dataType,
		Data:      data,
	}, nil
}
