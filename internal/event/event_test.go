package event

import (
	"testing"

	"github.com/sfi-go/sfi/internal/digest"
)

func encodeUTF16LE(s string) []byte {
	out := make([]byte, 0, len(s)*2+2)
	for _, r := range s {
		out = append(out, byte(r), 0)
	}
	out = append(out, 0, 0)
	return out
}

func TestProcessCreateRoundTrip(t *testing.T) {
	e1 := &ProcessCreateEvent{Pid: 123, ParentID: 234, Path: "elo mordo"}
	buf := Serialize(e1)

	class, err := GetEventType(buf)
	if err != nil || class != ClassProcessCreate {
		t.Fatalf("GetEventType = %x, %v", class, err)
	}
	if len(buf) != HeaderSize+e1.BlobSize() {
		t.Fatalf("Serialize length = %d, want %d", len(buf), HeaderSize+e1.BlobSize())
	}
	if len(buf)%4 != 0 {
		t.Fatalf("frame not 4-byte aligned: %d bytes", len(buf))
	}

	e2, err := DecodeProcessCreateEvent(buf)
	if err != nil {
		t.Fatalf("DecodeProcessCreateEvent: %v", err)
	}
	if *e1 != *e2 {
		t.Fatalf("round trip mismatch: %+v vs %+v", e1, e2)
	}
}

func TestImageLoadRoundTrip(t *testing.T) {
	e1 := &ImageLoadEvent{Pid: 123, ImageBase: 234, ImageSize: 345, Path: "elo mordo"}
	buf := Serialize(e1)
	e2, err := DecodeImageLoadEvent(buf)
	if err != nil {
		t.Fatalf("DecodeImageLoadEvent: %v", err)
	}
	if *e1 != *e2 {
		t.Fatalf("round trip mismatch: %+v vs %+v", e1, e2)
	}
}

func TestFileCreateRoundTrip(t *testing.T) {
	e1 := &FileCreateEvent{Path: "elo mordo"}
	buf := Serialize(e1)

	class, err := GetEventType(buf)
	if err != nil || class != ClassFileCreate {
		t.Fatalf("GetEventType = %x, %v", class, err)
	}

	e2, err := DecodeFileCreateEvent(buf)
	if err != nil {
		t.Fatalf("DecodeFileCreateEvent: %v", err)
	}
	if *e1 != *e2 {
		t.Fatalf("round trip mismatch: %+v vs %+v", e1, e2)
	}
}

func TestRegistrySetValueRoundTrip(t *testing.T) {
	e1 := &RegistrySetValueEvent{
		Pid:       123,
		Tid:       234,
		KeyName:   "key name",
		ValueName: "value_name",
		DataType:  345,
		Data:      []byte{1, 8, 7, 4},
	}
	buf := Serialize(e1)

	class, err := GetEventType(buf)
	if err != nil || class != ClassRegistrySetValue {
		t.Fatalf("GetEventType = %x, %v", class, err)
	}

	e2, err := DecodeRegistrySetValueEvent(buf)
	if err != nil {
		t.Fatalf("DecodeRegistrySetValueEvent: %v", err)
	}
	if e1.Pid != e2.Pid || e1.Tid != e2.Tid || e1.KeyName != e2.KeyName ||
		e1.ValueName != e2.ValueName || e1.DataType != e2.DataType || string(e1.Data) != string(e2.Data) {
		t.Fatalf("round trip mismatch: %+v vs %+v", e1, e2)
	}
}

func TestRegistrySetValueDataProjectionNonString(t *testing.T) {
	e := &RegistrySetValueEvent{
		Pid: 123, Tid: 234,
		KeyName: "key name", ValueName: "value_name",
		DataType: 345, // not a REG_SZ family type
		Data:     []byte{1, 8, 7, 4},
	}
	members := e.HashMembers()
	if len(members) != 5 {
		t.Fatalf("expected no data attribute for non-string data type, got %d members", len(members))
	}
}

// TestRegistrySetValueHashesNarrowedStringData verifies a REG_SZ registry
// write includes its data attribute, narrowed from UTF-16LE to an ASCII
// string before hashing.
func TestRegistrySetValueHashesNarrowedStringData(t *testing.T) {
	keyName := `\REGISTRY\MACHINE\SOFTWARE\Microsoft\Windows\CurrentVersion\Run`
	valueName := "Windows Live Messenger"
	data := `C:\WINDOWS\system32\evil.exe`

	e := &RegistrySetValueEvent{
		Pid:       123,
		Tid:       234,
		KeyName:   keyName,
		ValueName: valueName,
		DataType:  RegSZ,
		Data:      encodeUTF16LE(data),
	}

	members := e.HashMembers()
	if len(members) != 6 {
		t.Fatalf("expected 6 attributes (including data), got %d", len(members))
	}
	if members[5] != digest.Attribute("RegSetValue", "data", data) {
		t.Fatalf("data attribute does not hash the narrowed ASCII string %q", data)
	}
}
