package sigset

import (
	"testing"

	"github.com/sfi-go/sfi/internal/digest"
	"github.com/sfi-go/sfi/internal/event"
)

// TestHashMatchReplaysDeclaredDigestText verifies a signature declaring an
// explicit sha256 matches a file with that digest and reports the declared
// description plus a cause naming the digest exactly as written in the
// signature document, not a recomputed or reformatted one.
func TestHashMatchReplaysDeclaredDigestText(t *testing.T) {
	d := digest.OfBytes([]byte("sample-t1"))

	hs := NewHashSet()
	must(t, hs.Add(0, d, "ab..01", "T1 desc", []byte("description: T1 desc\nsha256: ab..01\n")))
	set := &Set{Kind: KindHash, Hash: hs}

	rep, ok := set.EvalFile(d)
	if !ok {
		t.Fatalf("expected a match")
	}
	if rep.Desc != "T1 desc" {
		t.Fatalf("desc = %q, want %q", rep.Desc, "T1 desc")
	}
	if rep.Cause != `Known sha: "ab..01"` {
		t.Fatalf("cause = %q, want %q", rep.Cause, `Known sha: "ab..01"`)
	}

	if _, ok := set.EvalFile(digest.OfBytes([]byte("something else"))); ok {
		t.Fatalf("unrelated digest must not match")
	}
}

// TestImportMatchRequiresAllDeclaredImports verifies a signature requiring
// two imports matches a PE declaring a superset of them, and does not match
// a PE declaring only one.
func TestImportMatchRequiresAllDeclaredImports(t *testing.T) {
	is := NewImportSet()
	must(t, is.AddSignature(0, "T2 desc", []ImportEntry{
		{Library: "kernel32", Symbol: "Sleep"},
		{Library: "user32", Symbol: "MessageBoxA"},
	}))
	set := &Set{Kind: KindImport, Import: is}

	full := []ImportEntry{
		{Library: "kernel32", Symbol: "Sleep"},
		{Library: "user32", Symbol: "MessageBoxA"},
		{Library: "user32", Symbol: "GetDC"},
	}
	if _, ok := set.EvalImports(full); !ok {
		t.Fatalf("expected match on superset import set")
	}

	partial := []ImportEntry{{Library: "kernel32", Symbol: "Sleep"}}
	if _, ok := set.EvalImports(partial); ok {
		t.Fatalf("partial import set must not match")
	}
}

// TestBehavioralMatchFormatsRegistryWriteCause reproduces a registry
// autorun-key write, including the exact cause string format.
func TestBehavioralMatchFormatsRegistryWriteCause(t *testing.T) {
	keyName := `\REGISTRY\MACHINE\SOFTWARE\Microsoft\Windows\CurrentVersion\Run`
	valueName := "Windows Live Messenger"
	data := `C:\WINDOWS\system32\evil.exe`

	bs := NewBehavioralSet()
	attrs := behavioralDocAttrs(&BehavioralSignatureDoc{
		EventType: "RegSetValue",
		Attributes: map[string]string{
			"key_name":   keyName,
			"value_name": valueName,
			"data":       data,
		},
	})
	must(t, bs.AddSignature(0, "Messenger worm autorun", attrs))
	set := &Set{Kind: KindBehavioral, Behavioral: bs}

	e := &event.RegistrySetValueEvent{
		Pid: 123, Tid: 234,
		KeyName: keyName, ValueName: valueName,
		DataType: event.RegSZ, Data: utf16leOf(data),
	}

	rep, ok := set.EvalEvent(e)
	if !ok {
		t.Fatalf("expected a match")
	}
	want := `Detected Event: RegSetValue: { {"data": "C:\\WINDOWS\\system32\\evil.exe", "data_type": "1", "key_name": "\\REGISTRY\\MACHINE\\SOFTWARE\\Microsoft\\Windows\\CurrentVersion\\Run", "value_name": "Windows Live Messenger"} }`
	if rep.Cause != want {
		t.Fatalf("cause mismatch:\n got  %q\n want %q", rep.Cause, want)
	}
}

func utf16leOf(s string) []byte {
	out := make([]byte, 0, len(s)*2+2)
	for _, r := range s {
		out = append(out, byte(r), 0)
	}
	out = append(out, 0, 0)
	return out
}
