package sigset

import (
	"bytes"
	"testing"

	"github.com/sfi-go/sfi/internal/digest"
)

func TestContainerRoundTripHash(t *testing.T) {
	hs := NewHashSet()
	d := digest.OfBytes([]byte("evil"))
	must(t, hs.Add(0, d, "AB..01", "T1 desc", []byte("description: T1 desc\nsha256: AB..01\n")))
	set := &Set{Kind: KindHash, Hash: hs}

	var buf bytes.Buffer
	if err := set.Save(&buf); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(&buf)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	rep, ok := loaded.EvalFile(d)
	if !ok {
		t.Fatalf("expected match after round trip")
	}
	if rep.Desc != "T1 desc" || rep.Cause != `Known sha: "AB..01"` {
		t.Fatalf("report = %+v", rep)
	}
}

func TestContainerRoundTripImport(t *testing.T) {
	is := NewImportSet()
	imports := []ImportEntry{{Library: "kernel32", Symbol: "Sleep"}, {Library: "user32", Symbol: "MessageBoxA"}}
	must(t, is.AddSignature(0, "T2 desc", imports))
	set := &Set{Kind: KindImport, Import: is}

	var buf bytes.Buffer
	if err := set.Save(&buf); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(&buf)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	observed := []ImportEntry{
		{Library: "kernel32", Symbol: "Sleep"},
		{Library: "user32", Symbol: "MessageBoxA"},
		{Library: "user32", Symbol: "GetDC"},
	}
	rep, ok := loaded.EvalImports(observed)
	if !ok {
		t.Fatalf("expected round-tripped import set to still match its declared imports")
	}
	if rep.Desc != "T2 desc" {
		t.Fatalf("desc = %q, want %q", rep.Desc, "T2 desc")
	}
}

func TestContainerChecksumMismatch(t *testing.T) {
	hs := NewHashSet()
	must(t, hs.Add(0, digest.OfBytes([]byte("evil")), "AB..01", "T1 desc", []byte("description: T1 desc\nsha256: AB..01\n")))
	set := &Set{Kind: KindHash, Hash: hs}

	var buf bytes.Buffer
	if err := set.Save(&buf); err != nil {
		t.Fatalf("Save: %v", err)
	}
	raw := buf.Bytes()
	if len(raw) <= 64 {
		t.Fatalf("container too small to flip a payload byte")
	}
	raw[64] ^= 0xff

	_, err := Load(bytes.NewReader(raw))
	if err == nil {
		t.Fatalf("expected checksum mismatch error")
	}
	integrityErr, ok := err.(*IntegrityError)
	if !ok || integrityErr.Kind != ChecksumMismatch {
		t.Fatalf("expected IntegrityError{Kind: ChecksumMismatch}, got %#v", err)
	}
	if integrityErr.Expected == "" || integrityErr.Current == "" {
		t.Fatalf("checksum mismatch error must name both expected and observed digests")
	}
}

func TestContainerBadMagic(t *testing.T) {
	raw := make([]byte, setHeaderSize)
	_, err := Load(bytes.NewReader(raw))
	if err == nil {
		t.Fatalf("expected bad magic error")
	}
	if _, ok := err.(*IntegrityError); !ok {
		t.Fatalf("expected *IntegrityError, got %T", err)
	}
}
