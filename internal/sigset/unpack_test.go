package sigset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sfi-go/sfi/internal/digest"
)

func writeSignatureFile(t *testing.T, dir, name, content string) {
	t.Helper()
	must(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestUnpackHashRoundTripsByDigestName(t *testing.T) {
	hashDir := t.TempDir()
	writeSignatureFile(t, hashDir, "sample.bin", "malware payload")

	compiled, err := CompileHashDirRaw(hashDir)
	must(t, err)

	outDir := t.TempDir()
	must(t, Unpack(compiled, outDir))

	entries, err := os.ReadDir(outDir)
	must(t, err)
	if len(entries) != 1 {
		t.Fatalf("expected 1 unpacked file, got %d", len(entries))
	}

	var digestText string
	var rawDoc []byte
	compiled.Hash.Ascend(func(d digest.Digest, _ SignatureID, text, description string, raw []byte) bool {
		digestText = text
		rawDoc = raw
		return false
	})
	if entries[0].Name() != digestText+".yaml" {
		t.Fatalf("unpacked file name %q does not match digest %q", entries[0].Name(), digestText)
	}

	unpacked, err := os.ReadFile(filepath.Join(outDir, entries[0].Name()))
	must(t, err)
	if string(unpacked) != string(rawDoc) {
		t.Fatalf("unpacked bytes %q do not match compiled raw document %q", unpacked, rawDoc)
	}
}

// TestUnpackHashPreservesHandAuthoredDocument verifies §8 testable property
// 1's round-trip literally: unpack(compile(D)) reproduces D's file bytes
// exactly, including the hand-authored field order and comment that a
// yaml.Marshal of the parsed struct alone would not reproduce.
func TestUnpackHashPreservesHandAuthoredDocument(t *testing.T) {
	hashDir := t.TempDir()
	doc := "sha256: " + digest.OfBytes([]byte("evil")).String() + " # known-bad sample\ndescription: messenger worm dropper\n"
	writeSignatureFile(t, hashDir, "dropper.yaml", doc)

	compiled, err := CompileHashDir(hashDir)
	must(t, err)

	outDir := t.TempDir()
	must(t, Unpack(compiled, outDir))

	entries, err := os.ReadDir(outDir)
	must(t, err)
	if len(entries) != 1 {
		t.Fatalf("expected 1 unpacked file, got %d", len(entries))
	}

	unpacked, err := os.ReadFile(filepath.Join(outDir, entries[0].Name()))
	must(t, err)
	if string(unpacked) != doc {
		t.Fatalf("unpacked document = %q, want byte-identical to source %q", unpacked, doc)
	}
}

func TestUnpackBehavioralReconstructsAttributes(t *testing.T) {
	dir := t.TempDir()
	writeSignatureFile(t, dir, "autorun.yaml", `description: messenger worm autorun
event_type: RegSetValue
attributes:
  key_name: "\\REGISTRY\\MACHINE\\SOFTWARE\\Microsoft\\Windows\\CurrentVersion\\Run"
  value_name: Windows Live Messenger
  data: "C:\\WINDOWS\\system32\\evil.exe"
`)

	set, err := CompileBehavioralDir(dir)
	must(t, err)

	outDir := t.TempDir()
	must(t, Unpack(set, outDir))

	entries, err := os.ReadDir(outDir)
	must(t, err)
	if len(entries) != 1 {
		t.Fatalf("expected 1 unpacked file, got %d", len(entries))
	}
	if entries[0].Name() != "sig_0000.yaml" {
		t.Fatalf("unexpected unpacked file name: %s", entries[0].Name())
	}

	reloaded, err := CompileBehavioralDir(outDir)
	must(t, err)
	if reloaded.Len() != 1 {
		t.Fatalf("expected reloaded set to have 1 signature, got %d", reloaded.Len())
	}
}
