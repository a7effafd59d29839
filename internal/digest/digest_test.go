package digest

import (
	"bytes"
	"strings"
	"testing"
)

func TestOfBytesMatchesOfChunks(t *testing.T) {
	whole := OfBytes([]byte("hello world"))
	chunked := OfChunks([]byte("hello"), []byte(" "), []byte("world"))
	if whole != chunked {
		t.Fatalf("OfBytes and OfChunks disagree: %x vs %x", whole, chunked)
	}
}

func TestOfFileStreamsToEOF(t *testing.T) {
	r := bytes.NewReader([]byte("some file contents"))
	got, err := OfFile(r)
	if err != nil {
		t.Fatalf("OfFile: %v", err)
	}
	want := OfBytes([]byte("some file contents"))
	if got != want {
		t.Fatalf("OfFile = %x, want %x", got, want)
	}
	if r.Len() != 0 {
		t.Fatalf("OfFile did not read to EOF, %d bytes remain", r.Len())
	}
}

func TestHexRoundTrip(t *testing.T) {
	d := OfBytes([]byte("round trip me"))
	hexStr := HexEncodeUpper(d)
	if hexStr != strings.ToUpper(hexStr) {
		t.Fatalf("HexEncodeUpper produced non-upper output: %s", hexStr)
	}
	got, err := HexDecode(hexStr)
	if err != nil {
		t.Fatalf("HexDecode: %v", err)
	}
	if got != d {
		t.Fatalf("HexDecode(HexEncodeUpper(d)) = %x, want %x", got, d)
	}
}

func TestHexDecodeWrongLength(t *testing.T) {
	if _, err := HexDecode("ab"); err == nil {
		t.Fatal("expected error for short hex string")
	}
}

func TestAttributeComposition(t *testing.T) {
	got := Attribute("RegSetValue", "pid", 123)
	want := OfBytes([]byte("RegSetValue+pid+123"))
	if got != want {
		t.Fatalf("Attribute composition mismatch: %x vs %x", got, want)
	}
}

func TestDigestLess(t *testing.T) {
	a := Digest{0x01}
	b := Digest{0x02}
	if !a.Less(b) || b.Less(a) {
		t.Fatal("Less ordering broken")
	}
}
