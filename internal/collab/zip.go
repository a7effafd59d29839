// Package collab provides reference implementations of the external
// collaborators the core expects (§6): archive extraction, PE import
// reading, sandboxed execution, and process termination. None of this is exercised by the matcher itself —
// it exists so cmd/sfi has something real to wire the scan loop and
// ingress loop against.
package collab

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"log/slog"

	"github.com/sfi-go/sfi/internal/scan"
)

// zipMagic is the four-byte local-file-header signature every ZIP
// archive starts with (0x04034b50, little-endian).
var zipMagic = []byte{0x50, 0x4b, 0x03, 0x04}

// ZipExtractor implements scan.ArchiveExtractor over the standard
// library's archive/zip reader.
type ZipExtractor struct{}

func (ZipExtractor) Sniff(r io.ReadSeeker) bool {
	var buf [4]byte
	n, err := io.ReadFull(r, buf[:])
	return err == nil && n == 4 && bytes.Equal(buf[:], zipMagic)
}

// Extract reads every member of the zip archive in r fully into memory
// and enqueues it as an embedded file. A member whose declared size
// doesn't match what was actually read is skipped with a logged warning.
func (ZipExtractor) Extract(r io.ReadSeeker, origin *scan.FileInfo, push func(*scan.ScanItem)) error {
	size, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("collab: seek zip size: %w", err)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("collab: rewind zip: %w", err)
	}

	ra, ok := r.(io.ReaderAt)
	if !ok {
		buf, err := io.ReadAll(r)
		if err != nil {
			return fmt.Errorf("collab: buffer zip: %w", err)
		}
		ra = bytes.NewReader(buf)
		size = int64(len(buf))
	}

	archive, err := zip.NewReader(ra, size)
	if err != nil {
		return fmt.Errorf("collab: open zip: %w", err)
	}

	for _, member := range archive.File {
		f, err := member.Open()
		if err != nil {
			return fmt.Errorf("collab: open zip member %q: %w", member.Name, err)
		}
		content, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("collab: read zip member %q: %w", member.Name, err)
		}
		if uint64(len(content)) != member.UncompressedSize64 {
			slog.Warn("zip member size mismatch, skipping",
				"member", member.Name, "declared", member.UncompressedSize64, "read", len(content))
			continue
		}

		push(scan.EmbeddedFile(bytes.NewReader(content), origin, member.Name))
	}

	return nil
}
