// Package scan implements the bounded scan loop of §4.7: a FIFO queue of
// (reader, origin) pairs evaluated against every loaded signature set, with
// archive children pushed to the front so nested members are drained before
// their siblings.
package scan

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/sfi-go/sfi/internal/digest"
)

// FileInfo describes one real file on disk that entered the scan queue. It
// is shared by pointer between a real file's ScanItem and every archive
// member extracted from it, so a detection inside a nested member can still
// report the outer file's path.
//
// Go's GC makes reference-counted-cell sharing unnecessary here: a plain
// pointer has no cycle to break, since nothing ever points back from a
// FileInfo to its children.
type FileInfo struct {
	Name          string
	Path          string
	CanonicalPath string
	Digest        *digest.Digest
}

// NewFileInfo builds a FileInfo from a filesystem path, canonicalizing it
// best-effort (a failure to canonicalize is not fatal — the raw path is
// kept instead).
func NewFileInfo(path string) *FileInfo {
	canonical, err := filepath.Abs(path)
	if err != nil {
		canonical = path
	}
	return &FileInfo{
		Name:          filepath.Base(path),
		Path:          path,
		CanonicalPath: canonical,
	}
}

// SetDigest records the whole-file digest once it's known, so a later
// report can quote it without recomputing.
func (fi *FileInfo) SetDigest(d digest.Digest) {
	fi.Digest = &d
}

func (fi *FileInfo) String() string {
	return fmt.Sprintf("FileInfo{name: %s, path: %s}", fi.Name, fi.CanonicalPath)
}

// ScanItem is one unit of work in the scan queue: either a real file, or a
// member extracted from an archive (which carries its own member name but
// defers to the archive's FileInfo for path reporting).
type ScanItem struct {
	Reader io.ReadSeeker

	origin *FileInfo
	member string // non-empty for an embedded archive member
}

// RealFile wraps a top-level file being scanned directly.
func RealFile(r io.ReadSeeker, origin *FileInfo) *ScanItem {
	return &ScanItem{Reader: r, origin: origin}
}

// EmbeddedFile wraps a buffered archive member, sharing the archive's
// FileInfo as its origin.
func EmbeddedFile(r io.ReadSeeker, origin *FileInfo, memberName string) *ScanItem {
	return &ScanItem{Reader: r, origin: origin, member: memberName}
}

// Origin returns the FileInfo of the real, on-disk file this item
// ultimately came from — itself if it is a real file, or the enclosing
// archive's if it's an embedded member.
func (s *ScanItem) Origin() *FileInfo { return s.origin }

// IsEmbedded reports whether this item is an archive member rather than a
// real file.
func (s *ScanItem) IsEmbedded() bool { return s.member != "" }

// Name is the name reported in scan output: the member name for an
// embedded file, the origin's file name otherwise.
func (s *ScanItem) Name() string {
	if s.IsEmbedded() {
		return s.member
	}
	return s.origin.Name
}
