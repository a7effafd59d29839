package collab

import (
	"debug/pe"
	"io"
	"strings"

	"github.com/sfi-go/sfi/internal/scan"
)

// PEImportReader implements scan.PEImportReader over the standard
// library's debug/pe reader.
type PEImportReader struct{}

// Imports reads r's PE import directory. A file that debug/pe can't parse
// as a PE image is classified "not executable": nil imports, nil error.
//
// Declared library names from a PE import table commonly carry a ".dll"
// extension and mixed case ("KERNEL32.dll"); signature documents declare
// bare lowercase names ("kernel32"). Normalizing here — not in the
// matcher — keeps the matcher's notion of an import token
// format-agnostic.
func (PEImportReader) Imports(r io.ReadSeeker) ([]scan.ImportEntry, error) {
	ra, ok := r.(io.ReaderAt)
	if !ok {
		buf, err := io.ReadAll(r)
		if err != nil {
			return nil, nil
		}
		ra = &sliceReaderAt{buf: buf}
	}

	f, err := pe.NewFile(ra)
	if err != nil {
		return nil, nil
	}
	defer f.Close()

	libs, err := f.ImportedSymbols()
	if err != nil {
		return nil, nil
	}

	out := make([]scan.ImportEntry, 0, len(libs))
	for _, sym := range libs {
		// debug/pe reports each symbol as "Symbol:ordinal@dll" or
		// "Symbol:DLLNAME.dll"; split on the last colon.
		symbol, lib, found := cut(sym)
		if !found {
			continue
		}
		out = append(out, scan.ImportEntry{
			Library: normalizeLibraryName(lib),
			Symbol:  symbol,
		})
	}
	return out, nil
}

// normalizeLibraryName lowercases a PE import library name and strips its
// trailing ".dll" extension, so "KERNEL32.dll" compares equal to a
// signature's declared "kernel32".
func normalizeLibraryName(lib string) string {
	lib = strings.ToLower(lib)
	lib = strings.TrimSuffix(lib, ".dll")
	return lib
}

// cut splits a debug/pe ImportedSymbols entry "Symbol:DLLName" into its
// parts.
func cut(sym string) (symbol, lib string, found bool) {
	idx := strings.LastIndexByte(sym, ':')
	if idx < 0 {
		return "", "", false
	}
	return sym[:idx], sym[idx+1:], true
}

// sliceReaderAt adapts a fully-buffered byte slice to io.ReaderAt, for
// readers that don't already implement it.
type sliceReaderAt struct{ buf []byte }

func (s *sliceReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(s.buf)) {
		return 0, io.EOF
	}
	n := copy(p, s.buf[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
