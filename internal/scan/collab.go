package scan

import "io"

// ArchiveExtractor is the external collaborator that knows how to unpack
// one archive format (§6). A failure is logged by the caller and does not
// abort the scan.
type ArchiveExtractor interface {
	// Sniff reports whether r looks like this extractor's archive format,
	// read from the current position (the loop always rewinds to 0 first).
	Sniff(r io.ReadSeeker) bool
	// Extract reads r (an archive), pushing zero or more embedded members
	// onto queue via push, each tagged with origin as their FileInfo.
	Extract(r io.ReadSeeker, origin *FileInfo, push func(*ScanItem)) error
}

// PEImportReader is the external collaborator that extracts a PE file's
// import table (§6). A file that isn't a recognizable PE yields no
// imports and no error — "not executable" is a classification, not a
// failure.
type PEImportReader interface {
	Imports(r io.ReadSeeker) ([]ImportEntry, error)
}

// ImportEntry mirrors sigset.ImportEntry without importing the sigset
// package, keeping the scan loop's collaborator surface independent of the
// matcher's internals.
type ImportEntry struct {
	Library string
	Symbol  string
}

// Sandbox is the external collaborator that executes a suspect binary
// under isolation and reports the API calls it made (§6). Failure is
// terminal for the caller — unlike archive extraction or PE parsing,
// there's no well-defined "nothing happened" outcome for a sandbox run.
type Sandbox interface {
	Run(path string) ([]string, error)
}

// ProcessCleaner is the external collaborator that terminates a process by
// pid (§6), used by the behavioral ingress loop on a confirmed detection.
type ProcessCleaner interface {
	Terminate(pid uint32) bool
}
