package scan

import (
	"fmt"
	"log/slog"

	"github.com/mitchellh/colorstring"

	"github.com/sfi-go/sfi/internal/digest"
	"github.com/sfi-go/sfi/internal/report"
	"github.com/sfi-go/sfi/internal/sigset"
)

// defaultMaxFileToScan is the safety fuse bounding one scan run, matching
// the original's MAX_FILE_TO_SCAN. It is a constructor default, not a hard
// limit: a caller scanning a known-large corpus may raise it.
const defaultMaxFileToScan = 256

// Queue is the FIFO of pending scan items. It has no capacity limit of its
// own; Loop.MaxFileToScan caps how many items one Run pops. Archive extraction
// pushes new items to the front so nested members drain depth-first,
// ahead of their siblings.
type Queue struct {
	items []*ScanItem
}

// NewQueue returns an empty queue.
func NewQueue() *Queue { return &Queue{} }

// PushBack enqueues a top-level item.
func (q *Queue) PushBack(item *ScanItem) {
	q.items = append(q.items, item)
}

// PushFront enqueues item ahead of everything currently queued.
func (q *Queue) PushFront(item *ScanItem) {
	q.items = append([]*ScanItem{item}, q.items...)
}

func (q *Queue) popFront() (*ScanItem, bool) {
	if len(q.items) == 0 {
		return nil, false
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item, true
}

// Loop evaluates queued items against a fixed list of compiled signature
// sets, expanding recognized archives as it goes.
type Loop struct {
	Sets          []*sigset.Set
	Extractors    []ArchiveExtractor
	PE            PEImportReader
	MaxFileToScan int
	color         *colorstring.Colorize
}

// NewLoop returns a Loop over sets with the default file-count fuse.
func NewLoop(sets []*sigset.Set) *Loop {
	return &Loop{
		Sets:          sets,
		MaxFileToScan: defaultMaxFileToScan,
		color:         &colorstring.Colorize{Colors: colorstring.DefaultColors, Reset: true},
	}
}

// Run drains queue, evaluating every item against every loaded set and
// printing one colorized line per (item, set) outcome, matching
// `scan_files`'s "MALICIOUS"/"CLEAN" report style. Per-item failures are
// logged and do not abort the run (§7's log-and-continue policy).
func (l *Loop) Run(queue *Queue) error {
	limit := l.MaxFileToScan
	if limit <= 0 {
		limit = defaultMaxFileToScan
	}

	for i := 1; i <= limit; i++ {
		item, ok := queue.popFront()
		if !ok {
			slog.Info("scan queue drained", "items_scanned", i-1)
			return nil
		}

		slog.Debug("scanning item", "index", i, "name", item.Name())
		if err := l.evalItem(item); err != nil {
			slog.Warn("failed to evaluate item, skipping", "name", item.Name(), "err", err)
		}

		l.expandArchive(item, queue)
	}

	slog.Warn("scan file limit reached", "limit", limit)
	return nil
}

func (l *Loop) evalItem(item *ScanItem) error {
	if _, err := item.Reader.Seek(0, 0); err != nil {
		return fmt.Errorf("rewind %s: %w", item.Name(), err)
	}

	var (
		fileDigest  digest.Digest
		haveDigest  bool
		importsOnce []ImportEntry
		haveImports bool
	)

	for _, set := range l.Sets {
		var (
			rep report.Report
			ok  bool
		)

		switch set.Kind {
		case sigset.KindHash:
			if !haveDigest {
				if _, err := item.Reader.Seek(0, 0); err != nil {
					return err
				}
				d, err := digest.OfFile(item.Reader)
				if err != nil {
					return fmt.Errorf("digest %s: %w", item.Name(), err)
				}
				fileDigest, haveDigest = d, true
			}
			rep, ok = set.EvalFile(fileDigest)

		case sigset.KindImport:
			if l.PE == nil {
				continue
			}
			if !haveImports {
				if _, err := item.Reader.Seek(0, 0); err != nil {
					return err
				}
				imports, err := l.PE.Imports(item.Reader)
				if err != nil {
					slog.Debug("not a recognizable executable", "name", item.Name(), "err", err)
					imports = nil
				}
				importsOnce, haveImports = imports, true
			}
			rep, ok = set.EvalImports(toSigsetImports(importsOnce))

		default:
			// Dynamic and Behavioral kinds aren't evaluated from a scanned
			// file; they're driven by the sandbox runner and the
			// behavioral ingress loop respectively.
			continue
		}

		l.report(item, rep, ok)
	}

	return nil
}

func (l *Loop) report(item *ScanItem, rep report.Report, malicious bool) {
	if !malicious {
		fmt.Println(l.color.Color(fmt.Sprintf("[green]CLEAN[reset] - %q", item.Name())))
		return
	}

	if item.IsEmbedded() {
		fmt.Println(l.color.Color(fmt.Sprintf(
			"%q -> [red]MALICIOUS[reset] { cause: EmbeddedFile: { name: %s, desc: %q, cause: %s } }",
			item.Origin().CanonicalPath, item.Name(), rep.Desc, rep.Cause,
		)))
		return
	}
	fmt.Println(l.color.Color(fmt.Sprintf(
		"%q -> [red]MALICIOUS[reset] { desc: %q, cause: %s }",
		item.Name(), rep.Desc, rep.Cause,
	)))
}

func (l *Loop) expandArchive(item *ScanItem, queue *Queue) {
	if _, err := item.Reader.Seek(0, 0); err != nil {
		slog.Warn("failed to rewind for archive detection", "name", item.Name(), "err", err)
		return
	}

	for _, ex := range l.Extractors {
		if _, err := item.Reader.Seek(0, 0); err != nil {
			slog.Warn("failed to rewind for archive sniff", "name", item.Name(), "err", err)
			return
		}
		if !ex.Sniff(item.Reader) {
			continue
		}

		if _, err := item.Reader.Seek(0, 0); err != nil {
			slog.Warn("failed to rewind before extraction", "name", item.Name(), "err", err)
			return
		}
		origin := item.Origin()
		if err := ex.Extract(item.Reader, origin, queue.PushFront); err != nil {
			slog.Warn("archive extraction failed", "name", item.Name(), "err", err)
		}
		return
	}
}

func toSigsetImports(entries []ImportEntry) []sigset.ImportEntry {
	out := make([]sigset.ImportEntry, len(entries))
	for i, e := range entries {
		out[i] = sigset.ImportEntry{Library: e.Library, Symbol: e.Symbol}
	}
	return out
}
