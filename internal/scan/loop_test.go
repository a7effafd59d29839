package scan

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/sfi-go/sfi/internal/digest"
	"github.com/sfi-go/sfi/internal/sigset"
)

// fakeZip treats any reader whose first four bytes are "ZIP1" as an
// archive containing one member, "evil.txt", whose content is fixed.
type fakeZip struct{ memberContent []byte }

func (f *fakeZip) Sniff(r io.ReadSeeker) bool {
	var buf [4]byte
	n, _ := r.Read(buf[:])
	return n == 4 && string(buf[:]) == "ZIP1"
}

func (f *fakeZip) Extract(r io.ReadSeeker, origin *FileInfo, push func(*ScanItem)) error {
	push(EmbeddedFile(bytes.NewReader(f.memberContent), origin, "evil.txt"))
	return nil
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// TestScanFindsMatchWithinArchiveMember reproduces a ZIP containing one
// member whose digest is declared malicious: the archive itself doesn't
// match, but its extracted member does, and the report names the outer
// archive as origin and the member as name.
func TestScanFindsMatchWithinArchiveMember(t *testing.T) {
	memberContent := []byte("evil-payload")
	memberDigest := digest.OfBytes(memberContent)

	hs := sigset.NewHashSet()
	must(t, hs.Add(0, memberDigest, memberDigest.String(), "Embedded nasty", []byte("description: Embedded nasty\nsha256: "+memberDigest.String()+"\n")))
	set := &sigset.Set{Kind: sigset.KindHash, Hash: hs}

	loop := NewLoop([]*sigset.Set{set})
	loop.Extractors = []ArchiveExtractor{&fakeZip{memberContent: memberContent}}

	queue := NewQueue()
	archiveBytes := append([]byte("ZIP1"), []byte("outer archive bytes")...)
	origin := NewFileInfo("/tmp/container.zip")
	queue.PushBack(RealFile(bytes.NewReader(archiveBytes), origin))

	stdout := os.Stdout
	pr, pw, err := os.Pipe()
	must(t, err)
	os.Stdout = pw
	runErr := loop.Run(queue)
	pw.Close()
	os.Stdout = stdout
	printed, err := io.ReadAll(pr)
	must(t, err)
	must(t, runErr)

	out := string(printed)
	if !strings.Contains(out, `"/tmp/container.zip" -> `) || !strings.Contains(out, "name: evil.txt") {
		t.Fatalf("expected an embedded-file detection naming origin /tmp/container.zip and member evil.txt, got:\n%s", out)
	}

	// After Run, the queue should have drained: the outer archive was
	// evaluated (no match, since its own digest isn't declared) and its
	// member was pushed to the front, evaluated in turn, and matched.
	if _, ok := queue.popFront(); ok {
		t.Fatalf("expected queue to be fully drained")
	}
}

// TestScanExpandsArchivesBeforeSiblings verifies archive members are
// pushed to the queue front, so they scan before whatever followed the
// archive in the original queue order.
func TestScanExpandsArchivesBeforeSiblings(t *testing.T) {
	var scannedOrder []string

	hs := sigset.NewHashSet() // empty: nothing ever matches
	set := &sigset.Set{Kind: sigset.KindHash, Hash: hs}

	loop := NewLoop([]*sigset.Set{set})
	loop.Extractors = []ArchiveExtractor{&orderTrackingZip{seen: &scannedOrder}}

	queue := NewQueue()
	archiveBytes := append([]byte("ZIP1"), []byte("archive")...)
	queue.PushBack(RealFile(bytes.NewReader(archiveBytes), NewFileInfo("/tmp/a.zip")))
	queue.PushBack(RealFile(bytes.NewReader([]byte("sibling")), NewFileInfo("/tmp/b.txt")))

	must(t, loop.Run(queue))

	want := []string{"ZIP1archive", "member", "sibling"}
	if strings.Join(scannedOrder, ",") != strings.Join(want, ",") {
		t.Fatalf("scan order = %q, want %q", scannedOrder, want)
	}
}

// orderTrackingZip records the content of every item it is asked to sniff,
// which the loop does once per item in scan order.
type orderTrackingZip struct{ seen *[]string }

func (z *orderTrackingZip) Sniff(r io.ReadSeeker) bool {
	content, _ := io.ReadAll(r)
	*z.seen = append(*z.seen, string(content))
	return strings.HasPrefix(string(content), "ZIP1")
}

func (z *orderTrackingZip) Extract(r io.ReadSeeker, origin *FileInfo, push func(*ScanItem)) error {
	push(EmbeddedFile(bytes.NewReader([]byte("member")), origin, "inner.txt"))
	return nil
}
