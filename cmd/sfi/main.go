package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/charmbracelet/colorprofile"
	"github.com/schollz/progressbar/v3"

	"github.com/sfi-go/sfi/internal/cliutil"
	"github.com/sfi-go/sfi/internal/collab"
	"github.com/sfi-go/sfi/internal/digest"
	"github.com/sfi-go/sfi/internal/ingress"
	"github.com/sfi-go/sfi/internal/ipc"
	"github.com/sfi-go/sfi/internal/scan"
	"github.com/sfi-go/sfi/internal/sigset"
)

// defaultCommPort is the kernel minifilter's communication port name,
// matching the original driver's registered port.
const defaultCommPort = `\SFI.KM2UM.Port`

func main() {
	if err := run(); err != nil {
		var exitErr *cliutil.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		fmt.Fprintf(os.Stderr, "sfi: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if len(os.Args) < 2 {
		usage()
		return &cliutil.ExitError{Code: 2}
	}

	switch os.Args[1] {
	case "signature":
		return runSignature(os.Args[2:])
	case "evaluate":
		return runEvaluate(os.Args[2:])
	case "scan":
		return runScan(os.Args[2:])
	case "sandbox":
		return runSandbox(os.Args[2:])
	case "start-detection":
		return runStartDetection(os.Args[2:])
	case "-h", "--help", "help":
		usage()
		return nil
	default:
		usage()
		return &cliutil.ExitError{Code: 2}
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: %s <command> [flags]

Commands:
  signature compile --dir D --out P --kind hash|import|dynamic|behavioral
  signature compile-raw --dir D --out P
  signature unpack --sha-set P --out-dir D
  evaluate --sha P [--heur P] PATH
  scan --set P [--set P2 ...] PATH
  sandbox -d P PATH
  start-detection -b P
`, os.Args[0])
}

func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func runSignature(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("signature: expected a subcommand (compile, compile-raw, unpack)")
	}

	switch args[0] {
	case "compile":
		return runSignatureCompile(args[1:])
	case "compile-raw":
		return runSignatureCompileRaw(args[1:])
	case "unpack":
		return runSignatureUnpack(args[1:])
	default:
		return fmt.Errorf("signature: unknown subcommand %q", args[0])
	}
}

func runSignatureCompile(args []string) error {
	fs := flag.NewFlagSet("signature compile", flag.ExitOnError)
	dir := fs.String("dir", "", "Directory of YAML signature documents")
	out := fs.String("out", "", "Output container path")
	kind := fs.String("kind", "", "Signature kind: hash, import, dynamic, behavioral")
	debug := fs.Bool("debug", false, "Enable debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	slog.SetDefault(newLogger(*debug))

	if *dir == "" || *out == "" || *kind == "" {
		return fmt.Errorf("signature compile: --dir, --out, and --kind are required")
	}

	var (
		set *sigset.Set
		err error
	)
	switch *kind {
	case "hash":
		set, err = sigset.CompileHashDir(*dir)
	case "import":
		set, err = sigset.CompileImportDir(*dir)
	case "dynamic":
		set, err = sigset.CompileDynamicDir(*dir)
	case "behavioral":
		set, err = sigset.CompileBehavioralDir(*dir)
	default:
		return fmt.Errorf("signature compile: unknown --kind %q", *kind)
	}
	if err != nil {
		return fmt.Errorf("compile %s signatures from %s: %w", *kind, *dir, err)
	}

	f, err := os.Create(*out)
	if err != nil {
		return fmt.Errorf("create %s: %w", *out, err)
	}
	defer f.Close()

	if err := set.Save(f); err != nil {
		return fmt.Errorf("write container %s: %w", *out, err)
	}

	slog.Info("compiled signature set", "kind", *kind, "count", set.Len(), "out", *out)
	return nil
}

func runSignatureCompileRaw(args []string) error {
	fs := flag.NewFlagSet("signature compile-raw", flag.ExitOnError)
	dir := fs.String("dir", "", "Directory of raw sample files")
	out := fs.String("out", "", "Output container path")
	debug := fs.Bool("debug", false, "Enable debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	slog.SetDefault(newLogger(*debug))

	if *dir == "" || *out == "" {
		return fmt.Errorf("signature compile-raw: --dir and --out are required")
	}

	set, err := sigset.CompileHashDirRaw(*dir)
	if err != nil {
		return fmt.Errorf("compile raw samples from %s: %w", *dir, err)
	}

	f, err := os.Create(*out)
	if err != nil {
		return fmt.Errorf("create %s: %w", *out, err)
	}
	defer f.Close()

	if err := set.Save(f); err != nil {
		return fmt.Errorf("write container %s: %w", *out, err)
	}

	slog.Info("compiled raw hash set", "count", set.Len(), "out", *out)
	return nil
}

func runSignatureUnpack(args []string) error {
	fs := flag.NewFlagSet("signature unpack", flag.ExitOnError)
	shaSet := fs.String("sha-set", "", "Compiled container path")
	outDir := fs.String("out-dir", "", "Directory to write signature documents to")
	debug := fs.Bool("debug", false, "Enable debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	slog.SetDefault(newLogger(*debug))

	if *shaSet == "" || *outDir == "" {
		return fmt.Errorf("signature unpack: --sha-set and --out-dir are required")
	}

	f, err := os.Open(*shaSet)
	if err != nil {
		return fmt.Errorf("open %s: %w", *shaSet, err)
	}
	defer f.Close()

	set, err := sigset.Load(f)
	if err != nil {
		return fmt.Errorf("load container %s: %w", *shaSet, err)
	}

	if err := sigset.Unpack(set, *outDir); err != nil {
		return fmt.Errorf("unpack %s to %s: %w", *shaSet, *outDir, err)
	}

	slog.Info("unpacked signature set", "count", set.Len(), "out-dir", *outDir)
	return nil
}

func runEvaluate(args []string) error {
	fs := flag.NewFlagSet("evaluate", flag.ExitOnError)
	shaSet := fs.String("sha", "", "Compiled KindHash container path")
	heurSet := fs.String("heur", "", "Compiled KindImport container path")
	debug := fs.Bool("debug", false, "Enable debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	slog.SetDefault(newLogger(*debug))

	if fs.NArg() != 1 {
		return fmt.Errorf("evaluate: expected exactly one PATH argument")
	}
	path := fs.Arg(0)
	if *shaSet == "" {
		return fmt.Errorf("evaluate: --sha is required")
	}

	hashSet, err := loadContainer(*shaSet)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	d, err := digest.OfFile(f)
	if err != nil {
		return fmt.Errorf("hash %s: %w", path, err)
	}
	if rep, ok := hashSet.EvalFile(d); ok {
		fmt.Printf("%s - MALICIOUS: %s (%s)\n", path, rep.Desc, rep.Cause)
	} else {
		fmt.Printf("%s - clean against hash set\n", path)
	}

	if *heurSet == "" {
		return nil
	}
	importSet, err := loadContainer(*heurSet)
	if err != nil {
		return err
	}

	if _, err := f.Seek(0, 0); err != nil {
		return fmt.Errorf("rewind %s: %w", path, err)
	}
	entries, err := collab.PEImportReader{}.Imports(f)
	if err != nil {
		return fmt.Errorf("read imports from %s: %w", path, err)
	}
	sigImports := make([]sigset.ImportEntry, len(entries))
	for i, e := range entries {
		sigImports[i] = sigset.ImportEntry{Library: e.Library, Symbol: e.Symbol}
	}
	if rep, ok := importSet.EvalImports(sigImports); ok {
		fmt.Printf("%s - MALICIOUS: %s (%s)\n", path, rep.Desc, rep.Cause)
	} else {
		fmt.Printf("%s - clean against import heuristic set\n", path)
	}
	return nil
}

func runSandbox(args []string) error {
	fs := flag.NewFlagSet("sandbox", flag.ExitOnError)
	dynamicSet := fs.String("d", "", "Compiled KindDynamic container path")
	debug := fs.Bool("debug", false, "Enable debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	slog.SetDefault(newLogger(*debug))

	if fs.NArg() != 1 {
		return fmt.Errorf("sandbox: expected exactly one PATH argument")
	}
	path := fs.Arg(0)
	if *dynamicSet == "" {
		return fmt.Errorf("sandbox: -d is required")
	}

	set, err := loadContainer(*dynamicSet)
	if err != nil {
		return err
	}

	sandbox := &collab.GvisorSandbox{}
	calls, err := sandbox.Run(path)
	if err != nil {
		return fmt.Errorf("sandbox run %s: %w", path, err)
	}

	if rep, ok := set.EvalCalls(calls); ok {
		fmt.Printf("%s - MALICIOUS: %s (%s)\n", path, rep.Desc, rep.Cause)
	} else {
		fmt.Printf("%s - clean against dynamic behavior set\n", path)
	}
	return nil
}

func runStartDetection(args []string) error {
	fs := flag.NewFlagSet("start-detection", flag.ExitOnError)
	behavioralSet := fs.String("b", "", "Compiled KindBehavioral container path")
	port := fs.String("port", defaultCommPort, "Minifilter communication port name")
	debug := fs.Bool("debug", false, "Enable debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	slog.SetDefault(newLogger(*debug))

	if *behavioralSet == "" {
		return fmt.Errorf("start-detection: -b is required")
	}

	set, err := loadContainer(*behavioralSet)
	if err != nil {
		return err
	}

	channel, err := ipc.OpenMinifilterChannel(*port)
	if err != nil {
		return fmt.Errorf("connect to detection channel: %w", err)
	}
	defer channel.Close()

	loop := ingress.NewLoop(channel, set, collab.ProcessCleaner{})

	slog.Info("detection loop running, press 'q' to quit")
	return loop.Run(context.Background(), int(os.Stdin.Fd()))
}

// stringList collects repeated -flag=value occurrences, matching the
// corpus's pattern of a small flag.Value wrapper for flags the standard
// library doesn't support natively (here: repeatable, not numeric).
type stringList struct {
	values []string
}

func (s *stringList) String() string { return fmt.Sprint(s.values) }

func (s *stringList) Set(v string) error {
	s.values = append(s.values, v)
	return nil
}

func runScan(args []string) error {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	var sets stringList
	fs.Var(&sets, "set", "Compiled container path (repeatable)")
	debug := fs.Bool("debug", false, "Enable debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	slog.SetDefault(newLogger(*debug))

	if fs.NArg() != 1 {
		return fmt.Errorf("scan: expected exactly one PATH argument")
	}
	if len(sets.values) == 0 {
		return fmt.Errorf("scan: at least one --set is required")
	}
	root := fs.Arg(0)

	loaded := make([]*sigset.Set, len(sets.values))
	for i, path := range sets.values {
		set, err := loadContainer(path)
		if err != nil {
			return err
		}
		loaded[i] = set
	}

	var paths []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk %s: %w", root, err)
	}

	profile := colorprofile.Detect(os.Stdout, os.Environ())
	bar := progressbar.Default(int64(len(paths)), "indexing")

	loop := scan.NewLoop(loaded)
	loop.Extractors = []scan.ArchiveExtractor{collab.ZipExtractor{}}
	loop.PE = collab.PEImportReader{}

	queue := scan.NewQueue()
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			slog.Warn("scan: skipping unreadable file", "path", path, "error", err)
			continue
		}
		defer f.Close()
		queue.PushBack(scan.RealFile(f, scan.NewFileInfo(path)))
		bar.Add(1)
	}
	bar.Close()

	if profile == colorprofile.NoTTY {
		slog.Debug("scan: output stream has no color profile, report lines still carry ANSI codes")
	}

	return loop.Run(queue)
}

func loadContainer(path string) (*sigset.Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	set, err := sigset.Load(f)
	if err != nil {
		return nil, fmt.Errorf("load container %s: %w", path, err)
	}
	return set, nil
}
