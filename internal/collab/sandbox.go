package collab

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"gvisor.dev/gvisor/runsc/specutils"
)

// GvisorSandbox implements scan.Sandbox by running the suspect binary
// inside a gVisor (runsc) sandbox with syscall tracing enabled, and
// distilling the resulting trace into the ordered, deduplicated API-call
// names the dynamic-kind matcher expects.
//
// This drives the `runsc` CLI directly rather than linking gVisor's
// sentry internals: runsc's own OCI bundle/spec helpers
// (runsc/specutils) are the supported surface for building the container
// config a sandboxed run needs.
type GvisorSandbox struct {
	// RunscPath is the path to the runsc binary. Defaults to "runsc" on
	// $PATH when empty.
	RunscPath string
	// BundleDir is a scratch directory used to stage each run's OCI
	// bundle (rootfs + config.json). Defaults to os.TempDir() when empty.
	BundleDir string
}

var traceLinePattern = regexp.MustCompile(`^\s*\[[^]]+\]\s+([A-Za-z_][A-Za-z0-9_]*)\(`)

// Run stages path as the entrypoint of a minimal OCI bundle, executes it
// under runsc with --strace and a debug log, and returns the sequence of
// distinct syscall/API names observed, in first-seen order.
func (s *GvisorSandbox) Run(path string) ([]string, error) {
	runsc := s.RunscPath
	if runsc == "" {
		runsc = "runsc"
	}

	bundleDir, err := os.MkdirTemp(s.BundleDir, "sfi-sandbox-*")
	if err != nil {
		return nil, fmt.Errorf("collab: create sandbox bundle dir: %w", err)
	}
	defer os.RemoveAll(bundleDir)

	specPath := filepath.Join(bundleDir, "config.json")
	if err := writeMinimalSpec(specPath, path); err != nil {
		return nil, fmt.Errorf("collab: write sandbox spec: %w", err)
	}
	if _, err := specutils.ReadSpec(bundleDir, nil); err != nil {
		return nil, fmt.Errorf("collab: invalid sandbox spec: %w", err)
	}

	debugLog := filepath.Join(bundleDir, "strace.log")
	containerID := fmt.Sprintf("sfi-%s", filepath.Base(bundleDir))

	cmd := exec.Command(runsc,
		"--strace",
		"--debug-log="+debugLog,
		"run", "--bundle", bundleDir, containerID,
	)
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("collab: sandbox run failed: %w", err)
	}

	return parseTraceLog(debugLog)
}

func writeMinimalSpec(path, entrypoint string) error {
	const specTemplate = `{
  "ociVersion": "1.0.0",
  "process": {"args": [%q], "cwd": "/"},
  "root": {"path": "rootfs", "readonly": true}
}`
	return os.WriteFile(path, []byte(fmt.Sprintf(specTemplate, entrypoint)), 0o644)
}

// parseTraceLog distills runsc's --strace debug log into an ordered,
// deduplicated list of call names, mirroring the reference sandbox's
// "read each report line, keep the function name before '('" extraction.
func parseTraceLog(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("collab: open trace log: %w", err)
	}
	defer f.Close()

	seen := make(map[string]bool)
	var calls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		m := traceLinePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name := strings.TrimSpace(m[1])
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		calls = append(calls, name)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("collab: scan trace log: %w", err)
	}
	return calls, nil
}
