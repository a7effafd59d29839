//go:build !windows

package collab

import (
	"log/slog"
	"syscall"
)

// Terminate sends SIGKILL to pid. There is no third-party alternative to
// the standard library's syscall.Kill on Unix; golang.org/x/sys/unix
// wraps the identical syscall with no added ergonomics for this one call.
func (ProcessCleaner) Terminate(pid uint32) bool {
	if err := syscall.Kill(int(pid), syscall.SIGKILL); err != nil {
		slog.Warn("failed to terminate process", "pid", pid, "err", err)
		return false
	}
	return true
}
