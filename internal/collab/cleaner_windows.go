//go:build windows

package collab

import (
	"log/slog"

	"golang.org/x/sys/windows"
)

// Terminate opens pid with PROCESS_TERMINATE and kills it, matching the
// reference implementation's OpenProcess/TerminateProcess pair.
func (ProcessCleaner) Terminate(pid uint32) bool {
	handle, err := windows.OpenProcess(windows.PROCESS_TERMINATE, false, pid)
	if err != nil {
		slog.Warn("failed to open process for termination", "pid", pid, "err", err)
		return false
	}
	defer windows.CloseHandle(handle)

	if err := windows.TerminateProcess(handle, 0); err != nil {
		slog.Warn("failed to terminate process", "pid", pid, "err", err)
		return false
	}
	return true
}
