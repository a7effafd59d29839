package collab

// ProcessCleaner implements scan.ProcessCleaner (and is reused directly
// by the ingress loop's kill-on-detect step): terminate a process by pid.
// The actual termination call is platform-specific; see cleaner_windows.go
// and cleaner_unix.go.
type ProcessCleaner struct{}
