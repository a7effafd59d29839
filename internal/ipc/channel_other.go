//go:build !windows

package ipc

import "fmt"

// OpenMinifilterChannel is only meaningful on Windows, where the kernel
// minifilter actually exists. Elsewhere it fails immediately so callers
// can fall back to a different Channel (a loopback channel in tests, or
// simply refuse to run the ingress loop).
func OpenMinifilterChannel(portName string) (Channel, error) {
	return nil, fmt.Errorf("ipc: minifilter communication ports are Windows-only")
}
