package ingress

import (
	"errors"
	"os"
)

// errQuit signals a clean operator-requested shutdown; Run treats it as
// success rather than propagating it as a failure.
var errQuit = errors.New("ingress: quit requested")

// readStdin is split out so the raw-mode poll in watchForQuit reads
// through a single, easily-stubbed seam.
func readStdin(buf []byte) (int, error) {
	return os.Stdin.Read(buf)
}
