// Package cliutil holds small helpers shared by cmd/sfi's subcommands.
package cliutil

import "fmt"

// ExitError carries a specific process exit code out of a subcommand's
// run function, past the generic error-logging path in main.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exited with code %d", e.Code)
}
