//go:build !windows

package cmd

import (
	"os"
	"syscall"
)

// TerminationSignals are the signals the server treats as a graceful
// shutdown request.
var TerminationSignals = []os.Signal{
	syscall.SIGINT,
	syscall.SIGTERM,
}
