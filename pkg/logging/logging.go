package logging

import (
	"log"
	"os"

	"github.com/fatih/color"
	isatty "github.com/mattn/go-isatty"
)

func init() {
	// Set the global logger to use standard error, leaving standard output
	// free for command output (e.g. "version").
	log.SetOutput(os.Stderr)
	log.SetFlags(log.LstdFlags)

	// color defaults its terminal detection to standard output, but Warn and
	// Error write to standard error, so redo the check against the stream we
	// actually log to.
	fd := os.Stderr.Fd()
	color.NoColor = !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd)
}
