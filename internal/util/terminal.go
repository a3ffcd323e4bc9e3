package util

import (
	"os"

	"golang.org/x/term"
)

// IsTerminal reports whether the file descriptor is attached to a
// terminal. Progress output is suppressed when it is not.
func IsTerminal(fd uintptr) bool {
	return term.IsTerminal(int(fd))
}

// TerminalWidth returns the width of the terminal on stdout, or 80 when
// stdout is not a terminal.
func TerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 80
	}
	return width
}
