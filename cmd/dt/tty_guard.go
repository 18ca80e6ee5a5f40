package main

import (
	"os"
	"strings"
)

// init runs before any style is rendered. Lipgloss may query the terminal for
// its background color, which writes OSC/DSR queries to stdout. In a real
// terminal that is harmless, but it corrupts -json output that a script is
// parsing. Termenv skips that query when CI is set, so non-interactive
// invocations set it early.
func init() {
	if os.Getenv("CI") != "" {
		return
	}
	if !shouldSuppressTTYQueries(os.Args[1:], os.Getenv("DT_TEST_MODE") != "") {
		return
	}
	_ = os.Setenv("CI", "1")
}

func shouldSuppressTTYQueries(args []string, envTest bool) bool {
	if envTest {
		return true
	}
	for _, arg := range args {
		name := strings.TrimLeft(arg, "-")
		if name == arg {
			continue
		}
		name, _, _ = strings.Cut(name, "=")
		switch name {
		case "json", "validate", "version", "help", "metrics":
			return true
		}
	}
	return false
}
