// Package debug provides conditional debug logging for dt.
//
// Debug logging is enabled by setting the DT_DEBUG environment variable:
//
//	DT_DEBUG=1 dt -search mobx
//
// Messages go to stderr with timestamps. When disabled (default), every
// function returns immediately.
package debug

import (
	"io"
	"log"
	"os"
	"sync"
	"time"
)

const prefix = "[DT_DEBUG] "

var (
	mu      sync.Mutex
	enabled bool
	logger  *log.Logger
	out     io.Writer = os.Stderr
)

func init() {
	if os.Getenv("DT_DEBUG") != "" {
		SetEnabled(true)
	}
}

// Enabled returns whether debug logging is enabled.
func Enabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled
}

// SetEnabled turns debug logging on or off.
func SetEnabled(e bool) {
	mu.Lock()
	defer mu.Unlock()
	enabled = e
	if e && logger == nil {
		logger = log.New(out, prefix, log.Ltime|log.Lmicroseconds)
	}
}

// SetOutput redirects debug output. Passing nil restores stderr.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if w == nil {
		w = os.Stderr
	}
	out = w
	logger = log.New(out, prefix, log.Ltime|log.Lmicroseconds)
}

func active() *log.Logger {
	mu.Lock()
	defer mu.Unlock()
	if !enabled {
		return nil
	}
	return logger
}

// Log writes a printf-style debug message.
func Log(format string, args ...any) {
	if l := active(); l != nil {
		l.Printf(format, args...)
	}
}

// LogEnterExit logs entry and, when the returned func runs, exit with timing:
//
//	defer debug.LogEnterExit("load")()
func LogEnterExit(name string) func() {
	l := active()
	if l == nil {
		return func() {}
	}
	l.Printf("-> %s", name)
	start := time.Now()
	return func() {
		l.Printf("<- %s (%v)", name, time.Since(start))
	}
}
