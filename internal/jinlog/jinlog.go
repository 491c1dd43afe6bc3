// Package jinlog centralizes the Fprintf-to-stderr-plus-wrapped-error
// discipline the core follows (see internal/vcs/git's style: internal
// packages return errors, never log directly) and adds an optional
// rotating debug log for --verbose runs, instead of repeating
// fmt.Fprintf(os.Stderr, ...) call sites across cmd/jin.
package jinlog

import (
	"fmt"
	"io"
	"os"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger writes leveled output to stderr and, when Debugging, to a
// rotating file under the workspace's private directory.
type Logger struct {
	mu      sync.Mutex
	verbose bool
	err     io.Writer
	debug   io.Writer
}

// New constructs a Logger. debugLogPath may be empty to disable the
// rotating debug sink.
func New(verbose bool, debugLogPath string) *Logger {
	l := &Logger{verbose: verbose, err: os.Stderr}
	if debugLogPath != "" {
		l.debug = &lumberjack.Logger{
			Filename:   debugLogPath,
			MaxSize:    5, // MB
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
	}
	return l
}

// Errorf reports a user-facing error line to stderr.
func (l *Logger) Errorf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.err, "Error: "+format+"\n", args...)
}

// Warnf reports an advisory line to stderr.
func (l *Logger) Warnf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.err, "Warning: "+format+"\n", args...)
}

// Debugf writes to the rotating debug sink only when verbose is set;
// it is a no-op otherwise so call sites don't need to guard themselves.
func (l *Logger) Debugf(format string, args ...any) {
	if !l.verbose || l.debug == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.debug, format+"\n", args...)
}
