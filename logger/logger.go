// Package logger accumulates the diagnostic stream produced while indexing
// and querying a binary. It keeps the shape of a capped tail buffer any
// caller can read without standing up their own collector, backed by
// zerolog so diagnostics carry severity: locally-recoverable items log at
// Info/Trace, while items that make a file or query unusable log at
// Error/Critical.
package logger

import (
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"
)

// Severity orders diagnostics from merely informative to query-fatal.
type Severity int

const (
	Trace Severity = iota
	Info
	Warn
	Error
	// Critical diagnostics mean the caller should treat the affected file
	// or query as unusable.
	Critical
)

func (s Severity) zerolog() zerolog.Level {
	switch s {
	case Trace:
		return zerolog.TraceLevel
	case Info:
		return zerolog.InfoLevel
	case Warn:
		return zerolog.WarnLevel
	case Error:
		return zerolog.ErrorLevel
	case Critical:
		return zerolog.FatalLevel
	}
	return zerolog.InfoLevel
}

// Diagnostic is one accumulated log entry, tagged with whatever raised it.
type Diagnostic struct {
	Severity Severity
	Tag      string
	Message  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s", d.Tag, d.Message)
}

// Log is a capped ring buffer of Diagnostics plus a zerolog sink that
// callers may attach to their own output (stderr, a file, a test buffer).
// Each top-level facade owns its own Log, rather than sharing one
// process-global default, so independent binaries can be queried
// concurrently without their diagnostics interleaving.
type Log struct {
	mu      sync.Mutex
	entries []Diagnostic
	cap     int
	zl      zerolog.Logger
}

// DefaultCapacity is the number of diagnostics retained by New when no
// explicit capacity is given.
const DefaultCapacity = 500

// New creates a Log writing structured output to w (zerolog's usual sink;
// pass io.Discard to disable output entirely while still accumulating the
// tail buffer).
func New(w io.Writer) *Log {
	return NewCapped(w, DefaultCapacity)
}

// NewCapped is New with an explicit tail-buffer capacity.
func NewCapped(w io.Writer, capacity int) *Log {
	if w == nil {
		w = io.Discard
	}
	return &Log{
		cap: capacity,
		zl:  zerolog.New(w).With().Timestamp().Logger(),
	}
}

// Log records a diagnostic at the given severity, tagged with tag
// (conventionally a component name such as "objfile" or "index").
func (l *Log) Log(severity Severity, tag, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)

	l.mu.Lock()
	l.entries = append(l.entries, Diagnostic{Severity: severity, Tag: tag, Message: msg})
	if l.cap > 0 && len(l.entries) > l.cap {
		l.entries = l.entries[len(l.entries)-l.cap:]
	}
	l.mu.Unlock()

	l.zl.WithLevel(severity.zerolog()).Str("component", tag).Msg(msg)
}

// Tracef is a convenience wrapper for Log(Trace, ...).
func (l *Log) Tracef(tag, format string, args ...interface{}) { l.Log(Trace, tag, format, args...) }

// Infof is a convenience wrapper for Log(Info, ...).
func (l *Log) Infof(tag, format string, args ...interface{}) { l.Log(Info, tag, format, args...) }

// Warnf is a convenience wrapper for Log(Warn, ...).
func (l *Log) Warnf(tag, format string, args ...interface{}) { l.Log(Warn, tag, format, args...) }

// Errorf is a convenience wrapper for Log(Error, ...).
func (l *Log) Errorf(tag, format string, args ...interface{}) { l.Log(Error, tag, format, args...) }

// Criticalf is a convenience wrapper for Log(Critical, ...).
func (l *Log) Criticalf(tag, format string, args ...interface{}) {
	l.Log(Critical, tag, format, args...)
}

// Tail returns (a copy of) the last n diagnostics, or all of them if n is
// larger than the number recorded.
func (l *Log) Tail(n int) []Diagnostic {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n <= 0 || len(l.entries) == 0 {
		return nil
	}
	if n > len(l.entries) {
		n = len(l.entries)
	}
	out := make([]Diagnostic, n)
	copy(out, l.entries[len(l.entries)-n:])
	return out
}

// All returns every accumulated diagnostic still within the cap.
func (l *Log) All() []Diagnostic {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Diagnostic, len(l.entries))
	copy(out, l.entries)
	return out
}

// Write renders every accumulated diagnostic to w, one per line.
func (l *Log) Write(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		fmt.Fprintf(w, "%s\n", e)
	}
}

// Clear empties the tail buffer without affecting the zerolog sink.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = l.entries[:0]
}
