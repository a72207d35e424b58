// Package diag carries the warnings and errors raised while validating. The
// engine never writes to a global logger; callers inject a Reporter.
package diag

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Reporter receives diagnostics. Args are slog-style key/value pairs.
// Implementations must be safe for concurrent use.
type Reporter interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NewSlog returns a Reporter backed by l, or by slog.Default when l is nil.
func NewSlog(l *slog.Logger) Reporter {
	if l == nil {
		l = slog.Default()
	}
	return slogReporter{l: l}
}

type slogReporter struct{ l *slog.Logger }

func (r slogReporter) Warn(msg string, args ...any)  { r.l.Warn(msg, args...) }
func (r slogReporter) Error(msg string, args ...any) { r.l.Error(msg, args...) }

// Nop discards all diagnostics.
var Nop Reporter = nop{}

type nop struct{}

func (nop) Warn(string, ...any)  {}
func (nop) Error(string, ...any) {}

// Level tags a recorded entry.
type Level string

const (
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Entry is one recorded diagnostic.
type Entry struct {
	Level Level
	Msg   string
	Args  []any
}

// Attr returns the value recorded under key.
func (e Entry) Attr(key string) (any, bool) {
	for i := 0; i+1 < len(e.Args); i += 2 {
		if k, ok := e.Args[i].(string); ok && k == key {
			return e.Args[i+1], true
		}
	}
	return nil, false
}

func (e Entry) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Level, e.Msg)
	for i := 0; i+1 < len(e.Args); i += 2 {
		fmt.Fprintf(&b, " %v=%v", e.Args[i], e.Args[i+1])
	}
	return b.String()
}

// Recorder keeps every diagnostic in memory, optionally forwarding to Next.
type Recorder struct {
	Next Reporter

	mu      sync.Mutex
	entries []Entry
}

func (r *Recorder) add(l Level, msg string, args []any) {
	r.mu.Lock()
	r.entries = append(r.entries, Entry{Level: l, Msg: msg, Args: append([]any(nil), args...)})
	r.mu.Unlock()
	if r.Next == nil {
		return
	}
	if l == LevelWarn {
		r.Next.Warn(msg, args...)
	} else {
		r.Next.Error(msg, args...)
	}
}

func (r *Recorder) Warn(msg string, args ...any)  { r.add(LevelWarn, msg, args) }
func (r *Recorder) Error(msg string, args ...any) { r.add(LevelError, msg, args) }

// Entries returns a copy of what was recorded, in order.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

// Count returns how many entries of level l were recorded.
func (r *Recorder) Count(l Level) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.entries {
		if e.Level == l {
			n++
		}
	}
	return n
}
