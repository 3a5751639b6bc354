// Package eventlog provides the append-only audit sink for Events. The
// event stream is the system's entire observability and history story:
// an ordered in-memory slice, optionally mirrored to a JSONL file with
// one independently parseable record per line, never rewritten.
package eventlog

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/logging"
)

// Options configures a Log instance.
type Options struct {
	// Path of the JSONL file to append records to. Empty disables file
	// persistence; events are still retained in memory.
	Path string

	// Logger mirrors each recorded event as a structured log entry.
	// Defaults to NoOpLogger.
	Logger logging.Logger
}

// Log is an append-only event sink. Record never fails the caller:
// persistence problems are reported through the logger and recording
// continues in memory. All methods are safe for concurrent use.
type Log struct {
	mu     sync.Mutex
	events []core.Event
	file   *os.File
	logger logging.Logger
}

// New creates a Log with optional overrides.
func New(optFns ...func(o *Options)) *Log {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	l := &Log{logger: opts.Logger}

	if opts.Path != "" {
		f, err := os.OpenFile(opts.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			l.logger.Error("event log file unavailable, recording in memory only", "path", opts.Path, "error", err)
		} else {
			l.file = f
		}
	}

	return l
}

// Record appends an event. It never returns an error: logging is
// best-effort and must not block or fail the routing loop.
func (l *Log) Record(ev core.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.events = append(l.events, ev)

	l.logger.Info("event",
		"kind", string(ev.Kind),
		"agent", ev.Agent,
		"data", ev.Data,
	)

	if l.file == nil {
		return
	}
	line, err := json.Marshal(ev)
	if err != nil {
		l.logger.Error("event serialization failed", "kind", string(ev.Kind), "error", err)
		return
	}
	if _, err := l.file.Write(append(line, '\n')); err != nil {
		l.logger.Error("event log write failed", "error", err)
	}
}

// RecordKind is a convenience wrapper constructing and recording an event.
func (l *Log) RecordKind(kind core.EventKind, agent string, data map[string]any) {
	l.Record(core.NewEvent(kind, agent, data))
}

// Events returns a copy of all recorded events in emission order.
func (l *Log) Events() []core.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]core.Event, len(l.events))
	copy(out, l.events)
	return out
}

// EventsOfKind returns recorded events matching kind, in emission order.
func (l *Log) EventsOfKind(kind core.EventKind) []core.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []core.Event
	for _, ev := range l.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

// Close releases the underlying file, if any.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
