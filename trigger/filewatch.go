package trigger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hupe1980/agentrelay/bus"
	"github.com/hupe1980/agentrelay/core"
)

// FileWatch wakes an agent when a watched path's modification time
// changes. It polls; a single observed change fires exactly one message.
// The message content describes the change and carries the file contents.
type FileWatch struct {
	agentName string
	path      string
	poll      time.Duration
	name      string
}

// FileWatchOption configures a FileWatch.
type FileWatchOption func(*FileWatch)

// WithPollInterval overrides the polling period (default 10s).
func WithPollInterval(d time.Duration) FileWatchOption {
	return func(f *FileWatch) { f.poll = d }
}

// WithFileWatchName overrides the sender identity (default "file_watch").
func WithFileWatchName(name string) FileWatchOption {
	return func(f *FileWatch) { f.name = name }
}

// NewFileWatch creates a FileWatch on path, addressed to agentName.
func NewFileWatch(agentName, path string, opts ...FileWatchOption) *FileWatch {
	f := &FileWatch{
		agentName: agentName,
		path:      path,
		poll:      10 * time.Second,
		name:      "file_watch",
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Name returns the trigger identity.
func (f *FileWatch) Name() string { return f.name }

// Start polls the watched path until ctx is cancelled. A path that
// exists but cannot be read is an unrecoverable failure: the trigger
// stops and reports it.
func (f *FileWatch) Start(ctx context.Context, b *bus.Bus) error {
	ticker := time.NewTicker(f.poll)
	defer ticker.Stop()

	var lastMtime time.Time

	// Baseline: a file that already exists at start is not a change.
	if info, err := os.Stat(f.path); err == nil {
		lastMtime = info.ModTime()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			info, err := os.Stat(f.path)
			if err != nil {
				continue // absent path is not an error, just nothing to report
			}
			if !info.ModTime().After(lastMtime) {
				continue
			}
			lastMtime = info.ModTime()

			data, err := os.ReadFile(f.path)
			if err != nil {
				return fmt.Errorf("watched path %q became unreadable: %w", f.path, err)
			}

			content := fmt.Sprintf("File changed: %s\n\nContents:\n%s", f.path, data)
			if err := b.Send(ctx, core.NewMessage(f.name, f.agentName, content)); err != nil {
				if errors.Is(err, bus.ErrClosed) || errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}
		}
	}
}
