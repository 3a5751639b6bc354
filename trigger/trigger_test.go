package trigger

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrelay/bus"
)

func TestTimerFiresRepeatedly(t *testing.T) {
	b := bus.New()
	tr := NewTimer("assistant", 10*time.Millisecond, WithTimerPrompt("wake up"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tr.Start(ctx, b) }()

	for i := 0; i < 3; i++ {
		msg, err := b.Receive(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "timer", msg.Sender)
		assert.Equal(t, "assistant", msg.To)
		assert.Equal(t, "wake up", msg.Content)
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("timer did not stop on cancellation")
	}
}

func TestTimerStopsOnBusClose(t *testing.T) {
	b := bus.New(func(o *bus.Options) { o.BufferSize = 1 })
	tr := NewTimer("assistant", 5*time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- tr.Start(context.Background(), b) }()

	time.Sleep(20 * time.Millisecond)
	b.Close()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("timer did not stop after bus close")
	}
}

func TestFileWatchDetectsChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watched.txt")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	b := bus.New()
	fw := NewFileWatch("assistant", path, WithPollInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = fw.Start(ctx, b) }()

	// Initial content is the baseline, no fire expected yet.
	shortCtx, shortCancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	_, err := b.Receive(shortCtx)
	shortCancel()
	assert.Error(t, err)

	// Modify the file with a future mtime so the poll sees a change.
	require.NoError(t, os.WriteFile(path, []byte("v2"), 0o644))
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	msg, err := b.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "file_watch", msg.Sender)
	assert.Contains(t, msg.Content, "File changed")
	assert.Contains(t, msg.Content, "v2")

	// One observed change fires exactly once.
	shortCtx, shortCancel = context.WithTimeout(context.Background(), 50*time.Millisecond)
	_, err = b.Receive(shortCtx)
	shortCancel()
	assert.Error(t, err)
}

func TestFileWatchAbsentPathIsQuiet(t *testing.T) {
	b := bus.New()
	fw := NewFileWatch("assistant", filepath.Join(t.TempDir(), "never-created.txt"), WithPollInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- fw.Start(ctx, b) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("filewatch did not stop on cancellation")
	}
}

func TestCronInvalidExpression(t *testing.T) {
	b := bus.New()
	cr := NewCron("assistant", "not a cron spec")

	err := cr.Start(context.Background(), b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid cron expression")
}

func TestCronStopsOnCancel(t *testing.T) {
	b := bus.New()
	cr := NewCron("assistant", "* * * * *", WithCronPrompt("daily check"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- cr.Start(ctx, b) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("cron did not stop on cancellation")
	}
}

func TestTriggerNames(t *testing.T) {
	assert.Equal(t, "timer", NewTimer("a", time.Second).Name())
	assert.Equal(t, "heartbeat", NewTimer("a", time.Second, WithTimerName("heartbeat")).Name())
	assert.Equal(t, "file_watch", NewFileWatch("a", "p").Name())
	assert.Equal(t, "cron", NewCron("a", "* * * * *").Name())
}
