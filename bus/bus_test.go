package bus

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrelay/core"
)

func TestInboundFIFO(t *testing.T) {
	b := New()
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		err := b.Send(ctx, core.NewMessage("user", "assistant", fmt.Sprintf("msg-%d", i)))
		require.NoError(t, err)
	}

	for i := 0; i < 50; i++ {
		msg, err := b.Receive(ctx)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("msg-%d", i), msg.Content)
	}
}

func TestDirectionsAreIndependent(t *testing.T) {
	b := New(func(o *Options) { o.BufferSize = 1 })
	ctx := context.Background()

	// Fill the outbound direction completely.
	require.NoError(t, b.Reply(ctx, core.NewMessage("assistant", "user", "reply")))

	// Inbound traffic still flows.
	require.NoError(t, b.Send(ctx, core.NewMessage("user", "assistant", "hello")))
	msg, err := b.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Content)
}

func TestSendAfterClose(t *testing.T) {
	b := New()
	b.Close()

	err := b.Send(context.Background(), core.NewMessage("user", "assistant", "late"))
	assert.ErrorIs(t, err, ErrClosed)

	err = b.Reply(context.Background(), core.NewMessage("assistant", "user", "late"))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestReceiveDrainsAfterClose(t *testing.T) {
	b := New()
	ctx := context.Background()

	require.NoError(t, b.Send(ctx, core.NewMessage("user", "assistant", "first")))
	require.NoError(t, b.Send(ctx, core.NewMessage("user", "assistant", "second")))
	b.Close()

	msg, err := b.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "first", msg.Content)

	msg, err = b.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", msg.Content)

	_, err = b.Receive(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCloseUnblocksPendingReceive(t *testing.T) {
	b := New()

	errCh := make(chan error, 1)
	go func() {
		_, err := b.Receive(context.Background())
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	b.Close()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("receive did not unblock on close")
	}
}

func TestReceiveRespectsContext(t *testing.T) {
	b := New()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := b.Receive(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCloseIsIdempotent(t *testing.T) {
	b := New()
	b.Close()
	b.Close()
	assert.True(t, b.Closed())
}

func TestSubscribeFanOut(t *testing.T) {
	b := New()
	ctx := context.Background()

	sub1 := b.Subscribe()
	sub2 := b.Subscribe()

	require.NoError(t, b.Reply(ctx, core.NewMessage("assistant", "user", "hello")))

	for _, sub := range []<-chan core.Message{sub1, sub2} {
		select {
		case msg := <-sub:
			assert.Equal(t, "hello", msg.Content)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive fan-out copy")
		}
	}

	// The outbound queue itself still holds the message.
	msg, err := b.NextReply(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Content)
}

func TestSlowSubscriberDoesNotBlockReply(t *testing.T) {
	b := New(func(o *Options) { o.SubscriberBufferSize = 1 })
	ctx := context.Background()

	_ = b.Subscribe() // never drained

	require.NoError(t, b.Reply(ctx, core.NewMessage("assistant", "user", "one")))
	require.NoError(t, b.Reply(ctx, core.NewMessage("assistant", "user", "two")))

	msg, err := b.NextReply(ctx)
	require.NoError(t, err)
	assert.Equal(t, "one", msg.Content)
}
