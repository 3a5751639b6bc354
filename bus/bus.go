// Package bus implements the two-direction asynchronous Message transport
// owned by the orchestrator. The inbound direction carries messages
// addressed to agents; the outbound direction carries messages destined
// for external consumers. Both directions are independent FIFO queues:
// the full/empty state of one never blocks the other.
package bus

import (
	"context"
	"errors"
	"sync"

	"github.com/hupe1980/agentrelay/core"
)

// ErrClosed is returned by Send, Reply and Receive after Close. Closing
// is terminal; a sender blocked against a closed bus fails explicitly
// instead of waiting forever.
var ErrClosed = errors.New("bus: closed")

// Options configures a Bus instance.
type Options struct {
	// BufferSize sets the per-direction queue capacity. Senders block
	// (bounded backpressure) once a direction is full until the consumer
	// drains it or the bus closes.
	BufferSize int

	// SubscriberBufferSize sets the capacity of subscriber fan-out
	// channels. Subscribers are best-effort observers: a full subscriber
	// drops the copy rather than stalling delivery to the outbound queue.
	SubscriberBufferSize int
}

// Bus is the central transport through which all communication flows.
// The orchestrator is the sole consumer of both directions; producers
// (external senders, triggers, agent loops) only enqueue. All methods
// are safe for concurrent use.
type Bus struct {
	inbound  chan core.Message
	outbound chan core.Message

	done      chan struct{}
	closeOnce sync.Once

	mu          sync.RWMutex
	subscribers []chan core.Message
	subBuf      int
}

// DefaultOptions provides sensible queue capacities for local use.
var DefaultOptions = Options{
	BufferSize:           256,
	SubscriberBufferSize: 64,
}

// New creates a Bus with optional overrides.
func New(optFns ...func(o *Options)) *Bus {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Bus{
		inbound:  make(chan core.Message, opts.BufferSize),
		outbound: make(chan core.Message, opts.BufferSize),
		done:     make(chan struct{}),
		subBuf:   opts.SubscriberBufferSize,
	}
}

// Send enqueues a message for agent processing (inbound direction).
func (b *Bus) Send(ctx context.Context, msg core.Message) error {
	return b.push(ctx, b.inbound, msg)
}

// Receive waits for the next inbound message. It returns ErrClosed once
// the bus is closed and the inbound queue is drained, or the context
// error if ctx expires first.
func (b *Bus) Receive(ctx context.Context) (core.Message, error) {
	return b.pull(ctx, b.inbound)
}

// Reply enqueues a message for external consumption (outbound direction)
// and fans a copy out to every subscriber.
func (b *Bus) Reply(ctx context.Context, msg core.Message) error {
	if err := b.push(ctx, b.outbound, msg); err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subscribers {
		select {
		case sub <- msg:
		default: // slow observer, drop the copy
		}
	}

	return nil
}

// NextReply waits for the next outbound message. Semantics mirror
// Receive for the outbound direction.
func (b *Bus) NextReply(ctx context.Context) (core.Message, error) {
	return b.pull(ctx, b.outbound)
}

// Subscribe registers an observer of all outbound messages. Subscribers
// receive best-effort copies and must drain their channel promptly.
func (b *Bus) Subscribe() <-chan core.Message {
	ch := make(chan core.Message, b.subBuf)
	b.mu.Lock()
	b.subscribers = append(b.subscribers, ch)
	b.mu.Unlock()
	return ch
}

// Close marks the bus terminal. Subsequent sends fail with ErrClosed;
// pending receives drain buffered messages first, then fail with
// ErrClosed. Close is idempotent.
func (b *Bus) Close() {
	b.closeOnce.Do(func() { close(b.done) })
}

// Closed reports whether Close has been called.
func (b *Bus) Closed() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}

func (b *Bus) push(ctx context.Context, dir chan core.Message, msg core.Message) error {
	// A send racing Close must never win once the bus is closed.
	select {
	case <-b.done:
		return ErrClosed
	default:
	}

	select {
	case dir <- msg:
		return nil
	case <-b.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bus) pull(ctx context.Context, dir chan core.Message) (core.Message, error) {
	// Fast path keeps FIFO draining ahead of the closed signal.
	select {
	case msg := <-dir:
		return msg, nil
	default:
	}

	select {
	case msg := <-dir:
		return msg, nil
	case <-ctx.Done():
		return core.Message{}, ctx.Err()
	case <-b.done:
		// Final drain: messages accepted before Close stay deliverable.
		select {
		case msg := <-dir:
			return msg, nil
		default:
			return core.Message{}, ErrClosed
		}
	}
}
