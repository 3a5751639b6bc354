package trigger

import (
	"context"
	"errors"
	"time"

	"github.com/hupe1980/agentrelay/bus"
	"github.com/hupe1980/agentrelay/core"
)

// Timer periodically wakes an agent: the heartbeat pattern. A proactive
// agent is just an agent that receives messages from a timer instead of
// a human. Each elapsed interval enqueues independently regardless of how
// long downstream processing takes; fires are never silently dropped.
type Timer struct {
	agentName string
	interval  time.Duration
	prompt    string
	name      string
}

// TimerOption configures a Timer.
type TimerOption func(*Timer)

// WithTimerPrompt overrides the fixed prompt carried by each fire.
func WithTimerPrompt(prompt string) TimerOption {
	return func(t *Timer) { t.prompt = prompt }
}

// WithTimerName overrides the sender identity (default "timer").
func WithTimerName(name string) TimerOption {
	return func(t *Timer) { t.name = name }
}

// NewTimer creates a Timer firing every interval, addressed to agentName.
func NewTimer(agentName string, interval time.Duration, opts ...TimerOption) *Timer {
	t := &Timer{
		agentName: agentName,
		interval:  interval,
		prompt:    DefaultPrompt,
		name:      "timer",
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Name returns the trigger identity.
func (t *Timer) Name() string { return t.name }

// Start fires on the configured period until ctx is cancelled or the bus
// closes.
func (t *Timer) Start(ctx context.Context, b *bus.Bus) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			msg := core.NewMessage(t.name, t.agentName, t.prompt)
			if err := b.Send(ctx, msg); err != nil {
				if errors.Is(err, bus.ErrClosed) || errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}
		}
	}
}
