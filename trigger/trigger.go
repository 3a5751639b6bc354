// Package trigger provides non-human message producers: background tasks
// that synthesize inbound messages on a schedule (Timer, Cron) or on an
// external change (FileWatch) and enqueue them on the bus. Triggers own
// no bus state; they only hold a reference used to enqueue. Each trigger
// is independently cancellable through its context, and a trigger failure
// stops that trigger only, never the orchestrator.
package trigger

import (
	"context"

	"github.com/hupe1980/agentrelay/bus"
)

// Trigger is the capability "produce messages on some external stimulus".
// Start blocks, enqueueing inbound messages until the context is
// cancelled (returning nil) or an unrecoverable failure occurs (returning
// the failure). The orchestrator reports a returned error as an Event and
// lets the trigger stay stopped.
type Trigger interface {
	// Name returns the trigger identity used as the sender of synthetic
	// messages.
	Name() string

	// Start runs the trigger until ctx is cancelled.
	Start(ctx context.Context, b *bus.Bus) error
}

// DefaultPrompt is the message content Timer and Cron use when none is
// configured.
const DefaultPrompt = "Check if there is anything that needs your attention."
