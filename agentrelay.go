// Package agentrelay provides a high-level façade over the orchestrator,
// bus and event log, enabling concise construction of message-routed
// multi-agent systems. Most applications interact with this package by:
//  1. Creating a Relay via New() (optionally overriding the default model,
//     event log path or logger)
//  2. Registering one or more agents and optional triggers
//  3. Starting Run in a goroutine, then exchanging messages with Send and
//     NextReply (or Subscribe for a push feed)
//
// The façade delegates all routing to orchestrator.Orchestrator while
// keeping setup ergonomics concise. All defaults are safe for local
// development and testing; production deployments typically supply a
// structured logger and a persistent event log path.
package agentrelay

import (
	"context"

	"github.com/hupe1980/agentrelay/agent"
	"github.com/hupe1980/agentrelay/bus"
	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/eventlog"
	"github.com/hupe1980/agentrelay/logging"
	"github.com/hupe1980/agentrelay/model"
	"github.com/hupe1980/agentrelay/orchestrator"
	"github.com/hupe1980/agentrelay/trigger"
)

// Options configures the Relay instance.
type Options struct {
	// DefaultModel serves agents constructed without their own model.
	DefaultModel model.Model

	// EventLogPath enables JSONL persistence of the event stream. Empty
	// keeps events in memory only.
	EventLogPath string

	// BusOptions tunes queue capacities.
	BusOptions bus.Options

	// MaxConcurrentDispatches caps in-flight agent loop executions.
	// Zero means unlimited.
	MaxConcurrentDispatches int

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Relay is the high-level façade aggregating the bus, event log and
// orchestrator.
type Relay struct {
	b    *bus.Bus
	log  *eventlog.Log
	orch *orchestrator.Orchestrator
}

// New creates a Relay instance with optional overrides.
func New(optFns ...func(o *Options)) *Relay {
	opts := Options{
		BusOptions: bus.DefaultOptions,
		Logger:     logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	b := bus.New(func(o *bus.Options) { *o = opts.BusOptions })

	log := eventlog.New(func(o *eventlog.Options) {
		o.Path = opts.EventLogPath
		o.Logger = opts.Logger
	})

	orch := orchestrator.New(func(o *orchestrator.Options) {
		o.Bus = b
		o.EventLog = log
		o.Logger = opts.Logger
		o.DefaultModel = opts.DefaultModel
		o.MaxConcurrentDispatches = opts.MaxConcurrentDispatches
	})

	return &Relay{b: b, log: log, orch: orch}
}

// RegisterAgent adds an agent to the routing table. Only allowed before
// Run starts.
func (r *Relay) RegisterAgent(a *agent.Agent) error { return r.orch.RegisterAgent(a) }

// AddTrigger registers a trigger started alongside the routing loop.
// Only allowed before Run starts.
func (r *Relay) AddTrigger(t trigger.Trigger) error { return r.orch.AddTrigger(t) }

// Run starts triggers and the routing loop, blocking until the context
// is cancelled or Stop is called.
func (r *Relay) Run(ctx context.Context) error { return r.orch.Run(ctx) }

// Stop requests shutdown of a running Relay. Idempotent.
func (r *Relay) Stop() { r.orch.Stop() }

// Send enqueues a user message addressed to the named agent.
func (r *Relay) Send(ctx context.Context, agentName, content string) error {
	return r.b.Send(ctx, core.NewMessage(core.RecipientUser, agentName, content))
}

// NextReply blocks until an outbound message is available.
func (r *Relay) NextReply(ctx context.Context) (core.Message, error) {
	return r.b.NextReply(ctx)
}

// Subscribe returns a push feed of outbound messages. Subscribers that
// fall behind miss messages rather than blocking delivery.
func (r *Relay) Subscribe() <-chan core.Message { return r.b.Subscribe() }

// Events returns a snapshot of all recorded events in order.
func (r *Relay) Events() []core.Event { return r.log.Events() }
