// Package orchestrator implements the central routing loop: it owns the
// bus, the registered agent set and the active triggers, maps addressed
// inbound messages to agent loop executions, and re-injects inter-agent
// replies back into the inbound queue. There is exactly one routing
// mechanism for all addressing, human or inter-agent.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/agentrelay/agent"
	"github.com/hupe1980/agentrelay/bus"
	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/eventlog"
	"github.com/hupe1980/agentrelay/internal/util"
	"github.com/hupe1980/agentrelay/logging"
	"github.com/hupe1980/agentrelay/model"
	"github.com/hupe1980/agentrelay/trigger"
)

// ErrAlreadyRunning is returned by setup methods called while Run is active.
var ErrAlreadyRunning = errors.New("orchestrator: already running")

const routedExcerptLen = 200

// Options configures an Orchestrator instance.
type Options struct {
	// Bus is the message transport. A default Bus is created if nil.
	Bus *bus.Bus

	// EventLog is the audit sink. A memory-only log is created if nil.
	EventLog *eventlog.Log

	// Logger receives diagnostic output. Defaults to NoOpLogger.
	Logger logging.Logger

	// DefaultModel serves agents without a bound model.
	DefaultModel model.Model

	// MaxConcurrentDispatches caps in-flight agent loop executions.
	// Zero means unlimited.
	MaxConcurrentDispatches int
}

// Orchestrator routes messages to agents by name. The agent registry is
// immutable once Run starts, so the routing loop reads it without
// synchronization; the bus is the only mutable structure shared between
// concurrent units of work.
type Orchestrator struct {
	b        *bus.Bus
	log      *eventlog.Log
	logger   logging.Logger
	mdl      model.Model
	agents   map[string]*agent.Agent
	triggers []trigger.Trigger

	sem      chan struct{} // nil when unlimited
	running  atomic.Bool
	stopOnce sync.Once
	stopped  chan struct{}
	inflight sync.WaitGroup
}

// New creates an Orchestrator with optional overrides.
func New(optFns ...func(o *Options)) *Orchestrator {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Bus == nil {
		opts.Bus = bus.New()
	}
	if opts.EventLog == nil {
		opts.EventLog = eventlog.New()
	}

	o := &Orchestrator{
		b:       opts.Bus,
		log:     opts.EventLog,
		logger:  opts.Logger,
		mdl:     opts.DefaultModel,
		agents:  make(map[string]*agent.Agent),
		stopped: make(chan struct{}),
	}
	if opts.MaxConcurrentDispatches > 0 {
		o.sem = make(chan struct{}, opts.MaxConcurrentDispatches)
	}
	return o
}

// Bus returns the transport owned by this orchestrator.
func (o *Orchestrator) Bus() *bus.Bus { return o.b }

// EventLog returns the audit sink.
func (o *Orchestrator) EventLog() *eventlog.Log { return o.log }

// RegisterAgent adds an agent to the routing table. Registration is only
// allowed before Run starts; names must be unique.
func (o *Orchestrator) RegisterAgent(a *agent.Agent) error {
	if o.running.Load() {
		return ErrAlreadyRunning
	}
	if _, exists := o.agents[a.Name()]; exists {
		return fmt.Errorf("orchestrator: agent %q already registered", a.Name())
	}
	if a.Name() == core.RecipientUser {
		return fmt.Errorf("orchestrator: agent name %q is reserved", core.RecipientUser)
	}
	o.agents[a.Name()] = a
	return nil
}

// AddTrigger registers a trigger started alongside the routing loop.
// Only allowed before Run starts.
func (o *Orchestrator) AddTrigger(t trigger.Trigger) error {
	if o.running.Load() {
		return ErrAlreadyRunning
	}
	o.triggers = append(o.triggers, t)
	return nil
}

// Run starts all triggers and the routing loop, blocking until the
// context is cancelled, Stop is called, or the bus closes. In-flight
// agent loop executions are allowed to run to completion after shutdown
// begins; their replies targeting the closed bus fail explicitly and are
// recorded as error events.
func (o *Orchestrator) Run(ctx context.Context) error {
	if !o.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer o.running.Store(false)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-o.stopped:
			cancel()
		case <-ctx.Done():
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	for _, t := range o.triggers {
		t := t // per-iteration copy: module builds with pre-1.22 loop semantics
		g.Go(func() error {
			o.runTrigger(gctx, t)
			return nil
		})
	}

	g.Go(func() error {
		o.route(gctx)
		return nil
	})

	err := g.Wait()

	// Shutdown: close the bus so late replies fail explicitly, then wait
	// for in-flight agent loops to finish.
	o.b.Close()
	o.inflight.Wait()

	return err
}

// Stop requests shutdown of a running orchestrator: triggers are
// cancelled, the routing loop exits and the bus closes. Idempotent.
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() { close(o.stopped) })
}

// runTrigger supervises one trigger. A trigger failure is reported as an
// event and stops that trigger only; the orchestrator keeps running.
func (o *Orchestrator) runTrigger(ctx context.Context, t trigger.Trigger) {
	o.logger.Info("trigger started", "trigger", t.Name())

	err := t.Start(ctx, o.b)
	if err != nil && !errors.Is(err, context.Canceled) {
		o.log.Record(core.NewErrorEvent(core.SystemAuthor, err, map[string]any{
			"trigger": t.Name(),
		}))
	}

	o.log.RecordKind(core.EventTriggerStopped, core.SystemAuthor, map[string]any{
		"trigger": t.Name(),
	})
}

// route is the central loop: receive, resolve, dispatch. Receiving from
// the bus is its sole blocking point; dispatched agent loops progress
// concurrently so one slow agent never stalls routing.
func (o *Orchestrator) route(ctx context.Context) {
	triggerNames := make(map[string]struct{}, len(o.triggers))
	for _, t := range o.triggers {
		triggerNames[t.Name()] = struct{}{}
	}

	for {
		msg, err := o.b.Receive(ctx)
		if err != nil {
			return // cancelled or bus closed
		}

		if _, fromTrigger := triggerNames[msg.Sender]; fromTrigger {
			o.log.RecordKind(core.EventTriggerFired, core.SystemAuthor, map[string]any{
				"trigger": msg.Sender,
				"to":      msg.To,
			})
		}

		o.log.RecordKind(core.EventMessageRouted, core.SystemAuthor, map[string]any{
			"from":    msg.Sender,
			"to":      msg.To,
			"content": util.Truncate(msg.Content, routedExcerptLen),
			"hops":    msg.Hops,
		})

		a, ok := o.agents[msg.To]
		if !ok {
			o.handleUnroutable(ctx, msg)
			continue
		}

		if o.sem != nil {
			select {
			case o.sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
		}

		o.inflight.Add(1)
		// Dispatches outlive routing-loop cancellation so an in-flight
		// cycle can finish; its bus sends fail once the bus is closed.
		dispatchCtx := context.WithoutCancel(ctx)
		go func(a *agent.Agent, msg core.Message) {
			defer o.inflight.Done()
			if o.sem != nil {
				defer func() { <-o.sem }()
			}
			o.dispatch(dispatchCtx, a, msg)
		}(a, msg)
	}
}

// handleUnroutable reports an unresolvable destination and drops the
// message. A human sender additionally gets an outbound notice.
func (o *Orchestrator) handleUnroutable(ctx context.Context, msg core.Message) {
	err := fmt.Errorf("no agent named %q", msg.To)
	o.log.Record(core.NewErrorEvent(core.SystemAuthor, err, map[string]any{
		"from": msg.Sender,
		"to":   msg.To,
	}))

	if msg.Sender != core.RecipientUser {
		return
	}
	notice := core.NewMessage(core.SystemAuthor, msg.Sender, err.Error())
	if replyErr := o.b.Reply(ctx, notice); replyErr != nil && !errors.Is(replyErr, bus.ErrClosed) {
		o.logger.Warn("unroutable notice not delivered", "error", replyErr)
	}
}

// dispatch runs one agent loop execution and routes its reply: outbound
// for external recipients, re-injected inbound for registered agents.
func (o *Orchestrator) dispatch(ctx context.Context, a *agent.Agent, msg core.Message) {
	reply, err := agent.Run(ctx, a, msg, o.log, func(ro *agent.RunOptions) {
		ro.Model = o.mdl
		ro.Logger = o.logger
	})
	if err != nil || reply == nil {
		// The loop already recorded the failure; nothing to route.
		return
	}

	if _, registered := o.agents[reply.To]; registered {
		if sendErr := o.b.Send(ctx, reply.Forward()); sendErr != nil {
			o.log.Record(core.NewErrorEvent(a.Name(), sendErr, map[string]any{
				"to": reply.To,
			}))
		}
		return
	}

	if replyErr := o.b.Reply(ctx, *reply); replyErr != nil {
		o.log.Record(core.NewErrorEvent(a.Name(), replyErr, map[string]any{
			"to": reply.To,
		}))
	}
}
