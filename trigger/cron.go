package trigger

import (
	"context"
	"fmt"

	robfigcron "github.com/robfig/cron/v3"

	"github.com/hupe1980/agentrelay/bus"
	"github.com/hupe1980/agentrelay/core"
)

// Cron wakes an agent on a cron expression schedule (standard five-field
// format, e.g. "0 9 * * MON-FRI"). It generalizes Timer to calendar-based
// scheduling.
type Cron struct {
	agentName string
	spec      string
	prompt    string
	name      string
}

// CronOption configures a Cron trigger.
type CronOption func(*Cron)

// WithCronPrompt overrides the fixed prompt carried by each fire.
func WithCronPrompt(prompt string) CronOption {
	return func(c *Cron) { c.prompt = prompt }
}

// WithCronName overrides the sender identity (default "cron").
func WithCronName(name string) CronOption {
	return func(c *Cron) { c.name = name }
}

// NewCron creates a Cron trigger with the given schedule expression,
// addressed to agentName. The expression is validated in Start.
func NewCron(agentName, spec string, opts ...CronOption) *Cron {
	c := &Cron{
		agentName: agentName,
		spec:      spec,
		prompt:    DefaultPrompt,
		name:      "cron",
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Name returns the trigger identity.
func (c *Cron) Name() string { return c.name }

// Start arms the schedule and blocks until ctx is cancelled. An invalid
// expression fails immediately.
func (c *Cron) Start(ctx context.Context, b *bus.Bus) error {
	cr := robfigcron.New()

	_, err := cr.AddFunc(c.spec, func() {
		// Best effort per fire: a closed bus is handled at shutdown.
		_ = b.Send(ctx, core.NewMessage(c.name, c.agentName, c.prompt))
	})
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", c.spec, err)
	}

	cr.Start()
	<-ctx.Done()
	<-cr.Stop().Done()
	return nil
}
