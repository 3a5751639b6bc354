package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/spf13/cobra"

	"github.com/hupe1980/agentrelay"
	"github.com/hupe1980/agentrelay/agent"
	"github.com/hupe1980/agentrelay/config"
	"github.com/hupe1980/agentrelay/logging"
	"github.com/hupe1980/agentrelay/model"
	"github.com/hupe1980/agentrelay/model/anthropic"
	"github.com/hupe1980/agentrelay/model/openai"
	"github.com/hupe1980/agentrelay/trigger"
)

func newRunCmd() *cobra.Command {
	var (
		configPath string
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run agents from a configuration file",
		Long: `Run starts the agents and triggers declared in the configuration file.

Each stdin line "agent: message" (or just "message", addressed to the
first agent) is enqueued as a user message; agent replies are printed
to stdout. Send SIGINT or SIGTERM to shut down.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRelay(cmd.Context(), configPath, verbose)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "relay.yaml", "configuration file path")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	return cmd
}

func runRelay(ctx context.Context, configPath string, verbose bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := logging.NewTextLogger(os.Stderr, level)

	mdl, err := buildModel(cfg.Model)
	if err != nil {
		return err
	}

	relay := agentrelay.New(func(o *agentrelay.Options) {
		o.DefaultModel = mdl
		o.EventLogPath = cfg.EventLog
		o.Logger = logger
	})

	for _, ac := range cfg.Agents {
		var opts []agent.Option
		if ac.MaxIterations > 0 {
			opts = append(opts, agent.WithMaxIterations(ac.MaxIterations))
		}
		if err := relay.RegisterAgent(agent.New(ac.Name, ac.Instructions, opts...)); err != nil {
			return err
		}
	}

	for _, tc := range cfg.Triggers {
		t, err := buildTrigger(tc)
		if err != nil {
			return err
		}
		if err := relay.AddTrigger(t); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go printReplies(ctx, relay)
	go readStdin(ctx, relay, cfg.Agents[0].Name)

	return relay.Run(ctx)
}

func buildModel(mc config.ModelConfig) (model.Model, error) {
	switch mc.Provider {
	case "openai":
		return openai.NewModel(func(o *openai.Options) {
			if mc.Name != "" {
				o.Model = mc.Name
			}
			if mc.APIKey != "" {
				o.APIKey = mc.APIKey
			}
			if mc.BaseURL != "" {
				o.BaseURL = mc.BaseURL
			}
			if mc.Temperature > 0 {
				o.Temperature = mc.Temperature
			}
			if mc.MaxTokens > 0 {
				o.MaxCompletionTokens = mc.MaxTokens
			}
		}), nil
	case "anthropic":
		return anthropic.NewModel(func(o *anthropic.Options) {
			if mc.Name != "" {
				o.Model = sdkanthropic.Model(mc.Name)
			}
			if mc.APIKey != "" {
				o.APIKey = mc.APIKey
			}
			if mc.Temperature > 0 {
				o.Temperature = mc.Temperature
			}
			if mc.MaxTokens > 0 {
				o.MaxTokens = mc.MaxTokens
			}
		}), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", mc.Provider)
	}
}

func buildTrigger(tc config.TriggerConfig) (trigger.Trigger, error) {
	switch tc.Type {
	case "timer":
		var opts []trigger.TimerOption
		if tc.Prompt != "" {
			opts = append(opts, trigger.WithTimerPrompt(tc.Prompt))
		}
		return trigger.NewTimer(tc.Agent, time.Duration(tc.Interval), opts...), nil
	case "file_watch":
		var opts []trigger.FileWatchOption
		if tc.PollInterval > 0 {
			opts = append(opts, trigger.WithPollInterval(time.Duration(tc.PollInterval)))
		}
		return trigger.NewFileWatch(tc.Agent, tc.Path, opts...), nil
	case "cron":
		var opts []trigger.CronOption
		if tc.Prompt != "" {
			opts = append(opts, trigger.WithCronPrompt(tc.Prompt))
		}
		return trigger.NewCron(tc.Agent, tc.Schedule, opts...), nil
	default:
		return nil, fmt.Errorf("unknown trigger type %q", tc.Type)
	}
}

// printReplies drains the outbound subscription to stdout.
func printReplies(ctx context.Context, relay *agentrelay.Relay) {
	replies := relay.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-replies:
			fmt.Printf("[%s] %s\n", msg.Sender, msg.Content)
		}
	}
}

// readStdin enqueues one user message per input line. Lines of the form
// "agent: message" address the named agent; bare lines go to defaultAgent.
func readStdin(ctx context.Context, relay *agentrelay.Relay, defaultAgent string) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		target, content := defaultAgent, line
		if name, rest, ok := strings.Cut(line, ":"); ok && !strings.ContainsAny(name, " \t") {
			target, content = name, strings.TrimSpace(rest)
		}

		sendCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := relay.Send(sendCtx, target, content)
		cancel()
		if err != nil {
			return
		}
	}
}
