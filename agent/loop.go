package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/eventlog"
	"github.com/hupe1980/agentrelay/internal/util"
	"github.com/hupe1980/agentrelay/logging"
	"github.com/hupe1980/agentrelay/model"
)

// MaxIterationsReply is the reply content produced when the loop exhausts
// its iteration bound without a plain-text termination. Exhaustion always
// yields a reply so the orchestrator has something to route.
const MaxIterationsReply = "I reached my iteration limit."

// event payload excerpts are bounded; full content flows in messages.
const (
	triggerExcerptLen = 200
	resultExcerptLen  = 500
)

// RunOptions configures a single loop execution.
type RunOptions struct {
	// Model is the fallback used when the agent has no bound model.
	Model model.Model

	// Logger receives diagnostic output. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Run executes the think-act-observe cycle for one dispatched message.
//
// Each cycle asks the model what to do (THINK), executes any requested
// tool calls (ACT) and feeds the results back into the conversation
// (OBSERVE). The loop terminates when the model answers with plain text,
// when the iteration bound is reached (forced reply), or when the model
// transport fails (error, no reply).
//
// Every transition emits an Event through log; loop_start and loop_end
// bracket the whole cycle. Tool failures are recovered locally and
// surfaced as tool-result content; only a model transport failure is
// fatal to the cycle, and even then it is contained here rather than
// propagated into the orchestrator's control flow.
func Run(ctx context.Context, a *Agent, trigger core.Message, log *eventlog.Log, optFns ...func(o *RunOptions)) (*core.Message, error) {
	opts := RunOptions{
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	mdl := a.Model()
	if mdl == nil {
		mdl = opts.Model
	}

	log.RecordKind(core.EventLoopStart, a.Name(), map[string]any{
		"trigger": util.Truncate(trigger.Content, triggerExcerptLen),
		"sender":  trigger.Sender,
	})

	if mdl == nil {
		err := fmt.Errorf("agent %q has no model and no default was provided", a.Name())
		log.Record(core.NewErrorEvent(a.Name(), err, nil))
		log.RecordKind(core.EventLoopEnd, a.Name(), map[string]any{"status": "error"})
		return nil, err
	}

	conversation := []core.Content{core.NewUserContent(trigger.Content)}
	tools := a.ToolDefinitions()

	for iteration := 1; iteration <= a.MaxIterations(); iteration++ {
		// THINK: ask the model what to do next.
		log.RecordKind(core.EventLLMCall, a.Name(), map[string]any{
			"iteration":     iteration,
			"message_count": len(conversation),
		})

		resp, err := mdl.Generate(ctx, model.Request{
			Instructions: a.Instructions(),
			Contents:     conversation,
			Tools:        tools,
		})
		if err != nil {
			// Transport failure is fatal to this cycle only: no reply, no retry.
			log.Record(core.NewErrorEvent(a.Name(), err, map[string]any{"iteration": iteration}))
			log.RecordKind(core.EventLoopEnd, a.Name(), map[string]any{
				"status":     "error",
				"iterations": iteration,
			})
			return nil, fmt.Errorf("model call failed for agent %q: %w", a.Name(), err)
		}

		calls := resp.FunctionCalls()
		if len(calls) == 0 {
			text := resp.Text()
			log.RecordKind(core.EventLLMResponse, a.Name(), map[string]any{
				"content": util.Truncate(text, resultExcerptLen),
			})

			to, content := parseRedirect(text)
			if to == "" {
				to = trigger.Sender
			}
			reply := core.NewMessage(a.Name(), to, content)
			reply.Hops = trigger.Hops

			log.RecordKind(core.EventLoopEnd, a.Name(), map[string]any{
				"status":     "completed",
				"iterations": iteration,
			})
			return &reply, nil
		}

		// ACT: execute each requested tool call, then OBSERVE the results.
		conversation = append(conversation, resp.Content)
		for _, call := range calls {
			fr := executeCall(ctx, a, call, iteration, log, opts.Logger)
			conversation = append(conversation, core.NewToolContent(fr))
		}
	}

	log.RecordKind(core.EventLoopMaxIterations, a.Name(), map[string]any{
		"iterations": a.MaxIterations(),
	})
	log.RecordKind(core.EventLoopEnd, a.Name(), map[string]any{
		"status":     "max_iterations",
		"iterations": a.MaxIterations(),
	})

	reply := core.NewMessage(a.Name(), trigger.Sender, MaxIterationsReply)
	reply.Hops = trigger.Hops
	return &reply, nil
}

// executeCall resolves and runs one tool call, converting every failure
// mode (unknown tool, malformed arguments, execution error, panic) into
// a FunctionResponse fed back to the model.
func executeCall(ctx context.Context, a *Agent, call core.FunctionCall, iteration int, log *eventlog.Log, logger logging.Logger) core.FunctionResponse {
	log.RecordKind(core.EventToolCall, a.Name(), map[string]any{
		"tool":      call.Name,
		"args":      util.Truncate(call.Arguments, resultExcerptLen),
		"iteration": iteration,
	})

	result, execErr := runTool(ctx, a, call, logger)

	fr := core.FunctionResponse{ID: call.ID, Name: call.Name}
	data := map[string]any{
		"tool":      call.Name,
		"iteration": iteration,
	}
	if execErr != nil {
		fr.Error = execErr.Error()
		fr.Response = fmt.Sprintf("Error: %s", execErr.Error())
		data["result"] = util.Truncate(fr.Response.(string), resultExcerptLen)
		data["error"] = true
	} else {
		fr.Response = result
		data["result"] = util.Truncate(result, resultExcerptLen)
	}

	log.RecordKind(core.EventToolResult, a.Name(), data)
	return fr
}

// runTool performs the lookup, argument decoding and invocation for one
// call. The returned string is what flows back into the conversation.
func runTool(ctx context.Context, a *Agent, call core.FunctionCall, logger logging.Logger) (result string, err error) {
	t, ok := a.Tool(call.Name)
	if !ok {
		return "", fmt.Errorf("unknown tool %q", call.Name)
	}

	args := map[string]any{}
	if strings.TrimSpace(call.Arguments) != "" {
		if jsonErr := json.Unmarshal([]byte(call.Arguments), &args); jsonErr != nil {
			return "", fmt.Errorf("invalid arguments for tool %q: %w", call.Name, jsonErr)
		}
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("tool panicked", "agent", a.Name(), "tool", call.Name, "recover", r)
			err = fmt.Errorf("tool %q panicked: %v", call.Name, r)
			result = ""
		}
	}()

	raw, err := t.Call(ctx, args)
	if err != nil {
		return "", err
	}

	return stringifyResult(raw), nil
}

// stringifyResult flattens a tool result to the string form carried in
// the conversation. Non-string results are JSON encoded.
func stringifyResult(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(encoded)
	}
}

// parseRedirect inspects a terminating reply for an explicit destination
// header of the form "to: <name>" on the first line. Instruction-driven
// delegation uses this to address another agent instead of the original
// sender.
func parseRedirect(text string) (to, content string) {
	trimmed := strings.TrimSpace(text)
	line, rest, found := strings.Cut(trimmed, "\n")
	if !found {
		line, rest = trimmed, ""
	}

	lower := strings.ToLower(line)
	if !strings.HasPrefix(lower, "to:") {
		return "", text
	}

	target := strings.TrimSpace(line[len("to:"):])
	if target == "" || strings.ContainsAny(target, " \t") {
		return "", text
	}

	return target, strings.TrimSpace(rest)
}
