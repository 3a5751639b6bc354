package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/eventlog"
	"github.com/hupe1980/agentrelay/model"
	"github.com/hupe1980/agentrelay/tool"
)

func searchTool(t *testing.T, result string) tool.Tool {
	t.Helper()
	return tool.NewFunctionTool("web_search", "Search the web", map[string]any{
		"type":       "object",
		"properties": map[string]any{"query": map[string]any{"type": "string"}},
		"required":   []string{"query"},
	}, func(_ context.Context, _ map[string]any) (any, error) {
		return result, nil
	})
}

func kinds(events []core.Event) []core.EventKind {
	out := make([]core.EventKind, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Kind)
	}
	return out
}

// Single tool round trip: llm_call, tool_call, tool_result, second
// llm_call, final reply carrying the tool result content.
func TestRunToolRoundTrip(t *testing.T) {
	mdl := model.NewMockModel("test-model", "mock")
	mdl.EnqueueToolCalls(core.FunctionCall{ID: "fc1", Name: "web_search", Arguments: `{"query":"Tokyo population"}`})
	mdl.EnqueueText("Tokyo has about 14 million residents.")

	a := New("assistant", "You are helpful.", WithModel(mdl), WithTools(searchTool(t, "Tokyo: 14 million")))
	log := eventlog.New()

	msg := core.NewMessage("user", "assistant", "What is Tokyo's population?")
	reply, err := Run(context.Background(), a, msg, log)
	require.NoError(t, err)
	require.NotNil(t, reply)

	assert.Equal(t, "assistant", reply.Sender)
	assert.Equal(t, "user", reply.To)
	assert.Equal(t, "Tokyo has about 14 million residents.", reply.Content)

	assert.Equal(t, []core.EventKind{
		core.EventLoopStart,
		core.EventLLMCall,
		core.EventToolCall,
		core.EventToolResult,
		core.EventLLMCall,
		core.EventLLMResponse,
		core.EventLoopEnd,
	}, kinds(log.Events()))

	// The second model call observed the tool result.
	reqs := mdl.Requests()
	require.Len(t, reqs, 2)
	responses := reqs[1].Contents[len(reqs[1].Contents)-1].FunctionResponses()
	require.Len(t, responses, 1)
	assert.Equal(t, "Tokyo: 14 million", responses[0].Response)
}

func TestRunPlainTextImmediateReply(t *testing.T) {
	mdl := model.NewMockModel("test-model", "mock")
	mdl.EnqueueText("Hello there.")

	a := New("assistant", "You are helpful.", WithModel(mdl))
	log := eventlog.New()

	reply, err := Run(context.Background(), a, core.NewMessage("user", "assistant", "hi"), log)
	require.NoError(t, err)
	require.NotNil(t, reply)
	assert.Equal(t, "Hello there.", reply.Content)
	assert.Equal(t, 1, mdl.CallCount())
}

// An unknown tool name is a non-fatal per-call error: the remaining calls
// in the same ACT step still execute and the cycle continues.
func TestRunUnknownToolIsNonFatal(t *testing.T) {
	mdl := model.NewMockModel("test-model", "mock")
	mdl.EnqueueToolCalls(
		core.FunctionCall{ID: "fc1", Name: "ghost_tool", Arguments: `{}`},
		core.FunctionCall{ID: "fc2", Name: "web_search", Arguments: `{"query":"x"}`},
	)
	mdl.EnqueueText("done")

	a := New("assistant", "", WithModel(mdl), WithTools(searchTool(t, "found it")))
	log := eventlog.New()

	reply, err := Run(context.Background(), a, core.NewMessage("user", "assistant", "go"), log)
	require.NoError(t, err)
	require.NotNil(t, reply)

	results := log.EventsOfKind(core.EventToolResult)
	require.Len(t, results, 2)
	assert.Equal(t, true, results[0].Data["error"])
	assert.Contains(t, results[0].Data["result"], "unknown tool")
	assert.Nil(t, results[1].Data["error"])

	// Both results reached the conversation.
	reqs := mdl.Requests()
	require.Len(t, reqs, 2)
	var responses []core.FunctionResponse
	for _, c := range reqs[1].Contents {
		responses = append(responses, c.FunctionResponses()...)
	}
	require.Len(t, responses, 2)
	assert.NotEmpty(t, responses[0].Error)
	assert.Equal(t, "found it", responses[1].Response)
}

func TestRunToolExecutionFailureFeedsBack(t *testing.T) {
	failing := tool.NewFunctionTool("flaky", "Fails", map[string]any{"type": "object"}, func(_ context.Context, _ map[string]any) (any, error) {
		return nil, errors.New("connection refused")
	})

	mdl := model.NewMockModel("test-model", "mock")
	mdl.EnqueueToolCalls(core.FunctionCall{ID: "fc1", Name: "flaky", Arguments: `{}`})
	mdl.EnqueueText("I could not retrieve the data.")

	a := New("assistant", "", WithModel(mdl), WithTools(failing))
	log := eventlog.New()

	reply, err := Run(context.Background(), a, core.NewMessage("user", "assistant", "go"), log)
	require.NoError(t, err)
	require.NotNil(t, reply)

	results := log.EventsOfKind(core.EventToolResult)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Data["result"], "connection refused")
}

func TestRunToolPanicIsRecovered(t *testing.T) {
	panicky := tool.NewFunctionTool("panicky", "Panics", map[string]any{"type": "object"}, func(_ context.Context, _ map[string]any) (any, error) {
		panic("boom")
	})

	mdl := model.NewMockModel("test-model", "mock")
	mdl.EnqueueToolCalls(core.FunctionCall{ID: "fc1", Name: "panicky", Arguments: `{}`})
	mdl.EnqueueText("recovered")

	a := New("assistant", "", WithModel(mdl), WithTools(panicky))
	log := eventlog.New()

	reply, err := Run(context.Background(), a, core.NewMessage("user", "assistant", "go"), log)
	require.NoError(t, err)
	require.Equal(t, "recovered", reply.Content)

	results := log.EventsOfKind(core.EventToolResult)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Data["result"], "panicked")
}

// Iteration exhaustion still produces a reply, never silence.
func TestRunMaxIterationsProducesReply(t *testing.T) {
	mdl := model.NewMockModel("test-model", "mock")
	for i := 0; i < 3; i++ {
		mdl.EnqueueToolCalls(core.FunctionCall{Name: "web_search", Arguments: `{"query":"again"}`})
	}

	a := New("assistant", "", WithModel(mdl), WithMaxIterations(3), WithTools(searchTool(t, "still searching")))
	log := eventlog.New()

	reply, err := Run(context.Background(), a, core.NewMessage("user", "assistant", "loop forever"), log)
	require.NoError(t, err)
	require.NotNil(t, reply)
	assert.Equal(t, MaxIterationsReply, reply.Content)
	assert.Equal(t, "user", reply.To)

	assert.Len(t, log.EventsOfKind(core.EventLoopMaxIterations), 1)
	ends := log.EventsOfKind(core.EventLoopEnd)
	require.Len(t, ends, 1)
	assert.Equal(t, "max_iterations", ends[0].Data["status"])
	assert.Equal(t, 3, mdl.CallCount())
}

// A transport failure terminates the cycle with an error event and no reply.
func TestRunTransportFailure(t *testing.T) {
	mdl := model.NewMockModel("test-model", "mock")
	mdl.FailWith(errors.New("connection reset"))

	a := New("assistant", "", WithModel(mdl))
	log := eventlog.New()

	reply, err := Run(context.Background(), a, core.NewMessage("user", "assistant", "hi"), log)
	require.Error(t, err)
	assert.Nil(t, reply)

	assert.Len(t, log.EventsOfKind(core.EventError), 1)
	ends := log.EventsOfKind(core.EventLoopEnd)
	require.Len(t, ends, 1)
	assert.Equal(t, "error", ends[0].Data["status"])
}

func TestRunNoModelIsError(t *testing.T) {
	a := New("assistant", "")
	log := eventlog.New()

	reply, err := Run(context.Background(), a, core.NewMessage("user", "assistant", "hi"), log)
	require.Error(t, err)
	assert.Nil(t, reply)
	assert.Len(t, log.EventsOfKind(core.EventError), 1)
}

func TestRunFallbackModel(t *testing.T) {
	mdl := model.NewMockModel("default", "mock")
	mdl.EnqueueText("from default model")

	a := New("assistant", "")
	log := eventlog.New()

	reply, err := Run(context.Background(), a, core.NewMessage("user", "assistant", "hi"), log, func(o *RunOptions) {
		o.Model = mdl
	})
	require.NoError(t, err)
	assert.Equal(t, "from default model", reply.Content)
}

// A terminating reply may redirect to another agent with a "to:" header.
func TestRunDelegationRedirect(t *testing.T) {
	mdl := model.NewMockModel("test-model", "mock")
	mdl.EnqueueText("to: writer\nPlease draft an article about Tokyo.")

	a := New("researcher", "", WithModel(mdl))
	log := eventlog.New()

	reply, err := Run(context.Background(), a, core.NewMessage("user", "researcher", "research Tokyo"), log)
	require.NoError(t, err)
	assert.Equal(t, "writer", reply.To)
	assert.Equal(t, "Please draft an article about Tokyo.", reply.Content)
}

func TestParseRedirect(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		wantTo      string
		wantContent string
	}{
		{"no header", "plain reply", "", "plain reply"},
		{"header", "to: writer\nbody text", "writer", "body text"},
		{"header uppercase", "To: writer\nbody", "writer", "body"},
		{"header with spaces in target", "to: two words\nbody", "", "to: two words\nbody"},
		{"empty target", "to:\nbody", "", "to:\nbody"},
		{"header only", "to: writer", "writer", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			to, content := parseRedirect(tt.text)
			assert.Equal(t, tt.wantTo, to)
			assert.Equal(t, tt.wantContent, content)
		})
	}
}

func TestRunReplyInheritsHops(t *testing.T) {
	mdl := model.NewMockModel("test-model", "mock")
	mdl.EnqueueText("reply")

	a := New("writer", "", WithModel(mdl))
	log := eventlog.New()

	msg := core.NewMessage("researcher", "writer", "draft")
	msg.Hops = 2

	reply, err := Run(context.Background(), a, msg, log)
	require.NoError(t, err)
	assert.Equal(t, 2, reply.Hops)
}
