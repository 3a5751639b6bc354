package core

import "time"

// EventKind enumerates the audit record categories emitted across a run.
type EventKind string

// Event kinds emitted by the orchestrator, the agent loop and triggers.
const (
	EventMessageRouted     EventKind = "message_routed"
	EventLoopStart         EventKind = "loop_start"
	EventLLMCall           EventKind = "llm_call"
	EventLLMResponse       EventKind = "llm_response"
	EventToolCall          EventKind = "tool_call"
	EventToolResult        EventKind = "tool_result"
	EventLoopEnd           EventKind = "loop_end"
	EventLoopMaxIterations EventKind = "loop_max_iterations"
	EventTriggerFired      EventKind = "trigger_fired"
	EventTriggerStopped    EventKind = "trigger_stopped"
	EventError             EventKind = "error"
)

// SystemAuthor is used as the Agent field for events not attributable to
// a single agent (routing decisions, trigger lifecycle, bus closure).
const SystemAuthor = "system"

// Event is an immutable audit record. The ordered event stream is the
// system's sole history mechanism: there is no separate session store.
// After emission an Event must be treated as read-only.
type Event struct {
	ID        string         `json:"id"`
	Kind      EventKind      `json:"kind"`
	Agent     string         `json:"agent"` // Subject agent name or SystemAuthor
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// NewEvent creates an Event stamped with a fresh ID and the current UTC
// time. A nil data map is normalized to an empty one so records always
// serialize with a consistent shape.
func NewEvent(kind EventKind, agent string, data map[string]any) Event {
	if data == nil {
		data = map[string]any{}
	}
	return Event{
		ID:        NewID(),
		Kind:      kind,
		Agent:     agent,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// NewErrorEvent creates an error Event carrying the failure message.
func NewErrorEvent(agent string, err error, data map[string]any) Event {
	if data == nil {
		data = map[string]any{}
	}
	data["error"] = err.Error()
	return NewEvent(EventError, agent, data)
}
