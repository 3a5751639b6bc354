package core

import (
	"time"

	"github.com/google/uuid"
)

// RecipientUser is the reserved destination for the external consumer.
// A Message addressed to it leaves the system through the outbound queue
// instead of being dispatched to an agent.
const RecipientUser = "user"

// Message is the atom of communication between agents and the outside
// world. It is an immutable envelope: produced once by a sender (a human,
// a trigger or an agent) and routed by the orchestrator based on To.
//
// Hops counts how many times a message descends from agent-to-agent
// re-injection. It is observability metadata only; routing never enforces
// a limit on it.
type Message struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"` // Agent name, RecipientUser or a trigger identity
	To        string    `json:"to"`     // Agent name or RecipientUser
	Content   string    `json:"content"`
	Hops      int       `json:"hops,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage creates a Message stamped with a fresh ID and the current
// UTC time.
func NewMessage(sender, to, content string) Message {
	return Message{
		ID:        NewID(),
		Sender:    sender,
		To:        to,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}

// Forward derives a copy of the message with the hop counter incremented.
// Used by the orchestrator when re-injecting an agent reply addressed to
// another agent.
func (m Message) Forward() Message {
	m.Hops++
	return m
}

// NewID generates a new unique identifier for messages and events.
func NewID() string { return uuid.NewString() }
