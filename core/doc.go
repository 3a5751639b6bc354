// Package core provides the foundational domain types used by AgentRelay.
// It defines the core value types carried across the system:
//
//   - Messages (addressed envelopes flowing through the Bus)
//   - Events (immutable audit records emitted by every component)
//   - Content / Parts (role-tagged conversation turns passed to models)
//
// The package intentionally keeps implementation concerns (transport,
// orchestration, model adapters) out of scope. Everything here is an
// immutable value: produced once, never mutated, passed by value through
// queues and channels.
package core
