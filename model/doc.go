// Package model defines the unified language model abstraction used by
// the agent loop. A Model turns a normalized Request (instructions,
// role-tagged conversation contents and declared tools) into a single
// Response carrying either plain text or function call requests. Provider
// adapters live in the openai and anthropic subpackages; MockModel offers
// deterministic behavior for tests and examples.
package model
