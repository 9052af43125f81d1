// Package toolkit implements the tool registry and dispatcher: declarative
// registration, LLM-facing schema export, argument validation, a uniform
// result envelope, and per-tool confirmation policy.
package toolkit

import (
	"context"
	"encoding/json"
)

// Result is the uniform tool result envelope. Exactly one of Data/Error is
// populated; success iff Error is empty.
type Result struct {
	Data  map[string]any `json:"data,omitempty"`
	Error string         `json:"error,omitempty"`
}

// OK builds a successful Result.
func OK(data map[string]any) *Result {
	if data == nil {
		data = map[string]any{}
	}
	return &Result{Data: data}
}

// Err builds a failed Result.
func Err(msg string) *Result {
	return &Result{Error: msg}
}

// JSON renders the result the way it is fed back to the LLM: a JSON string
// of either the data payload or {"error": "..."}.
func (r *Result) JSON() string {
	if r == nil {
		return `{"error":"no result"}`
	}
	var payload any
	if r.Error != "" {
		payload = map[string]string{"error": r.Error}
	} else {
		payload = r.Data
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return `{"error":"failed to encode result"}`
	}
	return string(b)
}

// Tool is a named, schema-carrying, asynchronous handler. Every field is
// fixed at registration time; registration is the only mutation point.
type Tool interface {
	// Name is the process-wide unique identifier the LLM uses to invoke
	// the tool.
	Name() string

	// Description is shown to the LLM alongside the schema.
	Description() string

	// Category tags the tool for grouping in UIs and policy rules.
	Category() string

	// Schema returns the JSON-Schema-shaped input schema, derived from
	// the tool's argument model.
	Schema() json.RawMessage

	// RequiresConfirmation reports the tool's default confirmation
	// requirement. The registry's effective policy (§4.1) can override
	// this per deployment.
	RequiresConfirmation() bool

	// Execute runs the tool. Argument validation happens before this is
	// called; Execute should still defensively validate since callers
	// besides the registry may invoke it directly in tests.
	Execute(ctx context.Context, args json.RawMessage) (*Result, error)
}

// Schema is the shape the turn loop hands to the LLM provider for one
// tool: name, description, and input schema.
type Schema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}
