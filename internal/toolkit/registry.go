package toolkit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// Registry is the catalogue of named tools. It is append-mostly during
// startup and read-heavy thereafter; every mutation is guarded by mu.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	policy *ConfirmationPolicy
	logger *slog.Logger
}

// NewRegistry creates an empty registry. A nil policy disables file-backed
// confirmation overrides.
func NewRegistry(policy *ConfirmationPolicy, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if policy == nil {
		policy = NewConfirmationPolicy("")
	}
	return &Registry{
		tools:  make(map[string]Tool),
		policy: policy,
		logger: logger,
	}
}

// Register adds a tool to the registry. A duplicate name replaces the
// prior entry.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// RequiresConfirmation reports whether name currently requires
// confirmation, consulting the live policy file on every call.
func (r *Registry) RequiresConfirmation(name string) bool {
	tool, ok := r.Get(name)
	if !ok {
		// Fail-safe: unknown tools are treated as requiring confirmation.
		return r.policy.Resolve(name, true)
	}
	return r.policy.Resolve(name, tool.RequiresConfirmation())
}

// Schemas returns the LLM-facing schema for every registered tool.
func (r *Registry) Schemas() []Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Schema, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, Schema{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.Schema(),
		})
	}
	return out
}

// Execute validates arguments and runs a tool by name, converting any
// handler panic/error into an error Result rather than propagating it.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) *Result {
	tool, ok := r.Get(name)
	if !ok {
		return Err("unknown tool: " + name)
	}

	if !json.Valid(args) {
		return Err(fmt.Sprintf("invalid arguments for %s: not valid JSON", name))
	}

	result, err := r.safeExecute(ctx, tool, args)
	if err != nil {
		r.logger.Error("tool execution failed", "tool", name, "error", err)
		return Err("tool failed")
	}
	if result == nil {
		return Err("tool failed")
	}
	return result
}

func (r *Registry) safeExecute(ctx context.Context, tool Tool, args json.RawMessage) (result *Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in tool %s: %v", tool.Name(), rec)
		}
	}()
	return tool.Execute(ctx, args)
}
