package toolkit

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type stubTool struct {
	name     string
	confirm  bool
	execute  func(ctx context.Context, args json.RawMessage) (*Result, error)
	executed int
}

func (s *stubTool) Name() string        { return s.name }
func (s *stubTool) Description() string { return "stub" }
func (s *stubTool) Category() string    { return "test" }
func (s *stubTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{}}`)
}
func (s *stubTool) RequiresConfirmation() bool { return s.confirm }
func (s *stubTool) Execute(ctx context.Context, args json.RawMessage) (*Result, error) {
	s.executed++
	if s.execute != nil {
		return s.execute(ctx, args)
	}
	return OK(map[string]any{"ok": true}), nil
}

func TestRegistryExecuteUnknownTool(t *testing.T) {
	r := NewRegistry(nil, nil)
	res := r.Execute(context.Background(), "nope", json.RawMessage(`{}`))
	if res.Error == "" {
		t.Fatalf("expected error result for unknown tool")
	}
	if res.Data != nil {
		t.Fatalf("expected no data alongside error")
	}
}

func TestRegistryExecuteInvalidArgs(t *testing.T) {
	r := NewRegistry(nil, nil)
	tool := &stubTool{name: "t1"}
	r.Register(tool)

	res := r.Execute(context.Background(), "t1", json.RawMessage(`not json`))
	if res.Error == "" {
		t.Fatalf("expected validation error")
	}
	if tool.executed != 0 {
		t.Fatalf("handler should not run on invalid args")
	}
}

func TestRegistryExecuteHandlerError(t *testing.T) {
	r := NewRegistry(nil, nil)
	tool := &stubTool{
		name: "boom",
		execute: func(ctx context.Context, args json.RawMessage) (*Result, error) {
			return nil, errors.New("kaboom")
		},
	}
	r.Register(tool)

	res := r.Execute(context.Background(), "boom", json.RawMessage(`{}`))
	if res.Error != "tool failed" {
		t.Fatalf("expected generic error, got %q", res.Error)
	}
}

func TestRegistryExecutePanicRecovered(t *testing.T) {
	r := NewRegistry(nil, nil)
	tool := &stubTool{
		name: "panics",
		execute: func(ctx context.Context, args json.RawMessage) (*Result, error) {
			panic("unexpected")
		},
	}
	r.Register(tool)

	res := r.Execute(context.Background(), "panics", json.RawMessage(`{}`))
	if res.Error != "tool failed" {
		t.Fatalf("expected generic error after panic, got %q", res.Error)
	}
}

func TestRegistryDuplicateRegistrationReplaces(t *testing.T) {
	r := NewRegistry(nil, nil)
	r.Register(&stubTool{name: "dup", confirm: false})
	r.Register(&stubTool{name: "dup", confirm: true})

	tool, ok := r.Get("dup")
	if !ok {
		t.Fatalf("expected tool to be registered")
	}
	if !tool.RequiresConfirmation() {
		t.Fatalf("expected the second registration to win")
	}
}

func TestRegistrySchemasRoundTripFieldSet(t *testing.T) {
	r := NewRegistry(nil, nil)
	r.Register(&stubTool{name: "echo"})

	schemas := r.Schemas()
	if len(schemas) != 1 {
		t.Fatalf("expected 1 schema, got %d", len(schemas))
	}
	raw, err := json.Marshal(schemas[0])
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var roundTripped Schema
	if err := json.Unmarshal(raw, &roundTripped); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if roundTripped.Name != "echo" {
		t.Fatalf("schema round-trip lost name: %+v", roundTripped)
	}
	if roundTripped.Description != "stub" {
		t.Fatalf("schema round-trip lost description: %+v", roundTripped)
	}
	if string(roundTripped.InputSchema) != `{"type":"object","properties":{}}` {
		t.Fatalf("schema round-trip lost input schema: %s", roundTripped.InputSchema)
	}
}

func TestResultExactlyOneOfDataOrError(t *testing.T) {
	ok := OK(map[string]any{"x": 1})
	if ok.Error != "" || ok.Data == nil {
		t.Fatalf("OK result must have data and no error: %+v", ok)
	}

	failed := Err("bad")
	if failed.Error == "" || failed.Data != nil {
		t.Fatalf("Err result must have error and no data: %+v", failed)
	}
}

func TestConfirmationPolicyOverridesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tools.toml")
	if err := os.WriteFile(path, []byte("[tools]\nsend_email = false\n"), 0o644); err != nil {
		t.Fatalf("write policy file: %v", err)
	}

	policy := NewConfirmationPolicy(path)
	r := NewRegistry(policy, nil)
	r.Register(&stubTool{name: "send_email", confirm: true})
	r.Register(&stubTool{name: "list_tasks", confirm: false})

	if r.RequiresConfirmation("send_email") {
		t.Fatalf("expected policy override to disable confirmation")
	}
	if r.RequiresConfirmation("list_tasks") {
		t.Fatalf("expected default (no confirmation) for unlisted tool")
	}
}

func TestConfirmationPolicyUnknownToolFailsSafe(t *testing.T) {
	r := NewRegistry(nil, nil)
	if !r.RequiresConfirmation("never_registered") {
		t.Fatalf("unknown tools must default to requiring confirmation")
	}
}

func TestConfirmationPolicyMalformedFileTreatedAsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tools.toml")
	if err := os.WriteFile(path, []byte("not valid toml [["), 0o644); err != nil {
		t.Fatalf("write policy file: %v", err)
	}

	policy := NewConfirmationPolicy(path)
	r := NewRegistry(policy, nil)
	r.Register(&stubTool{name: "send_email", confirm: true})

	if !r.RequiresConfirmation("send_email") {
		t.Fatalf("malformed policy file must not crash resolution and must keep tool default")
	}
}
