package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("unexpected error writing config: %v", err)
	}
	return path
}

func TestLoadParsesBasicConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.yaml", `
owner:
  user_id: "12345"
  default_channel: telegram
llm:
  provider: anthropic
  model: claude-sonnet-4
  max_rounds: 10
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Owner.UserID != "12345" || cfg.LLM.Model != "claude-sonnet-4" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadResolvesIncludes(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "secrets.yaml", `
llm:
  anthropic:
    api_key: sk-test-123
`)
	path := writeConfig(t, dir, "config.yaml", `
$include: secrets.yaml
owner:
  user_id: "12345"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LLM.Anthropic.APIKey != "sk-test-123" {
		t.Fatalf("expected included api_key to merge in, got %+v", cfg.LLM)
	}
	if cfg.Owner.UserID != "12345" {
		t.Fatalf("expected own config keys to survive merge, got %+v", cfg.Owner)
	}
}

func TestLoadDetectsIncludeCycle(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "a.yaml", `$include: b.yaml`)
	path := writeConfig(t, dir, "b.yaml", `$include: a.yaml`)

	if _, err := Load(path); err == nil {
		t.Fatalf("expected a cycle detection error")
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.yaml", `
owner:
  user_id: "12345"
  bogus_field: true
`)

	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("CORTEX_TEST_API_KEY", "sk-from-env")
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.yaml", `
llm:
  anthropic:
    api_key: ${CORTEX_TEST_API_KEY}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LLM.Anthropic.APIKey != "sk-from-env" {
		t.Fatalf("expected env var expansion, got %q", cfg.LLM.Anthropic.APIKey)
	}
}
