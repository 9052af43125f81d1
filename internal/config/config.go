// Package config loads the assistant's YAML configuration, including
// $include-directive composition across multiple files.
package config

import "time"

// Config is the top-level configuration structure.
type Config struct {
	Owner    OwnerConfig    `yaml:"owner"`
	LLM      LLMConfig      `yaml:"llm"`
	Channels ChannelsConfig `yaml:"channels"`
	Session  SessionConfig  `yaml:"session"`
	Scratch  ScratchConfig  `yaml:"scratch"`
	Tasks    TasksConfig    `yaml:"tasks"`
	Tools    ToolsConfig    `yaml:"tools"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// OwnerConfig identifies the single human this assistant serves.
type OwnerConfig struct {
	UserID          string `yaml:"user_id"`
	DefaultChannel  string `yaml:"default_channel"`
}

// LLMConfig configures the primary provider and its fallback chain.
type LLMConfig struct {
	Provider       string           `yaml:"provider"` // "anthropic" or "openai"
	Model          string           `yaml:"model"`
	MaxTokens      int              `yaml:"max_tokens"`
	MaxRounds      int              `yaml:"max_rounds"`
	Anthropic      AnthropicConfig  `yaml:"anthropic"`
	OpenAI         OpenAIConfig     `yaml:"openai"`
	CircuitBreaker CircuitBreaker   `yaml:"circuit_breaker"`
}

type AnthropicConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

type CircuitBreaker struct {
	Threshold int           `yaml:"threshold"`
	Timeout   time.Duration `yaml:"timeout"`
}

// ChannelsConfig configures outbound notification channels.
type ChannelsConfig struct {
	Default  string         `yaml:"default"`
	Telegram TelegramConfig `yaml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
}

// SessionConfig configures the in-memory conversation window.
type SessionConfig struct {
	Window int `yaml:"window"`
}

// ScratchConfig configures the sandboxed scratch filesystem.
type ScratchConfig struct {
	Root string `yaml:"root"`
}

// TasksConfig configures the durable scheduler.
type TasksConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// ToolsConfig configures the tool confirmation policy file.
type ToolsConfig struct {
	ConfirmationPolicyPath string `yaml:"confirmation_policy_path"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "text"
}
