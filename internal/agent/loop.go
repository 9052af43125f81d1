package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jverrill/cortex/internal/msgctx"
	"github.com/jverrill/cortex/internal/toolkit"
)

// DefaultMaxRounds bounds the number of LLM rounds a single turn may take
// before the loop gives up and returns whatever text it accumulated.
const DefaultMaxRounds = 10

// DefaultMaxTokens is the default max_tokens sent to the provider when a
// caller does not specify one.
const DefaultMaxTokens = 4096

// PendingToolCall is the LLM's parsed-but-not-yet-dispatched request to run
// a tool. It lives from parse until dispatch completes or is denied.
type PendingToolCall struct {
	// ID is the tool-use id, echoed back to the provider to correlate
	// the eventual tool-result block.
	ID string

	// Name is the tool being invoked.
	Name string

	// Args are the raw arguments the model supplied.
	Args json.RawMessage

	// Description is a human-readable rendering of the call: the tool
	// name with its JSON arguments truncated to 200 characters, plus the
	// task state for cancel_scheduled_task calls.
	Description string

	// TaskState holds the enriched current-state summary for
	// cancel_scheduled_task calls (step 4b of the turn loop), empty for
	// every other tool.
	TaskState string
}

// ConfirmFunc is invoked when a tool call requires confirmation. Returning
// false (denial or timeout) skips dispatch and fabricates a "user denied"
// error result.
type ConfirmFunc func(ctx context.Context, pending *PendingToolCall) bool

// TextDeltaFunc receives streamed text as it arrives. It must be fast and
// non-blocking; the loop does not coalesce on the caller's behalf.
type TextDeltaFunc func(text string)

// SystemPromptFunc composes the system prompt for a turn from configuration
// documents plus any external memories.
type SystemPromptFunc func(ctx context.Context) ([]SystemBlock, error)

// TaskDescriber resolves a scheduled task id to a short human-readable
// description of its current state, used to enrich cancel_scheduled_task
// confirmations.
type TaskDescriber interface {
	DescribeTask(ctx context.Context, taskID string) (string, bool)
}

// GenerateOptions configures one call to Loop.Generate.
type GenerateOptions struct {
	OnTextDelta TextDeltaFunc
	OnConfirm   ConfirmFunc
	Model       string
	MaxTokens   int

	// MsgContext is the routing envelope for this turn. It is stashed on
	// ctx for the duration of Generate so tool handlers, the confirmation
	// broker, and anything else reached via dispatch can recover it with
	// msgctx.From without threading it through every signature.
	MsgContext *msgctx.Context
}

// Loop drives the multi-round tool-use protocol described in spec §4.2:
// stream → inspect tool-use blocks → dispatch (with confirmation
// suspension) → re-enter with tool results → repeat until the model
// produces a tool-free response or the round budget is exhausted.
type Loop struct {
	provider      Provider
	registry      *toolkit.Registry
	systemPrompt  SystemPromptFunc
	taskDescriber TaskDescriber
	maxRounds     int
	defaultModel  string
	logger        *slog.Logger
}

// NewLoop constructs a Loop. provider and registry are required; the rest
// have sane defaults.
func NewLoop(provider Provider, registry *toolkit.Registry, opts ...LoopOption) *Loop {
	l := &Loop{
		provider:     provider,
		registry:     registry,
		systemPrompt: func(context.Context) ([]SystemBlock, error) { return nil, nil },
		maxRounds:    DefaultMaxRounds,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoopOption configures a Loop at construction time.
type LoopOption func(*Loop)

// WithSystemPrompt sets the system prompt composer.
func WithSystemPrompt(fn SystemPromptFunc) LoopOption {
	return func(l *Loop) { l.systemPrompt = fn }
}

// WithTaskDescriber sets the cancel_scheduled_task enrichment source.
func WithTaskDescriber(td TaskDescriber) LoopOption {
	return func(l *Loop) { l.taskDescriber = td }
}

// WithMaxRounds overrides DefaultMaxRounds.
func WithMaxRounds(n int) LoopOption {
	return func(l *Loop) {
		if n > 0 {
			l.maxRounds = n
		}
	}
}

// WithDefaultModel sets the model used when GenerateOptions.Model is empty.
func WithDefaultModel(model string) LoopOption {
	return func(l *Loop) { l.defaultModel = model }
}

// WithLogger overrides the loop's logger.
func WithLogger(logger *slog.Logger) LoopOption {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// Generate runs one user turn to completion: zero or more LLM rounds and
// tool dispatches, returning the final text.
func (l *Loop) Generate(ctx context.Context, history []CompletionMessage, opts GenerateOptions) (string, error) {
	if l.provider == nil {
		return "", ErrNoProvider
	}

	if opts.MsgContext != nil {
		ctx = msgctx.Into(ctx, opts.MsgContext.Normalize())
	}

	system, err := l.systemPrompt(ctx)
	if err != nil {
		return "", fmt.Errorf("compose system prompt: %w", err)
	}

	model := opts.Model
	if model == "" {
		model = l.defaultModel
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	messages := append([]CompletionMessage(nil), history...)
	var finalText strings.Builder

	for round := 0; round < l.maxRounds; round++ {
		req := &CompletionRequest{
			Model:     model,
			MaxTokens: maxTokens,
			System:    system,
			Messages:  messages,
			Tools:     l.registry.Schemas(),
		}

		chunks, err := l.provider.Stream(ctx, req)
		if err != nil {
			return finalText.String(), err
		}

		var roundText strings.Builder
		var final *FinalMessage
		var streamErr error
		for chunk := range chunks {
			if chunk.Err != nil {
				streamErr = chunk.Err
				continue
			}
			if chunk.TextDelta != "" {
				roundText.WriteString(chunk.TextDelta)
				if opts.OnTextDelta != nil {
					opts.OnTextDelta(chunk.TextDelta)
				}
			}
			if chunk.Final != nil {
				final = chunk.Final
			}
		}

		if streamErr != nil {
			if cf, ok := AsContentFilterError(streamErr); ok {
				finalText.WriteString(roundText.String())
				finalText.WriteString(" ")
				finalText.WriteString(cf.Error())
				return finalText.String(), nil
			}
			return finalText.String(), streamErr
		}
		if final == nil {
			return finalText.String(), fmt.Errorf("provider stream closed without a final message")
		}

		toolUses := toolUseBlocks(final.Content)
		if len(toolUses) == 0 {
			finalText.WriteString(roundText.String())
			return finalText.String(), nil
		}

		toolResults, retracted := l.dispatchToolUses(ctx, toolUses, opts.OnConfirm)

		messages = append(messages,
			CompletionMessage{Role: RoleAssistant, Content: final.Content},
			CompletionMessage{Role: RoleUser, Content: toolResults},
		)

		if !retracted {
			finalText.WriteString(roundText.String())
		}
	}

	finalText.WriteString(" [reached maximum round limit]")
	return finalText.String(), nil
}

// dispatchToolUses executes every tool-use block in order (never in
// parallel, so one tool's result can causally influence the next) and
// returns the correlated tool-result blocks plus whether any call in this
// round required confirmation (which triggers text retraction).
func (l *Loop) dispatchToolUses(ctx context.Context, toolUses []ContentBlock, onConfirm ConfirmFunc) ([]ContentBlock, bool) {
	results := make([]ContentBlock, 0, len(toolUses))
	retracted := false

	for _, tu := range toolUses {
		pending := &PendingToolCall{
			ID:   tu.ToolUseID,
			Name: tu.ToolName,
			Args: tu.ToolInput,
		}
		pending.Description = describePending(l.registry, pending)

		if pending.Name == cancelScheduledTaskTool {
			l.enrichCancelTask(ctx, pending)
		}

		var result *toolkit.Result
		if l.registry.RequiresConfirmation(pending.Name) && onConfirm != nil {
			retracted = true
			if !onConfirm(ctx, pending) {
				result = toolkit.Err("user denied")
			}
		}
		if result == nil {
			result = l.registry.Execute(ctx, pending.Name, pending.Args)
		}

		results = append(results, ContentBlock{
			Type:              BlockToolResult,
			ToolUseID:         pending.ID,
			ToolResultContent: result.JSON(),
			ToolResultIsError: result.Error != "",
		})
	}

	return results, retracted
}

// cancelScheduledTaskTool is the well-known tool name the turn loop
// enriches with task state before requesting confirmation.
const cancelScheduledTaskTool = "cancel_scheduled_task"

func (l *Loop) enrichCancelTask(ctx context.Context, pending *PendingToolCall) {
	if l.taskDescriber == nil {
		return
	}
	var args struct {
		TaskID string `json:"task_id"`
	}
	if err := json.Unmarshal(pending.Args, &args); err != nil || args.TaskID == "" {
		return
	}
	state, ok := l.taskDescriber.DescribeTask(ctx, args.TaskID)
	if !ok {
		return
	}
	pending.TaskState = state
	pending.Description = fmt.Sprintf("%s\n%s", pending.Description, state)
}

func toolUseBlocks(content []ContentBlock) []ContentBlock {
	out := make([]ContentBlock, 0, len(content))
	for _, b := range content {
		if b.Type == BlockToolUse {
			out = append(out, b)
		}
	}
	return out
}

// describePending renders a fallback human description for a pending call:
// tool name plus truncated JSON arguments. Richer, per-tool formatters live
// in the confirm package.
func describePending(registry *toolkit.Registry, pending *PendingToolCall) string {
	args := string(pending.Args)
	const maxLen = 200
	if len(args) > maxLen {
		args = args[:maxLen] + "..."
	}
	return fmt.Sprintf("%s(%s)", pending.Name, args)
}
