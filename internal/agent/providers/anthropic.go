// Package providers implements agent.Provider adapters for concrete LLM
// backends: Anthropic's Messages API (primary) and an OpenAI-wire-compatible
// backend (secondary, for failover).
package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/jverrill/cortex/internal/agent"
	"github.com/jverrill/cortex/internal/toolkit"
)

// maxEmptyStreamEvents bounds how many consecutive SSE events may carry no
// chunk-worthy payload before the stream is declared malformed. Modeled on
// the same defensive counter sashabaranov/go-openai's stream reader uses to
// avoid spinning forever on a server that stops sending real content.
const maxEmptyStreamEvents = 300

// AnthropicConfig configures an Anthropic-backed Provider.
type AnthropicConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	MaxRetries   int
	RetryDelay   time.Duration
}

// Anthropic implements agent.Provider against Anthropic's streaming Messages
// API.
type Anthropic struct {
	client       anthropic.Client
	defaultModel string
	maxRetries   int
	retryDelay   time.Duration
}

// NewAnthropic builds an Anthropic provider. APIKey is required; every other
// field has a sane default.
func NewAnthropic(cfg AnthropicConfig) (*Anthropic, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("providers: anthropic API key is required")
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "claude-sonnet-4-20250514"
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Anthropic{
		client:       anthropic.NewClient(opts...),
		defaultModel: cfg.DefaultModel,
		maxRetries:   cfg.MaxRetries,
		retryDelay:   cfg.RetryDelay,
	}, nil
}

// Stream implements agent.Provider.
func (p *Anthropic) Stream(ctx context.Context, req *agent.CompletionRequest) (<-chan *agent.ResponseChunk, error) {
	chunks := make(chan *agent.ResponseChunk)

	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	go func() {
		defer close(chunks)

		var stream *ssestream.Stream[anthropic.MessageStreamEventUnion]
		var err error

		for attempt := 0; attempt <= p.maxRetries; attempt++ {
			stream, err = p.createStream(ctx, req, model)
			if err == nil {
				break
			}
			if !isRetryableError(err) {
				chunks <- &agent.ResponseChunk{Err: wrapError(err, model)}
				return
			}
			if attempt == p.maxRetries {
				break
			}
			backoff := p.retryDelay * time.Duration(math.Pow(2, float64(attempt)))
			select {
			case <-ctx.Done():
				chunks <- &agent.ResponseChunk{Err: ctx.Err()}
				return
			case <-time.After(backoff):
			}
		}
		if err != nil {
			chunks <- &agent.ResponseChunk{Err: fmt.Errorf("anthropic: max retries exceeded: %w", wrapError(err, model))}
			return
		}

		p.processStream(stream, chunks, model)
	}()

	return chunks, nil
}

func (p *Anthropic) createStream(ctx context.Context, req *agent.CompletionRequest, model string) (*ssestream.Stream[anthropic.MessageStreamEventUnion], error) {
	messages, err := convertMessages(req.Messages)
	if err != nil {
		return nil, fmt.Errorf("anthropic: convert messages: %w", err)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  messages,
		MaxTokens: int64(req.MaxTokens),
	}

	if len(req.System) > 0 {
		blocks := make([]anthropic.TextBlockParam, 0, len(req.System))
		for _, s := range req.System {
			blocks = append(blocks, anthropic.TextBlockParam{Type: "text", Text: s.Text})
		}
		params.System = blocks
	}

	if len(req.Tools) > 0 {
		tools, err := convertTools(req.Tools)
		if err != nil {
			return nil, fmt.Errorf("anthropic: convert tools: %w", err)
		}
		params.Tools = tools
	}

	return p.client.Messages.NewStreaming(ctx, params), nil
}

// processStream drains one Anthropic SSE stream, accumulating streamed tool
// call input across content_block_delta events before emitting a single
// tool-use block at content_block_stop. Sends a text-delta chunk for each
// streamed text fragment and at most one terminal chunk (the Final message
// or an error), closing out on message_stop or a stream-level error.
func (p *Anthropic) processStream(stream *ssestream.Stream[anthropic.MessageStreamEventUnion], chunks chan<- *agent.ResponseChunk, model string) {
	var content []agent.ContentBlock
	var textBuilder strings.Builder
	var toolInput strings.Builder
	var currentTool *agent.ContentBlock
	emptyEvents := 0

	flushText := func() {
		if textBuilder.Len() > 0 {
			content = append(content, agent.ContentBlock{Type: agent.BlockText, Text: textBuilder.String()})
			textBuilder.Reset()
		}
	}

	for stream.Next() {
		event := stream.Current()
		processed := false

		switch event.Type {
		case "content_block_start":
			block := event.AsContentBlockStart().ContentBlock
			if block.Type == "tool_use" {
				toolUse := block.AsToolUse()
				currentTool = &agent.ContentBlock{
					Type:      agent.BlockToolUse,
					ToolUseID: toolUse.ID,
					ToolName:  toolUse.Name,
				}
				toolInput.Reset()
				processed = true
			}

		case "content_block_delta":
			delta := event.AsContentBlockDelta().Delta
			switch delta.Type {
			case "text_delta":
				if delta.Text != "" {
					textBuilder.WriteString(delta.Text)
					chunks <- &agent.ResponseChunk{TextDelta: delta.Text}
					processed = true
				}
			case "input_json_delta":
				if delta.PartialJSON != "" {
					toolInput.WriteString(delta.PartialJSON)
					processed = true
				}
			}

		case "content_block_stop":
			if currentTool != nil {
				currentTool.ToolInput = json.RawMessage(toolInput.String())
				flushText()
				content = append(content, *currentTool)
				currentTool = nil
				processed = true
			}

		case "message_delta":
			processed = true

		case "message_stop":
			flushText()
			chunks <- &agent.ResponseChunk{Final: &agent.FinalMessage{
				Content:    content,
				StopReason: stopReasonOf(content),
			}}
			return

		case "error":
			chunks <- &agent.ResponseChunk{Err: wrapError(errors.New("anthropic stream error"), model)}
			return
		}

		if processed {
			emptyEvents = 0
		} else {
			emptyEvents++
			if emptyEvents >= maxEmptyStreamEvents {
				chunks <- &agent.ResponseChunk{Err: fmt.Errorf("anthropic: stream appears malformed after %d empty events", emptyEvents)}
				return
			}
		}
	}

	if err := stream.Err(); err != nil {
		chunks <- &agent.ResponseChunk{Err: wrapError(err, model)}
	}
}

func stopReasonOf(content []agent.ContentBlock) agent.StopReason {
	for _, b := range content {
		if b.Type == agent.BlockToolUse {
			return agent.StopToolUse
		}
	}
	return agent.StopEndTurn
}

func convertMessages(messages []agent.CompletionMessage) ([]anthropic.MessageParam, error) {
	result := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(msg.Content))
		for _, b := range msg.Content {
			switch b.Type {
			case agent.BlockText:
				blocks = append(blocks, anthropic.NewTextBlock(b.Text))
			case agent.BlockToolUse:
				var input map[string]any
				if len(b.ToolInput) > 0 {
					if err := json.Unmarshal(b.ToolInput, &input); err != nil {
						return nil, fmt.Errorf("invalid tool_use input for %s: %w", b.ToolName, err)
					}
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(b.ToolUseID, input, b.ToolName))
			case agent.BlockToolResult:
				blocks = append(blocks, anthropic.NewToolResultBlock(b.ToolUseID, b.ToolResultContent, b.ToolResultIsError))
			}
		}

		if msg.Role == agent.RoleAssistant {
			result = append(result, anthropic.NewAssistantMessage(blocks...))
		} else {
			result = append(result, anthropic.NewUserMessage(blocks...))
		}
	}
	return result, nil
}

func convertTools(tools []toolkit.Schema) ([]anthropic.ToolUnionParam, error) {
	result := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(t.InputSchema, &schema); err != nil {
			return nil, fmt.Errorf("invalid schema for %s: %w", t.Name, err)
		}
		param := anthropic.ToolUnionParamOfTool(schema, t.Name)
		if param.OfTool == nil {
			return nil, fmt.Errorf("invalid schema for %s: missing tool definition", t.Name)
		}
		param.OfTool.Description = anthropic.String(t.Description)
		result = append(result, param)
	}
	return result, nil
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "rate_limit"), strings.Contains(msg, "429"), strings.Contains(msg, "too many requests"):
		return true
	case strings.Contains(msg, "500"), strings.Contains(msg, "502"), strings.Contains(msg, "503"), strings.Contains(msg, "504"):
		return true
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		return true
	case strings.Contains(msg, "connection reset"), strings.Contains(msg, "connection refused"), strings.Contains(msg, "no such host"):
		return true
	}
	return false
}

type anthropicErrorPayload struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// wrapError classifies an Anthropic SDK error, recognizing content-filter
// refusals and rendering everything else as a plain error so the turn loop
// can distinguish the two per its error-classification rule.
func wrapError(err error, model string) error {
	if err == nil {
		return nil
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		raw := apiErr.RawJSON()
		var payload anthropicErrorPayload
		if raw != "" && json.Unmarshal([]byte(raw), &payload) == nil {
			if payload.Error.Type == "content_filter" || strings.Contains(payload.Error.Message, "content_filter") {
				return &agent.ContentFilterError{RephraseHint: "I can't respond to that — could you rephrase?"}
			}
			if payload.Error.Message != "" {
				return fmt.Errorf("anthropic(%s): %s", model, payload.Error.Message)
			}
		}
		return fmt.Errorf("anthropic(%s): request failed with status %d", model, apiErr.StatusCode)
	}

	return fmt.Errorf("anthropic(%s): %w", model, err)
}
