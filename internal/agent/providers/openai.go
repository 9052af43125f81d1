package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/jverrill/cortex/internal/agent"
	"github.com/jverrill/cortex/internal/toolkit"
)

// OpenAIConfig configures an OpenAI-wire-compatible Provider. BaseURL lets
// this adapter double as a client for any OpenAI-compatible gateway, not
// just api.openai.com.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	MaxRetries   int
	RetryDelay   time.Duration
}

// OpenAI implements agent.Provider against the OpenAI chat-completions
// streaming API (and any wire-compatible gateway via BaseURL). It exists so
// the runtime can fail over from Anthropic without changing the turn loop.
type OpenAI struct {
	client       *openai.Client
	defaultModel string
	maxRetries   int
	retryDelay   time.Duration
}

// NewOpenAI builds an OpenAI-compatible provider.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("providers: openai API key is required")
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "gpt-4o"
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if strings.TrimSpace(cfg.BaseURL) != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAI{
		client:       openai.NewClientWithConfig(clientCfg),
		defaultModel: cfg.DefaultModel,
		maxRetries:   cfg.MaxRetries,
		retryDelay:   cfg.RetryDelay,
	}, nil
}

// Stream implements agent.Provider.
func (p *OpenAI) Stream(ctx context.Context, req *agent.CompletionRequest) (<-chan *agent.ResponseChunk, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	messages, err := convertMessagesOpenAI(req.Messages, req.System)
	if err != nil {
		return nil, fmt.Errorf("openai: convert messages: %w", err)
	}

	chatReq := openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
		Stream:   true,
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = convertToolsOpenAI(req.Tools)
	}

	var stream *openai.ChatCompletionStream
	for attempt := 0; attempt < p.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(p.retryDelay * time.Duration(attempt)):
			}
		}
		stream, err = p.client.CreateChatCompletionStream(ctx, chatReq)
		if err == nil {
			break
		}
		if !isRetryableErrorOpenAI(err) {
			return nil, fmt.Errorf("openai(%s): %w", model, err)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("openai(%s): max retries exceeded: %w", model, err)
	}

	chunks := make(chan *agent.ResponseChunk)
	go processStreamOpenAI(stream, chunks)
	return chunks, nil
}

type openaiToolCallBuilder struct {
	id   string
	name string
	args strings.Builder
}

func processStreamOpenAI(stream *openai.ChatCompletionStream, chunks chan<- *agent.ResponseChunk) {
	defer close(chunks)
	defer stream.Close()

	var content []agent.ContentBlock
	var textBuilder strings.Builder
	calls := map[int]*openaiToolCallBuilder{}
	order := []int{}

	flushText := func() {
		if textBuilder.Len() > 0 {
			content = append(content, agent.ContentBlock{Type: agent.BlockText, Text: textBuilder.String()})
			textBuilder.Reset()
		}
	}
	flushCalls := func() {
		for _, idx := range order {
			c := calls[idx]
			if c.id == "" || c.name == "" {
				continue
			}
			content = append(content, agent.ContentBlock{
				Type:      agent.BlockToolUse,
				ToolUseID: c.id,
				ToolName:  c.name,
				ToolInput: json.RawMessage(c.args.String()),
			})
		}
		calls = map[int]*openaiToolCallBuilder{}
		order = nil
	}

	for {
		resp, err := stream.Recv()
		if err != nil {
			if err == io.EOF {
				flushText()
				flushCalls()
				chunks <- &agent.ResponseChunk{Final: &agent.FinalMessage{
					Content:    content,
					StopReason: stopReasonOf(content),
				}}
				return
			}
			chunks <- &agent.ResponseChunk{Err: err}
			return
		}

		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta

		if delta.Content != "" {
			textBuilder.WriteString(delta.Content)
			chunks <- &agent.ResponseChunk{TextDelta: delta.Content}
		}

		for _, tc := range delta.ToolCalls {
			idx := 0
			if tc.Index != nil {
				idx = *tc.Index
			}
			if _, ok := calls[idx]; !ok {
				calls[idx] = &openaiToolCallBuilder{}
				order = append(order, idx)
			}
			if tc.ID != "" {
				calls[idx].id = tc.ID
			}
			if tc.Function.Name != "" {
				calls[idx].name = tc.Function.Name
			}
			if tc.Function.Arguments != "" {
				calls[idx].args.WriteString(tc.Function.Arguments)
			}
		}

		if resp.Choices[0].FinishReason == "tool_calls" {
			flushCalls()
		}
	}
}

func convertMessagesOpenAI(messages []agent.CompletionMessage, system []agent.SystemBlock) ([]openai.ChatCompletionMessage, error) {
	result := make([]openai.ChatCompletionMessage, 0, len(messages)+1)

	if len(system) > 0 {
		var sb strings.Builder
		for _, s := range system {
			sb.WriteString(s.Text)
		}
		result = append(result, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: sb.String()})
	}

	for _, msg := range messages {
		role := openai.ChatMessageRoleUser
		if msg.Role == agent.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}

		var text strings.Builder
		var toolCalls []openai.ToolCall
		var emittedToolResult bool

		for _, b := range msg.Content {
			switch b.Type {
			case agent.BlockText:
				text.WriteString(b.Text)
			case agent.BlockToolUse:
				toolCalls = append(toolCalls, openai.ToolCall{
					ID:   b.ToolUseID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      b.ToolName,
						Arguments: string(b.ToolInput),
					},
				})
			case agent.BlockToolResult:
				result = append(result, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    b.ToolResultContent,
					ToolCallID: b.ToolUseID,
				})
				emittedToolResult = true
			}
		}

		if emittedToolResult && text.Len() == 0 && len(toolCalls) == 0 {
			continue
		}

		result = append(result, openai.ChatCompletionMessage{
			Role:      role,
			Content:   text.String(),
			ToolCalls: toolCalls,
		})
	}

	return result, nil
}

func convertToolsOpenAI(tools []toolkit.Schema) []openai.Tool {
	result := make([]openai.Tool, len(tools))
	for i, t := range tools {
		var schema map[string]any
		if err := json.Unmarshal(t.InputSchema, &schema); err != nil {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  schema,
			},
		}
	}
	return result
}

func isRetryableErrorOpenAI(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "429"):
		return true
	case strings.Contains(msg, "500"), strings.Contains(msg, "502"), strings.Contains(msg, "503"), strings.Contains(msg, "504"):
		return true
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		return true
	}
	return false
}
