// Package agent implements the multi-round LLM turn loop: streaming,
// per-round text retraction, error classification, and suspension for
// user confirmation before destructive tool calls run.
package agent

import (
	"context"
	"encoding/json"

	"github.com/jverrill/cortex/internal/toolkit"
)

// Role is the author of a message in a completion request.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// BlockType distinguishes the kinds of content a message or chunk carries.
type BlockType string

const (
	BlockText       BlockType = "text"
	BlockToolUse    BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
)

// ContentBlock is one unit of message content: text, a tool-use directive,
// or a tool-result reply, correlated by ToolUseID.
type ContentBlock struct {
	Type BlockType `json:"type"`

	// Text is populated for BlockText.
	Text string `json:"text,omitempty"`

	// ToolUseID, ToolName, ToolInput are populated for BlockToolUse.
	ToolUseID string          `json:"tool_use_id,omitempty"`
	ToolName  string          `json:"tool_name,omitempty"`
	ToolInput json.RawMessage `json:"tool_input,omitempty"`

	// ToolResultContent/ToolResultIsError are populated for
	// BlockToolResult; ToolUseID correlates back to the tool-use block.
	ToolResultContent string `json:"tool_result_content,omitempty"`
	ToolResultIsError bool   `json:"tool_result_is_error,omitempty"`
}

// SystemBlock is one system-prompt text segment. The first block in a
// request may be marked Cacheable to hint prompt caching to the provider.
type SystemBlock struct {
	Text      string
	Cacheable bool
}

// CompletionMessage is one turn of history: a role and its content blocks.
type CompletionMessage struct {
	Role    Role
	Content []ContentBlock
}

// Text returns a convenience plain-text message.
func Text(role Role, text string) CompletionMessage {
	return CompletionMessage{Role: role, Content: []ContentBlock{{Type: BlockText, Text: text}}}
}

// CompletionRequest is everything the turn loop hands to a provider for one
// streaming round.
type CompletionRequest struct {
	Model     string
	MaxTokens int
	System    []SystemBlock
	Messages  []CompletionMessage
	Tools     []toolkit.Schema
}

// StopReason classifies why a streaming round ended.
type StopReason string

const (
	StopEndTurn      StopReason = "end_turn"
	StopToolUse      StopReason = "tool_use"
	StopContentFilter StopReason = "content_filter"
	StopMaxTokens    StopReason = "max_tokens"
)

// FinalMessage is the terminal event of a streaming round: the ordered
// content blocks the model produced and why it stopped.
type FinalMessage struct {
	Content    []ContentBlock
	StopReason StopReason
}

// ResponseChunk is one unit of a streamed provider response. Exactly one
// of TextDelta/Final/Err is meaningful per chunk; TextDelta chunks may
// repeat, Final and Err are terminal.
type ResponseChunk struct {
	TextDelta string
	Final     *FinalMessage
	Err       error
}

// Provider is the interface the turn loop depends on. Implementations
// translate CompletionRequest into a provider-specific wire call and
// stream back ResponseChunks on the returned channel, closing it when the
// round is complete (after a Final chunk or an Err chunk).
type Provider interface {
	Stream(ctx context.Context, req *CompletionRequest) (<-chan *ResponseChunk, error)
}
