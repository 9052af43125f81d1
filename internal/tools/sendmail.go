package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jverrill/cortex/internal/agent"
	"github.com/jverrill/cortex/internal/toolkit"
)

// SendMailTool sends an email on the owner's behalf. It requires
// confirmation — spec.md's canonical destructive-tool example (E3) is
// send_email. The actual transport (SMTP, Graph, etc.) is deployment
// specific; this is a thin logging stub a real deployment replaces with a
// concrete mailer.
type SendMailTool struct {
	logger *slog.Logger
}

// NewSendMailTool builds a SendMailTool.
func NewSendMailTool(logger *slog.Logger) *SendMailTool {
	if logger == nil {
		logger = slog.Default()
	}
	return &SendMailTool{logger: logger.With("component", "send_email_tool")}
}

func (t *SendMailTool) Name() string        { return "send_email" }
func (t *SendMailTool) Category() string    { return "email" }
func (t *SendMailTool) RequiresConfirmation() bool { return true }

func (t *SendMailTool) Description() string {
	return "Send an email on the owner's behalf. Destructive: requires confirmation before sending."
}

func (t *SendMailTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"to": {"type": "string", "description": "Recipient email address"},
			"subject": {"type": "string", "description": "Email subject"},
			"body": {"type": "string", "description": "Email body text"}
		},
		"required": ["to", "subject", "body"]
	}`)
}

type sendMailInput struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (t *SendMailTool) Execute(ctx context.Context, args json.RawMessage) (*toolkit.Result, error) {
	var in sendMailInput
	if err := json.Unmarshal(args, &in); err != nil {
		return toolkit.Err(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if in.To == "" || in.Subject == "" {
		return toolkit.Err("to and subject are required"), nil
	}

	t.logger.Info("send_email", "to", in.To, "subject", in.Subject, "body_len", len(in.Body))
	return toolkit.OK(map[string]any{"sent": true, "to": in.To, "subject": in.Subject}), nil
}

// SummarizeSendMail renders a short multi-line confirmation summary for a
// send_email tool call, per spec.md §4.3's confirmation-summary contract
// (recipients, subject, a truncated body). It is registered with
// confirm.Broker.RegisterSummary under the send_email tool name.
func SummarizeSendMail(pending *agent.PendingToolCall) string {
	var in sendMailInput
	if err := json.Unmarshal(pending.Args, &in); err != nil {
		return "Send an email"
	}
	body := in.Body
	const maxBody = 200
	if len(body) > maxBody {
		body = body[:maxBody] + "..."
	}
	return fmt.Sprintf("Send email\nTo: %s\nSubject: %s\n\n%s", in.To, in.Subject, body)
}
