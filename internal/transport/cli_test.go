package transport

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

type echoHandler struct {
	received []InboundMessage
}

func (h *echoHandler) Handle(ctx context.Context, msg InboundMessage, onDelta OnTextDelta) (string, error) {
	h.received = append(h.received, msg)
	return "echo: " + msg.Text, nil
}

func TestCLIDispatchesEachLine(t *testing.T) {
	in := strings.NewReader("hello\nworld\n")
	var out bytes.Buffer
	cli := NewCLI("owner", in, &out)
	handler := &echoHandler{}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := cli.Run(ctx, handler)
	if err != nil && err != context.DeadlineExceeded {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(handler.received) != 2 {
		t.Fatalf("expected 2 messages dispatched, got %d", len(handler.received))
	}
	if !strings.Contains(out.String(), "echo: hello") || !strings.Contains(out.String(), "echo: world") {
		t.Fatalf("expected echoed replies in output, got %q", out.String())
	}
}

func TestCLISkipsBlankLines(t *testing.T) {
	in := strings.NewReader("\n  \nreal message\n")
	var out bytes.Buffer
	cli := NewCLI("owner", in, &out)
	handler := &echoHandler{}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_ = cli.Run(ctx, handler)
	if len(handler.received) != 1 {
		t.Fatalf("expected only the non-blank line dispatched, got %d", len(handler.received))
	}
}

func TestCLIUsesFixedUserAndConversation(t *testing.T) {
	in := strings.NewReader("hi\n")
	var out bytes.Buffer
	cli := NewCLI("owner-123", in, &out)
	handler := &echoHandler{}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_ = cli.Run(ctx, handler)
	if len(handler.received) != 1 {
		t.Fatalf("expected one message")
	}
	if handler.received[0].UserID != "owner-123" || handler.received[0].ConversationID != "owner-123" {
		t.Fatalf("expected fixed user/conversation id, got %+v", handler.received[0])
	}
	if handler.received[0].Transport != "cli" {
		t.Fatalf("expected the message to be tagged with the cli transport name, got %q", handler.received[0].Transport)
	}
}
