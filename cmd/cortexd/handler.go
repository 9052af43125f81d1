package main

import (
	"context"
	"fmt"

	"github.com/jverrill/cortex/internal/agent"
	"github.com/jverrill/cortex/internal/config"
	"github.com/jverrill/cortex/internal/confirm"
	"github.com/jverrill/cortex/internal/msgctx"
	"github.com/jverrill/cortex/internal/session"
	"github.com/jverrill/cortex/internal/tasks"
	"github.com/jverrill/cortex/internal/transport"
)

// handler implements transport.Handler: it routes confirmation and
// missed-task callbacks to their resolvers, and everything else through one
// turn of the agent loop against the conversation's session history.
type handler struct {
	loop     *agent.Loop
	sessions *session.Store
	broker   *confirm.Broker
	recovery *tasks.Recovery
	cfg      *config.Config
}

func newHandler(loop *agent.Loop, sessions *session.Store, broker *confirm.Broker, recovery *tasks.Recovery, cfg *config.Config) *handler {
	return &handler{loop: loop, sessions: sessions, broker: broker, recovery: recovery, cfg: cfg}
}

func (h *handler) Handle(ctx context.Context, msg transport.InboundMessage, onDelta transport.OnTextDelta) (string, error) {
	if id, approved, ok := transport.IsConfirmCallback(msg.Text); ok {
		if !h.broker.Resolve(id, approved) {
			return "that confirmation has already expired", nil
		}
		if approved {
			return "confirmed", nil
		}
		return "denied", nil
	}

	if key, action, ok := transport.IsMissedTaskCallback(msg.Text); ok {
		status, _ := h.recovery.Resolve(ctx, key, action)
		return status, nil
	}

	history := h.sessions.Get(msg.ConversationID)
	history = append(history, agent.Text(agent.RoleUser, msg.Text))

	var deltaFn agent.TextDeltaFunc
	if onDelta != nil {
		deltaFn = func(text string) { onDelta(text) }
	}

	mc := (&msgctx.Context{
		UserID:          msg.UserID,
		SourceTransport: msg.Transport,
		ConversationID:  msg.ConversationID,
	}).Normalize()

	reply, err := h.loop.Generate(ctx, history, agent.GenerateOptions{
		OnTextDelta: deltaFn,
		OnConfirm:   h.broker.Confirm,
		MsgContext:  mc,
	})
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}

	h.sessions.Append(msg.ConversationID,
		agent.Text(agent.RoleUser, msg.Text),
		agent.Text(agent.RoleAssistant, reply),
	)

	return reply, nil
}
