// Package msgctx carries per-turn routing identity across every asynchronous
// boundary the runtime crosses: transport handler, turn loop, tool handler,
// confirmation broker, and scheduler job.
package msgctx

import "context"

// Context is the routing envelope created by an inbound transport handler
// and borrowed read-only by everything downstream.
type Context struct {
	// UserID identifies the human on the far side of the transport.
	UserID string

	// SourceTransport is the transport that delivered the inbound message.
	SourceTransport string

	// ReplyTransport is where replies should be sent. Defaults to
	// SourceTransport when empty.
	ReplyTransport string

	// ConversationID keys the session store. Defaults to UserID when empty.
	ConversationID string

	// Metadata carries free-form transport-specific routing detail
	// (chat id, thread id, phone number, etc).
	Metadata map[string]string
}

// Normalize fills ReplyTransport and ConversationID defaults in place and
// returns the receiver for chaining.
func (c *Context) Normalize() *Context {
	if c == nil {
		return c
	}
	if c.ReplyTransport == "" {
		c.ReplyTransport = c.SourceTransport
	}
	if c.ConversationID == "" {
		c.ConversationID = c.UserID
	}
	return c
}

type ctxKey struct{}

// Into stores a message context on a context.Context.
func Into(ctx context.Context, mc *Context) context.Context {
	if mc == nil {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, mc)
}

// From retrieves the message context stashed by Into, if any.
func From(ctx context.Context) (*Context, bool) {
	mc, ok := ctx.Value(ctxKey{}).(*Context)
	return mc, ok
}
