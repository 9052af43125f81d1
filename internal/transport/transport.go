// Package transport defines the inbound contract a chat surface implements
// to deliver owner turns into the runtime, plus one reference adapter
// (stdin/stdout) for local interactive use and as a test double.
package transport

import (
	"context"
	"strings"
)

// InboundMessage is one user turn delivered by a transport: who sent it,
// which conversation it belongs to, and its text. Callback payloads (button
// presses) are delivered the same way, distinguished by their well-known
// `cfm:` / `mst:` prefixes so a Handler can route them without a transport
// needing to understand confirmation or missed-task semantics.
type InboundMessage struct {
	UserID         string
	ConversationID string
	Text           string

	// Transport names the adapter that delivered this message (matches
	// Transport.Name()), so a Handler can build a routing envelope without
	// depending on a concrete transport type.
	Transport string
}

// OnTextDelta streams partial assistant text back to the transport as it is
// generated. Transports that cannot render incremental updates may ignore
// it; the final reply is always delivered separately by the caller.
type OnTextDelta func(text string)

// Handler processes one inbound message and reports whether it was a
// confirmation/missed-task callback (in which case the result is a short
// status line) or an ordinary turn (in which case the result is the
// assistant's reply).
type Handler interface {
	Handle(ctx context.Context, msg InboundMessage, onDelta OnTextDelta) (string, error)
}

// Transport is a chat surface that delivers inbound turns and callback
// payloads to a Handler and renders its replies. Inbound is a push source:
// implementations read from stdin, a webhook, a long-poll loop, etc. and
// call the wiring that owns the channel rather than exposing a pull API,
// matching the "at least one concrete adapter exercises the contract"
// requirement.
type Transport interface {
	// Name identifies the transport for routing (notify.Router channel
	// resolution uses the same string space).
	Name() string

	// Run blocks, delivering inbound turns to handler until ctx is
	// cancelled or an unrecoverable error occurs.
	Run(ctx context.Context, handler Handler) error
}

// IsConfirmCallback reports whether text is a confirmation callback payload
// (cfm:<8-hex>:<y|n>) and, if so, returns its id and approval.
func IsConfirmCallback(text string) (id string, approved bool, ok bool) {
	tag, value, matched := parseCallback(text, "cfm")
	if !matched {
		return "", false, false
	}
	return tag, value == "y", true
}

// IsMissedTaskCallback reports whether text is a missed-task recovery
// callback payload (mst:<8-hex>:<run|del>) and, if so, returns its key and
// action.
func IsMissedTaskCallback(text string) (key string, action string, ok bool) {
	return parseCallback(text, "mst")
}

func parseCallback(text, kind string) (string, string, bool) {
	parts := strings.SplitN(text, ":", 3)
	if len(parts) != 3 || parts[0] != kind {
		return "", "", false
	}
	return parts[1], parts[2], true
}
