// Package session implements the sliding-window conversation store: one
// ordered message list per conversation id, trimmed to a bounded window on
// every append, keyed independently of which transport is talking.
package session

import (
	"sync"

	"github.com/jverrill/cortex/internal/agent"
)

// DefaultWindow bounds how many messages a conversation retains.
const DefaultWindow = 50

// Store holds per-conversation message history in memory, trimmed to a
// sliding window. Conversation ids are transport-agnostic: callers derive
// them (e.g. "telegram:12345", "cli:local") and the store does not
// interpret their structure.
type Store struct {
	mu            sync.Mutex
	conversations map[string][]agent.CompletionMessage
	window        int
}

// NewStore builds a Store with the given window size (DefaultWindow if
// window <= 0).
func NewStore(window int) *Store {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Store{
		conversations: make(map[string][]agent.CompletionMessage),
		window:        window,
	}
}

// Get returns a copy of the conversation's current history, oldest first.
func (s *Store) Get(conversationID string) []agent.CompletionMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	history := s.conversations[conversationID]
	out := make([]agent.CompletionMessage, len(history))
	copy(out, history)
	return out
}

// Append adds messages to a conversation's history, trimming from the front
// if the window is exceeded.
func (s *Store) Append(conversationID string, messages ...agent.CompletionMessage) {
	if len(messages) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	history := append(s.conversations[conversationID], messages...)
	if len(history) > s.window {
		history = history[len(history)-s.window:]
	}
	s.conversations[conversationID] = history
}

// Clear removes all history for a conversation and reports how many
// entries were removed.
func (s *Store) Clear(conversationID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := len(s.conversations[conversationID])
	delete(s.conversations, conversationID)
	return removed
}
