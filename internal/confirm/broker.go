// Package confirm implements the human-in-the-loop confirmation broker: a
// pending-request table keyed by short ids, single-shot completion from an
// out-of-band callback (a button press relayed through a transport), and
// context-based timeout.
package confirm

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jverrill/cortex/internal/agent"
)

// DefaultTimeout bounds how long a confirmation waits for a decision before
// it is treated as a denial.
const DefaultTimeout = 120 * time.Second

// SummaryFunc renders a human-readable summary of a pending tool call for
// display to the owner. Tools without a registered formatter fall back to
// the turn loop's generic name(args) rendering.
type SummaryFunc func(pending *agent.PendingToolCall) string

type pending struct {
	call     *agent.PendingToolCall
	decision chan bool
	once     sync.Once
}

func (p *pending) complete(approved bool) bool {
	done := false
	p.once.Do(func() {
		p.decision <- approved
		close(p.decision)
		done = true
	})
	return done
}

// Broker correlates confirmation requests raised by the turn loop with
// decisions delivered later, out of band, by a transport relaying the
// owner's approve/deny response.
type Broker struct {
	mu       sync.Mutex
	pendings map[string]*pending
	summary  map[string]SummaryFunc
	timeout  time.Duration
	notify   func(id string, call *agent.PendingToolCall, summary string)
}

// NewBroker constructs a Broker. notify is called synchronously when a new
// confirmation is raised; it is expected to deliver the prompt to the owner
// (e.g. over a notify.Router) and is responsible for eventually calling
// Resolve with the user's decision.
func NewBroker(timeout time.Duration, notify func(id string, call *agent.PendingToolCall, summary string)) *Broker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Broker{
		pendings: make(map[string]*pending),
		summary:  make(map[string]SummaryFunc),
		timeout:  timeout,
		notify:   notify,
	}
}

// RegisterSummary installs a per-tool summary formatter, used in place of
// the turn loop's generic description when prompting the owner.
func (b *Broker) RegisterSummary(toolName string, fn SummaryFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.summary[toolName] = fn
}

// Confirm implements agent.ConfirmFunc: it raises a pending confirmation,
// notifies the owner, and blocks until a decision arrives, the context is
// cancelled, or the broker's timeout elapses (treated as denial).
func (b *Broker) Confirm(ctx context.Context, call *agent.PendingToolCall) bool {
	id := newID()
	p := &pending{call: call, decision: make(chan bool, 1)}

	b.mu.Lock()
	b.pendings[id] = p
	fn := b.summary[call.Name]
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.pendings, id)
		b.mu.Unlock()
	}()

	summary := call.Description
	if fn != nil {
		summary = fn(call)
	}
	if b.notify != nil {
		b.notify(id, call, summary)
	}

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	select {
	case approved := <-p.decision:
		return approved
	case <-ctx.Done():
		return false
	case <-timer.C:
		return false
	}
}

// Resolve delivers a decision for a pending confirmation id. It is safe to
// call more than once for the same id; only the first decision is honored.
// Resolve reports whether id corresponded to a still-pending confirmation.
func (b *Broker) Resolve(id string, approved bool) bool {
	b.mu.Lock()
	p, ok := b.pendings[id]
	b.mu.Unlock()
	if !ok {
		return false
	}
	return p.complete(approved)
}

// Describe renders a fallback JSON summary for a pending call, used by
// transports that want to show raw arguments alongside the formatted
// summary.
func Describe(call *agent.PendingToolCall) string {
	if len(call.Args) == 0 {
		return call.Name
	}
	var pretty map[string]any
	if json.Unmarshal(call.Args, &pretty) != nil {
		return fmt.Sprintf("%s(%s)", call.Name, string(call.Args))
	}
	b, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		return call.Name
	}
	return fmt.Sprintf("%s\n%s", call.Name, string(b))
}

func newID() string {
	buf := make([]byte, 4)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
