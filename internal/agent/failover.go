package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// FailoverConfig tunes the circuit breaker that governs provider ordering in
// a Failover.
type FailoverConfig struct {
	// CircuitBreakerThreshold is the number of consecutive failures before
	// a provider is skipped.
	CircuitBreakerThreshold int

	// CircuitBreakerTimeout is how long a tripped provider is skipped
	// before it is given another chance.
	CircuitBreakerTimeout time.Duration
}

// DefaultFailoverConfig returns sensible defaults.
func DefaultFailoverConfig() FailoverConfig {
	return FailoverConfig{
		CircuitBreakerThreshold: 3,
		CircuitBreakerTimeout:   30 * time.Second,
	}
}

type providerState struct {
	failures    int
	circuitOpen bool
	openedAt    time.Time
}

func (s *providerState) available(cfg FailoverConfig) bool {
	if !s.circuitOpen {
		return true
	}
	return time.Since(s.openedAt) > cfg.CircuitBreakerTimeout
}

// namedProvider pairs a Provider with the name used for circuit-breaker
// bookkeeping and logging.
type namedProvider struct {
	name     string
	provider Provider
}

// Failover composes providers with a circuit breaker: it tries each
// registered provider in order, skipping any that have tripped their
// breaker, and trips a provider's breaker after CircuitBreakerThreshold
// consecutive failures until CircuitBreakerTimeout has elapsed.
type Failover struct {
	mu        sync.Mutex
	providers []namedProvider
	states    map[string]*providerState
	config    FailoverConfig
}

// NewFailover builds a Failover around a primary provider. Use AddProvider
// to register fallbacks, tried in registration order.
func NewFailover(primaryName string, primary Provider, cfg FailoverConfig) *Failover {
	if cfg.CircuitBreakerThreshold <= 0 {
		cfg = DefaultFailoverConfig()
	}
	return &Failover{
		providers: []namedProvider{{name: primaryName, provider: primary}},
		states:    make(map[string]*providerState),
		config:    cfg,
	}
}

// AddProvider registers a fallback provider, tried only after every
// provider registered before it is unavailable or fails.
func (f *Failover) AddProvider(name string, p Provider) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.providers = append(f.providers, namedProvider{name: name, provider: p})
}

// Stream implements Provider, trying each registered provider in order. A
// provider's Stream method may return a synchronous connect error, or it may
// return a nil error and report the real failure later as an Err chunk once
// streaming begins (the Anthropic adapter's Stream always returns (ch, nil)
// and pushes rate-limit/5xx/auth failures onto the channel from within the
// streaming goroutine; the OpenAI adapter returns connect failures
// synchronously and mid-stream failures as Err chunks). A failover that
// only inspected the synchronous error would never advance past a primary
// that is up but failing mid-stream, so the first chunk of every provider's
// stream is peeked here and treated as the failure signal when it is an Err
// chunk.
func (f *Failover) Stream(ctx context.Context, req *CompletionRequest) (<-chan *ResponseChunk, error) {
	f.mu.Lock()
	providers := make([]namedProvider, len(f.providers))
	copy(providers, f.providers)
	f.mu.Unlock()

	var lastErr error
	for _, np := range providers {
		state := f.stateFor(np.name)
		if !state.available(f.config) {
			continue
		}

		ch, err := np.provider.Stream(ctx, req)
		if err != nil {
			lastErr = err
			f.recordFailure(np.name)
			if _, ok := AsContentFilterError(err); ok {
				return nil, err
			}
			if !isFailoverEligible(err) {
				return nil, err
			}
			continue
		}

		first, open := <-ch
		if !open {
			// Closed with no chunks at all: nothing to retry against, treat
			// as a trivially successful (empty) stream.
			f.recordSuccess(np.name)
			return ch, nil
		}

		if first.Err != nil {
			if _, ok := AsContentFilterError(first.Err); ok {
				// A content filter refusal is not a provider-health signal;
				// it will recur on any provider, so propagate immediately.
				return nil, first.Err
			}
			f.recordFailure(np.name)
			if isFailoverEligible(first.Err) {
				lastErr = first.Err
				continue
			}
			return prepend(first, ch), nil
		}

		f.recordSuccess(np.name)
		return prepend(first, ch), nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("failover: no providers configured")
	}
	return nil, fmt.Errorf("failover: all providers exhausted: %w", lastErr)
}

// prepend re-attaches a chunk already read off ch so the caller sees the
// full stream in order, despite the peek above having consumed its head.
func prepend(first *ResponseChunk, ch <-chan *ResponseChunk) <-chan *ResponseChunk {
	out := make(chan *ResponseChunk)
	go func() {
		defer close(out)
		out <- first
		for c := range ch {
			out <- c
		}
	}()
	return out
}

func (f *Failover) stateFor(name string) *providerState {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.states[name]
	if !ok {
		s = &providerState{}
		f.states[name] = s
	}
	return s
}

func (f *Failover) recordSuccess(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.states[name]; ok {
		s.failures = 0
		s.circuitOpen = false
	}
}

func (f *Failover) recordFailure(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.states[name]
	if !ok {
		s = &providerState{}
		f.states[name] = s
	}
	s.failures++
	if s.failures >= f.config.CircuitBreakerThreshold {
		s.circuitOpen = true
		s.openedAt = time.Now()
	}
}

// isFailoverEligible reports whether an error from one provider warrants
// trying the next rather than failing the whole request outright.
func isFailoverEligible(err error) bool {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate_limit"), strings.Contains(msg, "rate limit"), strings.Contains(msg, "429"):
		return true
	case strings.Contains(msg, "500"), strings.Contains(msg, "502"), strings.Contains(msg, "503"), strings.Contains(msg, "504"):
		return true
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		return true
	case strings.Contains(msg, "unauthorized"), strings.Contains(msg, "invalid api key"), strings.Contains(msg, "401"), strings.Contains(msg, "403"):
		return true
	case strings.Contains(msg, "model_unavailable"), strings.Contains(msg, "model not found"):
		return true
	}
	return false
}
