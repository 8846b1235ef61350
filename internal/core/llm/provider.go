package llm

import (
	"context"
	"sync"
	"time"

	cerrors "github.com/KieranMcFarlane/panther-chat-sub003/internal/core/errors"
)

// Provider is one completion backend serving a single tier.
type Provider interface {
	// Tier returns the cost tier this provider serves.
	Tier() Tier

	// IsAvailable returns true if the provider is configured.
	IsAvailable() bool

	// Complete sends one prompt and returns the raw response with usage.
	Complete(ctx context.Context, prompt string) (Response, error)
}

// Circuit breaker settings shared by all providers.
const (
	circuitThreshold  = 3
	circuitResetAfter = 5 * time.Minute
)

// breaker is a minimal failure-counting circuit breaker. Repeated failures
// open it; after the reset window one probe call is allowed through.
type breaker struct {
	mu          sync.Mutex
	failures    int
	lastFailure time.Time
}

func (b *breaker) canAttempt() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failures < circuitThreshold {
		return true
	}

	return time.Since(b.lastFailure) >= circuitResetAfter
}

func (b *breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
}

func (b *breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = time.Now()
}

// tierSet holds the provider and breaker for each tier.
type tierSet struct {
	mu       sync.RWMutex
	byTier   map[Tier]Provider
	breakers map[Tier]*breaker
}

func newTierSet() *tierSet {
	return &tierSet{
		byTier:   make(map[Tier]Provider),
		breakers: make(map[Tier]*breaker),
	}
}

func (s *tierSet) register(p Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byTier[p.Tier()] = p
	s.breakers[p.Tier()] = &breaker{}
}

// get returns the provider for a tier if it is configured and its breaker
// allows an attempt.
func (s *tierSet) get(tier Tier) (Provider, *breaker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.byTier[tier]
	if !ok || !p.IsAvailable() {
		return nil, nil, cerrors.ErrNoProvidersAvailable
	}

	b := s.breakers[tier]
	if !b.canAttempt() {
		return nil, nil, cerrors.ErrCircuitBreakerOpen
	}

	return p, b, nil
}
