// Package binding manages runtime bindings: the per-(entity, template)
// learned channel state with a promotion lifecycle. Promoted bindings let the
// orchestrator replay known channels without an LLM planning call.
package binding

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/KieranMcFarlane/panther-chat-sub003/internal/core/domain"
	cerrors "github.com/KieranMcFarlane/panther-chat-sub003/internal/core/errors"
	"github.com/KieranMcFarlane/panther-chat-sub003/internal/core/ports"
	"github.com/KieranMcFarlane/panther-chat-sub003/internal/platform/observability"
)

const (
	promoteMinUses     = 3
	promoteMinSuccess  = 0.75
	retireMinUses      = 5
	retireMaxSuccess   = 0.30
	freezeAfter        = 7 * 24 * time.Hour
	demoteWindow       = 5
	demoteBelowSuccess = 0.50
)

// Manager owns binding reads, usage recording, and lifecycle transitions.
type Manager struct {
	store  ports.BindingStore
	clock  ports.Clock
	logger *zerolog.Logger

	mu     sync.Mutex
	recent map[string][]bool
}

// NewManager creates a binding manager over a store.
func NewManager(store ports.BindingStore, clock ports.Clock, logger *zerolog.Logger) *Manager {
	return &Manager{
		store:  store,
		clock:  clock,
		logger: logger,
		recent: make(map[string][]bool),
	}
}

// GetOrCreate returns the binding for (entity, template), creating an
// EXPLORING binding on first discovery.
func (m *Manager) GetOrCreate(ctx context.Context, entity domain.Entity, templateID string) (*domain.RuntimeBinding, error) {
	b, err := m.store.Get(ctx, entity.EntityID, templateID)
	if err != nil && !errors.Is(err, cerrors.ErrNotFound) {
		return nil, fmt.Errorf("%w: get binding: %v", cerrors.ErrStoreFailure, err)
	}

	if b != nil {
		m.thaw(b)

		return b, nil
	}

	b = &domain.RuntimeBinding{
		TemplateID:         templateID,
		EntityID:           entity.EntityID,
		EntityName:         entity.Name,
		DiscoveredChannels: make(map[string][]string),
		EnrichedPatterns:   make(map[string][]string),
		State:              domain.BindingExploring,
		LastUsedAt:         m.clock.Now(),
	}

	if err := m.store.Put(ctx, b); err != nil {
		return nil, fmt.Errorf("%w: put binding: %v", cerrors.ErrStoreFailure, err)
	}

	return b, nil
}

// RecordUse folds one discovery outcome into the binding: usage count,
// success rate, accepted evidence, and the lifecycle transition.
func (m *Manager) RecordUse(ctx context.Context, b *domain.RuntimeBinding, success bool, channel, sourceURL string, patterns map[string]string) error {
	now := m.clock.Now()

	m.thaw(b)

	successes := b.SuccessRate * float64(b.UsageCount)
	if success {
		successes++
	}

	b.UsageCount++
	b.SuccessRate = successes / float64(b.UsageCount)
	b.LastUsedAt = now

	if success && channel != "" && sourceURL != "" {
		b.DiscoveredChannels[channel] = appendUnique(b.DiscoveredChannels[channel], sourceURL)
		b.DiscoveredDomains = appendUnique(b.DiscoveredDomains, domainOf(sourceURL))
	}

	for pattern, example := range patterns {
		b.EnrichedPatterns[pattern] = appendUnique(b.EnrichedPatterns[pattern], example)
	}

	m.recordRecent(b, success)
	m.transition(b, now)

	if err := m.store.Put(ctx, b); err != nil {
		return fmt.Errorf("%w: put binding: %v", cerrors.ErrStoreFailure, err)
	}

	return nil
}

// Refresh applies time-based transitions without a use event. Called at the
// start of an entity run so a stale PROMOTED binding freezes before replay.
func (m *Manager) Refresh(ctx context.Context, b *domain.RuntimeBinding) error {
	now := m.clock.Now()

	if b.State == domain.BindingPromoted && now.Sub(b.LastUsedAt) >= freezeAfter {
		b.State = domain.BindingFrozen

		m.logger.Info().
			Str("entity_id", b.EntityID).
			Str("template_id", b.TemplateID).
			Msg("binding frozen after inactivity")

		if err := m.store.Put(ctx, b); err != nil {
			return fmt.Errorf("%w: put binding: %v", cerrors.ErrStoreFailure, err)
		}
	}

	return nil
}

// ReplayChannels returns the deterministic (channel, url) replay order for a
// PROMOTED binding. Channels with more discovered URLs replay first; ties
// break alphabetically.
func (m *Manager) ReplayChannels(b *domain.RuntimeBinding) []Replay {
	if b.State != domain.BindingPromoted {
		return nil
	}

	channels := make([]string, 0, len(b.DiscoveredChannels))
	for c := range b.DiscoveredChannels {
		channels = append(channels, c)
	}

	sort.Slice(channels, func(i, j int) bool {
		ci, cj := channels[i], channels[j]
		if len(b.DiscoveredChannels[ci]) != len(b.DiscoveredChannels[cj]) {
			return len(b.DiscoveredChannels[ci]) > len(b.DiscoveredChannels[cj])
		}

		return ci < cj
	})

	var out []Replay
	for _, c := range channels {
		for _, u := range b.DiscoveredChannels[c] {
			out = append(out, Replay{Channel: c, URL: u})
		}
	}

	return out
}

// Replay is one deterministic step of a promoted binding replay.
type Replay struct {
	Channel string
	URL     string
}

// transition applies the lifecycle state machine after a use.
func (m *Manager) transition(b *domain.RuntimeBinding, now time.Time) {
	prev := b.State

	switch b.State {
	case domain.BindingExploring:
		switch {
		case b.UsageCount >= promoteMinUses && b.SuccessRate >= promoteMinSuccess:
			b.State = domain.BindingPromoted
			t := now
			b.PromotedAt = &t

			observability.BindingsPromoted.Inc()
		case b.UsageCount >= retireMinUses && b.SuccessRate < retireMaxSuccess:
			b.State = domain.BindingRetired
		}
	case domain.BindingPromoted:
		if recent, ok := m.recentRate(b); ok && recent < demoteBelowSuccess {
			b.State = domain.BindingExploring
			b.PromotedAt = nil
		}
	case domain.BindingRetired:
		// Terminal.
	}

	if b.State != prev {
		m.logger.Info().
			Str("entity_id", b.EntityID).
			Str("template_id", b.TemplateID).
			Str("from", prev).
			Str("to", b.State).
			Float64("success_rate", b.SuccessRate).
			Int("usage_count", b.UsageCount).
			Msg("binding state transition")
	}
}

// thaw re-validates a FROZEN binding on any use.
func (m *Manager) thaw(b *domain.RuntimeBinding) {
	if b.State == domain.BindingFrozen {
		b.State = domain.BindingPromoted
	}
}

func (m *Manager) recordRecent(b *domain.RuntimeBinding, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := b.EntityID + "/" + b.TemplateID

	window := append(m.recent[key], success)
	if len(window) > demoteWindow {
		window = window[len(window)-demoteWindow:]
	}

	m.recent[key] = window
}

// recentRate reports the success rate over the last five uses. The window
// must be full before a demotion can trigger.
func (m *Manager) recentRate(b *domain.RuntimeBinding) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	window := m.recent[b.EntityID+"/"+b.TemplateID]
	if len(window) < demoteWindow {
		return 0, false
	}

	ok := 0
	for _, s := range window {
		if s {
			ok++
		}
	}

	return float64(ok) / float64(len(window)), true
}

func appendUnique(list []string, v string) []string {
	if v == "" {
		return list
	}

	for _, existing := range list {
		if existing == v {
			return list
		}
	}

	return append(list, v)
}

func domainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	return u.Hostname()
}
