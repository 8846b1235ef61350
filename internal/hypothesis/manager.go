// Package hypothesis manages hypothesis lifecycle: creation from templates,
// confidence updates from Ralph decisions, and state transitions.
package hypothesis

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/KieranMcFarlane/panther-chat-sub003/internal/core/domain"
	cerrors "github.com/KieranMcFarlane/panther-chat-sub003/internal/core/errors"
	"github.com/KieranMcFarlane/panther-chat-sub003/internal/core/ports"
)

const (
	initialConfidence = 0.50

	// resolveThreshold and resolveStreak govern the RESOLVED transition.
	resolveThreshold = 0.85
	resolveStreak    = 3

	// deactivateStreak is the consecutive REJECT/NO_PROGRESS count that
	// marks a hypothesis INACTIVE.
	deactivateStreak = 3

	// Batch query shape.
	batchChunkSize   = 100
	batchParallelism = 10
)

// Manager owns hypothesis CRUD and state transitions.
type Manager struct {
	store  ports.HypothesisStore
	clock  ports.Clock
	logger *zerolog.Logger

	mu            sync.Mutex
	rejectStreaks map[string]int
	highStreaks   map[string]int
}

// NewManager creates a hypothesis manager over a store.
func NewManager(store ports.HypothesisStore, clock ports.Clock, logger *zerolog.Logger) *Manager {
	return &Manager{
		store:         store,
		clock:         clock,
		logger:        logger,
		rejectStreaks: make(map[string]int),
		highStreaks:   make(map[string]int),
	}
}

// Initialise creates one ACTIVE hypothesis per template signal pattern at
// confidence 0.50. Duplicate statements for the same entity are dropped.
func (m *Manager) Initialise(ctx context.Context, template domain.Template, entity domain.Entity) ([]*domain.Hypothesis, error) {
	seen := make(map[string]bool)
	hypotheses := make([]*domain.Hypothesis, 0, len(template.SignalPatterns))
	now := m.clock.Now()

	for _, pattern := range template.SignalPatterns {
		statement := fmt.Sprintf("%s is procuring capabilities matching %q", entity.Name, pattern)

		key := normalizeStatement(statement)
		if seen[key] {
			continue
		}

		seen[key] = true

		h := &domain.Hypothesis{
			HypothesisID:     uuid.NewString(),
			EntityID:         entity.EntityID,
			TemplateID:       template.TemplateID,
			Statement:        statement,
			Category:         pattern,
			TargetEntityType: entity.Type,
			Confidence:       initialConfidence,
			State:            domain.HypothesisActive,
			CreatedAt:        now,
			Metadata:         map[string]string{"sport": entity.Sport, "country": entity.Country},
		}

		if err := m.store.Put(ctx, h); err != nil {
			return nil, fmt.Errorf("%w: put hypothesis: %v", cerrors.ErrStoreFailure, err)
		}

		hypotheses = append(hypotheses, h)
	}

	return hypotheses, nil
}

// Update folds a Ralph decision into a hypothesis: applied delta, history
// entry, iteration count, reinforcement, and state recomputation.
func (m *Manager) Update(ctx context.Context, h *domain.Hypothesis, decision domain.RalphDecision, sourceURL string) error {
	now := m.clock.Now()

	h.Confidence = domain.ClampConfidence(h.Confidence + decision.AppliedDelta)
	h.Iterations++
	h.LastTestedAt = now

	h.ConfidenceHistory = append(h.ConfidenceHistory, domain.ConfidencePoint{
		Iteration:    h.Iterations,
		RawDelta:     decision.RawDelta,
		AppliedDelta: decision.AppliedDelta,
		Decision:     decision.Decision,
		Category:     h.Category,
		SourceURL:    sourceURL,
		Reason:       decision.Justification,
		At:           now,
	})

	if decision.Decision == domain.DecisionAccept {
		h.ReinforcementCount++
	}

	m.recomputeState(h, decision.Decision)

	if err := m.store.Put(ctx, h); err != nil {
		return fmt.Errorf("%w: update hypothesis: %v", cerrors.ErrStoreFailure, err)
	}

	return nil
}

// recomputeState applies the RESOLVED and INACTIVE transitions.
func (m *Manager) recomputeState(h *domain.Hypothesis, decision string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch decision {
	case domain.DecisionReject, domain.DecisionNoProgress:
		m.rejectStreaks[h.HypothesisID]++
	case domain.DecisionAccept, domain.DecisionWeakAccept:
		m.rejectStreaks[h.HypothesisID] = 0
	}

	if h.Confidence >= resolveThreshold {
		m.highStreaks[h.HypothesisID]++
	} else {
		m.highStreaks[h.HypothesisID] = 0
	}

	switch {
	case m.highStreaks[h.HypothesisID] >= resolveStreak:
		h.State = domain.HypothesisResolved
	case m.rejectStreaks[h.HypothesisID] >= deactivateStreak:
		h.State = domain.HypothesisInactive
	}

	if h.State != domain.HypothesisActive {
		m.logger.Info().
			Str("hypothesis_id", h.HypothesisID).
			Str("state", h.State).
			Float64("confidence", h.Confidence).
			Msg("hypothesis state transition")
	}
}

// ListForEntities fetches hypotheses for many entities, chunked by 100 ids
// with bounded parallelism.
func (m *Manager) ListForEntities(ctx context.Context, entityIDs []string) (map[string][]*domain.Hypothesis, error) {
	out := make(map[string][]*domain.Hypothesis, len(entityIDs))

	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchParallelism)

	for start := 0; start < len(entityIDs); start += batchChunkSize {
		end := start + batchChunkSize
		if end > len(entityIDs) {
			end = len(entityIDs)
		}

		chunk := entityIDs[start:end]

		g.Go(func() error {
			for _, id := range chunk {
				hs, err := m.store.List(gctx, id)
				if err != nil {
					return fmt.Errorf("list hypotheses for %s: %w", id, err)
				}

				mu.Lock()
				out[id] = hs
				mu.Unlock()
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return out, nil
}

func normalizeStatement(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
