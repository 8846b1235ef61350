package hypothesis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KieranMcFarlane/panther-chat-sub003/internal/core/domain"
)

type memStore struct {
	mu    sync.Mutex
	items map[string]*domain.Hypothesis
}

func newMemStore() *memStore {
	return &memStore{items: make(map[string]*domain.Hypothesis)}
}

func (s *memStore) Get(_ context.Context, id string) (*domain.Hypothesis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.items[id], nil
}

func (s *memStore) List(_ context.Context, entityID string) ([]*domain.Hypothesis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.Hypothesis
	for _, h := range s.items {
		if h.EntityID == entityID {
			out = append(out, h)
		}
	}

	return out, nil
}

func (s *memStore) Put(_ context.Context, h *domain.Hypothesis) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[h.HypothesisID] = h

	return nil
}

func (s *memStore) BatchUpdate(_ context.Context, deltas map[string]float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, d := range deltas {
		if h, ok := s.items[id]; ok {
			h.Confidence = domain.ClampConfidence(h.Confidence + d)
		}
	}

	return nil
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func (c fixedClock) Monotonic() time.Duration { return 0 }

func newTestManager(store *memStore) *Manager {
	logger := zerolog.Nop()

	return NewManager(store, fixedClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}, &logger)
}

func testTemplate(patterns ...string) domain.Template {
	return domain.Template{TemplateID: "tmpl-1", Version: 1, ClusterID: "cluster-1", SignalPatterns: patterns}
}

func testEntity() domain.Entity {
	return domain.Entity{EntityID: "entity-1", Name: "FC Example", Type: "club", Sport: "football", Country: "GB"}
}

func TestInitialiseCreatesActiveAtHalf(t *testing.T) {
	store := newMemStore()
	m := newTestManager(store)

	hs, err := m.Initialise(context.Background(), testTemplate("rfp publication", "digital hiring"), testEntity())
	require.NoError(t, err)
	require.Len(t, hs, 2)

	for _, h := range hs {
		assert.Equal(t, domain.HypothesisActive, h.State)
		assert.InDelta(t, 0.50, h.Confidence, 1e-9)
		assert.Equal(t, "entity-1", h.EntityID)
		assert.NotEmpty(t, h.HypothesisID)
	}

	assert.Len(t, store.items, 2)
}

func TestInitialiseDedupesStatements(t *testing.T) {
	store := newMemStore()
	m := newTestManager(store)

	hs, err := m.Initialise(context.Background(), testTemplate("rfp publication", "RFP  Publication"), testEntity())
	require.NoError(t, err)
	assert.Len(t, hs, 1)
}

func TestUpdateAppliesDeltaAndHistory(t *testing.T) {
	store := newMemStore()
	m := newTestManager(store)

	hs, err := m.Initialise(context.Background(), testTemplate("rfp publication"), testEntity())
	require.NoError(t, err)

	h := hs[0]

	decision := domain.RalphDecision{
		Decision:      domain.DecisionAccept,
		RawDelta:      0.06,
		AppliedDelta:  0.045,
		Justification: "tender notice found",
	}

	require.NoError(t, m.Update(context.Background(), h, decision, "https://club.com/rfp"))

	assert.InDelta(t, 0.545, h.Confidence, 1e-9)
	assert.Equal(t, 1, h.Iterations)
	assert.Equal(t, 1, h.ReinforcementCount)
	require.Len(t, h.ConfidenceHistory, 1)
	assert.Equal(t, "https://club.com/rfp", h.ConfidenceHistory[0].SourceURL)
	assert.InDelta(t, 0.045, h.ConfidenceHistory[0].AppliedDelta, 1e-9)
}

func TestThreeHighIterationsResolve(t *testing.T) {
	store := newMemStore()
	m := newTestManager(store)

	hs, err := m.Initialise(context.Background(), testTemplate("rfp publication"), testEntity())
	require.NoError(t, err)

	h := hs[0]
	h.Confidence = 0.84

	accept := domain.RalphDecision{Decision: domain.DecisionAccept, RawDelta: 0.06, AppliedDelta: 0.02}
	hold := domain.RalphDecision{Decision: domain.DecisionAccept, RawDelta: 0.06, AppliedDelta: 0.001}

	require.NoError(t, m.Update(context.Background(), h, accept, "https://a"))
	assert.Equal(t, domain.HypothesisActive, h.State)

	require.NoError(t, m.Update(context.Background(), h, hold, "https://b"))
	assert.Equal(t, domain.HypothesisActive, h.State)

	require.NoError(t, m.Update(context.Background(), h, hold, "https://c"))
	assert.Equal(t, domain.HypothesisResolved, h.State)
}

func TestConfidenceDipResetsResolveStreak(t *testing.T) {
	store := newMemStore()
	m := newTestManager(store)

	hs, err := m.Initialise(context.Background(), testTemplate("rfp publication"), testEntity())
	require.NoError(t, err)

	h := hs[0]
	h.Confidence = 0.86

	hold := domain.RalphDecision{Decision: domain.DecisionAccept, AppliedDelta: 0}
	dip := domain.RalphDecision{Decision: domain.DecisionWeakAccept, AppliedDelta: -0.05}
	recovery := domain.RalphDecision{Decision: domain.DecisionAccept, AppliedDelta: 0.05}

	require.NoError(t, m.Update(context.Background(), h, hold, ""))
	require.NoError(t, m.Update(context.Background(), h, hold, ""))
	require.NoError(t, m.Update(context.Background(), h, dip, ""))
	require.NoError(t, m.Update(context.Background(), h, recovery, ""))

	// Streak restarted at the recovery, so still ACTIVE.
	assert.Equal(t, domain.HypothesisActive, h.State)
}

func TestThreeRejectsDeactivate(t *testing.T) {
	store := newMemStore()
	m := newTestManager(store)

	hs, err := m.Initialise(context.Background(), testTemplate("rfp publication"), testEntity())
	require.NoError(t, err)

	h := hs[0]
	reject := domain.RalphDecision{Decision: domain.DecisionReject}
	noProgress := domain.RalphDecision{Decision: domain.DecisionNoProgress}

	require.NoError(t, m.Update(context.Background(), h, reject, ""))
	require.NoError(t, m.Update(context.Background(), h, noProgress, ""))
	assert.Equal(t, domain.HypothesisActive, h.State)

	require.NoError(t, m.Update(context.Background(), h, reject, ""))
	assert.Equal(t, domain.HypothesisInactive, h.State)
}

func TestAcceptResetsDeactivateStreak(t *testing.T) {
	store := newMemStore()
	m := newTestManager(store)

	hs, err := m.Initialise(context.Background(), testTemplate("rfp publication"), testEntity())
	require.NoError(t, err)

	h := hs[0]
	reject := domain.RalphDecision{Decision: domain.DecisionReject}
	accept := domain.RalphDecision{Decision: domain.DecisionAccept, AppliedDelta: 0.01}

	require.NoError(t, m.Update(context.Background(), h, reject, ""))
	require.NoError(t, m.Update(context.Background(), h, reject, ""))
	require.NoError(t, m.Update(context.Background(), h, accept, ""))
	require.NoError(t, m.Update(context.Background(), h, reject, ""))

	assert.Equal(t, domain.HypothesisActive, h.State)
}

func TestListForEntitiesChunks(t *testing.T) {
	store := newMemStore()
	m := newTestManager(store)

	ids := make([]string, 0, 250)
	for i := 0; i < 250; i++ {
		e := domain.Entity{EntityID: "entity-" + string(rune('0'+i%10)) + "-" + string(rune('a'+i%26)), Name: "E", Type: "club"}
		ids = append(ids, e.EntityID)
	}

	// Seed one hypothesis for a known entity.
	_, err := m.Initialise(context.Background(), testTemplate("rfp publication"), testEntity())
	require.NoError(t, err)

	ids = append(ids, "entity-1")

	out, err := m.ListForEntities(context.Background(), ids)
	require.NoError(t, err)
	assert.Len(t, out["entity-1"], 1)
}
