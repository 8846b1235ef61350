package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/KieranMcFarlane/panther-chat-sub003/internal/core/domain"
	cerrors "github.com/KieranMcFarlane/panther-chat-sub003/internal/core/errors"
	"github.com/KieranMcFarlane/panther-chat-sub003/internal/core/ports"
)

// Memory is an in-memory store bundle for tests and local runs without
// Postgres. All methods are safe for concurrent use.
type Memory struct {
	mu         sync.RWMutex
	episodes   map[string][]domain.Episode
	clustered  map[string][]domain.ClusteredEpisode
	bindings   map[string]*domain.RuntimeBinding
	hypotheses map[string]*domain.Hypothesis
	stats      map[string]*domain.ClusterStats
	signals    []domain.ValidatedSignal
	dossiers   map[string]*domain.Dossier
}

// NewMemory returns an empty in-memory store bundle.
func NewMemory() *Memory {
	return &Memory{
		episodes:   make(map[string][]domain.Episode),
		clustered:  make(map[string][]domain.ClusteredEpisode),
		bindings:   make(map[string]*domain.RuntimeBinding),
		hypotheses: make(map[string]*domain.Hypothesis),
		stats:      make(map[string]*domain.ClusterStats),
		dossiers:   make(map[string]*domain.Dossier),
	}
}

// Stores returns the bundle backed by this instance.
func (m *Memory) Stores() ports.Stores {
	return ports.Stores{
		Episodes:     (*memEpisodes)(m),
		Bindings:     (*memBindings)(m),
		Hypotheses:   (*memHypotheses)(m),
		ClusterStats: (*memClusterStats)(m),
		Signals:      (*memSignals)(m),
	}
}

type memEpisodes Memory

func (m *memEpisodes) Put(_ context.Context, ep domain.Episode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.episodes[ep.EntityID] = append(m.episodes[ep.EntityID], ep)

	return nil
}

func (m *memEpisodes) Query(_ context.Context, entityID string, since time.Time) ([]domain.Episode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.Episode

	for _, ep := range m.episodes[entityID] {
		if !ep.Timestamp.Before(since) {
			out = append(out, ep)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })

	return out, nil
}

func (m *memEpisodes) PutClustered(_ context.Context, ce domain.ClusteredEpisode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.clustered[ce.EntityID] = append(m.clustered[ce.EntityID], ce)

	return nil
}

type memBindings Memory

func bindingKey(entityID, templateID string) string {
	return entityID + "/" + templateID
}

func (m *memBindings) Get(_ context.Context, entityID, templateID string) (*domain.RuntimeBinding, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.bindings[bindingKey(entityID, templateID)]
	if !ok {
		return nil, cerrors.ErrBindingNotFound
	}

	cp := *b

	return &cp, nil
}

func (m *memBindings) Put(_ context.Context, b *domain.RuntimeBinding) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *b
	m.bindings[bindingKey(b.EntityID, b.TemplateID)] = &cp

	return nil
}

func (m *memBindings) List(_ context.Context, templateID string) ([]*domain.RuntimeBinding, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*domain.RuntimeBinding

	for _, b := range m.bindings {
		if b.TemplateID == templateID {
			cp := *b
			out = append(out, &cp)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })

	return out, nil
}

type memHypotheses Memory

func (m *memHypotheses) Get(_ context.Context, hypothesisID string) (*domain.Hypothesis, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	h, ok := m.hypotheses[hypothesisID]
	if !ok {
		return nil, cerrors.ErrHypothesisNotFound
	}

	cp := *h

	return &cp, nil
}

func (m *memHypotheses) List(_ context.Context, entityID string) ([]*domain.Hypothesis, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*domain.Hypothesis

	for _, h := range m.hypotheses {
		if h.EntityID == entityID {
			cp := *h
			out = append(out, &cp)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })

	return out, nil
}

func (m *memHypotheses) Put(_ context.Context, h *domain.Hypothesis) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *h
	m.hypotheses[h.HypothesisID] = &cp

	return nil
}

func (m *memHypotheses) BatchUpdate(_ context.Context, deltas map[string]float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, delta := range deltas {
		h, ok := m.hypotheses[id]
		if !ok {
			continue
		}

		h.Confidence = domain.ClampConfidence(h.Confidence + delta)
	}

	return nil
}

type memClusterStats Memory

func (m *memClusterStats) Get(_ context.Context, clusterID string) (*domain.ClusterStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st, ok := m.stats[clusterID]
	if !ok {
		return nil, cerrors.ErrNotFound
	}

	cp := *st

	return &cp, nil
}

func (m *memClusterStats) Put(_ context.Context, st *domain.ClusterStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *st
	m.stats[st.ClusterID] = &cp

	return nil
}

type memSignals Memory

func (m *memSignals) PutSignal(_ context.Context, sig domain.ValidatedSignal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.signals = append(m.signals, sig)

	return nil
}

func (m *memSignals) PutDossier(_ context.Context, d *domain.Dossier) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *d
	m.dossiers[d.EntityID] = &cp

	return nil
}
