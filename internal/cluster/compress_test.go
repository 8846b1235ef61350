package cluster

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

type memEpisodeStore struct {
	mu        sync.Mutex
	episodes  []domain.Episode
	clustered []domain.ClusteredEpisode
}

func (s *memEpisodeStore) Put(_ context.Context, ep domain.Episode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.episodes = append(s.episodes, ep)

	return nil
}

func (s *memEpisodeStore) Query(_ context.Context, entityID string, since time.Time) ([]domain.Episode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Episode
	for _, ep := range s.episodes {
		if ep.EntityID == entityID && !ep.Timestamp.Before(since) {
			out = append(out, ep)
		}
	}

	return out, nil
}

func (s *memEpisodeStore) PutClustered(_ context.Context, ce domain.ClusteredEpisode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clustered = append(s.clustered, ce)

	return nil
}

// vectorEmbedder returns a fixed vector per description.
type vectorEmbedder struct {
	vectors map[string][]float32
}

func (e *vectorEmbedder) GetEmbedding(_ context.Context, text string) ([]float32, error) {
	return e.vectors[text], nil
}

func newTestCompressor(store *memEpisodeStore, embedder *vectorEmbedder, now time.Time) *Compressor {
	logger := zerolog.Nop()

	return NewCompressor(store, embedder, fixedClock{t: now}, &logger)
}

func episode(id, entityID, description string, at time.Time) domain.Episode {
	return domain.Episode{ID: id, EntityID: entityID, Description: description, Timestamp: at}
}

func TestCompressGroupsSimilarEpisodes(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	store := &memEpisodeStore{}

	require.NoError(t, store.Put(context.Background(), episode("ep-1", "e1", "tender for ticketing", now.Add(-10*24*time.Hour))))
	require.NoError(t, store.Put(context.Background(), episode("ep-2", "e1", "ticketing tender update", now.Add(-8*24*time.Hour))))
	require.NoError(t, store.Put(context.Background(), episode("ep-3", "e1", "new head coach hired", now.Add(-5*24*time.Hour))))

	embedder := &vectorEmbedder{vectors: map[string][]float32{
		"tender for ticketing":    {1, 0, 0},
		"ticketing tender update": {0.95, 0.05, 0},
		"new head coach hired":    {0, 1, 0},
	}}

	c := newTestCompressor(store, embedder, now)

	res, err := c.Compress(context.Background(), "e1")
	require.NoError(t, err)
	require.Len(t, res.Clustered, 1)
	assert.Equal(t, []string{"ep-1", "ep-2"}, res.Clustered[0].EpisodeIDs)
	assert.Equal(t, 1, res.Ungrouped)

	// 3 originals compressed to 2 derived records.
	assert.InDelta(t, 1.5, res.Ratio, 1e-9)

	// Originals untouched.
	assert.Len(t, store.episodes, 3)
	assert.Len(t, store.clustered, 1)
}

func TestCompressRespectsWindow(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	store := &memEpisodeStore{}

	// Identical vectors but 50 days apart; the second falls outside the
	// query window entirely.
	require.NoError(t, store.Put(context.Background(), episode("ep-1", "e1", "tender notice", now.Add(-50*24*time.Hour))))
	require.NoError(t, store.Put(context.Background(), episode("ep-2", "e1", "tender notice", now.Add(-1*24*time.Hour))))

	embedder := &vectorEmbedder{vectors: map[string][]float32{"tender notice": {1, 0}}}

	c := newTestCompressor(store, embedder, now)

	res, err := c.Compress(context.Background(), "e1")
	require.NoError(t, err)
	assert.Empty(t, res.Clustered)
	assert.Equal(t, 1, res.Original)
}

func TestCompressBelowThresholdStaysApart(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	store := &memEpisodeStore{}

	require.NoError(t, store.Put(context.Background(), episode("ep-1", "e1", "a", now.Add(-2*24*time.Hour))))
	require.NoError(t, store.Put(context.Background(), episode("ep-2", "e1", "b", now.Add(-1*24*time.Hour))))

	// Cosine 0.5, below the 0.75 threshold.
	embedder := &vectorEmbedder{vectors: map[string][]float32{
		"a": {1, 0},
		"b": {0.5, 0.866},
	}}

	c := newTestCompressor(store, embedder, now)

	res, err := c.Compress(context.Background(), "e1")
	require.NoError(t, err)
	assert.Empty(t, res.Clustered)
	assert.Equal(t, 2, res.Ungrouped)
	assert.InDelta(t, 1.0, res.Ratio, 1e-9)
}

func TestCompressSingleEpisodeNoop(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	store := &memEpisodeStore{}

	require.NoError(t, store.Put(context.Background(), episode("ep-1", "e1", "tender notice", now.Add(-24*time.Hour))))

	c := newTestCompressor(store, &vectorEmbedder{}, now)

	res, err := c.Compress(context.Background(), "e1")
	require.NoError(t, err)
	assert.Empty(t, res.Clustered)
	assert.Equal(t, 1, res.Original)
	assert.InDelta(t, 1.0, res.Ratio, 1e-9)
}
