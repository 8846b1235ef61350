// Package ports defines the store and collaborator contracts consumed by the
// discovery engine. Any backend satisfying these interfaces is valid; the
// repository ships Postgres and in-memory implementations in internal/storage.
package ports

import (
	"context"
	"time"

	"github.com/KieranMcFarlane/panther-chat-sub003/internal/core/domain"
)

// EpisodeStore persists append-only discovery episodes keyed by (entity, timestamp).
type EpisodeStore interface {
	Put(ctx context.Context, episode domain.Episode) error
	Query(ctx context.Context, entityID string, since time.Time) ([]domain.Episode, error)
	PutClustered(ctx context.Context, clustered domain.ClusteredEpisode) error
}

// BindingStore persists runtime bindings, last-writer-wins per (entity, template).
type BindingStore interface {
	Get(ctx context.Context, entityID, templateID string) (*domain.RuntimeBinding, error)
	Put(ctx context.Context, binding *domain.RuntimeBinding) error
	List(ctx context.Context, templateID string) ([]*domain.RuntimeBinding, error)
}

// HypothesisStore persists hypothesis nodes and their confidence history.
type HypothesisStore interface {
	Get(ctx context.Context, hypothesisID string) (*domain.Hypothesis, error)
	List(ctx context.Context, entityID string) ([]*domain.Hypothesis, error)
	Put(ctx context.Context, hypothesis *domain.Hypothesis) error
	BatchUpdate(ctx context.Context, deltas map[string]float64) error
}

// ClusterStatsStore persists one roll-up row per cluster.
type ClusterStatsStore interface {
	Get(ctx context.Context, clusterID string) (*domain.ClusterStats, error)
	Put(ctx context.Context, stats *domain.ClusterStats) error
}

// SignalStore persists validated signals and the final dossier.
type SignalStore interface {
	PutSignal(ctx context.Context, signal domain.ValidatedSignal) error
	PutDossier(ctx context.Context, dossier *domain.Dossier) error
}

// Stores bundles every store contract for injection into the orchestrators.
type Stores struct {
	Episodes     EpisodeStore
	Bindings     BindingStore
	Hypotheses   HypothesisStore
	ClusterStats ClusterStatsStore
	Signals      SignalStore
}

// Clock abstracts wall-clock and monotonic time for testability.
type Clock interface {
	Now() time.Time
	Monotonic() time.Duration
}

// SystemClock is the production Clock backed by the runtime clock.
type SystemClock struct {
	start time.Time
}

// NewSystemClock returns a Clock whose monotonic origin is the call time.
func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

// Now returns the current wall-clock time.
func (c *SystemClock) Now() time.Time { return time.Now() }

// Monotonic returns the elapsed time since the clock was created.
func (c *SystemClock) Monotonic() time.Duration { return time.Since(c.start) }
