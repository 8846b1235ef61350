// Package cluster rolls promoted runtime bindings up into cross-entity
// statistics and provides the discovery shortcuts consumed by the
// orchestrator. It also compresses similar episodes into derived records.
package cluster

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/KieranMcFarlane/panther-chat-sub003/internal/core/domain"
	cerrors "github.com/KieranMcFarlane/panther-chat-sub003/internal/core/errors"
	"github.com/KieranMcFarlane/panther-chat-sub003/internal/core/ports"
	"github.com/KieranMcFarlane/panther-chat-sub003/internal/platform/observability"
)

// reliabilityBonusCap and reliabilityBonusStep shape the sample-size bonus
// added to pattern reliability: min(0.1, 0.01 * count).
const (
	reliabilityBonusCap  = 0.1
	reliabilityBonusStep = 0.01
)

// Intelligence computes and caches per-cluster statistics.
type Intelligence struct {
	bindings ports.BindingStore
	stats    ports.ClusterStatsStore
	clock    ports.Clock
	logger   *zerolog.Logger

	mu sync.Mutex
}

// NewIntelligence creates the cluster intelligence layer.
func NewIntelligence(bindings ports.BindingStore, stats ports.ClusterStatsStore, clock ports.Clock, logger *zerolog.Logger) *Intelligence {
	return &Intelligence{bindings: bindings, stats: stats, clock: clock, logger: logger}
}

// Rollup recomputes cluster statistics from PROMOTED bindings only and
// persists the result. Non-promoted bindings never contribute.
func (in *Intelligence) Rollup(ctx context.Context, clusterID string) (*domain.ClusterStats, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	all, err := in.bindings.List(ctx, clusterID)
	if err != nil {
		return nil, fmt.Errorf("%w: list bindings: %v", cerrors.ErrStoreFailure, err)
	}

	var promoted []*domain.RuntimeBinding
	for _, b := range all {
		if b.State == domain.BindingPromoted {
			promoted = append(promoted, b)
		}
	}

	stats := &domain.ClusterStats{
		ClusterID:            clusterID,
		ChannelEffectiveness: channelEffectiveness(promoted),
		SignalReliability:    signalReliability(promoted),
		TotalBindings:        len(promoted),
		LastUpdated:          in.clock.Now(),
	}
	stats.DiscoveryShortcuts = shortcuts(stats.ChannelEffectiveness)

	if err := in.stats.Put(ctx, stats); err != nil {
		return nil, fmt.Errorf("%w: put cluster stats: %v", cerrors.ErrStoreFailure, err)
	}

	in.logger.Debug().
		Str("cluster_id", clusterID).
		Int("promoted_bindings", len(promoted)).
		Strs("shortcuts", stats.DiscoveryShortcuts).
		Msg("cluster rollup")

	return stats, nil
}

// Priority returns the shortcut channel list for a cluster, rolling up
// lazily when no stored stats exist yet.
func (in *Intelligence) Priority(ctx context.Context, clusterID string) ([]string, error) {
	stats, err := in.stats.Get(ctx, clusterID)
	if err != nil && !errors.Is(err, cerrors.ErrNotFound) {
		return nil, fmt.Errorf("%w: get cluster stats: %v", cerrors.ErrStoreFailure, err)
	}

	if stats == nil {
		stats, err = in.Rollup(ctx, clusterID)
		if err != nil {
			return nil, err
		}
	}

	if len(stats.DiscoveryShortcuts) > 0 {
		observability.ClusterShortcutHits.Inc()
	}

	return stats.DiscoveryShortcuts, nil
}

// channelEffectiveness is the usage-weighted mean success rate per channel:
// sum(success_rate * usage_count) / sum(usage_count) over bindings that
// discovered the channel.
func channelEffectiveness(promoted []*domain.RuntimeBinding) map[string]float64 {
	weighted := make(map[string]float64)
	usage := make(map[string]float64)

	for _, b := range promoted {
		for channel := range b.DiscoveredChannels {
			weighted[channel] += b.SuccessRate * float64(b.UsageCount)
			usage[channel] += float64(b.UsageCount)
		}
	}

	out := make(map[string]float64, len(weighted))
	for channel, w := range weighted {
		if usage[channel] > 0 {
			out[channel] = w / usage[channel]
		}
	}

	return out
}

// signalReliability is the mean success rate over bindings carrying each
// pattern, plus a small sample-size bonus capped at 0.1.
func signalReliability(promoted []*domain.RuntimeBinding) map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)

	for _, b := range promoted {
		for pattern := range b.EnrichedPatterns {
			sums[pattern] += b.SuccessRate
			counts[pattern]++
		}
	}

	out := make(map[string]float64, len(sums))
	for pattern, sum := range sums {
		n := counts[pattern]
		bonus := reliabilityBonusStep * float64(n)
		if bonus > reliabilityBonusCap {
			bonus = reliabilityBonusCap
		}

		out[pattern] = sum/float64(n) + bonus
	}

	return out
}

// shortcuts orders channels by descending effectiveness, ties broken
// alphabetically for determinism.
func shortcuts(effectiveness map[string]float64) []string {
	channels := make([]string, 0, len(effectiveness))
	for c := range effectiveness {
		channels = append(channels, c)
	}

	sort.Slice(channels, func(i, j int) bool {
		ei, ej := effectiveness[channels[i]], effectiveness[channels[j]]
		if ei != ej {
			return ei > ej
		}

		return channels[i] < channels[j]
	})

	return channels
}
