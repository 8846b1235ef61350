package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/KieranMcFarlane/panther-chat-sub003/internal/core/domain"
	cerrors "github.com/KieranMcFarlane/panther-chat-sub003/internal/core/errors"
)

// ClusterStatsStore keeps one roll-up row per cluster.
type ClusterStatsStore struct {
	db *DB
}

// Get returns the stored roll-up or ErrNotFound.
func (s *ClusterStatsStore) Get(ctx context.Context, clusterID string) (*domain.ClusterStats, error) {
	row := s.db.Pool.QueryRow(ctx, `
		SELECT cluster_id, channel_effectiveness, signal_reliability, discovery_shortcuts,
		       total_bindings, last_updated
		FROM cluster_stats
		WHERE cluster_id = $1`,
		clusterID)

	var (
		st            domain.ClusterStats
		effectiveness []byte
		reliability   []byte
	)

	err := row.Scan(&st.ClusterID, &effectiveness, &reliability, &st.DiscoveryShortcuts,
		&st.TotalBindings, &st.LastUpdated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cerrors.ErrNotFound
		}

		return nil, err
	}

	if err := json.Unmarshal(effectiveness, &st.ChannelEffectiveness); err != nil {
		return nil, fmt.Errorf("unmarshal effectiveness: %w", err)
	}

	if err := json.Unmarshal(reliability, &st.SignalReliability); err != nil {
		return nil, fmt.Errorf("unmarshal reliability: %w", err)
	}

	return &st, nil
}

// Put upserts the roll-up row.
func (s *ClusterStatsStore) Put(ctx context.Context, st *domain.ClusterStats) error {
	effectiveness, err := json.Marshal(st.ChannelEffectiveness)
	if err != nil {
		return fmt.Errorf("marshal effectiveness: %w", err)
	}

	reliability, err := json.Marshal(st.SignalReliability)
	if err != nil {
		return fmt.Errorf("marshal reliability: %w", err)
	}

	_, err = s.db.Pool.Exec(ctx, `
		INSERT INTO cluster_stats (cluster_id, channel_effectiveness, signal_reliability,
		                           discovery_shortcuts, total_bindings, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (cluster_id) DO UPDATE SET
			channel_effectiveness = EXCLUDED.channel_effectiveness,
			signal_reliability = EXCLUDED.signal_reliability,
			discovery_shortcuts = EXCLUDED.discovery_shortcuts,
			total_bindings = EXCLUDED.total_bindings,
			last_updated = EXCLUDED.last_updated`,
		st.ClusterID, effectiveness, reliability, st.DiscoveryShortcuts, st.TotalBindings, st.LastUpdated)

	return err
}
