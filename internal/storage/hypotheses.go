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

// HypothesisStore persists hypothesis nodes with their append-only
// confidence history as jsonb.
type HypothesisStore struct {
	db *DB
}

// Get returns one hypothesis or ErrHypothesisNotFound.
func (s *HypothesisStore) Get(ctx context.Context, hypothesisID string) (*domain.Hypothesis, error) {
	row := s.db.Pool.QueryRow(ctx, selectHypothesis+` WHERE hypothesis_id = $1`, hypothesisID)

	h, err := scanHypothesis(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cerrors.ErrHypothesisNotFound
		}

		return nil, err
	}

	return h, nil
}

// List returns every hypothesis for an entity.
func (s *HypothesisStore) List(ctx context.Context, entityID string) ([]*domain.Hypothesis, error) {
	rows, err := s.db.Pool.Query(ctx, selectHypothesis+` WHERE entity_id = $1 ORDER BY created_at`, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Hypothesis

	for rows.Next() {
		h, err := scanHypothesis(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, h)
	}

	return out, rows.Err()
}

// Put upserts the hypothesis row.
func (s *HypothesisStore) Put(ctx context.Context, h *domain.Hypothesis) error {
	metadata, err := json.Marshal(h.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	history, err := json.Marshal(h.ConfidenceHistory)
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}

	_, err = s.db.Pool.Exec(ctx, `
		INSERT INTO hypotheses (hypothesis_id, entity_id, template_id, statement, category,
		                        target_entity_type, confidence, state, iterations, reinforcement_count,
		                        created_at, last_tested_at, metadata, confidence_history)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (hypothesis_id) DO UPDATE SET
			confidence = EXCLUDED.confidence,
			state = EXCLUDED.state,
			iterations = EXCLUDED.iterations,
			reinforcement_count = EXCLUDED.reinforcement_count,
			last_tested_at = EXCLUDED.last_tested_at,
			confidence_history = EXCLUDED.confidence_history`,
		h.HypothesisID, h.EntityID, h.TemplateID, h.Statement, h.Category,
		h.TargetEntityType, h.Confidence, h.State, h.Iterations, h.ReinforcementCount,
		h.CreatedAt, h.LastTestedAt, metadata, history)

	return err
}

// BatchUpdate applies confidence deltas in one transaction, clamped to the
// valid range in SQL.
func (s *HypothesisStore) BatchUpdate(ctx context.Context, deltas map[string]float64) error {
	if len(deltas) == 0 {
		return nil
	}

	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	for id, delta := range deltas {
		if _, err := tx.Exec(ctx, `
			UPDATE hypotheses
			SET confidence = LEAST(0.95, GREATEST(0.05, confidence + $2))
			WHERE hypothesis_id = $1`,
			id, delta); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

const selectHypothesis = `
	SELECT hypothesis_id, entity_id, template_id, statement, category,
	       target_entity_type, confidence, state, iterations, reinforcement_count,
	       created_at, last_tested_at, metadata, confidence_history
	FROM hypotheses`

func scanHypothesis(row pgx.Row) (*domain.Hypothesis, error) {
	var (
		h        domain.Hypothesis
		metadata []byte
		history  []byte
	)

	if err := row.Scan(&h.HypothesisID, &h.EntityID, &h.TemplateID, &h.Statement, &h.Category,
		&h.TargetEntityType, &h.Confidence, &h.State, &h.Iterations, &h.ReinforcementCount,
		&h.CreatedAt, &h.LastTestedAt, &metadata, &history); err != nil {
		return nil, err
	}

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &h.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}

	if len(history) > 0 {
		if err := json.Unmarshal(history, &h.ConfidenceHistory); err != nil {
			return nil, fmt.Errorf("unmarshal history: %w", err)
		}
	}

	return &h, nil
}
