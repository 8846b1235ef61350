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

// BindingStore persists runtime bindings, last-writer-wins per
// (entity_id, template_id).
type BindingStore struct {
	db *DB
}

// Get returns the binding for (entity, template) or ErrBindingNotFound.
func (s *BindingStore) Get(ctx context.Context, entityID, templateID string) (*domain.RuntimeBinding, error) {
	row := s.db.Pool.QueryRow(ctx, `
		SELECT template_id, entity_id, entity_name, discovered_domains, discovered_channels,
		       enriched_patterns, confidence_adjustment, usage_count, success_rate, state,
		       promoted_at, last_used_at
		FROM bindings
		WHERE entity_id = $1 AND template_id = $2`,
		entityID, templateID)

	b, err := scanBinding(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cerrors.ErrBindingNotFound
		}

		return nil, err
	}

	return b, nil
}

// Put upserts the binding. The last writer wins.
func (s *BindingStore) Put(ctx context.Context, b *domain.RuntimeBinding) error {
	channels, err := json.Marshal(b.DiscoveredChannels)
	if err != nil {
		return fmt.Errorf("marshal channels: %w", err)
	}

	patterns, err := json.Marshal(b.EnrichedPatterns)
	if err != nil {
		return fmt.Errorf("marshal patterns: %w", err)
	}

	_, err = s.db.Pool.Exec(ctx, `
		INSERT INTO bindings (template_id, entity_id, entity_name, discovered_domains, discovered_channels,
		                      enriched_patterns, confidence_adjustment, usage_count, success_rate, state,
		                      promoted_at, last_used_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (entity_id, template_id) DO UPDATE SET
			entity_name = EXCLUDED.entity_name,
			discovered_domains = EXCLUDED.discovered_domains,
			discovered_channels = EXCLUDED.discovered_channels,
			enriched_patterns = EXCLUDED.enriched_patterns,
			confidence_adjustment = EXCLUDED.confidence_adjustment,
			usage_count = EXCLUDED.usage_count,
			success_rate = EXCLUDED.success_rate,
			state = EXCLUDED.state,
			promoted_at = EXCLUDED.promoted_at,
			last_used_at = EXCLUDED.last_used_at`,
		b.TemplateID, b.EntityID, b.EntityName, b.DiscoveredDomains, channels,
		patterns, b.ConfidenceAdjustment, b.UsageCount, b.SuccessRate, b.State,
		b.PromotedAt, b.LastUsedAt)

	return err
}

// List returns every binding for a template.
func (s *BindingStore) List(ctx context.Context, templateID string) ([]*domain.RuntimeBinding, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT template_id, entity_id, entity_name, discovered_domains, discovered_channels,
		       enriched_patterns, confidence_adjustment, usage_count, success_rate, state,
		       promoted_at, last_used_at
		FROM bindings
		WHERE template_id = $1`,
		templateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.RuntimeBinding

	for rows.Next() {
		b, err := scanBinding(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, b)
	}

	return out, rows.Err()
}

func scanBinding(row pgx.Row) (*domain.RuntimeBinding, error) {
	var (
		b        domain.RuntimeBinding
		channels []byte
		patterns []byte
	)

	if err := row.Scan(&b.TemplateID, &b.EntityID, &b.EntityName, &b.DiscoveredDomains, &channels,
		&patterns, &b.ConfidenceAdjustment, &b.UsageCount, &b.SuccessRate, &b.State,
		&b.PromotedAt, &b.LastUsedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(channels, &b.DiscoveredChannels); err != nil {
		return nil, fmt.Errorf("unmarshal channels: %w", err)
	}

	if err := json.Unmarshal(patterns, &b.EnrichedPatterns); err != nil {
		return nil, fmt.Errorf("unmarshal patterns: %w", err)
	}

	return &b, nil
}
