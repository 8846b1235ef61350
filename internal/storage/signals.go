package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/KieranMcFarlane/panther-chat-sub003/internal/core/domain"
)

// SignalStore persists validated signals and per-entity dossiers. Dossiers
// keep the full JSON envelope for downstream consumers.
type SignalStore struct {
	db *DB
}

// PutSignal inserts one validated signal.
func (s *SignalStore) PutSignal(ctx context.Context, sig domain.ValidatedSignal) error {
	_, err := s.db.Pool.Exec(ctx, `
		INSERT INTO signals (id, type, subtype, entity_id, confidence, validation_pass,
		                     first_seen, temporal_multiplier, primary_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		sig.ID, sig.Type, sig.Subtype, sig.EntityID, sig.Confidence, sig.ValidationPass,
		sig.FirstSeen, sig.TemporalMultiplier, sig.PrimaryReason)

	return err
}

// PutDossier upserts the entity's dossier envelope.
func (s *SignalStore) PutDossier(ctx context.Context, d *domain.Dossier) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal dossier: %w", err)
	}

	_, err = s.db.Pool.Exec(ctx, `
		INSERT INTO dossiers (entity_id, payload, completed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (entity_id) DO UPDATE SET
			payload = EXCLUDED.payload,
			completed_at = EXCLUDED.completed_at`,
		d.EntityID, payload, d.CompletedAt)

	return err
}
