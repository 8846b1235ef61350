package storage

import (
	"context"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/KieranMcFarlane/panther-chat-sub003/internal/core/domain"
)

// EpisodeStore persists append-only episodes with their description
// embeddings in a pgvector column.
type EpisodeStore struct {
	db *DB
}

// Put inserts one episode. Episodes are never updated.
func (s *EpisodeStore) Put(ctx context.Context, ep domain.Episode) error {
	var embedding any
	if len(ep.Embedding) > 0 {
		embedding = pgvector.NewVector(ep.Embedding)
	}

	_, err := s.db.Pool.Exec(ctx, `
		INSERT INTO episodes (id, entity_id, type, subtype, description, ts, confidence, source_refs, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		ep.ID, ep.EntityID, ep.Type, ep.Subtype, ep.Description, ep.Timestamp, ep.Confidence, ep.SourceRefs, embedding)

	return err
}

// Query returns the entity's episodes at or after since, oldest first.
func (s *EpisodeStore) Query(ctx context.Context, entityID string, since time.Time) ([]domain.Episode, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT id, entity_id, type, subtype, description, ts, confidence, source_refs, embedding
		FROM episodes
		WHERE entity_id = $1 AND ts >= $2
		ORDER BY ts`,
		entityID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Episode

	for rows.Next() {
		var (
			ep        domain.Episode
			embedding *pgvector.Vector
		)

		if err := rows.Scan(&ep.ID, &ep.EntityID, &ep.Type, &ep.Subtype, &ep.Description,
			&ep.Timestamp, &ep.Confidence, &ep.SourceRefs, &embedding); err != nil {
			return nil, err
		}

		if embedding != nil {
			ep.Embedding = embedding.Slice()
		}

		out = append(out, ep)
	}

	return out, rows.Err()
}

// PutClustered inserts one derived clustered-episode record.
func (s *EpisodeStore) PutClustered(ctx context.Context, ce domain.ClusteredEpisode) error {
	_, err := s.db.Pool.Exec(ctx, `
		INSERT INTO clustered_episodes (id, entity_id, episode_ids, summary, window_start, window_end, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ce.ID, ce.EntityID, ce.EpisodeIDs, ce.Summary, ce.WindowStart, ce.WindowEnd, ce.CreatedAt)

	return err
}
