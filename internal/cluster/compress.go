package cluster

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/KieranMcFarlane/panther-chat-sub003/internal/core/domain"
	"github.com/KieranMcFarlane/panther-chat-sub003/internal/core/embeddings"
	cerrors "github.com/KieranMcFarlane/panther-chat-sub003/internal/core/errors"
	"github.com/KieranMcFarlane/panther-chat-sub003/internal/core/ports"
)

const (
	// compressionWindow bounds how far apart two episodes may be and still
	// land in the same group.
	compressionWindow = 45 * 24 * time.Hour

	// defaultSimilarity is the cosine threshold for grouping.
	defaultSimilarity = 0.75
)

// Compressor groups similar episodes into derived ClusteredEpisode records.
// Originals are never mutated.
type Compressor struct {
	episodes   ports.EpisodeStore
	embedder   embeddings.Client
	clock      ports.Clock
	logger     *zerolog.Logger
	similarity float32
}

// NewCompressor creates an episode compressor with the default similarity
// threshold.
func NewCompressor(episodes ports.EpisodeStore, embedder embeddings.Client, clock ports.Clock, logger *zerolog.Logger) *Compressor {
	return &Compressor{
		episodes:   episodes,
		embedder:   embedder,
		clock:      clock,
		logger:     logger,
		similarity: defaultSimilarity,
	}
}

// Result reports what one compression run produced.
type Result struct {
	Original  int
	Clustered []domain.ClusteredEpisode
	Ratio     float64
	Ungrouped int
}

// Compress groups an entity's episodes from the last window by cosine
// similarity of their embedded descriptions and persists one derived record
// per group of two or more.
func (c *Compressor) Compress(ctx context.Context, entityID string) (Result, error) {
	since := c.clock.Now().Add(-compressionWindow)

	eps, err := c.episodes.Query(ctx, entityID, since)
	if err != nil {
		return Result{}, fmt.Errorf("%w: query episodes: %v", cerrors.ErrStoreFailure, err)
	}

	if len(eps) < 2 {
		return Result{Original: len(eps), Ratio: 1, Ungrouped: len(eps)}, nil
	}

	sort.Slice(eps, func(i, j int) bool { return eps[i].Timestamp.Before(eps[j].Timestamp) })

	for i := range eps {
		if len(eps[i].Embedding) > 0 {
			continue
		}

		vec, err := c.embedder.GetEmbedding(ctx, eps[i].Description)
		if err != nil {
			return Result{}, fmt.Errorf("embed episode %s: %w", eps[i].ID, err)
		}

		eps[i].Embedding = vec
	}

	groups := c.group(eps)

	result := Result{Original: len(eps)}

	for _, g := range groups {
		if len(g) < 2 {
			result.Ungrouped++

			continue
		}

		clustered := domain.ClusteredEpisode{
			ID:          uuid.NewString(),
			EntityID:    entityID,
			EpisodeIDs:  ids(g),
			Summary:     summarise(g),
			WindowStart: g[0].Timestamp,
			WindowEnd:   g[len(g)-1].Timestamp,
			CreatedAt:   c.clock.Now(),
		}

		if err := c.episodes.PutClustered(ctx, clustered); err != nil {
			return Result{}, fmt.Errorf("%w: put clustered episode: %v", cerrors.ErrStoreFailure, err)
		}

		result.Clustered = append(result.Clustered, clustered)
	}

	derived := len(result.Clustered) + result.Ungrouped
	result.Ratio = float64(result.Original) / float64(derived)

	c.logger.Info().
		Str("entity_id", entityID).
		Int("original", result.Original).
		Int("derived", derived).
		Float64("compression_ratio", result.Ratio).
		Msg("episode compression")

	return result, nil
}

// group assigns each episode to the first group whose seed is similar enough
// and within the window. Single-pass, order-stable.
func (c *Compressor) group(eps []domain.Episode) [][]domain.Episode {
	var groups [][]domain.Episode

next:
	for _, ep := range eps {
		for i, g := range groups {
			seed := g[0]
			if ep.Timestamp.Sub(seed.Timestamp) > compressionWindow {
				continue
			}

			if embeddings.CosineSimilarity(seed.Embedding, ep.Embedding) >= c.similarity {
				groups[i] = append(groups[i], ep)

				continue next
			}
		}

		groups = append(groups, []domain.Episode{ep})
	}

	return groups
}

func ids(g []domain.Episode) []string {
	out := make([]string, len(g))
	for i, ep := range g {
		out[i] = ep.ID
	}

	return out
}

// summarise joins distinct descriptions; the seed description leads.
func summarise(g []domain.Episode) string {
	seen := make(map[string]bool)

	var parts []string
	for _, ep := range g {
		d := strings.TrimSpace(ep.Description)
		if d == "" || seen[d] {
			continue
		}

		seen[d] = true
		parts = append(parts, d)
	}

	return strings.Join(parts, "; ")
}
