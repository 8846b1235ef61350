// Package embeddings provides text embedding generation for episode
// clustering. Episode descriptions are embedded once at write time and
// compared by cosine similarity during cluster compression.
package embeddings

import (
	"context"
	"fmt"
	"math"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	cerrors "github.com/KieranMcFarlane/panther-chat-sub003/internal/core/errors"
)

// DefaultDimensions matches the pgvector column width in the episode store.
const DefaultDimensions = 1536

const rateLimiterBurst = 5

// Client defines the interface for embedding operations.
type Client interface {
	// GetEmbedding generates an embedding for the given text.
	GetEmbedding(ctx context.Context, text string) ([]float32, error)
}

// OpenAIClient generates embeddings through the OpenAI embeddings API.
type OpenAIClient struct {
	client      *openai.Client
	model       string
	dimensions  int
	rateLimiter *rate.Limiter
}

// Config holds configuration for the OpenAI embedding client.
type Config struct {
	APIKey     string
	Model      string
	Dimensions int
	RateLimit  int
}

// NewOpenAIClient creates an embedding client with defaults applied.
func NewOpenAIClient(cfg Config) *OpenAIClient {
	if cfg.Model == "" {
		cfg.Model = string(openai.SmallEmbedding3)
	}

	if cfg.Dimensions == 0 {
		cfg.Dimensions = DefaultDimensions
	}

	if cfg.RateLimit == 0 {
		cfg.RateLimit = 1
	}

	return &OpenAIClient{
		client:      openai.NewClient(cfg.APIKey),
		model:       cfg.Model,
		dimensions:  cfg.Dimensions,
		rateLimiter: rate.NewLimiter(rate.Limit(float64(cfg.RateLimit)), rateLimiterBurst),
	}
}

// GetEmbedding generates an embedding for the given text.
func (c *OpenAIClient) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model:      openai.EmbeddingModel(c.model),
		Input:      []string{text},
		Dimensions: c.dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding: %w", err)
	}

	if len(resp.Data) == 0 {
		return nil, cerrors.ErrEmptyResponse
	}

	return resp.Data[0].Embedding, nil
}

// CosineSimilarity computes the cosine similarity of two vectors. Mismatched
// or empty vectors yield 0.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64

	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
