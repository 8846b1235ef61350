package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	cerrors "github.com/KieranMcFarlane/panther-chat-sub003/internal/core/errors"
)

const (
	anthropicRateLimiterBurst = 5
	anthropicMaxTokens        = 1024
)

// anthropicProvider serves the expensive tier: lock-in validation of ACCEPT
// verdicts near high confidence.
type anthropicProvider struct {
	client      anthropic.Client
	model       string
	logger      *zerolog.Logger
	rateLimiter *rate.Limiter
	apiKey      string
}

// NewAnthropicProvider creates the expensive-tier provider.
func NewAnthropicProvider(apiKey, model string, rps int, logger *zerolog.Logger) Provider {
	if rps <= 0 {
		rps = 1
	}

	return &anthropicProvider{
		client:      anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:       model,
		logger:      logger,
		rateLimiter: rate.NewLimiter(rate.Limit(float64(rps)), anthropicRateLimiterBurst),
		apiKey:      apiKey,
	}
}

func (p *anthropicProvider) Tier() Tier { return TierExpensive }

func (p *anthropicProvider) IsAvailable() bool { return p.apiKey != "" }

func (p *anthropicProvider) Complete(ctx context.Context, prompt string) (Response, error) {
	if err := p.rateLimiter.Wait(ctx); err != nil {
		return Response{}, fmt.Errorf("rate limiter: %w", err)
	}

	resp, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: anthropicMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return Response{}, fmt.Errorf("anthropic completion: %w", err)
	}

	var sb strings.Builder

	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return Response{}, cerrors.ErrEmptyResponse
	}

	return Response{
		Text:         text,
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
		CostUSD:      estimateCost(p.model, int(resp.Usage.InputTokens), int(resp.Usage.OutputTokens)),
		ModelID:      p.model,
	}, nil
}
