package llm

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	cerrors "github.com/KieranMcFarlane/panther-chat-sub003/internal/core/errors"
)

const (
	openAIRateLimiterBurst = 5
	openAITemperature      = 0.1
	openAIMaxTokens        = 1024
)

// openAIProvider serves the cheap and mid tiers through the OpenAI chat API.
type openAIProvider struct {
	client      *openai.Client
	model       string
	tier        Tier
	logger      *zerolog.Logger
	rateLimiter *rate.Limiter
	apiKey      string
}

// NewOpenAIProvider creates a provider bound to one model and tier.
func NewOpenAIProvider(apiKey, model string, tier Tier, rps int, logger *zerolog.Logger) Provider {
	if rps <= 0 {
		rps = 1
	}

	return &openAIProvider{
		client:      openai.NewClient(apiKey),
		model:       model,
		tier:        tier,
		logger:      logger,
		rateLimiter: rate.NewLimiter(rate.Limit(float64(rps)), openAIRateLimiterBurst),
		apiKey:      apiKey,
	}
}

func (p *openAIProvider) Tier() Tier { return p.tier }

func (p *openAIProvider) IsAvailable() bool { return p.apiKey != "" }

func (p *openAIProvider) Complete(ctx context.Context, prompt string) (Response, error) {
	if err := p.rateLimiter.Wait(ctx); err != nil {
		return Response{}, fmt.Errorf("rate limiter: %w", err)
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		Temperature: openAITemperature,
		MaxTokens:   openAIMaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return Response{}, fmt.Errorf("openai completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return Response{}, cerrors.ErrEmptyResponse
	}

	return Response{
		Text:         strings.TrimSpace(resp.Choices[0].Message.Content),
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		CostUSD:      estimateCost(p.model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens),
		ModelID:      p.model,
	}, nil
}
