package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/KieranMcFarlane/panther-chat-sub003/internal/core/domain"
	cerrors "github.com/KieranMcFarlane/panther-chat-sub003/internal/core/errors"
	"github.com/KieranMcFarlane/panther-chat-sub003/internal/platform/observability"
)

const (
	// lockInThreshold is the current-confidence floor above which an ACCEPT
	// is re-validated by the expensive tier.
	lockInThreshold = 0.70

	// weakAcceptConfidenceFloor promotes low-confidence WEAK_ACCEPTs from
	// the cheap tier to the mid tier.
	weakAcceptConfidenceFloor = 0.5

	// maxValidationAdjustment bounds the pass-2 adjustment magnitude.
	maxValidationAdjustment = 0.25
)

// Cascade routes judge calls through the cheap -> mid -> expensive tiers.
// Every call's cost is reported back to the caller regardless of outcome.
type Cascade struct {
	tiers  *tierSet
	logger *zerolog.Logger
}

var _ Judge = (*Cascade)(nil)

// NewCascade builds a cascade over the given providers. Missing tiers are
// skipped during escalation.
func NewCascade(logger *zerolog.Logger, providers ...Provider) *Cascade {
	set := newTierSet()
	for _, p := range providers {
		set.register(p)
	}

	return &Cascade{tiers: set, logger: logger}
}

// Judge classifies content against a hypothesis. The cheap tier is tried
// first; an unparseable verdict or a low-confidence WEAK_ACCEPT escalates to
// the mid tier. ACCEPT verdicts at high current confidence are re-validated
// by the expensive tier (lock-in).
func (c *Cascade) Judge(ctx context.Context, prompt string, currentConfidence float64) (Judgement, Response, error) {
	var total Response

	judgement, err := c.judgeAtTier(ctx, TierCheap, prompt, &total)

	escalate := err != nil ||
		(judgement.Decision == domain.DecisionWeakAccept && judgement.Confidence < weakAcceptConfidenceFloor)
	if escalate {
		// The cheap verdict, when it exists, survives a mid-tier outage.
		if midJudgement, midErr := c.judgeAtTier(ctx, TierMid, prompt, &total); midErr == nil {
			judgement, err = midJudgement, nil
		}

		if err != nil {
			return Judgement{}, total, fmt.Errorf("judge cascade: %w", err)
		}
	}

	if judgement.Decision == domain.DecisionAccept && currentConfidence >= lockInThreshold {
		lockIn, lockErr := c.judgeAtTier(ctx, TierExpensive, prompt, &total)
		if lockErr == nil {
			judgement = lockIn
		} else if c.logger != nil {
			c.logger.Warn().Err(lockErr).Msg("lock-in validation unavailable, keeping lower-tier verdict")
		}
	}

	if !domain.ValidDecision(judgement.Decision) {
		return Judgement{}, total, fmt.Errorf("%w: label %q", cerrors.ErrJudgeParse, judgement.Decision)
	}

	return judgement, total, nil
}

// judgeAtTier runs one tier and accumulates its usage into total.
func (c *Cascade) judgeAtTier(ctx context.Context, tier Tier, prompt string, total *Response) (Judgement, error) {
	resp, err := c.completeAtTier(ctx, tier, prompt, total)
	if err != nil {
		return Judgement{}, err
	}

	judgement, err := parseJudgement(resp.Text)
	if err != nil {
		return Judgement{}, err
	}

	if !domain.ValidDecision(judgement.Decision) {
		return Judgement{}, fmt.Errorf("%w: label %q", cerrors.ErrJudgeParse, judgement.Decision)
	}

	return judgement, nil
}

// completeAtTier performs the raw completion call with breaker and metrics.
func (c *Cascade) completeAtTier(ctx context.Context, tier Tier, prompt string, total *Response) (Response, error) {
	provider, brk, err := c.tiers.get(tier)
	if err != nil {
		return Response{}, fmt.Errorf("tier %s: %w", tier, err)
	}

	start := time.Now()

	resp, err := provider.Complete(ctx, prompt)

	observability.LLMRequestDuration.WithLabelValues(string(tier), resp.ModelID).Observe(time.Since(start).Seconds())

	total.InputTokens += resp.InputTokens
	total.OutputTokens += resp.OutputTokens
	total.CostUSD += resp.CostUSD

	if resp.ModelID != "" {
		total.ModelID = resp.ModelID
	}

	if err != nil {
		brk.recordFailure()

		return Response{}, fmt.Errorf("tier %s: %w", tier, err)
	}

	brk.recordSuccess()
	observability.LLMTokensTotal.WithLabelValues(string(tier), "input").Add(float64(resp.InputTokens))
	observability.LLMTokensTotal.WithLabelValues(string(tier), "output").Add(float64(resp.OutputTokens))
	observability.LLMCostUSD.WithLabelValues(string(tier)).Add(resp.CostUSD)

	return resp, nil
}

// ValidateConfidence runs the pass-2 adjudication on the mid tier, falling
// back to the expensive tier. The adjustment magnitude is bounded to 0.25.
func (c *Cascade) ValidateConfidence(ctx context.Context, prompt string, original float64) (ConfidenceValidation, Response, error) {
	var total Response

	resp, err := c.completeAtTier(ctx, TierMid, prompt, &total)
	if err != nil {
		resp, err = c.completeAtTier(ctx, TierExpensive, prompt, &total)
		if err != nil {
			return ConfidenceValidation{}, total, fmt.Errorf("confidence validation: %w", err)
		}
	}

	var v ConfidenceValidation
	if err := json.Unmarshal([]byte(ExtractJSON(resp.Text)), &v); err != nil {
		return ConfidenceValidation{}, total, fmt.Errorf("%w: %v", cerrors.ErrJudgeParse, err)
	}

	v.Original = original

	if v.Adjustment > maxValidationAdjustment {
		v.Adjustment = maxValidationAdjustment
	}

	if v.Adjustment < -maxValidationAdjustment {
		v.Adjustment = -maxValidationAdjustment
	}

	v.Validated = domain.ClampConfidence(original + v.Adjustment)

	return v, total, nil
}
