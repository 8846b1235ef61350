package ralph

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/KieranMcFarlane/panther-chat-sub003/internal/core/domain"
	"github.com/KieranMcFarlane/panther-chat-sub003/internal/core/llm"
)

// Promotion minima for pass 1.
const (
	minEvidenceCount          = 3
	minAggregateConfidence    = 0.7
	defaultTemporalMultiplier = 1.0
)

// EvidenceVerifier annotates evidence items in place; see internal/verify.
type EvidenceVerifier interface {
	VerifyAll(ctx context.Context, items []domain.Evidence) []domain.Evidence
}

// Validator promotes signal candidates to validated signals through the
// three-pass gate: minima, verification, then LLM adjudication.
type Validator struct {
	judge    llm.Judge
	verifier EvidenceVerifier
	clock    func() time.Time
	logger   *zerolog.Logger
}

// NewValidator builds the promotion gate.
func NewValidator(judge llm.Judge, verifier EvidenceVerifier, logger *zerolog.Logger) *Validator {
	return &Validator{
		judge:    judge,
		verifier: verifier,
		clock:    time.Now,
		logger:   logger,
	}
}

// ValidationResult reports what happened to a candidate, including the
// usage consumed by the adjudication call.
type ValidationResult struct {
	Signal     *domain.ValidatedSignal
	Validation llm.ConfidenceValidation
	Usage      llm.Response
	PassFailed int
	Reason     string
}

// Validate runs the three passes over a candidate. A nil Signal with
// PassFailed set means the candidate was rejected at that pass.
func (v *Validator) Validate(ctx context.Context, candidate domain.SignalCandidate) (ValidationResult, error) {
	// Pass 1: minima on the raw candidate.
	if reason, ok := checkMinima(candidate.Evidence, candidate.RawConfidence); !ok {
		return ValidationResult{PassFailed: 1, Reason: reason}, nil
	}

	// Pass 1.5: discard unverified evidence, then re-check the minima.
	verified := keepVerified(v.verifier.VerifyAll(ctx, candidate.Evidence))
	if reason, ok := checkMinima(verified, candidate.RawConfidence); !ok {
		return ValidationResult{PassFailed: 1, Reason: "post-verification: " + reason}, nil
	}

	// Pass 2: LLM adjudication of the aggregate confidence.
	validation, usage, err := v.judge.ValidateConfidence(ctx, v.adjudicationPrompt(candidate, verified), candidate.RawConfidence)
	if err != nil {
		return ValidationResult{Usage: usage, PassFailed: 2, Reason: "adjudication failed"}, err
	}

	if validation.RequiresManualReview {
		return ValidationResult{Validation: validation, Usage: usage, PassFailed: 2, Reason: "manual review required"}, nil
	}

	multiplier := candidate.TemporalMultiplier
	if multiplier == 0 {
		multiplier = defaultTemporalMultiplier
	}

	signal := &domain.ValidatedSignal{
		ID:                 uuid.NewString(),
		Type:               "procurement_signal",
		Subtype:            candidate.Category,
		EntityID:           candidate.EntityID,
		Confidence:         validation.Validated,
		ValidationPass:     3,
		FirstSeen:          candidate.DiscoveredAt,
		TemporalMultiplier: multiplier,
		PrimaryReason:      validation.Rationale,
	}

	v.logger.Info().
		Str("entity_id", candidate.EntityID).
		Str("category", candidate.Category).
		Float64("confidence", signal.Confidence).
		Msg("signal validated")

	return ValidationResult{Signal: signal, Validation: validation, Usage: usage}, nil
}

func checkMinima(evidence []domain.Evidence, confidence float64) (string, bool) {
	if len(evidence) < minEvidenceCount {
		return fmt.Sprintf("evidence count %d below minimum %d", len(evidence), minEvidenceCount), false
	}

	if confidence < minAggregateConfidence {
		return fmt.Sprintf("aggregate confidence %.2f below minimum %.2f", confidence, minAggregateConfidence), false
	}

	return "", true
}

func keepVerified(evidence []domain.Evidence) []domain.Evidence {
	kept := make([]domain.Evidence, 0, len(evidence))

	for _, ev := range evidence {
		if ev.Verified {
			kept = append(kept, ev)
		}
	}

	return kept
}

// adjudicationPrompt asks the judge for a bounded confidence adjustment in
// strict JSON.
func (v *Validator) adjudicationPrompt(candidate domain.SignalCandidate, evidence []domain.Evidence) string {
	type promptEvidence struct {
		Text        string  `json:"text"`
		URL         string  `json:"url"`
		Credibility float64 `json:"credibility"`
	}

	items := make([]promptEvidence, 0, len(evidence))
	for _, ev := range evidence {
		items = append(items, promptEvidence{Text: ev.ExtractedText, URL: ev.SourceURL, Credibility: ev.CredibilityScore})
	}

	encoded, _ := json.Marshal(items) //nolint:errcheck // plain structs cannot fail to marshal

	return fmt.Sprintf(`You are validating a procurement signal candidate. Return STRICT JSON ONLY.

Category: %s
Aggregate confidence: %.2f
Evidence items: %s

Assess whether the evidence jointly supports a concrete procurement signal for this category.
Return a single JSON object:
{"adjustment": number in [-0.25, 0.25], "rationale": string, "requires_manual_review": bool}`,
		candidate.Category, candidate.RawConfidence, string(encoded))
}
