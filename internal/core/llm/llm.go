// Package llm provides the judge client used by the Ralph loop: a three-tier
// provider cascade (cheap, mid, expensive) over chat-completion APIs, with
// per-call cost accounting and strict-JSON response parsing.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	cerrors "github.com/KieranMcFarlane/panther-chat-sub003/internal/core/errors"
)

// Tier identifies a judge cost tier.
type Tier string

// Judge tiers, cheapest first.
const (
	TierCheap     Tier = "cheap"
	TierMid       Tier = "mid"
	TierExpensive Tier = "expensive"
)

// Response is the raw outcome of one completion call.
type Response struct {
	Text         string
	InputTokens  int
	OutputTokens int
	CostUSD      float64
	ModelID      string
}

// Judgement is the parsed judge verdict for one artifact.
type Judgement struct {
	Decision        string   `json:"decision"`
	ConfidenceDelta float64  `json:"confidence_delta"`
	Justification   string   `json:"justification"`
	EvidenceFound   []string `json:"evidence_found"`
	EvidenceType    string   `json:"evidence_type,omitempty"`
	Confidence      float64  `json:"confidence"`
}

// ConfidenceValidation is the pass-2 adjudication record for signal promotion.
type ConfidenceValidation struct {
	Original             float64 `json:"original"`
	Validated            float64 `json:"validated"`
	Adjustment           float64 `json:"adjustment"`
	Rationale            string  `json:"rationale"`
	RequiresManualReview bool    `json:"requires_manual_review"`
}

// Judge is the collaborator contract consumed by the Ralph loop.
type Judge interface {
	// Judge classifies content against a hypothesis. currentConfidence
	// drives tier promotion (the lock-in validation near high confidence).
	Judge(ctx context.Context, prompt string, currentConfidence float64) (Judgement, Response, error)

	// ValidateConfidence runs the pass-2 LLM adjudication on an aggregate
	// candidate confidence.
	ValidateConfidence(ctx context.Context, prompt string, original float64) (ConfidenceValidation, Response, error)
}

// parseJudgement extracts and decodes the JSON verdict from raw model text.
func parseJudgement(text string) (Judgement, error) {
	var j Judgement

	raw := ExtractJSON(text)
	if err := json.Unmarshal([]byte(raw), &j); err != nil {
		return j, fmt.Errorf("%w: %v", cerrors.ErrJudgeParse, err)
	}

	j.Decision = strings.ToUpper(strings.TrimSpace(j.Decision))

	return j, nil
}

// ExtractJSON pulls the first JSON object or array out of model text that may
// carry prose or markdown fences around it.
func ExtractJSON(text string) string {
	// Look for JSON object
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")

	if start != -1 && end != -1 && end > start {
		return text[start : end+1]
	}

	// Look for JSON array
	start = strings.Index(text, "[")
	end = strings.LastIndex(text, "]")

	if start != -1 && end != -1 && end > start {
		return text[start : end+1]
	}

	return text
}
