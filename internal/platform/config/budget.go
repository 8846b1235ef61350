package config

import (
	"encoding/json"
	"fmt"
	"os"

	cerrors "github.com/KieranMcFarlane/panther-chat-sub003/internal/core/errors"
)

// Budget holds every exploration-budget knob. Loaded from
// exploration-budget.json; zero-valued fields fall back to defaults.
type Budget struct {
	MaxIterationsPerEntity    int     `json:"max_iterations_per_entity"`
	MaxIterationsPerCategory  int     `json:"max_iterations_per_category"`
	MaxCategories             int     `json:"max_categories"`
	CostCapUSD                float64 `json:"cost_cap_usd"`
	TimeLimitSeconds          int     `json:"time_limit_seconds"`
	ConfidenceThreshold       float64 `json:"confidence_threshold"`
	ConsecutiveHighConfidence int     `json:"consecutive_high_confidence"`
	EvidenceCountThreshold    int     `json:"evidence_count_threshold"`

	// Per-call cost coefficients used by RecordIteration.
	LLMCallCost        float64 `json:"llm_call_cost"`
	ValidationCallCost float64 `json:"validation_call_cost"`
	ScrapeCallCost     float64 `json:"scrape_call_cost"`

	// Novelty step boundaries are calibrated values and stay configurable.
	NoveltyFullUntil   int `json:"novelty_full_until"`
	NoveltyMediumUntil int `json:"novelty_medium_until"`
	NoveltyLowUntil    int `json:"novelty_low_until"`
}

// DefaultBudget returns the calibrated default knobs. The 26-iteration cap
// covers ~95% of observed saturation points (iterations 21-30) and yields
// ~86% cost savings against a fixed-150 baseline.
func DefaultBudget() Budget {
	return Budget{
		MaxIterationsPerEntity:    26,
		MaxIterationsPerCategory:  3,
		MaxCategories:             8,
		CostCapUSD:                0.50,
		TimeLimitSeconds:          300,
		ConfidenceThreshold:       0.85,
		ConsecutiveHighConfidence: 3,
		EvidenceCountThreshold:    5,
		LLMCallCost:               0.004,
		ValidationCallCost:        0.010,
		ScrapeCallCost:            0.001,
		NoveltyFullUntil:          5,
		NoveltyMediumUntil:        12,
		NoveltyLowUntil:           18,
	}
}

// LoadBudget reads the budget knob file. A missing file yields the defaults;
// an unreadable or invalid file is a startup failure.
func LoadBudget(path string) (Budget, error) {
	b := DefaultBudget()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return b, nil
		}

		return b, fmt.Errorf("read budget config: %w", err)
	}

	if err := json.Unmarshal(data, &b); err != nil {
		return b, fmt.Errorf("%w: parse %s: %v", cerrors.ErrConfigInvalid, path, err)
	}

	if err := b.Validate(); err != nil {
		return b, err
	}

	return b, nil
}

// Validate rejects non-positive caps and out-of-range thresholds.
func (b Budget) Validate() error {
	if b.MaxIterationsPerEntity <= 0 || b.MaxIterationsPerCategory <= 0 || b.MaxCategories <= 0 {
		return fmt.Errorf("%w: iteration caps must be positive", cerrors.ErrConfigInvalid)
	}

	if b.CostCapUSD <= 0 {
		return fmt.Errorf("%w: cost cap must be positive", cerrors.ErrConfigInvalid)
	}

	if b.TimeLimitSeconds <= 0 {
		return fmt.Errorf("%w: time limit must be positive", cerrors.ErrConfigInvalid)
	}

	if b.ConfidenceThreshold <= 0 || b.ConfidenceThreshold >= 1 {
		return fmt.Errorf("%w: confidence threshold must be in (0,1)", cerrors.ErrConfigInvalid)
	}

	if b.NoveltyFullUntil >= b.NoveltyMediumUntil || b.NoveltyMediumUntil >= b.NoveltyLowUntil {
		return fmt.Errorf("%w: novelty boundaries must be strictly increasing", cerrors.ErrConfigInvalid)
	}

	return nil
}
