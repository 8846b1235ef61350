// Package ralph implements the judge-and-update cycle at the heart of the
// discovery engine: it turns raw scraped content into a typed decision with
// a confidence delta, governed by three guardrails.
package ralph

import (
	"github.com/KieranMcFarlane/panther-chat-sub003/internal/core/domain"
)

// Raw confidence deltas per decision label, before multipliers.
const (
	rawDeltaAccept     = 0.06
	rawDeltaWeakAccept = 0.02
)

// Guardrail constants.
const (
	// weakAcceptCeiling caps the final confidence of runs with zero ACCEPTs
	// (guardrail 1). Capability-only runs are non-actionable by construction.
	weakAcceptCeiling = 0.70

	// dampingFloor keeps the damping factor from vanishing near the ceiling.
	dampingFloor = 0.1

	// weakAcceptDecay drives the per-category WEAK_ACCEPT multiplier
	// (guardrail 3): 1 / (1 + decay * weak_accept_count).
	weakAcceptDecay = 0.5
)

// Novelty factors by run phase.
const (
	noveltyFull   = 1.0
	noveltyMedium = 0.6
	noveltyLow    = 0.3
)

// NoveltySchedule holds the calibrated step boundaries. They stay
// configurable; the defaults are 5/12/18.
type NoveltySchedule struct {
	FullUntil   int
	MediumUntil int
	LowUntil    int
}

// DefaultNoveltySchedule returns the calibrated boundaries.
func DefaultNoveltySchedule() NoveltySchedule {
	return NoveltySchedule{FullUntil: 5, MediumUntil: 12, LowUntil: 18}
}

// Factor returns the novelty multiplier for a 1-based run iteration.
// Beyond LowUntil the factor is zero and the step yields NO_PROGRESS.
func (s NoveltySchedule) Factor(iteration int) float64 {
	switch {
	case iteration <= s.FullUntil:
		return noveltyFull
	case iteration <= s.MediumUntil:
		return noveltyMedium
	case iteration <= s.LowUntil:
		return noveltyLow
	default:
		return 0
	}
}

// rawDelta maps a decision label to its pre-multiplier delta.
func rawDelta(decision string) float64 {
	switch decision {
	case domain.DecisionAccept:
		return rawDeltaAccept
	case domain.DecisionWeakAccept:
		return rawDeltaWeakAccept
	default:
		return 0
	}
}

// damping is guardrail 2: max(0.1, 1 - (confidence/ceiling)^2). It prevents
// runaway accumulation near the ceiling.
func damping(currentConfidence, ceiling float64) float64 {
	if ceiling <= 0 {
		return dampingFloor
	}

	ratio := currentConfidence / ceiling

	d := 1 - ratio*ratio
	if d < dampingFloor {
		return dampingFloor
	}

	return d
}

// categoryMultiplier is guardrail 3: WEAK_ACCEPT deltas decay as a category
// accumulates WEAK_ACCEPTs. The first gets the full delta, the second 2/3,
// the third 1/2, and so on. Other decisions are unaffected.
func categoryMultiplier(decision string, stats *domain.CategoryStats) float64 {
	if decision != domain.DecisionWeakAccept {
		return 1
	}

	return 1 / (1 + weakAcceptDecay*float64(stats.WeakAcceptCount))
}

// FinalizeConfidence applies guardrail 1 after run completion: with zero
// ACCEPTs across all categories the final confidence is capped at 0.70.
func FinalizeConfidence(state *domain.RalphState) float64 {
	final := domain.ClampConfidence(state.CurrentConfidence)

	if state.TotalAccepts() == 0 && final > weakAcceptCeiling {
		final = weakAcceptCeiling
	}

	return final
}
