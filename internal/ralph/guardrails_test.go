package ralph

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/KieranMcFarlane/panther-chat-sub003/internal/core/domain"
)

func TestDamping(t *testing.T) {
	tests := []struct {
		name       string
		confidence float64
		ceiling    float64
		want       float64
	}{
		{name: "at_zero", confidence: 0, ceiling: 0.95, want: 1.0},
		{name: "midway", confidence: 0.475, ceiling: 0.95, want: 0.75},
		{name: "near_ceiling_clamps_to_floor", confidence: 0.93, ceiling: 0.95, want: 0.1},
		{name: "at_ceiling", confidence: 0.95, ceiling: 0.95, want: 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, damping(tt.confidence, tt.ceiling), 1e-9)
		})
	}
}

func TestWeakAcceptCategoryMultiplier(t *testing.T) {
	stats := &domain.CategoryStats{}

	// First delta full, second 2/3, third 1/2.
	deltas := []float64{0.02, 0.02 * (1 / 1.5), 0.01}

	for i, want := range deltas {
		got := rawDeltaWeakAccept * categoryMultiplier(domain.DecisionWeakAccept, stats)
		assert.InDelta(t, want, got, 1e-9, "weak accept %d", i+1)
		stats.WeakAcceptCount++
	}
}

func TestCategoryMultiplierIgnoresOtherDecisions(t *testing.T) {
	stats := &domain.CategoryStats{WeakAcceptCount: 5}

	assert.InDelta(t, 1.0, categoryMultiplier(domain.DecisionAccept, stats), 1e-9)
}

func TestWeakAcceptDeltasStrictlyDecrease(t *testing.T) {
	stats := &domain.CategoryStats{}
	prev := 1.0

	for i := 0; i < 10; i++ {
		m := categoryMultiplier(domain.DecisionWeakAccept, stats)
		assert.Less(t, m, prev+1e-12, "multiplier must be non-increasing")

		if i > 0 {
			assert.Less(t, m, prev, "successive WEAK_ACCEPT deltas must strictly decrease")
		}

		prev = m
		stats.WeakAcceptCount++
	}
}

func TestNoveltySchedule(t *testing.T) {
	s := DefaultNoveltySchedule()

	tests := []struct {
		iteration int
		want      float64
	}{
		{1, 1.0}, {5, 1.0}, {6, 0.6}, {12, 0.6}, {13, 0.3}, {18, 0.3}, {19, 0}, {30, 0},
	}

	for _, tt := range tests {
		assert.InDelta(t, tt.want, s.Factor(tt.iteration), 1e-9, "iteration %d", tt.iteration)
	}
}

func TestFinalizeConfidenceWeakAcceptCeiling(t *testing.T) {
	state := domain.NewRalphState(domain.ConfidenceCeiling)
	state.CurrentConfidence = 0.88
	state.Category("rfp").WeakAcceptCount = 6

	// Zero ACCEPTs anywhere: capped at 0.70.
	assert.InDelta(t, 0.70, FinalizeConfidence(state), 1e-9)

	// A single ACCEPT lifts the cap.
	state.Category("rfp").AcceptCount = 1
	assert.InDelta(t, 0.88, FinalizeConfidence(state), 1e-9)
}

func TestFinalizeConfidenceClampsRange(t *testing.T) {
	state := domain.NewRalphState(domain.ConfidenceCeiling)
	state.Category("rfp").AcceptCount = 1

	state.CurrentConfidence = 1.2
	assert.InDelta(t, 0.95, FinalizeConfidence(state), 1e-9)

	state.CurrentConfidence = -0.3
	assert.InDelta(t, 0.05, FinalizeConfidence(state), 1e-9)
}
