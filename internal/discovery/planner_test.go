package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KieranMcFarlane/panther-chat-sub003/internal/core/domain"
)

func activeHypothesis(id, category string, confidence float64) *domain.Hypothesis {
	return &domain.Hypothesis{
		HypothesisID: id,
		EntityID:     "entity-1",
		Category:     category,
		Confidence:   confidence,
		State:        domain.HypothesisActive,
		Statement:    "statement " + id,
	}
}

func TestPlanEIGPrefersLargestGap(t *testing.T) {
	hyps := []*domain.Hypothesis{
		activeHypothesis("h1", "rfp publication", 0.80),
		activeHypothesis("h2", "digital hiring", 0.50),
	}

	state := domain.NewRalphState(domain.ConfidenceCeiling)

	plan, found := planEIG(hyps, state)
	require.True(t, found)
	assert.Equal(t, "h2", plan.Hypothesis.HypothesisID)
	assert.Equal(t, domain.HopRFPPage, plan.HopType, "highest-prior hop wins")
}

func TestPlanEIGSkipsNonActive(t *testing.T) {
	resolved := activeHypothesis("h1", "rfp publication", 0.40)
	resolved.State = domain.HypothesisResolved

	hyps := []*domain.Hypothesis{resolved, activeHypothesis("h2", "digital hiring", 0.70)}

	plan, found := planEIG(hyps, domain.NewRalphState(domain.ConfidenceCeiling))
	require.True(t, found)
	assert.Equal(t, "h2", plan.Hypothesis.HypothesisID)
}

func TestPlanEIGSkipsSaturatedCategories(t *testing.T) {
	hyps := []*domain.Hypothesis{
		activeHypothesis("h1", "rfp publication", 0.50),
		activeHypothesis("h2", "digital hiring", 0.60),
	}

	state := domain.NewRalphState(domain.ConfidenceCeiling)
	state.Category("rfp publication").ConsecutiveRejects = 3

	plan, found := planEIG(hyps, state)
	require.True(t, found)
	assert.Equal(t, "h2", plan.Hypothesis.HypothesisID)
}

func TestPlanEIGNoneWhenAllSaturated(t *testing.T) {
	hyps := []*domain.Hypothesis{activeHypothesis("h1", "rfp publication", 0.50)}

	state := domain.NewRalphState(domain.ConfidenceCeiling)
	state.Category("rfp publication").ConsecutiveRejects = 3

	_, found := planEIG(hyps, state)
	assert.False(t, found)
}

func TestPlanEIGWeakAcceptsShrinkCategory(t *testing.T) {
	hyps := []*domain.Hypothesis{
		activeHypothesis("h1", "rfp publication", 0.50),
		activeHypothesis("h2", "digital hiring", 0.50),
	}

	state := domain.NewRalphState(domain.ConfidenceCeiling)
	state.Category("rfp publication").WeakAcceptCount = 4

	plan, found := planEIG(hyps, state)
	require.True(t, found)
	assert.Equal(t, "h2", plan.Hypothesis.HypothesisID)
}

func TestBuildQueryShape(t *testing.T) {
	entity := domain.Entity{Name: "FC Example"}
	plan := Plan{Hypothesis: activeHypothesis("h1", "rfp publication", 0.5), HopType: domain.HopRFPPage}

	got := buildQuery(entity, plan)

	assert.Equal(t, `"FC Example" tender procurement rfp publication`, got)
}

func TestHopChannelRoundTrip(t *testing.T) {
	for channel, hop := range channelHops {
		if channel == "official" {
			continue
		}

		assert.Equal(t, channel, hopChannel(hop), "hop %s", hop)
	}
}
