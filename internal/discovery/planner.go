package discovery

import (
	"strings"

	"github.com/KieranMcFarlane/panther-chat-sub003/internal/core/domain"
)

// resolveTarget is the confidence a hypothesis aims for; the gap to it
// drives expected information gain.
const resolveTarget = 0.85

// hopPriors weight hop types by how often they historically carry direct
// procurement evidence.
var hopPriors = map[string]float64{
	domain.HopRFPPage:      1.0,
	domain.HopCareersPage:  0.8,
	domain.HopJobsBoard:    0.75,
	domain.HopPressRelease: 0.7,
	domain.HopPartnerSite:  0.6,
	domain.HopOfficialNews: 0.5,
}

// channelHops maps binding/cluster channel names onto hop types.
var channelHops = map[string]string{
	"rfp":      domain.HopRFPPage,
	"careers":  domain.HopCareersPage,
	"jobs":     domain.HopJobsBoard,
	"press":    domain.HopPressRelease,
	"partner":  domain.HopPartnerSite,
	"news":     domain.HopOfficialNews,
	"official": domain.HopOfficialNews,
}

// Plan is one iteration's target: which hypothesis to test and where.
type Plan struct {
	Hypothesis   *domain.Hypothesis
	HopType      string
	Channel      string
	FromShortcut bool

	// ReplayURL set means a promoted binding supplies the URL directly and
	// search is skipped.
	ReplayURL string
}

// planEIG picks the (hypothesis, hop_type) pair with the highest expected
// information gain:
//
//	EIG = confidence_gap * category_multiplier * hop_type_prior
//
// Saturated categories are excluded. Ties break toward the category with the
// fewest iterations so exploration spreads.
func planEIG(hypotheses []*domain.Hypothesis, state *domain.RalphState) (Plan, bool) {
	var (
		best     Plan
		bestEIG  = -1.0
		bestIter = 0
		found    bool
	)

	for _, h := range hypotheses {
		if h.State != domain.HypothesisActive {
			continue
		}

		stats := state.Category(h.Category)
		if stats.ConsecutiveRejects >= 3 {
			continue
		}

		gap := resolveTarget - h.Confidence
		if gap < 0 {
			gap = 0
		}

		multiplier := 1.0 / (1.0 + 0.5*float64(stats.WeakAcceptCount))

		for _, hop := range domain.HopTypes {
			eig := gap * multiplier * hopPriors[hop]

			switch {
			case eig > bestEIG,
				eig == bestEIG && stats.TotalIterations < bestIter:
				best = Plan{Hypothesis: h, HopType: hop, Channel: hopChannel(hop)}
				bestEIG = eig
				bestIter = stats.TotalIterations
				found = true
			}
		}
	}

	return best, found
}

// hopChannel inverts channelHops for recording discovered channels.
func hopChannel(hopType string) string {
	switch hopType {
	case domain.HopRFPPage:
		return "rfp"
	case domain.HopCareersPage:
		return "careers"
	case domain.HopJobsBoard:
		return "jobs"
	case domain.HopPressRelease:
		return "press"
	case domain.HopPartnerSite:
		return "partner"
	default:
		return "news"
	}
}

// buildQuery forms the search query for a plan. Quoted entity name plus the
// two strongest hop keywords plus the hypothesis category.
func buildQuery(entity domain.Entity, plan Plan) string {
	parts := []string{`"` + entity.Name + `"`}

	if kws := hopKeywords[plan.HopType]; len(kws) > 0 {
		n := 2
		if len(kws) < n {
			n = len(kws)
		}

		parts = append(parts, kws[:n]...)
	}

	if plan.Hypothesis != nil && plan.Hypothesis.Category != "" {
		parts = append(parts, plan.Hypothesis.Category)
	}

	return strings.Join(parts, " ")
}
