package ralph

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/KieranMcFarlane/panther-chat-sub003/internal/core/domain"
	cerrors "github.com/KieranMcFarlane/panther-chat-sub003/internal/core/errors"
	"github.com/KieranMcFarlane/panther-chat-sub003/internal/core/llm"
	"github.com/KieranMcFarlane/panther-chat-sub003/internal/platform/observability"
)

// saturationLimit is the consecutive REJECT/NO_PROGRESS count that marks a
// category saturated.
const saturationLimit = 3

// Input carries everything the loop needs for one judge-and-update cycle.
type Input struct {
	Prompt     string
	SourceURL  string
	Hypothesis *domain.Hypothesis
	HopType    string
	Category   string
}

// Outcome is the loop's result for one iteration, including the usage the
// orchestrator charges back to the budget controller.
type Outcome struct {
	Decision domain.RalphDecision
	Usage    llm.Response
	LLMCalls int
}

// Loop applies the judge cascade to scraped content and updates the run
// state under the three confidence guardrails.
type Loop struct {
	judge    llm.Judge
	novelty  NoveltySchedule
	clock    func() time.Time
	logger   *zerolog.Logger
}

// NewLoop builds a loop over a judge. A zero NoveltySchedule gets defaults.
func NewLoop(judge llm.Judge, novelty NoveltySchedule, logger *zerolog.Logger) *Loop {
	if novelty.LowUntil == 0 {
		novelty = DefaultNoveltySchedule()
	}

	return &Loop{
		judge:   judge,
		novelty: novelty,
		clock:   time.Now,
		logger:  logger,
	}
}

// Run executes one judge-and-update cycle against the run state. The state
// is mutated: category stats, confidence, iteration count, and the evidence
// pool all advance in iteration order.
func (l *Loop) Run(ctx context.Context, in Input, state *domain.RalphState) Outcome {
	stats := state.Category(in.Category)

	// A saturated category short-circuits without a judge call. The
	// short-circuit is excluded from the novelty counter.
	if stats.ConsecutiveRejects >= saturationLimit {
		stats.TotalIterations++
		stats.SaturatedCount++
		stats.LastDecision = domain.DecisionSaturated

		observability.DecisionsTotal.WithLabelValues(domain.DecisionSaturated).Inc()

		return Outcome{Decision: domain.RalphDecision{
			Decision:          domain.DecisionSaturated,
			Justification:     "category saturated after " + in.Category + " yielded no new information",
			CategorySaturated: true,
		}}
	}

	iteration := state.IterationsCompleted + 1

	noveltyFactor := l.novelty.Factor(iteration)
	if noveltyFactor == 0 {
		return l.apply(in, state, stats, iteration, domain.RalphDecision{
			Decision:      domain.DecisionNoProgress,
			Justification: "novelty exhausted for this run",
		}, Outcome{})
	}

	judgement, usage, err := l.judge.Judge(ctx, in.Prompt, state.CurrentConfidence)
	out := Outcome{Usage: usage, LLMCalls: 1}

	if err != nil {
		// Parse failures and transient judge outages are fatal for the
		// iteration only; cost is still charged.
		l.logger.Warn().Err(err).Str("category", in.Category).Msg("judge failed, downgrading iteration")

		decision := domain.RalphDecision{Decision: domain.DecisionNoProgress, Justification: errToReason(err)}

		return l.apply(in, state, stats, iteration, decision, out)
	}

	decision := l.postProcess(in, state, judgement, noveltyFactor, stats)

	return l.apply(in, state, stats, iteration, decision, out)
}

// postProcess maps the judgement to a decision with deltas, enforcing
// duplicate REJECT and the evidence-bearing-justification rule.
func (l *Loop) postProcess(in Input, state *domain.RalphState, judgement llm.Judgement, noveltyFactor float64, stats *domain.CategoryStats) domain.RalphDecision {
	decision := judgement.Decision

	if isAcceptLike(decision) {
		switch {
		case len(judgement.EvidenceFound) == 0 && !strings.Contains(judgement.Justification, "http"):
			// An accept without a quote or URL is not verifiable.
			decision = domain.DecisionNoProgress
		case state.SeenURLs[in.SourceURL]:
			decision = domain.DecisionReject
		case l.anyDuplicate(judgement.EvidenceFound, state.PreviousEvidence):
			decision = domain.DecisionReject
		}
	}

	raw := rawDelta(decision)
	applied := raw * noveltyFactor * damping(state.CurrentConfidence, state.ConfidenceCeiling) * categoryMultiplier(decision, stats)

	rd := domain.RalphDecision{
		Decision:      decision,
		RawDelta:      raw,
		AppliedDelta:  applied,
		Justification: judgement.Justification,
	}

	if isAcceptLike(decision) {
		now := l.clock()

		for _, text := range judgement.EvidenceFound {
			rd.EvidenceItems = append(rd.EvidenceItems, domain.Evidence{
				ID:            uuid.NewString(),
				Source:        judgement.EvidenceType,
				SourceURL:     in.SourceURL,
				Date:          now,
				ExtractedText: text,
			})
		}
	}

	return rd
}

// apply folds a decision into the run state and returns the outcome.
func (l *Loop) apply(in Input, state *domain.RalphState, stats *domain.CategoryStats, iteration int, decision domain.RalphDecision, out Outcome) Outcome {
	stats.TotalIterations++
	stats.LastDecision = decision.Decision

	switch decision.Decision {
	case domain.DecisionAccept:
		stats.AcceptCount++
		stats.ConsecutiveRejects = 0
	case domain.DecisionWeakAccept:
		stats.WeakAcceptCount++
		stats.ConsecutiveRejects = 0
	case domain.DecisionReject:
		stats.RejectCount++
		stats.ConsecutiveRejects++
	case domain.DecisionNoProgress:
		stats.NoProgressCount++
		stats.ConsecutiveRejects++
	}

	if stats.ConsecutiveRejects >= saturationLimit {
		decision.CategorySaturated = true
	}

	state.IterationsCompleted = iteration
	state.CurrentConfidence = domain.ClampConfidence(state.CurrentConfidence + decision.AppliedDelta)

	if in.SourceURL != "" {
		state.SeenURLs[in.SourceURL] = true
	}

	for _, ev := range decision.EvidenceItems {
		state.PreviousEvidence = append(state.PreviousEvidence, ev.ExtractedText)
	}

	observability.DecisionsTotal.WithLabelValues(decision.Decision).Inc()
	l.logger.Debug().
		Str("category", in.Category).
		Str("decision", decision.Decision).
		Float64("applied_delta", decision.AppliedDelta).
		Float64("confidence", state.CurrentConfidence).
		Int("iteration", iteration).
		Msg("ralph decision")

	out.Decision = decision

	return out
}

func (l *Loop) anyDuplicate(candidates, previous []string) bool {
	for _, c := range candidates {
		if isDuplicateEvidence(c, previous) {
			return true
		}
	}

	return false
}

func isAcceptLike(decision string) bool {
	return decision == domain.DecisionAccept || decision == domain.DecisionWeakAccept
}

func errToReason(err error) string {
	if cerrors.Is(err, cerrors.ErrJudgeParse) {
		return "judge response unparseable at every tier"
	}

	return "judge unavailable: " + err.Error()
}
