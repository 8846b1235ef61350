package discovery

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/KieranMcFarlane/panther-chat-sub003/internal/binding"
	"github.com/KieranMcFarlane/panther-chat-sub003/internal/budget"
	"github.com/KieranMcFarlane/panther-chat-sub003/internal/core/domain"
	cerrors "github.com/KieranMcFarlane/panther-chat-sub003/internal/core/errors"
	"github.com/KieranMcFarlane/panther-chat-sub003/internal/core/ports"
	"github.com/KieranMcFarlane/panther-chat-sub003/internal/hypothesis"
	"github.com/KieranMcFarlane/panther-chat-sub003/internal/platform/config"
	"github.com/KieranMcFarlane/panther-chat-sub003/internal/platform/observability"
	"github.com/KieranMcFarlane/panther-chat-sub003/internal/ralph"
	"github.com/KieranMcFarlane/panther-chat-sub003/internal/scrape"
	"github.com/KieranMcFarlane/panther-chat-sub003/internal/search"
)

const (
	// scoreFloor short-circuits an iteration when no search result is worth
	// scraping.
	scoreFloor = 0.2

	defaultSearchResults = 8
)

// Searcher resolves a query to ranked results; see internal/search.
type Searcher interface {
	Search(ctx context.Context, query, hopType, entityName string, n int) ([]search.Result, error)
}

// Scraper fetches one URL into a textual projection; see internal/scrape.
type Scraper interface {
	Scrape(ctx context.Context, rawURL string) (scrape.Page, error)
}

// ShortcutProvider serves cluster discovery shortcuts; see internal/cluster.
type ShortcutProvider interface {
	Priority(ctx context.Context, clusterID string) ([]string, error)
}

// Orchestrator drives the full discovery loop for one entity at a time.
type Orchestrator struct {
	searcher   Searcher
	scraper    Scraper
	loop       *ralph.Loop
	validator  *ralph.Validator
	hypotheses *hypothesis.Manager
	bindings   *binding.Manager
	clusters   ShortcutProvider
	stores     ports.Stores
	knobs      config.Budget
	clock      ports.Clock
	logger     *zerolog.Logger
	searchN    int
}

// Deps bundles the orchestrator's collaborators.
type Deps struct {
	Searcher   Searcher
	Scraper    Scraper
	Loop       *ralph.Loop
	Validator  *ralph.Validator
	Hypotheses *hypothesis.Manager
	Bindings   *binding.Manager
	Clusters   ShortcutProvider
	Stores     ports.Stores
	Knobs      config.Budget
	Clock      ports.Clock
	Logger     *zerolog.Logger
}

// NewOrchestrator wires the discovery loop.
func NewOrchestrator(d Deps) *Orchestrator {
	return &Orchestrator{
		searcher:   d.Searcher,
		scraper:    d.Scraper,
		loop:       d.Loop,
		validator:  d.Validator,
		hypotheses: d.Hypotheses,
		bindings:   d.Bindings,
		clusters:   d.Clusters,
		stores:     d.Stores,
		knobs:      d.Knobs,
		clock:      d.Clock,
		logger:     d.Logger,
		searchN:    defaultSearchResults,
	}
}

// RunEntity executes the discovery loop for one entity against a template
// and returns the assembled dossier. The run is self-contained: budget,
// judge state, and evidence accumulation are all per entity.
func (o *Orchestrator) RunEntity(ctx context.Context, entity domain.Entity, template domain.Template) (*domain.Dossier, error) {
	if entity.EntityID == "" || entity.Name == "" {
		return nil, fmt.Errorf("%w: entity_id and name are required", cerrors.ErrInvalidEntity)
	}

	startedAt := o.clock.Now()
	log := o.logger.With().Str("entity_id", entity.EntityID).Logger()

	ctrl := budget.NewController(o.knobs, o.clock, &log)

	hyps, err := o.loadHypotheses(ctx, entity, template)
	if err != nil {
		return nil, err
	}

	bnd, err := o.bindings.GetOrCreate(ctx, entity, template.TemplateID)
	if err != nil {
		return nil, err
	}

	if err := o.bindings.Refresh(ctx, bnd); err != nil {
		return nil, err
	}

	replays := o.bindings.ReplayChannels(bnd)

	shortcuts, err := o.clusters.Priority(ctx, entity.ClusterID)
	if err != nil {
		log.Warn().Err(err).Msg("cluster shortcut lookup failed, planning without shortcuts")

		shortcuts = nil
	}

	state := domain.NewRalphState(domain.ConfidenceCeiling)
	state.CurrentConfidence = meanConfidence(hyps)

	run := &entityRun{
		entity:        entity,
		template:      template,
		binding:       bnd,
		state:         state,
		ctrl:          ctrl,
		replays:       replays,
		shortcuts:     shortcuts,
		usedShortcuts: make(map[string]bool),
		evidence:      make(map[string][]domain.Evidence),
		log:           &log,
	}

	reason := o.iterate(ctx, run, hyps)

	// A cancelled run still yields a dossier, so assembly and persistence
	// run detached from the caller's cancellation.
	finishCtx := context.WithoutCancel(ctx)

	dossier := o.assemble(finishCtx, run, hyps, reason, startedAt)

	if err := o.persist(finishCtx, dossier); err != nil {
		return dossier, err
	}

	observability.EntityRunDuration.Observe(o.clock.Now().Sub(startedAt).Seconds())
	observability.FinalConfidence.Observe(dossier.FinalConfidence)

	log.Info().
		Float64("final_confidence", dossier.FinalConfidence).
		Str("band", dossier.ConfidenceBand).
		Str("stopping_reason", dossier.StoppingReason).
		Int("iterations", dossier.IterationsCompleted).
		Float64("cost_usd", dossier.TotalCostUSD).
		Msg("entity run complete")

	return dossier, nil
}

// entityRun is the mutable state of one RunEntity call.
type entityRun struct {
	entity        domain.Entity
	template      domain.Template
	binding       *domain.RuntimeBinding
	state         *domain.RalphState
	ctrl          *budget.Controller
	replays       []binding.Replay
	shortcuts     []string
	usedShortcuts map[string]bool
	evidence      map[string][]domain.Evidence
	failedSteps   []string
	log           *zerolog.Logger
}

// iterate runs the per-iteration loop until the budget or the hypothesis set
// stops it, returning the stopping reason.
func (o *Orchestrator) iterate(ctx context.Context, run *entityRun, hyps []*domain.Hypothesis) domain.StoppingReason {
	// Cancellation is honoured at the loop boundary only: an in-flight
	// iteration runs on a detached context so its search, judge, and store
	// updates complete instead of being torn down halfway.
	iterCtx := context.WithoutCancel(ctx)

	for {
		if ctx.Err() != nil {
			return domain.StopExternalCancel
		}

		plan, found := o.plan(run, hyps)
		if !found {
			if anyActive(hyps) {
				return domain.StopCategorySat
			}

			return domain.StopAllResolved
		}

		ok, reason := run.ctrl.CanContinue(plan.Hypothesis.Category, run.state.CurrentConfidence)
		if !ok {
			return reason
		}

		observability.IterationsTotal.WithLabelValues(plan.HopType).Inc()

		if err := o.runIteration(iterCtx, run, plan); err != nil {
			run.log.Warn().Err(err).Msg("iteration update failed")
			run.failedSteps = append(run.failedSteps, "update: "+err.Error())
		}

		if !anyActive(hyps) {
			return domain.StopAllResolved
		}
	}
}

// plan chooses the next (hypothesis, hop) target. Promoted-binding replays
// come first, then unused cluster shortcuts, then EIG planning. Replays and
// shortcuts skip the LLM planning step entirely.
func (o *Orchestrator) plan(run *entityRun, hyps []*domain.Hypothesis) (Plan, bool) {
	plan, found := planEIG(hyps, run.state)
	if !found {
		return Plan{}, false
	}

	if len(run.replays) > 0 {
		replay := run.replays[0]
		run.replays = run.replays[1:]

		plan.ReplayURL = replay.URL
		plan.Channel = replay.Channel

		if hop, ok := channelHops[replay.Channel]; ok {
			plan.HopType = hop
		}

		run.log.Debug().Str("channel", replay.Channel).Str("url", replay.URL).Msg("replaying promoted binding channel")

		return plan, true
	}

	for _, channel := range run.shortcuts {
		if run.usedShortcuts[channel] {
			continue
		}

		hop, ok := channelHops[channel]
		if !ok {
			continue
		}

		run.usedShortcuts[channel] = true
		plan.HopType = hop
		plan.Channel = channel
		plan.FromShortcut = true

		run.log.Info().Str("channel", channel).Msg("cluster shortcut used, no planning call")

		return plan, true
	}

	return plan, true
}

// runIteration executes steps 4-7 for one plan: resolve, fetch, judge,
// update.
func (o *Orchestrator) runIteration(ctx context.Context, run *entityRun, plan Plan) error {
	sourceURL := plan.ReplayURL

	if sourceURL == "" {
		query := buildQuery(run.entity, plan)

		results, err := o.searcher.Search(ctx, query, plan.HopType, run.entity.Name, o.searchN)
		if err != nil {
			run.failedSteps = append(run.failedSteps, "search: "+query)

			return o.noProgress(ctx, run, plan, "search failed: "+err.Error(), 0)
		}

		best, score, ok := SelectBest(results, plan.HopType, run.entity.Name)
		if !ok || score <= scoreFloor {
			return o.noProgress(ctx, run, plan, fmt.Sprintf("no result above score floor (best %.2f)", score), 0)
		}

		sourceURL = best.URL
	}

	page, err := o.scraper.Scrape(ctx, sourceURL)
	if err != nil {
		run.failedSteps = append(run.failedSteps, "scrape: "+sourceURL)

		return o.noProgress(ctx, run, plan, "scrape failed: "+sourceURL, 1)
	}

	prompt := BuildPrompt(PromptInput{
		EntityName:        run.entity.Name,
		EntityType:        run.entity.Type,
		SignalPatterns:    run.template.SignalPatterns,
		HopType:           plan.HopType,
		Statement:         plan.Hypothesis.Statement,
		CurrentConfidence: run.state.CurrentConfidence,
		PreviousEvidence:  run.state.PreviousEvidence,
		Content:           page.Content,
	})

	out := o.loop.Run(ctx, ralph.Input{
		Prompt:     prompt,
		SourceURL:  sourceURL,
		Hypothesis: plan.Hypothesis,
		HopType:    plan.HopType,
		Category:   plan.Hypothesis.Category,
	}, run.state)

	return o.applyOutcome(ctx, run, plan, sourceURL, out, 1)
}

// noProgress accounts an iteration that never reached the judge: the budget
// still advances and the hypothesis records the empty step.
func (o *Orchestrator) noProgress(ctx context.Context, run *entityRun, plan Plan, why string, scrapes int) error {
	decision := domain.RalphDecision{Decision: domain.DecisionNoProgress, Justification: why}

	stats := run.state.Category(plan.Hypothesis.Category)
	stats.TotalIterations++
	stats.NoProgressCount++
	stats.ConsecutiveRejects++
	stats.LastDecision = domain.DecisionNoProgress
	run.state.IterationsCompleted++

	return o.applyOutcome(ctx, run, plan, "", ralph.Outcome{Decision: decision}, scrapes)
}

// applyOutcome is step 7: hypothesis, budget, episode, and binding updates.
func (o *Orchestrator) applyOutcome(ctx context.Context, run *entityRun, plan Plan, sourceURL string, out ralph.Outcome, scrapes int) error {
	if err := o.hypotheses.Update(ctx, plan.Hypothesis, out.Decision, sourceURL); err != nil {
		return err
	}

	run.ctrl.RecordIteration(budget.Iteration{
		Category:      plan.Hypothesis.Category,
		LLMCalls:      out.LLMCalls,
		ScrapeCalls:   scrapes,
		EvidenceDelta: len(out.Decision.EvidenceItems),
		Confidence:    run.state.CurrentConfidence,
	})
	run.ctrl.RecordCost(out.Usage.CostUSD)

	episode := domain.Episode{
		ID:          uuid.NewString(),
		EntityID:    run.entity.EntityID,
		Type:        "discovery_iteration",
		Subtype:     plan.Hypothesis.Category,
		Description: out.Decision.Justification,
		Timestamp:   o.clock.Now(),
		Confidence:  run.state.CurrentConfidence,
	}

	if sourceURL != "" {
		episode.SourceRefs = []string{sourceURL}
	}

	if err := o.stores.Episodes.Put(ctx, episode); err != nil {
		return fmt.Errorf("%w: put episode: %v", cerrors.ErrStoreFailure, err)
	}

	success := out.Decision.Decision == domain.DecisionAccept || out.Decision.Decision == domain.DecisionWeakAccept

	patterns := make(map[string]string)
	for _, ev := range out.Decision.EvidenceItems {
		run.evidence[plan.Hypothesis.Category] = append(run.evidence[plan.Hypothesis.Category], ev)
		patterns[plan.Hypothesis.Category] = ev.ExtractedText
	}

	if out.Decision.Decision != domain.DecisionSaturated {
		if err := o.bindings.RecordUse(ctx, run.binding, success, plan.Channel, sourceURL, patterns); err != nil {
			return err
		}
	}

	return nil
}

// assemble applies guardrail 1, validates accumulated candidates, and builds
// the dossier.
func (o *Orchestrator) assemble(ctx context.Context, run *entityRun, hyps []*domain.Hypothesis, reason domain.StoppingReason, startedAt time.Time) *domain.Dossier {
	final := ralph.FinalizeConfidence(run.state)

	var signals []domain.ValidatedSignal

	for category, evidence := range run.evidence {
		candidate := domain.SignalCandidate{
			ID:            uuid.NewString(),
			EntityID:      run.entity.EntityID,
			Category:      category,
			Evidence:      evidence,
			RawConfidence: final,
			DiscoveredAt:  startedAt,
		}

		res, err := o.validator.Validate(ctx, candidate)
		run.ctrl.RecordCost(res.Usage.CostUSD + o.knobs.ValidationCallCost)

		if err != nil {
			run.log.Warn().Err(err).Str("category", category).Msg("signal validation failed")
			run.failedSteps = append(run.failedSteps, "validate: "+category)

			continue
		}

		if res.Signal != nil {
			signals = append(signals, *res.Signal)
		} else {
			run.log.Debug().Str("category", category).Int("pass_failed", res.PassFailed).Str("reason", res.Reason).Msg("candidate rejected")
		}
	}

	hypCopies := make([]domain.Hypothesis, 0, len(hyps))
	for _, h := range hyps {
		hypCopies = append(hypCopies, *h)
	}

	return &domain.Dossier{
		EntityID:            run.entity.EntityID,
		EntityName:          run.entity.Name,
		TemplateID:          run.template.TemplateID,
		FinalConfidence:     final,
		ConfidenceBand:      domain.ConfidenceBand(final),
		IsActionable:        domain.ConfidenceBand(final) == domain.BandActionable,
		IterationsCompleted: run.state.IterationsCompleted,
		TotalCostUSD:        run.ctrl.TotalCostUSD(),
		ValidatedSignals:    signals,
		Hypotheses:          hypCopies,
		CategoryStats:       run.state.CategoryStats,
		StoppingReason:      string(reason),
		FailedSteps:         run.failedSteps,
		StartedAt:           startedAt,
		CompletedAt:         o.clock.Now(),
	}
}

func (o *Orchestrator) persist(ctx context.Context, dossier *domain.Dossier) error {
	for _, s := range dossier.ValidatedSignals {
		if err := o.stores.Signals.PutSignal(ctx, s); err != nil {
			return fmt.Errorf("%w: put signal: %v", cerrors.ErrStoreFailure, err)
		}
	}

	if err := o.stores.Signals.PutDossier(ctx, dossier); err != nil {
		return fmt.Errorf("%w: put dossier: %v", cerrors.ErrStoreFailure, err)
	}

	return nil
}

// loadHypotheses returns the entity's stored hypotheses, initialising from
// the template on first contact.
func (o *Orchestrator) loadHypotheses(ctx context.Context, entity domain.Entity, template domain.Template) ([]*domain.Hypothesis, error) {
	existing, err := o.stores.Hypotheses.List(ctx, entity.EntityID)
	if err != nil && !cerrors.Is(err, cerrors.ErrNotFound) {
		return nil, fmt.Errorf("%w: list hypotheses: %v", cerrors.ErrStoreFailure, err)
	}

	if len(existing) > 0 {
		return existing, nil
	}

	return o.hypotheses.Initialise(ctx, template, entity)
}

func meanConfidence(hyps []*domain.Hypothesis) float64 {
	if len(hyps) == 0 {
		return 0.5
	}

	var sum float64
	for _, h := range hyps {
		sum += h.Confidence
	}

	return domain.ClampConfidence(sum / float64(len(hyps)))
}

func anyActive(hyps []*domain.Hypothesis) bool {
	for _, h := range hyps {
		if h.State == domain.HypothesisActive {
			return true
		}
	}

	return false
}
