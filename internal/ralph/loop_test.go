package ralph

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KieranMcFarlane/panther-chat-sub003/internal/core/domain"
	cerrors "github.com/KieranMcFarlane/panther-chat-sub003/internal/core/errors"
	"github.com/KieranMcFarlane/panther-chat-sub003/internal/core/llm"
)

// scriptedJudge returns judgements in order; the last repeats.
type scriptedJudge struct {
	judgements []llm.Judgement
	errs       []error
	calls      int
}

func (j *scriptedJudge) Judge(_ context.Context, _ string, _ float64) (llm.Judgement, llm.Response, error) {
	idx := j.calls
	if idx >= len(j.judgements) {
		idx = len(j.judgements) - 1
	}

	j.calls++

	usage := llm.Response{InputTokens: 100, OutputTokens: 40, CostUSD: 0.002, ModelID: "scripted"}

	var err error
	if idx < len(j.errs) {
		err = j.errs[idx]
	}

	return j.judgements[idx], usage, err
}

func (j *scriptedJudge) ValidateConfidence(_ context.Context, _ string, original float64) (llm.ConfidenceValidation, llm.Response, error) {
	return llm.ConfidenceValidation{Original: original, Validated: original}, llm.Response{}, nil
}

func acceptJudgement(text string) llm.Judgement {
	return llm.Judgement{
		Decision:      domain.DecisionAccept,
		Justification: "tender notice quoted: " + text,
		EvidenceFound: []string{text},
		Confidence:    0.9,
	}
}

func weakJudgement(text string) llm.Judgement {
	return llm.Judgement{
		Decision:      domain.DecisionWeakAccept,
		Justification: "capability evidence: " + text,
		EvidenceFound: []string{text},
		Confidence:    0.8,
	}
}

func rejectJudgement() llm.Judgement {
	return llm.Judgement{Decision: domain.DecisionReject, Justification: "irrelevant", Confidence: 0.9}
}

func newTestLoop(j llm.Judge) *Loop {
	logger := zerolog.Nop()

	return NewLoop(j, DefaultNoveltySchedule(), &logger)
}

func TestAcceptAppliesDampedDelta(t *testing.T) {
	judge := &scriptedJudge{judgements: []llm.Judgement{acceptJudgement("Invitation to tender for CRM")}}
	loop := newTestLoop(judge)
	state := domain.NewRalphState(domain.ConfidenceCeiling)
	state.CurrentConfidence = 0.50

	out := loop.Run(context.Background(), Input{Category: "rfp", SourceURL: "https://club.com/rfp", Prompt: "p"}, state)

	require.Equal(t, domain.DecisionAccept, out.Decision.Decision)
	assert.InDelta(t, 0.06, out.Decision.RawDelta, 1e-9)

	// applied = raw * novelty(1.0) * damping * category(1.0)
	wantDamping := 1 - (0.50/0.95)*(0.50/0.95)
	assert.InDelta(t, 0.06*wantDamping, out.Decision.AppliedDelta, 1e-9)
	assert.LessOrEqual(t, out.Decision.AppliedDelta, out.Decision.RawDelta)
	assert.Equal(t, 1, state.Category("rfp").AcceptCount)
	assert.Len(t, out.Decision.EvidenceItems, 1)
}

func TestDuplicateEvidenceForcesReject(t *testing.T) {
	judge := &scriptedJudge{judgements: []llm.Judgement{acceptJudgement("Team wins match")}}
	loop := newTestLoop(judge)
	state := domain.NewRalphState(domain.ConfidenceCeiling)
	state.PreviousEvidence = []string{"Team wins match"}

	out := loop.Run(context.Background(), Input{Category: "press", SourceURL: "https://club.com/news", Prompt: "p"}, state)

	assert.Equal(t, domain.DecisionReject, out.Decision.Decision)
	assert.InDelta(t, 0, out.Decision.RawDelta, 1e-9)
	assert.InDelta(t, 0, out.Decision.AppliedDelta, 1e-9)
}

func TestRepeatedURLForcesReject(t *testing.T) {
	judge := &scriptedJudge{judgements: []llm.Judgement{acceptJudgement("fresh evidence text")}}
	loop := newTestLoop(judge)
	state := domain.NewRalphState(domain.ConfidenceCeiling)
	state.SeenURLs["https://club.com/rfp"] = true

	out := loop.Run(context.Background(), Input{Category: "rfp", SourceURL: "https://club.com/rfp", Prompt: "p"}, state)

	assert.Equal(t, domain.DecisionReject, out.Decision.Decision)
}

func TestThreeConsecutiveRejectsSaturateCategory(t *testing.T) {
	judge := &scriptedJudge{judgements: []llm.Judgement{rejectJudgement()}}
	loop := newTestLoop(judge)
	state := domain.NewRalphState(domain.ConfidenceCeiling)

	var out Outcome
	for i := 0; i < 3; i++ {
		out = loop.Run(context.Background(), Input{Category: "press", Prompt: "p"}, state)
	}

	assert.True(t, out.Decision.CategorySaturated)

	// The fourth attempt short-circuits without a judge call.
	callsBefore := judge.calls
	out = loop.Run(context.Background(), Input{Category: "press", Prompt: "p"}, state)

	assert.Equal(t, domain.DecisionSaturated, out.Decision.Decision)
	assert.Equal(t, callsBefore, judge.calls)
	assert.InDelta(t, 0, out.Decision.AppliedDelta, 1e-9)
	assert.Equal(t, 1, state.Category("press").SaturatedCount)
}

func TestAcceptResetsConsecutiveRejects(t *testing.T) {
	judge := &scriptedJudge{judgements: []llm.Judgement{
		rejectJudgement(),
		rejectJudgement(),
		acceptJudgement("new tender published"),
	}}
	loop := newTestLoop(judge)
	state := domain.NewRalphState(domain.ConfidenceCeiling)

	urls := []string{"https://club.com/a", "https://club.com/b", "https://club.com/c"}
	for _, u := range urls {
		loop.Run(context.Background(), Input{Category: "rfp", SourceURL: u, Prompt: "p"}, state)
	}

	assert.Equal(t, 0, state.Category("rfp").ConsecutiveRejects)
}

func TestNoveltyExhaustionYieldsNoProgress(t *testing.T) {
	judge := &scriptedJudge{judgements: []llm.Judgement{acceptJudgement("anything")}}
	loop := newTestLoop(judge)
	state := domain.NewRalphState(domain.ConfidenceCeiling)
	state.IterationsCompleted = 19

	out := loop.Run(context.Background(), Input{Category: "rfp", Prompt: "p"}, state)

	assert.Equal(t, domain.DecisionNoProgress, out.Decision.Decision)
	assert.Equal(t, 0, judge.calls, "no judge call when novelty is zero")
}

func TestJudgeParseFailureDowngradesIteration(t *testing.T) {
	judge := &scriptedJudge{
		judgements: []llm.Judgement{{}},
		errs:       []error{cerrors.ErrJudgeParse},
	}
	loop := newTestLoop(judge)
	state := domain.NewRalphState(domain.ConfidenceCeiling)

	out := loop.Run(context.Background(), Input{Category: "rfp", Prompt: "p"}, state)

	assert.Equal(t, domain.DecisionNoProgress, out.Decision.Decision)
	// Cost is still charged for the failed call.
	assert.Greater(t, out.Usage.CostUSD, 0.0)
}

func TestAcceptWithoutEvidenceDowngraded(t *testing.T) {
	judge := &scriptedJudge{judgements: []llm.Judgement{{
		Decision:      domain.DecisionAccept,
		Justification: "sounds promising",
		Confidence:    0.9,
	}}}
	loop := newTestLoop(judge)
	state := domain.NewRalphState(domain.ConfidenceCeiling)

	out := loop.Run(context.Background(), Input{Category: "rfp", Prompt: "p"}, state)

	assert.Equal(t, domain.DecisionNoProgress, out.Decision.Decision)
}

func TestConfidenceStaysClamped(t *testing.T) {
	judge := &scriptedJudge{judgements: []llm.Judgement{acceptJudgement("evidence text")}}
	loop := newTestLoop(judge)
	state := domain.NewRalphState(domain.ConfidenceCeiling)
	state.CurrentConfidence = 0.94

	// Distinct URLs and evidence so dedup does not kick in.
	for i := 0; i < 5; i++ {
		judge.judgements = []llm.Judgement{acceptJudgement("evidence text variant " + string(rune('a'+i)) + " about tender scope")}
		judge.calls = 0

		loop.Run(context.Background(), Input{
			Category:  "rfp",
			SourceURL: "https://club.com/rfp/" + string(rune('a'+i)),
			Prompt:    "p",
		}, state)
	}

	assert.LessOrEqual(t, state.CurrentConfidence, domain.ConfidenceCeiling)
	assert.GreaterOrEqual(t, state.CurrentConfidence, domain.ConfidenceFloor)
}
