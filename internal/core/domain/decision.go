package domain

import "time"

// Decision labels returned by the Ralph judge. Exactly one per iteration.
const (
	DecisionAccept     = "ACCEPT"
	DecisionWeakAccept = "WEAK_ACCEPT"
	DecisionReject     = "REJECT"
	DecisionNoProgress = "NO_PROGRESS"
	DecisionSaturated  = "SATURATED"
)

// ValidDecision reports whether label is one of the five judge labels.
func ValidDecision(label string) bool {
	switch label {
	case DecisionAccept, DecisionWeakAccept, DecisionReject, DecisionNoProgress, DecisionSaturated:
		return true
	}

	return false
}

// RalphDecision is the typed outcome of one judge-and-update cycle.
type RalphDecision struct {
	Decision          string     `json:"decision"`
	RawDelta          float64    `json:"raw_delta"`
	AppliedDelta      float64    `json:"applied_delta"`
	Justification     string     `json:"justification"`
	EvidenceItems     []Evidence `json:"evidence_items"`
	CategorySaturated bool       `json:"category_saturated"`
}

// StoppingReason is the typed reason the budget controller halted a run.
type StoppingReason string

// Stopping reasons, in the order the budget controller checks them.
const (
	StopMaxIterations   StoppingReason = "MAX_ITERATIONS_REACHED"
	StopCostLimit       StoppingReason = "COST_LIMIT_REACHED"
	StopTimeLimit       StoppingReason = "TIME_LIMIT_REACHED"
	StopHighConfidence  StoppingReason = "CONSECUTIVE_HIGH_CONFIDENCE"
	StopEvidenceCount   StoppingReason = "EVIDENCE_COUNT_MET"
	StopCategorySat     StoppingReason = "CATEGORY_SATURATED"
	StopAllResolved     StoppingReason = "ALL_HYPOTHESES_RESOLVED"
	StopExternalCancel  StoppingReason = "TIME_LIMIT_REACHED" // external cancel maps to the time limit
)

// Hop types drive which search queries and URL features an iteration favours.
const (
	HopRFPPage      = "RFP_PAGE"
	HopCareersPage  = "CAREERS_PAGE"
	HopPressRelease = "PRESS_RELEASE"
	HopPartnerSite  = "PARTNER_SITE"
	HopOfficialNews = "OFFICIAL_NEWS"
	HopJobsBoard    = "JOBS_BOARD"
)

// HopTypes lists all hop types in planning order.
var HopTypes = []string{
	HopRFPPage,
	HopCareersPage,
	HopPressRelease,
	HopPartnerSite,
	HopOfficialNews,
	HopJobsBoard,
}

// Confidence bands for the dossier.
const (
	BandExploratory = "EXPLORATORY"
	BandInformed    = "INFORMED"
	BandConfident   = "CONFIDENT"
	BandActionable  = "ACTIONABLE"
)

// Band boundaries.
const (
	bandInformedMin   = 0.30
	bandConfidentMin  = 0.60
	bandActionableMin = 0.80
)

// ConfidenceBand maps a final confidence to its reporting band.
func ConfidenceBand(confidence float64) string {
	switch {
	case confidence >= bandActionableMin:
		return BandActionable
	case confidence >= bandConfidentMin:
		return BandConfident
	case confidence >= bandInformedMin:
		return BandInformed
	default:
		return BandExploratory
	}
}

// Dossier is the final per-entity record: signals, hypotheses, stats, and
// the stopping reason. Serialised as the stable JSON envelope.
type Dossier struct {
	EntityID            string                    `json:"entity_id"`
	EntityName          string                    `json:"entity_name"`
	TemplateID          string                    `json:"template_id"`
	FinalConfidence     float64                   `json:"final_confidence"`
	ConfidenceBand      string                    `json:"confidence_band"`
	IsActionable        bool                      `json:"is_actionable"`
	IterationsCompleted int                       `json:"iterations_completed"`
	TotalCostUSD        float64                   `json:"total_cost_usd"`
	ValidatedSignals    []ValidatedSignal         `json:"validated_signals"`
	Hypotheses          []Hypothesis              `json:"hypotheses"`
	CategoryStats       map[string]*CategoryStats `json:"category_stats"`
	StoppingReason      string                    `json:"stopping_reason"`
	FailedSteps         []string                  `json:"failed_steps,omitempty"`
	StartedAt           time.Time                 `json:"started_at"`
	CompletedAt         time.Time                 `json:"completed_at"`
}
