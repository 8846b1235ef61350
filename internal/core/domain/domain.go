// Package domain defines the core records exchanged between the discovery
// engine's components: entities, templates, hypotheses, evidence, signals,
// runtime bindings, cluster statistics, and episodes.
package domain

import "time"

// Entity type constants.
const (
	EntityTypeClub       = "SPORT_CLUB"
	EntityTypeFederation = "SPORT_FEDERATION"
	EntityTypeLeague     = "SPORT_LEAGUE"
)

// Entity is an immutable input describing a sports organisation to explore.
type Entity struct {
	EntityID        string
	Name            string
	Type            string
	Sport           string
	Country         string
	ClusterID       string
	PriorityTier    int
	DigitalMaturity string
}

// Template is an immutable versioned pattern set describing what evidence
// to look for within a cluster of similar entities.
type Template struct {
	TemplateID        string
	Version           int
	ClusterID         string
	SignalChannels    []string
	SignalPatterns    []string
	NegativeFilters   []string
	VerificationRules []string
}

// Hypothesis state constants.
const (
	HypothesisActive   = "ACTIVE"
	HypothesisResolved = "RESOLVED"
	HypothesisInactive = "INACTIVE"
)

// ConfidencePoint is a single append-only entry in a hypothesis confidence history.
type ConfidencePoint struct {
	Iteration    int       `json:"iteration"`
	RawDelta     float64   `json:"raw_delta"`
	AppliedDelta float64   `json:"applied_delta"`
	Decision     string    `json:"decision"`
	Category     string    `json:"category"`
	SourceURL    string    `json:"source_url"`
	Reason       string    `json:"reason"`
	At           time.Time `json:"at"`
}

// Hypothesis is a testable statement about an entity's procurement intent.
// Confidence stays clamped to [0.05, 0.95]; history is append-only.
type Hypothesis struct {
	HypothesisID       string
	EntityID           string
	TemplateID         string
	Statement          string
	Category           string
	TargetEntityType   string
	Confidence         float64
	State              string
	Iterations         int
	ReinforcementCount int
	CreatedAt          time.Time
	LastTestedAt       time.Time
	Metadata           map[string]string
	ConfidenceHistory  []ConfidencePoint
}

// Evidence is a verified artifact supporting a signal candidate.
// Immutable once produced by the verifier.
type Evidence struct {
	ID               string
	SignalID         string
	Source           string
	SourceURL        string
	Date             time.Time
	ExtractedText    string
	CredibilityScore float64
	Verified         bool
	Accessible       bool
}

// SignalCandidate is a transient accumulation of evidence for one category.
type SignalCandidate struct {
	ID                 string
	EntityID           string
	Category           string
	Evidence           []Evidence
	RawConfidence      float64
	TemporalMultiplier float64
	DiscoveredAt       time.Time
}

// ValidatedSignal is a candidate that survived all three validation passes.
type ValidatedSignal struct {
	ID                 string   `json:"id"`
	Type               string   `json:"type"`
	Subtype            string   `json:"subtype"`
	EntityID           string   `json:"entity_id"`
	Confidence         float64  `json:"confidence"`
	ValidationPass     int      `json:"validation_pass"`
	FirstSeen          time.Time `json:"first_seen"`
	TemporalMultiplier float64  `json:"temporal_multiplier"`
	PrimaryReason      string   `json:"primary_reason,omitempty"`
	Urgency            string   `json:"urgency,omitempty"`
	YPFitScore         float64  `json:"yp_fit_score,omitempty"`
}

// CategoryStats tracks per-category decision counts within a run.
type CategoryStats struct {
	TotalIterations    int    `json:"total_iterations"`
	AcceptCount        int    `json:"accept_count"`
	WeakAcceptCount    int    `json:"weak_accept_count"`
	RejectCount        int    `json:"reject_count"`
	NoProgressCount    int    `json:"no_progress_count"`
	SaturatedCount     int    `json:"saturated_count"`
	ConsecutiveRejects int    `json:"consecutive_rejects"`
	LastDecision       string `json:"last_decision"`
}

// RalphState is the transient per-run judge state. It is summarised into
// hypothesis and binding updates at run end and then discarded.
type RalphState struct {
	CurrentConfidence   float64
	ConfidenceCeiling   float64
	IterationsCompleted int
	CategoryStats       map[string]*CategoryStats
	ConfidenceSaturated bool
	NoveltyPool         []string
	PreviousEvidence    []string
	SeenURLs            map[string]bool
}

// NewRalphState returns a run state with the default ceiling applied.
func NewRalphState(ceiling float64) *RalphState {
	return &RalphState{
		ConfidenceCeiling: ceiling,
		CategoryStats:     make(map[string]*CategoryStats),
		SeenURLs:          make(map[string]bool),
	}
}

// Category returns the stats bucket for a category, creating it on first use.
func (s *RalphState) Category(name string) *CategoryStats {
	cs, ok := s.CategoryStats[name]
	if !ok {
		cs = &CategoryStats{}
		s.CategoryStats[name] = cs
	}

	return cs
}

// TotalAccepts sums accept counts across all categories.
func (s *RalphState) TotalAccepts() int {
	total := 0
	for _, cs := range s.CategoryStats {
		total += cs.AcceptCount
	}

	return total
}

// Binding state constants.
const (
	BindingExploring = "EXPLORING"
	BindingPromoted  = "PROMOTED"
	BindingFrozen    = "FROZEN"
	BindingRetired   = "RETIRED"
)

// RuntimeBinding is the per-(entity, template) learned state with a
// promotion lifecycle. Promoted bindings replay their discovered channels
// without an LLM planning call.
type RuntimeBinding struct {
	TemplateID           string
	EntityID             string
	EntityName           string
	DiscoveredDomains    []string
	DiscoveredChannels   map[string][]string
	EnrichedPatterns     map[string][]string
	ConfidenceAdjustment float64
	UsageCount           int
	SuccessRate          float64
	State                string
	PromotedAt           *time.Time
	LastUsedAt           time.Time
}

// ClusterStats is the cross-entity roll-up of promoted bindings.
type ClusterStats struct {
	ClusterID            string
	ChannelEffectiveness map[string]float64
	SignalReliability    map[string]float64
	DiscoveryShortcuts   []string
	TotalBindings        int
	LastUpdated          time.Time
}

// Episode is an append-only persisted record of something that happened
// during discovery for an entity.
type Episode struct {
	ID          string
	EntityID    string
	Type        string
	Subtype     string
	Description string
	Timestamp   time.Time
	Confidence  float64
	SourceRefs  []string
	Embedding   []float32
}

// ClusteredEpisode is a derived record grouping similar episodes. Originals
// are referenced, never mutated.
type ClusteredEpisode struct {
	ID          string
	EntityID    string
	EpisodeIDs  []string
	Summary     string
	WindowStart time.Time
	WindowEnd   time.Time
	CreatedAt   time.Time
}
