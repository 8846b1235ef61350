// Package budget implements the per-entity exploration budget controller.
// It is the sole arbiter of whether the discovery orchestrator may run
// another iteration, and it produces the typed stopping reason when not.
package budget

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/KieranMcFarlane/panther-chat-sub003/internal/core/domain"
	"github.com/KieranMcFarlane/panther-chat-sub003/internal/core/ports"
	"github.com/KieranMcFarlane/panther-chat-sub003/internal/platform/config"
)

// Iteration describes the resources consumed by one completed iteration.
type Iteration struct {
	Category        string
	LLMCalls        int
	ValidationCalls int
	ScrapeCalls     int
	EvidenceDelta   int
	Confidence      float64
}

// Remaining reports headroom left in the run.
type Remaining struct {
	CostUSD    float64
	Time       time.Duration
	Iterations int
}

// Controller enforces iteration, cost, and wall-clock caps for one entity run.
// It is safe for concurrent use, though an entity run drives it sequentially.
type Controller struct {
	mu sync.Mutex

	knobs config.Budget
	clock ports.Clock
	log   *zerolog.Logger

	startedAt          time.Duration
	totalIterations    int
	categoryIterations map[string]int
	totalCostUSD       float64
	totalEvidence      int
	highConfidenceRun  int
}

// NewController creates a controller for a single entity run. The clock's
// monotonic reading at creation time anchors the wall-clock cap.
func NewController(knobs config.Budget, clock ports.Clock, log *zerolog.Logger) *Controller {
	return &Controller{
		knobs:              knobs,
		clock:              clock,
		log:                log,
		startedAt:          clock.Monotonic(),
		categoryIterations: make(map[string]int),
	}
}

// CanContinue reports whether another iteration may run in the given
// category. Checks run in a fixed order; the entity-wide iteration cap is
// tested first so it always wins over max_per_category x max_categories.
func (c *Controller) CanContinue(category string, currentConfidence float64) (bool, domain.StoppingReason) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.totalIterations >= c.knobs.MaxIterationsPerEntity {
		return false, domain.StopMaxIterations
	}

	if c.categoryIterations[category] >= c.knobs.MaxIterationsPerCategory {
		return false, domain.StopMaxIterations
	}

	if c.totalCostUSD >= c.knobs.CostCapUSD {
		return false, domain.StopCostLimit
	}

	elapsed := c.clock.Monotonic() - c.startedAt
	if elapsed >= time.Duration(c.knobs.TimeLimitSeconds)*time.Second {
		return false, domain.StopTimeLimit
	}

	if currentConfidence >= c.knobs.ConfidenceThreshold &&
		c.highConfidenceRun >= c.knobs.ConsecutiveHighConfidence {
		return false, domain.StopHighConfidence
	}

	if c.totalEvidence >= c.knobs.EvidenceCountThreshold {
		return false, domain.StopEvidenceCount
	}

	return true, ""
}

// RecordIteration accounts one completed iteration: counters, evidence, and
// cost at the configured per-call coefficients.
func (c *Controller) RecordIteration(it Iteration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalIterations++
	c.categoryIterations[it.Category]++
	c.totalEvidence += it.EvidenceDelta

	cost := float64(it.LLMCalls)*c.knobs.LLMCallCost +
		float64(it.ValidationCalls)*c.knobs.ValidationCallCost +
		float64(it.ScrapeCalls)*c.knobs.ScrapeCallCost
	c.totalCostUSD += cost

	if it.Confidence >= c.knobs.ConfidenceThreshold {
		c.highConfidenceRun++
	} else {
		c.highConfidenceRun = 0
	}

	if c.log != nil {
		c.log.Debug().
			Str("category", it.Category).
			Int("total_iterations", c.totalIterations).
			Float64("total_cost_usd", c.totalCostUSD).
			Float64("confidence", it.Confidence).
			Msg("iteration recorded")
	}
}

// RecordCost adds externally measured spend (for example actual LLM token
// cost) on top of the coefficient-based estimate.
func (c *Controller) RecordCost(usd float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalCostUSD += usd
}

// Remaining reports the cost, time, and iteration headroom left.
func (c *Controller) Remaining() Remaining {
	c.mu.Lock()
	defer c.mu.Unlock()

	elapsed := c.clock.Monotonic() - c.startedAt
	limit := time.Duration(c.knobs.TimeLimitSeconds) * time.Second

	left := limit - elapsed
	if left < 0 {
		left = 0
	}

	costLeft := c.knobs.CostCapUSD - c.totalCostUSD
	if costLeft < 0 {
		costLeft = 0
	}

	return Remaining{
		CostUSD:    costLeft,
		Time:       left,
		Iterations: c.knobs.MaxIterationsPerEntity - c.totalIterations,
	}
}

// TotalCostUSD returns the accumulated spend for the run.
func (c *Controller) TotalCostUSD() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.totalCostUSD
}

// TotalIterations returns the number of recorded iterations.
func (c *Controller) TotalIterations() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.totalIterations
}
