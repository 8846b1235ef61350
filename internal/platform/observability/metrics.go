package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	IterationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discovery_iterations_total",
		Help: "The total number of discovery iterations by hop type",
	}, []string{"hop_type"})

	DecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discovery_ralph_decisions_total",
		Help: "The total number of Ralph judge decisions by label",
	}, []string{"decision"})

	LLMRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "discovery_llm_request_duration_seconds",
		Help:    "Duration of LLM judge requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"tier", "model"})

	LLMTokensTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discovery_llm_tokens_total",
		Help: "Total LLM tokens consumed",
	}, []string{"tier", "direction"})

	LLMCostUSD = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discovery_llm_cost_usd_total",
		Help: "Estimated LLM spend in USD",
	}, []string{"tier"})

	SearchCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discovery_search_cache_total",
		Help: "Search cache lookups by outcome",
	}, []string{"outcome"})

	SearchRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discovery_search_requests_total",
		Help: "Search engine requests by engine and status",
	}, []string{"engine", "status"})

	ScrapeRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discovery_scrape_requests_total",
		Help: "Scrape requests by status",
	}, []string{"status"})

	EntitiesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discovery_entities_processed_total",
		Help: "Entities processed by the batch orchestrator",
	}, []string{"status"})

	EntityRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "discovery_entity_run_duration_seconds",
		Help:    "Duration of one entity discovery run",
		Buckets: []float64{5, 15, 30, 60, 120, 300, 600},
	})

	FinalConfidence = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "discovery_final_confidence",
		Help:    "Final confidence per entity run",
		Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9},
	})

	BindingsPromoted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "discovery_bindings_promoted_total",
		Help: "Runtime bindings promoted",
	})

	ClusterShortcutHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "discovery_cluster_shortcut_hits_total",
		Help: "Iterations planned from a cluster shortcut instead of the LLM planner",
	})
)
