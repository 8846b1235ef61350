// Package app wires the discovery engine together: configuration, stores,
// the judge cascade, search and scrape clients, the per-entity orchestrator,
// and the checkpointed batch runner.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/KieranMcFarlane/panther-chat-sub003/internal/batch"
	"github.com/KieranMcFarlane/panther-chat-sub003/internal/binding"
	"github.com/KieranMcFarlane/panther-chat-sub003/internal/cluster"
	"github.com/KieranMcFarlane/panther-chat-sub003/internal/core/domain"
	"github.com/KieranMcFarlane/panther-chat-sub003/internal/core/embeddings"
	cerrors "github.com/KieranMcFarlane/panther-chat-sub003/internal/core/errors"
	"github.com/KieranMcFarlane/panther-chat-sub003/internal/core/llm"
	"github.com/KieranMcFarlane/panther-chat-sub003/internal/core/ports"
	"github.com/KieranMcFarlane/panther-chat-sub003/internal/discovery"
	"github.com/KieranMcFarlane/panther-chat-sub003/internal/hypothesis"
	"github.com/KieranMcFarlane/panther-chat-sub003/internal/platform/config"
	"github.com/KieranMcFarlane/panther-chat-sub003/internal/platform/observability"
	"github.com/KieranMcFarlane/panther-chat-sub003/internal/ralph"
	"github.com/KieranMcFarlane/panther-chat-sub003/internal/scrape"
	"github.com/KieranMcFarlane/panther-chat-sub003/internal/search"
	"github.com/KieranMcFarlane/panther-chat-sub003/internal/storage"
	"github.com/KieranMcFarlane/panther-chat-sub003/internal/templates"
	"github.com/KieranMcFarlane/panther-chat-sub003/internal/verify"
)

const (
	storeKindMemory = "memory"
	llmAPIKeyMock   = "mock"
	llmDefaultRPS   = 2
)

// Options carries CLI overrides applied on top of the environment config.
// Zero values leave the configured defaults untouched.
type Options struct {
	BatchSize     int
	Resume        bool
	EntityIDs     []string
	MaxIterations int
	CostCapUSD    float64
}

// App is the assembled engine.
type App struct {
	cfg        *config.Config
	opts       Options
	knobs      config.Budget
	logger     *zerolog.Logger
	db         *storage.DB
	stores     ports.Stores
	catalog    *templates.Catalog
	health     *observability.Server
	discovery  *discovery.Orchestrator
	batch      *batch.Orchestrator
	compressor *cluster.Compressor
}

// New builds the engine from configuration with CLI overrides applied.
// Invalid budget or template configuration fails here, before any entity is
// touched.
func New(ctx context.Context, cfg *config.Config, opts Options, logger *zerolog.Logger) (*App, error) {
	knobs, err := config.LoadBudget(cfg.BudgetConfigPath)
	if err != nil {
		return nil, err
	}

	if opts.MaxIterations > 0 {
		knobs.MaxIterationsPerEntity = opts.MaxIterations
	}

	if opts.CostCapUSD > 0 {
		knobs.CostCapUSD = opts.CostCapUSD
	}

	catalog, err := templates.Load(cfg.TemplatesPath)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:     cfg,
		opts:    opts,
		knobs:   knobs,
		logger:  logger,
		catalog: catalog,
	}

	if err := a.initStores(ctx); err != nil {
		return nil, err
	}

	clock := ports.NewSystemClock()
	judge := a.buildJudge()
	embedder := a.buildEmbedder()

	searcher := search.NewClient(cfg.SearchCacheTTL, logger,
		search.NewHTTPEngine(search.HTTPEngineConfig{Name: search.EngineGoogle, BaseURL: cfg.SearchBaseURL, Timeout: cfg.SearchTimeout}),
		search.NewHTTPEngine(search.HTTPEngineConfig{Name: search.EngineBing, BaseURL: cfg.SearchBaseURL, Timeout: cfg.SearchTimeout}),
		search.NewHTTPEngine(search.HTTPEngineConfig{Name: search.EngineDuckDuckGo, BaseURL: cfg.SearchBaseURL, Timeout: cfg.SearchTimeout}),
	)

	scraper := scrape.NewClient(scrape.NewFetcher(cfg.WebFetchRPS, cfg.WebFetchTimeout), cfg.MaxContentLength, logger)
	verifier := verify.New(cfg.VerifyTimeout, logger)

	novelty := ralph.NoveltySchedule{
		FullUntil:   knobs.NoveltyFullUntil,
		MediumUntil: knobs.NoveltyMediumUntil,
		LowUntil:    knobs.NoveltyLowUntil,
	}

	intelligence := cluster.NewIntelligence(a.stores.Bindings, a.stores.ClusterStats, clock, logger)

	a.discovery = discovery.NewOrchestrator(discovery.Deps{
		Searcher:   searcher,
		Scraper:    scraper,
		Loop:       ralph.NewLoop(judge, novelty, logger),
		Validator:  ralph.NewValidator(judge, verifier, logger),
		Hypotheses: hypothesis.NewManager(a.stores.Hypotheses, clock, logger),
		Bindings:   binding.NewManager(a.stores.Bindings, clock, logger),
		Clusters:   intelligence,
		Stores:     a.stores,
		Knobs:      knobs,
		Clock:      clock,
		Logger:     logger,
	})

	a.batch = batch.NewOrchestrator(a.discovery, catalog, cfg.MaxConcurrentEntities, logger)
	a.compressor = cluster.NewCompressor(a.stores.Episodes, embedder, clock, logger)
	a.health = observability.NewServer(a.pinger(), cfg.HealthPort, logger)

	return a, nil
}

// Run executes the batch: load entities, honour resume semantics, process,
// then compress episode memory for the entities that completed.
func (a *App) Run(ctx context.Context) (batch.Summary, error) {
	entities, err := a.loadEntities()
	if err != nil {
		return batch.Summary{}, err
	}

	if !a.opts.Resume {
		if err := os.Remove(a.cfg.CheckpointPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return batch.Summary{}, fmt.Errorf("reset checkpoint: %w", err)
		}
	}

	a.health.SetReady(true)

	summary, err := a.batch.Run(ctx, entities, a.cfg.CheckpointPath)
	if err != nil {
		return summary, err
	}

	a.compressEpisodes(ctx, entities)

	return summary, nil
}

// StartHealthServer blocks serving /healthz, /readyz, and /metrics.
func (a *App) StartHealthServer(ctx context.Context) error {
	return a.health.Start(ctx)
}

// Close releases held resources.
func (a *App) Close() {
	if a.db != nil {
		a.db.Close()
	}
}

func (a *App) initStores(ctx context.Context) error {
	if a.cfg.StoreKind == storeKindMemory {
		a.stores = storage.NewMemory().Stores()

		return nil
	}

	db, err := storage.New(ctx, a.cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("connect store: %w", err)
	}

	if err := db.Migrate(ctx); err != nil {
		db.Close()

		return fmt.Errorf("migrate store: %w", err)
	}

	a.db = db
	a.stores = db.Stores()

	return nil
}

// buildJudge assembles the three-tier cascade. An API key of "mock" wires
// scriptless mocks, for local smoke runs without spend.
func (a *App) buildJudge() llm.Judge {
	if a.cfg.OpenAIAPIKey == llmAPIKeyMock {
		return llm.NewCascade(a.logger,
			llm.NewMockProvider(llm.TierCheap),
			llm.NewMockProvider(llm.TierMid),
			llm.NewMockProvider(llm.TierExpensive),
		)
	}

	providers := []llm.Provider{
		llm.NewOpenAIProvider(a.cfg.OpenAIAPIKey, a.cfg.CheapModel, llm.TierCheap, llmDefaultRPS, a.logger),
		llm.NewOpenAIProvider(a.cfg.OpenAIAPIKey, a.cfg.MidModel, llm.TierMid, llmDefaultRPS, a.logger),
	}

	if a.cfg.AnthropicAPIKey != "" {
		providers = append(providers, llm.NewAnthropicProvider(a.cfg.AnthropicAPIKey, a.cfg.ExpensiveModel, llmDefaultRPS, a.logger))
	} else {
		providers = append(providers, llm.NewOpenAIProvider(a.cfg.OpenAIAPIKey, a.cfg.MidModel, llm.TierExpensive, llmDefaultRPS, a.logger))
	}

	return llm.NewCascade(a.logger, providers...)
}

func (a *App) buildEmbedder() embeddings.Client {
	if a.cfg.OpenAIAPIKey == llmAPIKeyMock {
		return &embeddings.MockClient{Default: make([]float32, embeddings.DefaultDimensions)}
	}

	return embeddings.NewOpenAIClient(embeddings.Config{
		APIKey:     a.cfg.OpenAIAPIKey,
		Model:      a.cfg.EmbeddingModel,
		Dimensions: a.cfg.EmbeddingDimensions,
	})
}

func (a *App) pinger() observability.Pinger {
	if a.db == nil {
		return nil
	}

	return a.db
}

// loadEntities reads the entity catalog, applies the id filter, and caps the
// list at the batch size.
func (a *App) loadEntities() ([]domain.Entity, error) {
	data, err := os.ReadFile(a.cfg.EntitiesPath)
	if err != nil {
		return nil, fmt.Errorf("%w: read entities %s: %v", cerrors.ErrConfigInvalid, a.cfg.EntitiesPath, err)
	}

	var records []entityRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: parse entities %s: %v", cerrors.ErrConfigInvalid, a.cfg.EntitiesPath, err)
	}

	wanted := make(map[string]bool, len(a.opts.EntityIDs))
	for _, id := range a.opts.EntityIDs {
		wanted[id] = true
	}

	size := a.opts.BatchSize
	if size <= 0 {
		size = a.cfg.BatchSize
	}

	var entities []domain.Entity

	for _, r := range records {
		if len(wanted) > 0 && !wanted[r.EntityID] {
			continue
		}

		entities = append(entities, r.entity())

		if len(entities) == size {
			break
		}
	}

	if len(entities) == 0 {
		return nil, fmt.Errorf("%w: entity list is empty after filtering", cerrors.ErrConfigInvalid)
	}

	return entities, nil
}

// compressEpisodes consolidates episode memory after a batch. Best effort;
// a failure only logs.
func (a *App) compressEpisodes(ctx context.Context, entities []domain.Entity) {
	for _, e := range entities {
		result, err := a.compressor.Compress(ctx, e.EntityID)
		if err != nil {
			a.logger.Warn().Err(err).Str("entity_id", e.EntityID).Msg("episode compression failed")

			continue
		}

		if len(result.Clustered) > 0 {
			a.logger.Info().
				Str("entity_id", e.EntityID).
				Int("original", result.Original).
				Int("clustered", len(result.Clustered)).
				Float64("ratio", result.Ratio).
				Msg("episode memory compressed")
		}
	}
}

type entityRecord struct {
	EntityID        string `json:"entity_id"`
	Name            string `json:"name"`
	Type            string `json:"type"`
	Sport           string `json:"sport"`
	Country         string `json:"country"`
	ClusterID       string `json:"cluster_id"`
	PriorityTier    int    `json:"priority_tier"`
	DigitalMaturity string `json:"digital_maturity"`
}

func (r entityRecord) entity() domain.Entity {
	return domain.Entity{
		EntityID:        r.EntityID,
		Name:            r.Name,
		Type:            r.Type,
		Sport:           r.Sport,
		Country:         r.Country,
		ClusterID:       r.ClusterID,
		PriorityTier:    r.PriorityTier,
		DigitalMaturity: r.DigitalMaturity,
	}
}
