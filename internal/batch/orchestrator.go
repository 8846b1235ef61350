package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/KieranMcFarlane/panther-chat-sub003/internal/core/domain"
	"github.com/KieranMcFarlane/panther-chat-sub003/internal/platform/observability"
)

const (
	// maxConcurrency is the hard cap; entity runs are self-contained so
	// parallelism is safe, but LLM and search quotas bound it.
	maxConcurrency = 10

	defaultProgressEvery = 10
)

// Runner executes discovery for one entity; see internal/discovery.
type Runner interface {
	RunEntity(ctx context.Context, entity domain.Entity, template domain.Template) (*domain.Dossier, error)
}

// TemplateResolver selects the template for an entity by priority tier and
// type.
type TemplateResolver interface {
	Resolve(ctx context.Context, entity domain.Entity) (domain.Template, error)
}

// Orchestrator runs an ordered entity list with checkpointed resume.
type Orchestrator struct {
	runner        Runner
	templates     TemplateResolver
	logger        *zerolog.Logger
	concurrency   int
	progressEvery int
}

// NewOrchestrator builds a batch orchestrator. Concurrency defaults to 1 and
// is capped at 10.
func NewOrchestrator(runner Runner, templates TemplateResolver, concurrency int, logger *zerolog.Logger) *Orchestrator {
	if concurrency < 1 {
		concurrency = 1
	}

	if concurrency > maxConcurrency {
		concurrency = maxConcurrency
	}

	return &Orchestrator{
		runner:        runner,
		templates:     templates,
		logger:        logger,
		concurrency:   concurrency,
		progressEvery: defaultProgressEvery,
	}
}

// Summary is the batch outcome.
type Summary struct {
	Total     int
	Processed int
	Skipped   int
	Failed    int
}

// Run processes the entity list, checkpointing after every entity. Entities
// already in the checkpoint are skipped, so an interrupted batch resumes
// exactly once per entity. One entity's failure never stops the batch.
func (o *Orchestrator) Run(ctx context.Context, entities []domain.Entity, checkpointPath string) (Summary, error) {
	cp, err := LoadCheckpoint(checkpointPath)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{Total: len(entities)}

	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)

	done := 0

	for i, entity := range entities {
		if cp.Processed(entity.EntityID) {
			summary.Skipped++

			continue
		}

		g.Go(func() error {
			dossier, runErr := o.runOne(gctx, entity)

			mu.Lock()
			defer mu.Unlock()

			if runErr != nil {
				summary.Failed++
				cp.FailedEntities = append(cp.FailedEntities, FailedEntity{EntityID: entity.EntityID, Error: runErr.Error()})

				observability.EntitiesProcessed.WithLabelValues("failed").Inc()
				o.logger.Error().Err(runErr).Str("entity_id", entity.EntityID).Msg("entity failed, batch continues")
			} else {
				summary.Processed++
				cp.ResultsSummary = append(cp.ResultsSummary, EntitySummary{
					EntityID:        entity.EntityID,
					FinalConfidence: dossier.FinalConfidence,
					ConfidenceBand:  dossier.ConfidenceBand,
					SignalCount:     len(dossier.ValidatedSignals),
					StoppingReason:  dossier.StoppingReason,
				})

				observability.EntitiesProcessed.WithLabelValues("ok").Inc()
			}

			cp.ProcessedEntityIDs = append(cp.ProcessedEntityIDs, entity.EntityID)

			if i > cp.LastProcessedIndex {
				cp.LastProcessedIndex = i
			}

			cp.Timestamp = time.Now().UTC()

			if saveErr := cp.Save(checkpointPath); saveErr != nil {
				return fmt.Errorf("checkpoint after %s: %w", entity.EntityID, saveErr)
			}

			done++
			if done%o.progressEvery == 0 {
				o.logger.Info().
					Int("done", done).
					Int("total", summary.Total).
					Int("failed", summary.Failed).
					Msg("batch progress")
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return summary, err
	}

	o.logger.Info().
		Int("processed", summary.Processed).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Msg("batch complete")

	return summary, nil
}

// runOne resolves the template and runs discovery, converting panics into
// isolated failures.
func (o *Orchestrator) runOne(ctx context.Context, entity domain.Entity) (dossier *domain.Dossier, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("entity run panicked: %v", r)
		}
	}()

	template, err := o.templates.Resolve(ctx, entity)
	if err != nil {
		return nil, fmt.Errorf("resolve template: %w", err)
	}

	return o.runner.RunEntity(ctx, entity, template)
}
