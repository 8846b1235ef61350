package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/KieranMcFarlane/panther-chat-sub003/internal/app"
	"github.com/KieranMcFarlane/panther-chat-sub003/internal/platform/config"
)

// Exit codes: 0 all entities completed, 2 some entities failed, 1 hard error
// (store unreachable, invalid configuration).
const (
	exitOK      = 0
	exitHard    = 1
	exitPartial = 2
)

var errPartialFailure = errors.New("some entities failed")

func main() {
	os.Exit(run())
}

func run() int {
	var (
		opts       app.Options
		budgetPath string
		entityIDs  []string
	)

	root := &cobra.Command{
		Use:           "discovery",
		Short:         "Batch procurement-signal discovery for sports entities",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.EntityIDs = entityIDs

			return runBatch(cmd.Context(), opts, budgetPath)
		},
	}

	root.Flags().IntVar(&opts.BatchSize, "batch-size", 0, "Max entities to process this run (default from env)")
	root.Flags().BoolVar(&opts.Resume, "resume", false, "Resume from the existing checkpoint instead of starting fresh")
	root.Flags().StringSliceVar(&entityIDs, "entities", nil, "Comma-separated entity ids to restrict the run to")
	root.Flags().IntVar(&opts.MaxIterations, "max-iterations", 0, "Override the per-entity iteration cap")
	root.Flags().Float64Var(&opts.CostCapUSD, "cost-cap", 0, "Override the per-entity cost cap in USD")
	root.Flags().StringVar(&budgetPath, "config", "", "Path to exploration-budget.json (default from env)")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		if errors.Is(err, errPartialFailure) {
			return exitPartial
		}

		fmt.Fprintln(os.Stderr, err)

		return exitHard
	}

	return exitOK
}

func runBatch(ctx context.Context, opts app.Options, budgetPath string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if budgetPath != "" {
		cfg.BudgetConfigPath = budgetPath
	}

	logger := newLogger(cfg.AppEnv, cfg.LogLevel)

	engine, err := app.New(ctx, cfg, opts, &logger)
	if err != nil {
		return err
	}
	defer engine.Close()

	go func() {
		if err := engine.StartHealthServer(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("health server error")
		}
	}()

	summary, err := engine.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info().Msg("batch cancelled")
		}

		return err
	}

	logger.Info().
		Int("total", summary.Total).
		Int("processed", summary.Processed).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Msg("discovery run finished")

	if summary.Failed > 0 {
		return errPartialFailure
	}

	return nil
}

func newLogger(appEnv, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	if appEnv == "local" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
			Level(lvl).With().Timestamp().Logger()
	}

	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}
