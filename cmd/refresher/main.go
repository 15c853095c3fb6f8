// Command refresher runs scheduled ingestion cycles. With REFRESH_INTERVAL
// unset it performs a single run and exits, which suits cron-style
// scheduling; with an interval it loops until terminated.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"example.com/training/internal/analysis"
	"example.com/training/internal/config"
	"example.com/training/internal/hrvplan"
	"example.com/training/internal/ingest"
	"example.com/training/internal/observability"
	"example.com/training/internal/outbox"
	"example.com/training/internal/provider"
	"example.com/training/internal/store/postgres"
)

func main() {
	truncate := flag.Bool("truncate", false, "delete every time-series entity before pulling")
	truncateAfter := flag.String("truncate-after", "", "restrict the truncate to rows on or after this date (YYYY-MM-DD)")
	process := flag.String("process", "system", "process label recorded in the refresh ledger")
	flag.Parse()

	cfg := config.Load()

	logger, err := observability.NewLogger(cfg.LogLevel, "training-refresher")
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	repo := postgres.NewRepository(pool)
	producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
	defer producer.Close()

	registry := outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL)
	dispatcher := outbox.NewDispatcher(pool, producer, registry, cfg.OutboxPollInterval, cfg.OutboxBatchSize)
	go dispatcher.Start(ctx)

	cutoff, err := time.Parse("2006-01-02", cfg.ActivitiesAfterDate)
	if err != nil {
		logger.Fatal("invalid ACTIVITIES_AFTER_DATE", zap.String("value", cfg.ActivitiesAfterDate), zap.Error(err))
	}

	activityClient := provider.NewActivityClient(cfg.ActivityAPIBaseURL, cfg.ActivityAPIToken, logger)
	orchestrator := ingest.NewOrchestrator(
		repo,
		provider.NewWeightClient(cfg.WeightAPIBaseURL, cfg.WeightAPIToken, logger),
		provider.NewStrengthClient(cfg.StrengthAPIBaseURL, cfg.StrengthAPIToken, logger),
		provider.NewRecoveryClient(cfg.RecoveryAPIBaseURL, cfg.RecoveryAPIToken, logger),
		activityClient,
		analysis.NewAnalyzer(activityClient, repo, logger),
		hrvplan.NewPlanner(repo, logger),
		cutoff,
		logger,
	)

	opts := ingest.Options{Process: *process, Truncate: *truncate}
	if *truncateAfter != "" {
		parsed, err := time.Parse("2006-01-02", *truncateAfter)
		if err != nil {
			logger.Fatal("invalid -truncate-after", zap.String("value", *truncateAfter), zap.Error(err))
		}
		opts.TruncateAfter = &parsed
	}

	runOnce := func() {
		runAt := orchestrator.Refresh(ctx, cfg.AthleteID, opts)
		logger.Info("refresh run complete", zap.Time("run_at", runAt))
		// Truncate options apply to the first run only when looping.
		opts.Truncate = false
		opts.TruncateAfter = nil
	}

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	runOnce()

	if cfg.RefreshInterval <= 0 {
		cancel()
		dispatcher.Wait()
		return
	}

	ticker := time.NewTicker(cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-shutdownCh:
			cancel()
			dispatcher.Wait()
			return
		case <-ticker.C:
			runOnce()
		}
	}
}
