package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"example.com/training/internal/analysis"
	"example.com/training/internal/api"
	"example.com/training/internal/auth"
	"example.com/training/internal/config"
	"example.com/training/internal/hrvplan"
	"example.com/training/internal/ingest"
	"example.com/training/internal/observability"
	"example.com/training/internal/outbox"
	"example.com/training/internal/provider"
	"example.com/training/internal/store/postgres"
	httptransport "example.com/training/internal/transport/http"
)

func main() {
	cfg := config.Load()

	logger, err := observability.NewLogger(cfg.LogLevel, "training-api")
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

	activityClient := provider.NewActivityClient(cfg.ActivityAPIBaseURL, cfg.ActivityAPIToken, logger)
	orchestrator := ingest.NewOrchestrator(
		repo,
		provider.NewWeightClient(cfg.WeightAPIBaseURL, cfg.WeightAPIToken, logger),
		provider.NewStrengthClient(cfg.StrengthAPIBaseURL, cfg.StrengthAPIToken, logger),
		provider.NewRecoveryClient(cfg.RecoveryAPIBaseURL, cfg.RecoveryAPIToken, logger),
		activityClient,
		analysis.NewAnalyzer(activityClient, repo, logger),
		hrvplan.NewPlanner(repo, logger),
		activitiesCutoff(cfg, logger),
		logger,
	)

	handler := api.NewHandler(repo, repo, orchestrator)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	// Simple CORS middleware for local dev
	cors := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "http://localhost:5173")
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}

	requestLogger := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.Debug("request", zap.String("method", r.Method), zap.String("path", r.URL.Path))
			next.ServeHTTP(w, r)
		})
	}

	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer})

	server := httptransport.NewServer(httptransport.ServerConfig{
		Address:      cfg.HTTPAddress,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, authMiddleware.Wrap(requestLogger(cors(mux))))

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("training-api listening", zap.String("address", cfg.HTTPAddress))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-shutdownCh
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}

	dispatcher.Wait()
}

func activitiesCutoff(cfg config.Config, logger *zap.Logger) time.Time {
	cutoff, err := time.Parse("2006-01-02", cfg.ActivitiesAfterDate)
	if err != nil {
		logger.Fatal("invalid ACTIVITIES_AFTER_DATE", zap.String("value", cfg.ActivitiesAfterDate), zap.Error(err))
	}
	return cutoff
}
