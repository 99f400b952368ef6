// CreditX - Credit risk scoring and pricing for trade credit insurance.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opensource-finance/creditx/internal/api"
	"github.com/opensource-finance/creditx/internal/bus"
	"github.com/opensource-finance/creditx/internal/cache"
	"github.com/opensource-finance/creditx/internal/config"
	"github.com/opensource-finance/creditx/internal/domain"
	"github.com/opensource-finance/creditx/internal/pricing"
	"github.com/opensource-finance/creditx/internal/report"
	"github.com/opensource-finance/creditx/internal/repository"
	"github.com/opensource-finance/creditx/internal/scoring"
	"github.com/opensource-finance/creditx/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("CREDITX_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting creditx",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("CREDITX_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}
	if path := os.Getenv("CREDITX_WEIGHTS"); path != "" {
		cfg.Weights.Path = path
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"weights_source", cfg.Weights.Source,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize Scoring Engine
	engine, err := scoring.NewEngine()
	if err != nil {
		slog.Error("failed to initialize scoring engine", "error", err)
		os.Exit(1)
	}

	// Initialize Weights Store. Every candidate document is validated,
	// including referral rule compilation, before it can go live.
	store, err := config.New(ctx, weightsSource(cfg, repo),
		config.WithValidator(engine.ValidateConfig),
		config.WithAudit(repo),
	)
	if err != nil {
		slog.Error("failed to load weights document", "error", err)
		os.Exit(1)
	}
	if err := engine.Reload(store.Current()); err != nil {
		slog.Error("failed to compile referral rules", "error", err)
		os.Exit(1)
	}
	slog.Info("weights loaded",
		"version", store.Version(),
		"source", store.Describe(),
		"referral_rules", engine.ReferralRulesCount(),
	)

	// Initialize Pricer with memo cache
	pricer := pricing.New(cacheImpl, cfg.Cache.LocalTTL)
	slog.Info("pricer initialized", "memo_ttl", cfg.Cache.LocalTTL)

	// Initialize Report Worker
	aggregator := report.NewAggregator()
	reportWorker := worker.NewWorker(busImpl, aggregator)
	if err := reportWorker.Start(); err != nil {
		slog.Error("failed to start report worker", "error", err)
		os.Exit(1)
	}

	// Initialize Server
	info := api.BuildInfo{Version: Version, Commit: Commit, BuildDate: BuildDate}
	srv := api.NewServer(cfg.Server, store, engine, pricer, repo, cacheImpl, busImpl, aggregator, info)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("creditx is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop report worker first
	if err := reportWorker.Stop(); err != nil {
		slog.Error("failed to stop report worker", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("creditx shutdown complete")
}

// weightsSource selects where the weights document lives. File-backed
// deployments reload from disk; store-backed deployments keep revision
// history in the repository and accept uploads, seeded from the bootstrap
// file on first boot.
func weightsSource(cfg *domain.Config, repo domain.DocumentStore) config.Source {
	if cfg.Weights.Source == domain.WeightsSourceStore {
		return config.NewStoreSource(repo, cfg.Weights.Path)
	}
	return config.NewFileSource(cfg.Weights.Path)
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ==============================================")
	fmt.Println("                  CREDITX")
	fmt.Println("       Credit Risk Scoring & Pricing API")
	fmt.Println("  ==============================================")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /triage/underwriting      - Score submissions for triage")
	fmt.Println("    POST /triage/underwriting/csv  - Score submissions from CSV upload")
	fmt.Println("    POST /renewals/priority        - Rank policies for renewal attention")
	fmt.Println("    POST /renewals/priority/csv    - Rank policies from CSV upload")
	fmt.Println("    POST /pricing/suggest          - Suggest premium rates and bands")
	fmt.Println("    POST /pricing/suggest/csv      - Suggest rates from CSV upload")
	fmt.Println("    POST /policy/check             - Validate requested coverage")
	fmt.Println("    GET  /config/current           - Active weights document")
	fmt.Println("    GET  /config/versions          - Weights revision history")
	fmt.Println("    POST /admin/reload-weights     - Reload the weights document")
	fmt.Println("    POST /admin/weights            - Upload a new weights document")
	fmt.Println("    GET  /reports/importance       - Running feature importance totals")
	fmt.Println("    GET  /health                   - Health check")
	fmt.Println()
}
