// Sahayak - Benefit scheme eligibility that answers in milliseconds.
// Copyright (c) 2025 openwelfare
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/openwelfare/sahayak/internal/api"
	"github.com/openwelfare/sahayak/internal/bus"
	"github.com/openwelfare/sahayak/internal/cache"
	"github.com/openwelfare/sahayak/internal/domain"
	"github.com/openwelfare/sahayak/internal/extraction"
	"github.com/openwelfare/sahayak/internal/history"
	"github.com/openwelfare/sahayak/internal/registry"
	"github.com/openwelfare/sahayak/internal/repository"
	"github.com/openwelfare/sahayak/internal/rules"
	"github.com/openwelfare/sahayak/internal/worker"
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
	if os.Getenv("SAHAYAK_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting sahayak",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("SAHAYAK_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	// LLM extraction is opt-in via environment
	if v := os.Getenv("SAHAYAK_LLM_ENDPOINT"); v != "" {
		cfg.Extraction.LLMEndpoint = v
	}
	if v := os.Getenv("SAHAYAK_LLM_MODEL"); v != "" {
		cfg.Extraction.LLMModel = v
	}
	if v := os.Getenv("SAHAYAK_LLM_API_KEY"); v != "" {
		cfg.Extraction.LLMAPIKey = v
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
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

	// Tenants to serve (comma-separated, default "default")
	tenantIDs := []string{"default"}
	if envTenants := os.Getenv("SAHAYAK_TENANTS"); envTenants != "" {
		tenantIDs = strings.Split(envTenants, ",")
		for i := range tenantIDs {
			tenantIDs[i] = strings.TrimSpace(tenantIDs[i])
		}
	}

	// Initialize scheme Registry from stored documents
	reg := registry.New(logger)
	for _, tenantID := range tenantIDs {
		count, err := reg.LoadFromRepository(ctx, repo, tenantID)
		if err != nil {
			slog.Error("failed to load schemes", "tenant_id", tenantID, "error", err)
			os.Exit(1)
		}
		slog.Info("schemes loaded", "tenant_id", tenantID, "count", count)
	}

	// Initialize batch Checker
	checker := rules.NewChecker(cfg.Check, logger)
	slog.Info("checker initialized",
		"near_miss_threshold", cfg.Check.NearMissThreshold,
		"max_workers", cfg.Check.MaxWorkers,
	)

	// Initialize extraction Pipeline: LLM primary when configured, regex
	// fallback always available.
	var primary extraction.Extractor
	if llm := extraction.NewLLMExtractor(cfg.Extraction, logger); llm != nil {
		primary = llm
		slog.Info("llm extractor enabled", "model", cfg.Extraction.LLMModel)
	}
	pipeline := extraction.NewPipeline(primary, extraction.NewNLPExtractor(), logger)

	// Initialize History service
	historySvc := history.NewService(repo, cacheImpl)

	// Initialize async Worker (Pro tier)
	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("SAHAYAK_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, reg, checker, historySvc)

		workerCfg := worker.Config{
			TenantIDs: tenantIDs,
		}

		if err := asyncWorker.Start(workerCfg); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started", "tenant_count", len(tenantIDs))
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, reg, checker, pipeline, historySvc, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("sahayak is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("sahayak shutdown complete")
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               🪔 SAHAYAK                  ║")
	fmt.Println("  ║     Benefit Eligibility Engine            ║")
	fmt.Println("  ║      Every scheme, one check.             ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /check                        - Check a profile against all schemes")
	fmt.Println("    GET  /evaluations/{id}             - Get a past check by ID")
	fmt.Println("    GET  /users/{id}/history           - Get a user's check history")
	fmt.Println("    GET  /schemes                      - List all schemes")
	fmt.Println("    GET  /schemes/{id}                 - Get a scheme document")
	fmt.Println("    GET  /schemes/{id}/rules           - Get a scheme's rules")
	fmt.Println("    GET  /schemes/{id}/requirements    - Get what an applicant needs")
	fmt.Println("    POST /schemes                      - Ingest a scheme (document or text)")
	fmt.Println("    DELETE /schemes/{id}               - Delete a scheme")
	fmt.Println("    POST /schemes/reload               - Hot-reload schemes from database")
	fmt.Println("    GET  /health                       - Health check")
	fmt.Println()
}
