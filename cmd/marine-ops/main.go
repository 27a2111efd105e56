package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/marine-ops/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/marine-ops/internal/adapter/kafka"
	"github.com/couchcryptid/marine-ops/internal/config"
	"github.com/couchcryptid/marine-ops/internal/eri"
	"github.com/couchcryptid/marine-ops/internal/fusion"
	"github.com/couchcryptid/marine-ops/internal/observability"
	"github.com/couchcryptid/marine-ops/internal/pipeline"
	"github.com/couchcryptid/marine-ops/internal/provider"
	"github.com/jonboulle/clockwork"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	rules, err := eri.Load(cfg.ERIRulesPath)
	if err != nil {
		logger.Error("failed to load ERI rules", "path", cfg.ERIRulesPath, "error", err)
		os.Exit(1)
	}

	mgr, err := provider.Build(cfg, clock, logger, metrics)
	if err != nil {
		logger.Error("failed to build provider chain", "error", err)
		os.Exit(1)
	}
	logger.Info("provider chain ready",
		"providers", mgr.Providers(),
		"concurrency", cfg.ProviderConcurrency,
		"ensemble", len(cfg.EnsembleWeights) > 0,
		"rules", rules.Name,
	)

	assessor := pipeline.NewAssessor(mgr, mgr, pipeline.AssessorConfig{
		Hours:   cfg.ForecastHours,
		Rules:   rules,
		Risk:    cfg.Risk,
		Weights: cfg.EnsembleWeights,
	}, logger, metrics)
	writer := kafkaadapter.NewWriter(cfg, logger)

	p := pipeline.New(cfg.Routes, assessor, writer, cfg.AssessmentInterval, clock, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, httpadapter.API{
		Forecasts: mgr,
		Rules:     rules,
		Params:    fusion.DefaultParams(),
	}, metrics, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start assessment pipeline.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	logger.Info("shutdown complete")
}
