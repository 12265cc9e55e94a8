// Package main is the entry point for the batchplane daemon.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"batchplane/internal/batch"
	"batchplane/internal/config"
	"batchplane/internal/logger"
	"batchplane/internal/observability"
	"batchplane/internal/server"
	"batchplane/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	slogger := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Tracing (optional, enabled by BATCHPLANE_OTEL_ENDPOINT)
	if cfg.OTELEndpoint != "" {
		shutdownTracer, err := observability.InitTracer(ctx, "batchd", cfg.OTELEndpoint)
		if err != nil {
			log.Fatalf("Failed to init tracing: %v", err)
		}
		defer func() {
			if err := shutdownTracer(context.Background()); err != nil {
				slogger.Error("failed to shutdown tracer", "error", err)
			}
		}()
	}

	// Metrics
	metricsHandler, shutdownMetrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatalf("Failed to init metrics: %v", err)
	}
	defer func() {
		if err := shutdownMetrics(context.Background()); err != nil {
			slogger.Error("failed to shutdown metrics", "error", err)
		}
	}()

	manager := batch.NewManager(batch.ManagerConfig{
		Workers:            cfg.Workers,
		MaxCPUPercent:      cfg.MaxCPUPercent,
		MaxMemoryPercent:   cfg.MaxMemoryPercent,
		AdmissionPolicy:    cfg.AdmissionPolicy,
		RetryPolicy:        cfg.RetryPolicy,
		MonitoringInterval: cfg.MonitoringInterval,
		AlertQueueSize:     cfg.AlertQueueSize,
		AlertFailureRate:   cfg.AlertFailureRate,
		AlertResourceUsage: cfg.AlertResourceUsage,
	}, batch.NewSystemProbe(), slogger)

	if err := observability.RegisterSchedulerMetrics(manager.Scheduler()); err != nil {
		slogger.Error("failed to register scheduler metrics", "error", err)
	}

	registry := tasks.NewRegistry()
	if err := tasks.RegisterBuiltins(registry); err != nil {
		log.Fatalf("Failed to register tasks: %v", err)
	}

	manager.Start()
	defer manager.Stop()

	srv := server.New(server.Config{
		Addr:           cfg.ListenAddr,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	}, manager, registry, slogger, metricsHandler)

	slogger.Info("batchd listening", "addr", cfg.ListenAddr, "workers", cfg.Workers)
	if err := srv.Run(ctx); err != nil {
		slogger.Error("server exited", "error", err)
	}
}
