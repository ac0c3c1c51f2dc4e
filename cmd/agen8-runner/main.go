// agen8-runner — сервис выполнения workflow из очереди.
//
// Runner:
//   - Отдаёт HTTP API (/api/v1/...) для синхронного выполнения и архива
//   - Получает графы из RabbitMQ (workflows.submitted)
//   - Валидирует и выполняет их по одному
//   - Архивирует отчёты в PostgreSQL
//   - Публикует отчёты в workflows.completed
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/agen8/internal/actions"
	"github.com/shaiso/agen8/internal/api"
	"github.com/shaiso/agen8/internal/executor"
	"github.com/shaiso/agen8/internal/mq"
	"github.com/shaiso/agen8/internal/repo"
	"github.com/shaiso/agen8/internal/runner"
	"github.com/shaiso/agen8/internal/telemetry"
)

func main() {
	logger := telemetry.SetupLogger()
	logger.Info("starting agen8-runner")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool (архив опционален)
	var store runner.ReportStore
	var reports api.ReportReader
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Warn("database not available, reports will not be archived", "error", err)
	} else {
		defer pool.Close()
		if err := repo.EnsureSchema(ctx, pool); err != nil {
			logger.Error("failed to apply schema", "error", err)
			os.Exit(1)
		}
		reportRepo := repo.NewReportRepo(pool)
		store, reports = reportRepo, reportRepo
		logger.Info("database connected")
	}

	// RabbitMQ
	mqURL := os.Getenv("RABBITMQ_URL")
	if mqURL == "" {
		mqURL = mq.DefaultURL()
	}

	mqConn, err := mq.NewConnection(mqURL, logger)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer mqConn.Close()

	if err := mq.SetupTopology(ctx, mqConn); err != nil {
		logger.Error("failed to setup topology", "error", err)
		os.Exit(1)
	}
	logger.Debug(mq.TopologyInfo())

	// Executor
	registry := actions.BuiltinRegistry(actions.Options{
		RatePerHost: envFloat("RATE_PER_HOST", 0),
		Burst:       envInt("RATE_BURST", 1),
		Logger:      logger,
	})
	logger.Info("actions registered", "count", registry.Count())
	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)
	exec := executor.New(executor.Config{
		Registry:    registry,
		Concurrency: envInt("RUNNER_CONCURRENCY", 4),
		NodeTimeout: time.Duration(envInt("NODE_TIMEOUT_SEC", 30)) * time.Second,
		Logger:      logger,
		Metrics:     metrics,
	})

	publisher := mq.NewPublisher(mqConn, logger)

	r := runner.New(runner.Config{
		Workflows: exec,
		Store:     store,
		Publisher: publisher,
		Conn:      mqConn,
		Logger:    logger,
	})

	if err := r.Start(ctx); err != nil {
		logger.Error("failed to start runner", "error", err)
		os.Exit(1)
	}

	// HTTP mux: API + /healthz + /metrics
	mux := http.NewServeMux()
	api.NewHandler(api.Config{
		Workflows: exec,
		Catalog:   registry,
		Reports:   reports,
		Submitter: publisher,
		Logger:    logger,
	}).RegisterRoutes(mux)

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if !mqConn.IsConnected() || r.IsStopped() {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("unavailable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8083"
	if v := os.Getenv("RUNNER_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()

	r.Stop()
	logger.Info("agen8-runner stopped", "processed", r.Processed())
}

func envInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil && v > 0 {
		return v
	}
	return fallback
}
