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

	"github.com/AfshinJalili/bankflow/libs/health"
	"github.com/AfshinJalili/bankflow/libs/httpmiddleware"
	"github.com/AfshinJalili/bankflow/libs/kafka"
	"github.com/AfshinJalili/bankflow/libs/logging"
	"github.com/AfshinJalili/bankflow/libs/metrics"
	"github.com/AfshinJalili/bankflow/libs/outbox"
	"github.com/AfshinJalili/bankflow/libs/postgres"
	"github.com/AfshinJalili/bankflow/libs/trace"
	"github.com/AfshinJalili/bankflow/services/customer/internal/branch"
	"github.com/AfshinJalili/bankflow/services/customer/internal/config"
	"github.com/AfshinJalili/bankflow/services/customer/internal/consumer"
	"github.com/AfshinJalili/bankflow/services/customer/internal/handlers"
	"github.com/AfshinJalili/bankflow/services/customer/internal/service"
	"github.com/AfshinJalili/bankflow/services/customer/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.App.LogLevel, cfg.App.ServiceName, cfg.App.Env)
	shutdownTracer, err := trace.InitTracer(context.Background(), cfg.App.ServiceName, cfg.App.Env)
	if err != nil {
		logger.Error("tracer init failed", "error", err)
	} else {
		defer func() {
			_ = shutdownTracer(context.Background())
		}()
	}

	if cfg.App.Env == "dev" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	registry := metrics.NewRegistry()
	httpMetrics := metrics.NewHTTP(registry)
	customerMetrics := service.NewMetrics(registry)
	producerMetrics := kafka.NewProducerMetrics(registry)
	consumerMetrics := kafka.NewConsumerMetrics(registry)
	outboxMetrics := outbox.NewMetrics(registry)

	ready := health.NewManager(false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := postgres.Connect(ctx, cfg.DB.DSN())
	if err != nil {
		logger.Error("db connection failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	ready.AddCheck("postgres", pool.Ping)

	if err := postgres.Migrate(ctx, pool, storage.Migrations, storage.MigrationsDir, storage.VersionTable); err != nil {
		logger.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	producer, err := kafka.NewSyncProducer(cfg.Kafka.Brokers, logger, producerMetrics)
	if err != nil {
		logger.Error("kafka producer init failed", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	store := storage.New(pool)
	relay := outbox.NewRelay(store.Outbox(), producer, cfg.Outbox.BatchSize, logger, outboxMetrics)
	stopRelay, err := relay.Start(ctx, cfg.Outbox.Schedule)
	if err != nil {
		logger.Error("outbox relay init failed", "error", err)
		os.Exit(1)
	}

	directory, closeDirectory := buildDirectory(cfg, logger)
	defer func() {
		_ = closeDirectory()
	}()
	resolver := branch.NewResolver(directory, cfg.Branch.Candidates, logger)

	customers := service.NewCustomerService(store, resolver, logger, customerMetrics)
	handler := handlers.New(customers, resolver, logger)

	consumerGroup, err := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.ConsumerGroup, logger)
	if err != nil {
		logger.Error("kafka consumer init failed", "error", err)
		os.Exit(1)
	}
	consumerGroup.
		WithDLQ(producer, cfg.Kafka.DeadLetter).
		WithRetry(cfg.Kafka.MaxAttempts, cfg.Kafka.RetryBackoff).
		WithMetrics(consumerMetrics)
	defer consumerGroup.Close()

	router := consumer.NewApprovedConsumer(customers, logger).Router()

	httpServer := buildHTTPServer(cfg, ready, registry, httpMetrics, logger, func(r *gin.Engine) {
		handler.Register(r, cfg.JWTSecret)
	})

	ready.SetReady(true)

	go func() {
		logger.Info("customer http starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		logger.Info("customer consumer starting", "topics", router.Topics())
		if err := consumerGroup.Consume(ctx, router.Topics(), router); err != nil {
			logger.Error("kafka consumer error", "error", err)
		}
	}()

	waitForShutdown(httpServer, ready, cancel, stopRelay, logger)
}

// buildDirectory wires the HTTP branch directory, cached in Redis when
// configured. Without a directory URL every candidate is treated as ACTIVE.
func buildDirectory(cfg *config.Config, logger *slog.Logger) (branch.Directory, func() error) {
	noop := func() error { return nil }
	if cfg.Branch.DirectoryURL == "" {
		logger.Warn("branch directory not configured, treating candidates as active", "candidates", cfg.Branch.Candidates)
		statuses := make([]branch.Status, 0, len(cfg.Branch.Candidates))
		for _, code := range cfg.Branch.Candidates {
			statuses = append(statuses, branch.Status{BranchCode: code, BranchName: code, Status: branch.StatusActive})
		}
		return branch.NewStaticDirectory(statuses...), noop
	}

	var directory branch.Directory = branch.NewHTTPDirectory(cfg.Branch.DirectoryURL, cfg.Branch.Timeout, cfg.Branch.Retries, logger)
	if !cfg.Redis.Enabled() {
		return directory, noop
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unavailable, branch cache disabled", "error", err)
		_ = client.Close()
		return directory, noop
	}
	return branch.NewCachedDirectory(directory, client, cfg.Branch.CacheTTL, cfg.Redis.Prefix, logger), client.Close
}

func buildHTTPServer(cfg *config.Config, ready *health.Manager, registry *prometheus.Registry, httpMetrics *metrics.HTTP, logger *slog.Logger, routes func(*gin.Engine)) *http.Server {
	router := gin.New()
	router.Use(httpmiddleware.RequestID())
	router.Use(httpmiddleware.Logger(logger, httpMetrics))
	router.Use(httpmiddleware.Recovery(logger))
	router.Use(trace.Middleware(cfg.App.ServiceName))

	health.Register(router, ready)
	router.GET(cfg.App.MetricsPath, gin.WrapH(metrics.Handler(registry)))
	routes(router)

	return &http.Server{
		Addr:         cfg.App.HTTP.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.App.HTTP.ReadTimeout,
		WriteTimeout: cfg.App.HTTP.WriteTimeout,
		IdleTimeout:  cfg.App.HTTP.IdleTimeout,
	}
}

func waitForShutdown(httpServer *http.Server, ready *health.Manager, cancel context.CancelFunc, stopRelay func(), logger *slog.Logger) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutdown started")
	ready.SetReady(false)

	ctx, cancelTimeout := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelTimeout()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("http shutdown error", "error", err)
	}
	cancel()
	stopRelay()
	logger.Info("shutdown complete")
}
