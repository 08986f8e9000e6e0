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
	"github.com/AfshinJalili/bankflow/libs/postgres"
	"github.com/AfshinJalili/bankflow/libs/trace"
	"github.com/AfshinJalili/bankflow/services/notification/internal/config"
	"github.com/AfshinJalili/bankflow/services/notification/internal/consumer"
	"github.com/AfshinJalili/bankflow/services/notification/internal/handlers"
	"github.com/AfshinJalili/bankflow/services/notification/internal/notifier"
	"github.com/AfshinJalili/bankflow/services/notification/internal/service"
	"github.com/AfshinJalili/bankflow/services/notification/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
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
	notificationMetrics := service.NewMetrics(registry)
	producerMetrics := kafka.NewProducerMetrics(registry)
	consumerMetrics := kafka.NewConsumerMetrics(registry)

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

	// The producer only carries dead letters; this service emits no events.
	producer, err := kafka.NewSyncProducer(cfg.Kafka.Brokers, logger, producerMetrics)
	if err != nil {
		logger.Error("kafka producer init failed", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	dispatcher := service.NewDispatcher(storage.New(pool), buildNotifier(cfg, logger), logger, notificationMetrics)
	handler := handlers.New(dispatcher, logger)

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

	router := consumer.NewConsumer(dispatcher, logger).Router()

	httpServer := buildHTTPServer(cfg, ready, registry, httpMetrics, logger, handler.Register)

	ready.SetReady(true)

	go func() {
		logger.Info("notification http starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		logger.Info("notification consumer starting", "topics", router.Topics())
		if err := consumerGroup.Consume(ctx, router.Topics(), router); err != nil {
			logger.Error("kafka consumer error", "error", err)
		}
	}()

	waitForShutdown(httpServer, ready, cancel, logger)
}

func buildNotifier(cfg *config.Config, logger *slog.Logger) notifier.Notifier {
	fallback := notifier.NewLogNotifier(logger)
	channels := notifier.Channels{Email: fallback, SMS: fallback}

	if cfg.Mail.Enabled() {
		channels.Email = notifier.NewSendGridMailer(cfg.Mail.APIKey, cfg.Mail.Host, cfg.Mail.From, cfg.Mail.FromName)
	} else {
		logger.Warn("SENDGRID_API_KEY not set, emails are logged only")
	}
	if cfg.SMS.Provider == config.SMSProviderGateway {
		channels.SMS = notifier.NewSMSGateway(cfg.SMS.GatewayURL, cfg.SMS.APIKey, cfg.SMS.Sender, cfg.SMS.Timeout, cfg.SMS.Retries, logger)
	}
	return channels
}

func buildHTTPServer(cfg *config.Config, ready *health.Manager, registry *prometheus.Registry, httpMetrics *metrics.HTTP, logger *slog.Logger, routes func(gin.IRouter)) *http.Server {
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

func waitForShutdown(httpServer *http.Server, ready *health.Manager, cancel context.CancelFunc, logger *slog.Logger) {
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
	logger.Info("shutdown complete")
}
