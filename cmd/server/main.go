package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/ricirt/updatesvc/internal/api"
	"github.com/ricirt/updatesvc/internal/api/handler"
	"github.com/ricirt/updatesvc/internal/config"
	"github.com/ricirt/updatesvc/internal/consumer"
	"github.com/ricirt/updatesvc/internal/db"
	"github.com/ricirt/updatesvc/internal/domain"
	"github.com/ricirt/updatesvc/internal/logging"
	"github.com/ricirt/updatesvc/internal/mail"
	"github.com/ricirt/updatesvc/internal/metrics"
	"github.com/ricirt/updatesvc/internal/pipeline"
	"github.com/ricirt/updatesvc/internal/ratelimiter"
	"github.com/ricirt/updatesvc/internal/repository"
	"github.com/ricirt/updatesvc/internal/rpc"
	"github.com/ricirt/updatesvc/internal/service"
)

// memoryLogCapacity bounds the in-process delivery log used without a database.
const memoryLogCapacity = 1000

func main() {
	// ---- configuration ----
	cfg, err := config.Load()
	if err != nil {
		bootLogger, _ := zap.NewProduction()
		bootLogger.Fatal("failed to load config", zap.Error(err))
	}

	logger, logCloser, err := logging.New(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	if err != nil {
		bootLogger, _ := zap.NewProduction()
		bootLogger.Fatal("failed to build logger", zap.Error(err))
	}
	defer logCloser.Close() //nolint:errcheck
	defer logger.Sync()     //nolint:errcheck

	ctx := context.Background()
	checks := map[string]handler.Check{}

	// ---- delivery log ----
	var deliveries repository.DeliveryRepository
	if cfg.DatabaseURL != "" {
		pool, err := db.Connect(ctx, cfg.DatabaseURL, db.PoolConfig{MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns})
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer pool.Close()

		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
		logger.Info("database migrations applied")

		deliveries = repository.NewPgDeliveryRepository(pool)
		checks["database"] = pingCheck(pool)
	} else {
		logger.Info("DATABASE_URL not set, keeping delivery log in memory", zap.Int("capacity", memoryLogCapacity))
		deliveries = repository.NewMemoryDeliveryRepository(memoryLogCapacity)
	}

	// ---- remote services (dialled lazily) ----
	tickets, err := rpc.NewTicketsClient(cfg.TicketsrvcURL, cfg.RPCTimeout)
	if err != nil {
		logger.Fatal("failed to create ticket service client", zap.Error(err))
	}
	defer tickets.Close() //nolint:errcheck

	validation, err := rpc.NewValidationClient(cfg.ValidationsvcURL, cfg.RPCTimeout)
	if err != nil {
		logger.Fatal("failed to create validation service client", zap.Error(err))
	}
	defer validation.Close() //nolint:errcheck

	// ---- mail ----
	composer, err := mail.NewComposer(mail.DefaultTemplate, cfg.SenderName, cfg.SenderAddress, cfg.TicketURLPrefix)
	if err != nil {
		logger.Fatal("invalid notification template", zap.Error(err))
	}
	smtpClient, err := mail.NewSMTPClient(mail.SMTPConfig{
		Host:       cfg.SMTPHost,
		Port:       cfg.SMTPPort,
		Username:   cfg.SMTPUsername,
		Password:   cfg.SMTPPassword,
		Encryption: cfg.SMTPTLS,
		Timeout:    cfg.SMTPTimeout,
	})
	if err != nil {
		logger.Fatal("failed to create mail client", zap.Error(err))
	}
	sender := mail.NewSMTPSender(smtpClient, ratelimiter.New(cfg.MailRatePerSec))

	// ---- pipeline ----
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	onReceived, onDropped, onJob := m.PipelineHooks()
	dispatcher := pipeline.NewDispatcher(pipeline.Deps{
		Resolver: tickets,
		Signer:   validation,
		Composer: composer,
		Sender:   sender,
		Recorder: deliveries,
	}, pipeline.Content{
		FlightSubject: cfg.FlightUpdateSubject,
		FlightBody:    cfg.FlightUpdateBody,
		TicketSubject: cfg.TicketUpdateSubject,
		TicketBody:    cfg.TicketUpdateBody,
	}, cfg.JobConcurrency, pipeline.Hooks{
		OnReceived: onReceived,
		OnDropped:  onDropped,
		OnJob:      onJob,
	}, logger, pipeline.WithRecordTimeout(cfg.DeliveryLogTimeout))

	// ---- broker ----
	logger.Info("connecting to rabbitmq broker, creating queues and binding them")
	cons := consumer.New(consumer.Config{
		URL: consumer.URL(cfg.RabbitMQHost, cfg.RabbitMQPort, cfg.RabbitMQUsername, cfg.RabbitMQPassword, cfg.RabbitMQVhost),
		Bindings: []consumer.Binding{
			{Topic: domain.TopicFlightUpdate, Exchange: cfg.FlightExchange, Queue: cfg.FlightQueue, Tag: "consumer-flights"},
			{Topic: domain.TopicTicketUpdate, Exchange: cfg.TicketExchange, Queue: cfg.TicketQueue, Tag: "consumer-tickets"},
		},
		AckAfterProcessing: cfg.AckAfterProcessing,
		Prefetch:           cfg.Prefetch,
	}, dispatcher, consumer.Hooks{
		OnMessageStart: m.MessagesInFlight.Inc,
		OnMessageDone:  m.MessagesInFlight.Dec,
	}, logger)

	if err := cons.Start(); err != nil {
		logger.Fatal("failed to start consumers", zap.Error(err))
	}
	checks["broker"] = cons.Healthy

	// ---- HTTP server ----
	router := api.NewRouter(service.NewDeliveryService(deliveries, logger), reg, checks, logger)
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Info("ops server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// ---- graceful shutdown ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case sig := <-quit:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-cons.Failed():
		logger.Error("broker consumption stopped", zap.Error(err))
		exitCode = 1
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()

	// 1. Stop consuming and let in-flight messages finish.
	stopped := make(chan error, 1)
	go func() { stopped <- cons.Close() }()
	select {
	case err := <-stopped:
		if err != nil {
			logger.Error("broker shutdown error", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		logger.Warn("timed out waiting for in-flight messages")
	}

	// 2. Stop serving the ops API.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	logger.Info("server stopped")
	if exitCode != 0 {
		_ = logger.Sync()
		os.Exit(exitCode)
	}
}

func pingCheck(pool *pgxpool.Pool) handler.Check {
	return func(ctx context.Context) error { return pool.Ping(ctx) }
}
