package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"gitlab.com/atividade/api/wa-frontdesk/internal/admin"
	"gitlab.com/atividade/api/wa-frontdesk/internal/botflow"
	"gitlab.com/atividade/api/wa-frontdesk/internal/cache"
	"gitlab.com/atividade/api/wa-frontdesk/internal/config"
	"gitlab.com/atividade/api/wa-frontdesk/internal/healthcheck"
	"gitlab.com/atividade/api/wa-frontdesk/internal/messaging"
	"gitlab.com/atividade/api/wa-frontdesk/internal/observer"
	"gitlab.com/atividade/api/wa-frontdesk/internal/poller"
	"gitlab.com/atividade/api/wa-frontdesk/internal/storage"
	"gitlab.com/atividade/api/wa-frontdesk/internal/usecase"
	"gitlab.com/atividade/api/wa-frontdesk/pkg/logger"
	"gitlab.com/atividade/api/wa-frontdesk/pkg/utils"
)

func main() {
	// Set timezone to UTC
	time.Local = time.UTC

	cfg, err := config.LoadConfig("")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Initialize(cfg.LogLevel); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	metricsEnabled := cfg.Metrics.Enabled
	observer.InitMetrics(metricsEnabled)

	logger.Log.Info("Starting WA front desk",
		zap.String("environment", cfg.Environment),
		zap.String("clinic_id", cfg.Clinic.ID),
		zap.String("nats_url", cfg.NATS.URL),
	)

	postgresRepo, err := initPostgresRepo(cfg.Database.PostgresDSN, cfg.Database.PostgresAutoMigrate)
	if err != nil {
		logger.Log.Fatal("Failed to initialize Postgres repository", zap.Error(err))
	}

	natsClient, err := messaging.NewClient(cfg.NATS.URL)
	if err != nil {
		logger.Log.Fatal("Failed to initialize NATS client", zap.Error(err))
	}

	queueRepo := storage.NewQueueEntryRepoAdapter(postgresRepo)
	convRepo := storage.NewConversationRepoAdapter(postgresRepo)
	interactionRepo := storage.NewInteractionRepoAdapter(postgresRepo)
	catalogRepo := storage.NewCatalogRepoAdapter(postgresRepo)
	settingsRepo := storage.NewSettingsRepoAdapter(postgresRepo)

	mainCtx, mainCancel := context.WithCancel(context.Background())
	defer mainCancel()

	// Prime the config cache before anything consults a tunable.
	configCache := cache.NewConfigCache(settingsRepo, catalogRepo)
	if err := configCache.Refresh(mainCtx); err != nil {
		logger.Log.Warn("Initial config cache load failed, starting with defaults", zap.Error(err))
	}
	configCache.StartAutoReload(mainCtx)

	sender, err := messaging.NewOutboundSender(
		cfg.WorkerPools.Send,
		cfg.NATS.Outbound,
		natsClient,
		interactionRepo,
		logger.Log,
	)
	if err != nil {
		logger.Log.Fatal("Failed to initialize outbound sender", zap.Error(err))
	}
	if err := sender.Setup(mainCtx); err != nil {
		logger.Log.Fatal("Failed to set up outbound stream", zap.Error(err))
	}

	queueService := usecase.NewQueueService(queueRepo, convRepo, interactionRepo, catalogRepo, configCache, sender)
	router := botflow.NewRouter(queueService, configCache, sender, interactionRepo)

	consumer := messaging.NewInboundConsumer(mainCtx, natsClient, router, cfg.NATS.Inbound)
	if err := consumer.Setup(); err != nil {
		logger.Log.Fatal("Failed to set up inbound consumer", zap.Error(err))
	}

	queuePoller := poller.New(queueService, cfg.Queue.PollInterval)

	adminServer := admin.NewServer(cfg.Server.Port, catalogRepo, settingsRepo, interactionRepo, queueService, configCache)

	healthServer := healthcheck.NewServer(strconv.Itoa(cfg.Metrics.Port), logger.Log)
	healthServer.RegisterReadyCheck("postgres", postgresRepo.Ping)
	healthServer.RegisterReadyCheck("nats", func(ctx context.Context) error {
		if !natsClient.NatsConn().IsConnected() {
			return fmt.Errorf("nats connection is down")
		}
		return nil
	})
	if metricsEnabled {
		healthServer.RegisterMetricsHandler(promhttp.Handler())
		logger.Log.Info("Metrics endpoint enabled", zap.String("path", "/metrics"), zap.Int("port", cfg.Metrics.Port))
	} else {
		logger.Log.Info("Metrics endpoint disabled for environment", zap.String("environment", cfg.Environment))
	}
	healthServer.Start()

	if err := consumer.Start(); err != nil {
		logger.Log.Fatal("Failed to start inbound consumer", zap.Error(err))
	}
	queuePoller.Start(mainCtx)

	sigChan := make(chan os.Signal, 1)
	utils.SafeGo(func() {
		if err := adminServer.Start(mainCtx); err != nil {
			logger.Log.Error("Admin server failed, initiating shutdown", zap.Error(err))
			mainCancel()
			select {
			case sigChan <- syscall.SIGTERM:
			default:
			}
		}
	}, nil)

	logger.Log.Info("WA front desk running",
		zap.Int("admin_port", cfg.Server.Port),
		zap.Int("health_port", cfg.Metrics.Port),
		zap.Duration("poll_interval", cfg.Queue.PollInterval),
	)

	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Log.Info("Received termination signal", zap.String("signal", sig.String()))

	mainCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Log.Info("Starting graceful shutdown", zap.Duration("timeout", 30*time.Second))

	var wg sync.WaitGroup
	wg.Add(5)

	// Stop the poller first so no tick races the draining consumer.
	utils.SafeGo(func() {
		defer wg.Done()
		logger.Log.Info("[shutdown] Stopping queue poller")
		start := time.Now()
		queuePoller.Stop()
		logger.Log.Info("[shutdown] Queue poller stopped", zap.Duration("duration", time.Since(start)))
	}, func(r interface{}, stack []byte) {
		logger.Log.Error("[shutdown] Panic while stopping queue poller",
			zap.Any("panic", r), zap.ByteString("stack", stack))
		wg.Done()
	})

	utils.SafeGo(func() {
		defer wg.Done()
		logger.Log.Info("[shutdown] Stopping inbound consumer")
		start := time.Now()
		if err := consumer.Stop(); err != nil {
			logger.Log.Error("[shutdown] Error stopping inbound consumer", zap.Error(err))
		}
		logger.Log.Info("[shutdown] Inbound consumer stopped", zap.Duration("duration", time.Since(start)))
	}, func(r interface{}, stack []byte) {
		logger.Log.Error("[shutdown] Panic while stopping inbound consumer",
			zap.Any("panic", r), zap.ByteString("stack", stack))
		wg.Done()
	})

	utils.SafeGo(func() {
		defer wg.Done()
		logger.Log.Info("[shutdown] Stopping send pool")
		start := time.Now()
		sender.Stop()
		logger.Log.Info("[shutdown] Send pool stopped", zap.Duration("duration", time.Since(start)))
	}, func(r interface{}, stack []byte) {
		logger.Log.Error("[shutdown] Panic while stopping send pool",
			zap.Any("panic", r), zap.ByteString("stack", stack))
		wg.Done()
	})

	utils.SafeGo(func() {
		defer wg.Done()
		logger.Log.Info("[shutdown] Stopping HTTP servers")
		start := time.Now()
		if err := adminServer.Shutdown(shutdownCtx); err != nil {
			logger.Log.Error("[shutdown] Error stopping admin server", zap.Error(err))
		}
		if err := healthServer.Stop(shutdownCtx); err != nil {
			logger.Log.Error("[shutdown] Error stopping health check server", zap.Error(err))
		}
		logger.Log.Info("[shutdown] HTTP servers stopped", zap.Duration("duration", time.Since(start)))
	}, func(r interface{}, stack []byte) {
		logger.Log.Error("[shutdown] Panic while stopping HTTP servers",
			zap.Any("panic", r), zap.ByteString("stack", stack))
		wg.Done()
	})

	utils.SafeGo(func() {
		defer wg.Done()
		configCache.Stop()

		logger.Log.Info("[shutdown] Closing PostgreSQL connection")
		pgStart := time.Now()
		if err := postgresRepo.Close(shutdownCtx); err != nil {
			logger.Log.Error("[shutdown] Failed to close PostgreSQL connection", zap.Error(err))
		} else {
			logger.Log.Info("[shutdown] PostgreSQL connection closed", zap.Duration("duration", time.Since(pgStart)))
		}

		logger.Log.Info("[shutdown] Closing NATS connection")
		natsStart := time.Now()
		natsClient.Close()
		logger.Log.Info("[shutdown] NATS connection closed", zap.Duration("duration", time.Since(natsStart)))
	}, func(r interface{}, stack []byte) {
		logger.Log.Error("[shutdown] Panic while closing connections",
			zap.Any("panic", r), zap.ByteString("stack", stack))
		wg.Done()
	})

	waitCh := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Log.Info("[shutdown] All components stopped gracefully")
	case <-shutdownCtx.Done():
		logger.Log.Warn("[shutdown] Graceful shutdown timed out, forcing exit")
	}

	logger.Log.Info("WA front desk shutdown complete")
}

func initPostgresRepo(dsn string, autoMigrate bool) (*storage.PostgresRepo, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}

	repo, err := storage.NewPostgresRepo(dsn, autoMigrate)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres repository: %w", err)
	}

	logger.Log.Info("Initialized PostgreSQL repository")
	return repo, nil
}
