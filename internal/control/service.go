package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/openretry/retryd/internal/api"
	"github.com/openretry/retryd/internal/core/config"
	"github.com/openretry/retryd/internal/core/policy"
	"github.com/openretry/retryd/internal/core/worker"
	"github.com/openretry/retryd/internal/dispatch"
	"github.com/openretry/retryd/internal/health"
	redisclient "github.com/openretry/retryd/internal/infra/redis"
	"github.com/openretry/retryd/internal/infra/storage"
	"github.com/openretry/retryd/internal/infra/storage/memory"
	"github.com/openretry/retryd/internal/infra/storage/postgres"
	"github.com/openretry/retryd/internal/ingest"
	"github.com/openretry/retryd/internal/ledger"
)

// Config holds the application configuration.
type Config struct {
	Port       int
	HealthPort int
	Database   postgres.Config
	Redis      redisclient.Config
	Ingest     config.IngestConfig
	Dispatch   config.DispatchConfig
	Retention  config.RetentionConfig
	Policies   config.PolicyConfig
}

// Service is the main application struct that wires the retry orchestration
// components and manages their lifecycle.
type Service struct {
	cfg Config

	db          *postgres.DB
	redisClient *redisclient.Client

	records   storage.RetryLogRepository
	policies  *policy.Cache
	ledger    *ledger.Ledger
	registry  *dispatch.Registry
	gateway   *dispatch.Gateway
	scheduler *dispatch.Scheduler

	queue     ingest.Queue
	publisher *ingest.Publisher
	consumer  *ingest.Consumer

	pruner       *worker.Pruner
	apiServer    *api.Server
	healthServer *health.Server
	cron         *cron.Cron

	cancel context.CancelFunc
}

// NewService creates a new Service instance with all dependencies initialized.
func NewService(cfg Config) (*Service, error) {
	s := &Service{cfg: cfg}

	// 1. Storage
	var policyRepo storage.PolicyRepository
	if cfg.Database.URL != "" {
		db, err := postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := db.Migrate(); err != nil {
			return nil, err
		}
		s.db = db
		s.records = postgres.NewLogRepo(db)
		policyRepo = postgres.NewPolicyRepo(db)
		slog.Info("Using PostgreSQL storage")
	} else {
		store := memory.NewMemoryStorage()
		s.records = memory.NewLogRepo(store)
		policyRepo = memory.NewPolicyRepo(store)
		slog.Info("Using Memory storage")
	}

	// 2. Notification transport
	var locker dispatch.Locker
	if cfg.Redis.URL != "" {
		client, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		s.redisClient = client
		s.queue = redisclient.NewNotificationQueue(client, cfg.Ingest.QueueKey)
		locker = client
		slog.Info("Using Redis notification queue", "key", cfg.Ingest.QueueKey)
	} else {
		s.queue = ingest.NewMemoryQueue(1024)
		slog.Info("Using in-memory notification queue")
	}
	s.publisher = ingest.NewPublisher(s.queue)

	// 3. Core components
	s.policies = policy.NewCache(policyRepo)
	if err := s.policies.Load(context.Background()); err != nil {
		return nil, err
	}
	slog.Info("Loaded retry policies", "count", s.policies.Size())

	s.ledger = ledger.New(s.records, s.policies)
	s.registry = dispatch.NewRegistry()
	s.gateway = dispatch.NewGateway(s.records, s.registry)
	s.scheduler = dispatch.NewScheduler(s.records, s.gateway, locker, dispatch.SchedulerConfig{
		PollInterval: cfg.Dispatch.PollInterval,
		BatchSize:    cfg.Dispatch.BatchSize,
		LockTTL:      cfg.Dispatch.LockTTL,
	})
	s.consumer = ingest.NewConsumer(s.queue, s.ledger, cfg.Ingest.BatchSize)
	s.pruner = worker.NewPruner(s.records, cfg.Retention.Period)

	// 4. HTTP surfaces
	s.apiServer = api.NewServer(cfg.Port, s.records, s.policies, s.publisher)

	monitor := health.NewMonitor()
	if s.db != nil {
		monitor.RegisterCheck("database", s.db.Health)
	}
	if s.redisClient != nil {
		monitor.RegisterCheck("redis", s.redisClient.Health)
	}
	s.healthServer = health.NewServer(monitor, cfg.HealthPort)

	// 5. Scheduled policy reload
	if cfg.Policies.ReloadCron != "" {
		s.cron = cron.New()
		_, err := s.cron.AddFunc(cfg.Policies.ReloadCron, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := s.policies.Reload(ctx); err != nil {
				slog.Error("Scheduled policy reload failed", "error", err)
				return
			}
			slog.Info("Policy cache reloaded", "count", s.policies.Size())
		})
		if err != nil {
			return nil, fmt.Errorf("invalid policy reload schedule: %w", err)
		}
	}

	return s, nil
}

// Registry exposes the handler registry so callers can bind process names
// to handler implementations before Start.
func (s *Service) Registry() *dispatch.Registry {
	return s.registry
}

// Publisher exposes the notification publisher for handlers that report
// outcomes back into the pipeline.
func (s *Service) Publisher() *ingest.Publisher {
	return s.publisher
}

// Start launches the consumer, scheduler, pruner and HTTP servers.
func (s *Service) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	if s.db != nil {
		s.db.StartMetricsCollector(runCtx)
	}

	go s.consumer.Start(runCtx)
	go s.scheduler.Start(runCtx)
	go s.pruner.Start(runCtx)

	go func() {
		slog.Info("API server starting", "port", s.cfg.Port)
		if err := s.apiServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("API server failed", "error", err)
		}
	}()
	go func() {
		slog.Info("Health server starting", "port", s.cfg.HealthPort)
		if err := s.healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Health server failed", "error", err)
		}
	}()

	if s.cron != nil {
		s.cron.Start()
	}

	slog.Info("Retry orchestrator started", "handlers", s.registry.Names())
	return nil
}

// Stop shuts everything down gracefully.
func (s *Service) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.cron != nil {
		s.cron.Stop()
	}

	var firstErr error
	if err := s.apiServer.Stop(ctx); err != nil {
		firstErr = err
	}
	if err := s.healthServer.Stop(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
