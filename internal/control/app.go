// Package control wires the escalation engine together and manages its
// lifecycle: storage selection, carrier registrations, queue handlers, the
// health server, and the scheduled pass.
package control

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/recourse/internal/core/config"
	"github.com/vietddude/recourse/internal/escalation"
	"github.com/vietddude/recourse/internal/escalation/audit"
	"github.com/vietddude/recourse/internal/escalation/policy"
	"github.com/vietddude/recourse/internal/health"
	"github.com/vietddude/recourse/internal/infra/carrier"
	"github.com/vietddude/recourse/internal/infra/carrier/chronopost"
	"github.com/vietddude/recourse/internal/infra/carrier/colissimo"
	redisclient "github.com/vietddude/recourse/internal/infra/redis"
	"github.com/vietddude/recourse/internal/infra/storage"
	"github.com/vietddude/recourse/internal/infra/storage/memory"
	"github.com/vietddude/recourse/internal/infra/storage/postgres"
	"github.com/vietddude/recourse/internal/notify"
	"github.com/vietddude/recourse/internal/queue"
	"github.com/vietddude/recourse/internal/report"
)

// App is the assembled escalation engine.
type App struct {
	cfg          *config.AppConfig
	coordinator  *escalation.Coordinator
	bypass       *escalation.BypassDetector
	queue        *queue.Queue
	gateway      *carrier.Gateway
	auditLog     *audit.Log
	healthServer *health.Server
	store        *memory.MemoryStorage
	db           *postgres.DB
	redisClient  *redisclient.Client
	log          *slog.Logger
}

// NewApp creates the application with all dependencies initialized.
func NewApp(cfg *config.AppConfig, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}

	// 1. Storage
	var (
		claimRepo storage.ClaimRepository
		taskRepo  storage.TaskRepository
		auditRepo storage.AuditRepository
		alertRepo storage.AlertRepository
		store     *memory.MemoryStorage
		db        *postgres.DB
	)

	if cfg.Database.URL != "" {
		var err error
		db, err = postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := postgres.Migrate(db, "migrations"); err != nil {
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}

		claimRepo = postgres.NewClaimRepo(db)
		taskRepo = postgres.NewTaskRepo(db)
		auditRepo = postgres.NewAuditRepo(db)
		alertRepo = postgres.NewAlertRepo(db)
		log.Info("Using PostgreSQL storage")
	} else {
		store = memory.NewMemoryStorage()
		claimRepo = memory.NewClaimRepo(store)
		taskRepo = memory.NewTaskRepo(store)
		auditRepo = memory.NewAuditRepo(store)
		alertRepo = memory.NewAlertRepo(store)
		log.Info("Using Memory storage")
	}

	// 2. Carrier gateway. Redis is optional: without it, lookups are uncached.
	var redisClient *redisclient.Client
	var cache carrier.ResultCache
	if cfg.Redis.URL != "" {
		var err error
		redisClient, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			log.Warn("Failed to connect to Redis, tracking cache disabled", "error", err)
		} else {
			cache = redisclient.NewTrackingCache(redisClient, cfg.Carriers.CacheTTL, log)
		}
	}

	registry := carrier.NewRegistry(carrier.Credentials(cfg.Carriers.Credentials), log)
	registry.Register([]string{"colissimo", "la poste"}, func(creds carrier.Credentials) carrier.Connector {
		return colissimo.New(creds)
	})
	registry.Register([]string{"chronopost"}, func(creds carrier.Credentials) carrier.Connector {
		return chronopost.New(creds)
	})
	gateway := carrier.NewGateway(registry, cache, log)

	// 3. Queue and handlers
	auditLog := audit.NewLog(auditRepo, log)
	reg := queue.NewRegistry()
	q := queue.New(taskRepo, reg, log)

	escalation.RegisterHandlers(reg, escalation.HandlerDeps{
		Claims:   claimRepo,
		Audit:    auditLog,
		Notifier: notify.NewSMTPNotifier(cfg.Notify, log),
		Reports:  report.NewFileGenerator(cfg.Reports.Dir, log),
		Log:      log,
	})

	// 4. Coordinator and bypass detector
	thresholds := policy.Thresholds{
		StatusRequest: cfg.Escalation.StatusRequestDays,
		Warning:       cfg.Escalation.WarningDays,
		FormalNotice:  cfg.Escalation.FormalNoticeDays,
	}
	coordinator := escalation.NewCoordinator(claimRepo, q, thresholds, log)
	bypass := escalation.NewBypassDetector(claimRepo, alertRepo, gateway, log)

	// 5. Health server
	healthServer := health.NewServer(health.NewMonitor(q, auditLog), cfg.Server.Port)

	return &App{
		cfg:          cfg,
		coordinator:  coordinator,
		bypass:       bypass,
		queue:        q,
		gateway:      gateway,
		auditLog:     auditLog,
		healthServer: healthServer,
		store:        store,
		db:           db,
		redisClient:  redisClient,
		log:          log,
	}, nil
}

// RunScheduled executes one full scheduled pass: reclaim stale tasks, scan
// for follow-ups, drain the queue, then scan for bypasses. Sub-actions log
// their own failures; the pass completes regardless, because a broken
// carrier API must not stop follow-up letters from going out.
func (a *App) RunScheduled(ctx context.Context) error {
	start := time.Now()

	if _, err := a.queue.ReclaimStale(ctx, a.cfg.Escalation.ProcessingLease); err != nil {
		a.log.Error("Reclaim stale tasks failed", "error", err)
	}

	if _, err := a.coordinator.ProcessFollowUps(ctx); err != nil {
		a.log.Error("Follow-up scan failed", "error", err)
	}

	if _, err := a.queue.ProcessPending(ctx, a.cfg.Escalation.BatchLimit); err != nil {
		a.log.Error("Queue drain failed", "error", err)
	}

	if _, err := a.bypass.DetectPotentialBypass(ctx); err != nil {
		a.log.Error("Bypass scan failed", "error", err)
	}

	if _, err := a.queue.Stats(ctx); err != nil {
		a.log.Warn("Queue stats refresh failed", "error", err)
	}

	a.log.Info("Scheduled pass finished", "duration", time.Since(start))
	return ctx.Err()
}

// Start launches the long-running mode: health server plus parallel queue
// workers, with the scheduled scan loop driven by the caller.
func (a *App) Start(ctx context.Context) {
	go func() {
		if err := a.healthServer.Start(); err != nil {
			a.log.Error("Health server failed", "error", err)
		}
	}()

	go a.queue.RunWorkers(ctx, a.cfg.Escalation.Workers)
}

// Stop shuts the application down.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("Stopping...")

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.log.Warn("Failed to close Redis", "error", err)
		}
	}
	if a.db != nil {
		a.db.Close()
	}

	return a.healthServer.Stop(ctx)
}

// Queue exposes the task queue for admin tooling.
func (a *App) Queue() *queue.Queue { return a.queue }

// Gateway exposes the carrier gateway for admin tooling.
func (a *App) Gateway() *carrier.Gateway { return a.gateway }

// Store returns the in-memory storage when running without Postgres, nil
// otherwise. Used by development seeding.
func (a *App) Store() *memory.MemoryStorage { return a.store }
