// Package main is the transcriptd entry point: it serves one student's
// transcript over HTTP and persists it through the configured storage driver.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alem-hub/transcript-hub/config"
	"github.com/alem-hub/transcript-hub/internal/application/command"
	"github.com/alem-hub/transcript-hub/internal/application/eventhandler"
	"github.com/alem-hub/transcript-hub/internal/application/query"
	"github.com/alem-hub/transcript-hub/internal/application/workspace"
	"github.com/alem-hub/transcript-hub/internal/domain/shared"
	"github.com/alem-hub/transcript-hub/internal/domain/transcript"
	"github.com/alem-hub/transcript-hub/internal/infrastructure/export"
	"github.com/alem-hub/transcript-hub/internal/infrastructure/messaging"
	"github.com/alem-hub/transcript-hub/internal/infrastructure/persistence/postgres"
	"github.com/alem-hub/transcript-hub/internal/infrastructure/persistence/redis"
	"github.com/alem-hub/transcript-hub/internal/infrastructure/persistence/sqlite"
	"github.com/alem-hub/transcript-hub/internal/infrastructure/persistence/textfile"
	"github.com/alem-hub/transcript-hub/internal/infrastructure/scheduler"
	"github.com/alem-hub/transcript-hub/internal/infrastructure/scheduler/jobs"
	httpserver "github.com/alem-hub/transcript-hub/internal/interface/http"
	"github.com/alem-hub/transcript-hub/pkg/circuitbreaker"
	"github.com/alem-hub/transcript-hub/pkg/logger"
	"github.com/alem-hub/transcript-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     logger.ParseLevel(cfg.Observability.LogLevel),
		Format:    logger.ParseFormat(cfg.Observability.LogFormat),
		AddCaller: cfg.IsDevelopment(),
	}).With(logger.String("app", cfg.App.Name), logger.String("version", cfg.App.Version))

	log.Info("starting transcriptd",
		logger.String("env", string(cfg.App.Environment)),
		logger.Driver(cfg.Storage.Driver),
		logger.StorageKey(cfg.Storage.Key),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. REDIS (storage driver, summary cache, event relay)
	// ─────────────────────────────────────────────────────────────────────────
	var redisCache *redis.Cache
	if cfg.Redis.Needed(cfg.Storage.Driver) {
		redisCache, err = connectRedis(ctx, cfg, log)
		if err != nil {
			if cfg.Storage.Driver == config.DriverRedis {
				return err
			}
			log.Warn("redis unavailable, summary cache and relay disabled", logger.Err(err))
		} else {
			defer func() {
				log.Info("closing redis connection...")
				_ = redisCache.Close()
			}()
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. STORAGE
	// ─────────────────────────────────────────────────────────────────────────
	repo, closeRepo, err := openRepository(ctx, cfg, redisCache, log)
	if err != nil {
		return err
	}
	defer closeRepo()
	log.Info("storage ready", logger.Driver(repo.Driver()))

	// ─────────────────────────────────────────────────────────────────────────
	// 5. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	busConfig := messaging.DefaultInMemoryEventBusConfig()
	busConfig.Logger = log
	bus := messaging.NewInMemoryEventBus(busConfig)
	defer func() {
		log.Info("closing event bus...")
		_ = bus.Close()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 6. EVENT HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	var summaries transcript.SummaryCache
	if redisCache != nil && cfg.Redis.CacheEnabled {
		breaker := redis.NewCacheBreaker(func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		})
		cache := redis.NewGuardedSummaryCache(
			redis.NewSummaryCache(redisCache, cfg.Storage.Key, cfg.Redis.SummaryTTL),
			breaker,
		)
		if err := eventhandler.NewOnTranscriptChangedHandler(cache, log).Register(bus); err != nil {
			return fmt.Errorf("register cache invalidation: %w", err)
		}
		summaries = cache
	}
	if redisCache != nil && cfg.Redis.RelayEvents {
		if err := eventhandler.NewRelayHandler(redisCache, redis.PubSubChannel, log).Register(bus); err != nil {
			return fmt.Errorf("register event relay: %w", err)
		}
	}
	if err := eventhandler.NewAuditHandler(log).Register(bus); err != nil {
		return fmt.Errorf("register audit log: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. APPLICATION LAYER (Commands, Queries)
	// ─────────────────────────────────────────────────────────────────────────
	ws := workspace.New(nil)

	deps := httpserver.Dependencies{
		SetStudentName: command.NewSetStudentNameHandler(ws, bus, log),
		AddSemester:    command.NewAddSemesterHandler(ws, bus, log),
		DeleteSemester: command.NewDeleteSemesterHandler(ws, bus, log),
		AddCourse:      command.NewAddCourseHandler(ws, bus, log),
		DeleteCourse:   command.NewDeleteCourseHandler(ws, bus, log),
		SortCourses:    command.NewSortCoursesHandler(ws, bus, log),
		Save:           command.NewSaveTranscriptHandler(ws, repo, cfg.Storage.Key, bus, log),
		Load:           command.NewLoadTranscriptHandler(ws, repo, cfg.Storage.Key, bus, log),

		ListSemesters:    query.NewListSemestersHandler(ws, summaries, textfile.Fingerprint, log),
		GetSemester:      query.NewGetSemesterHandler(ws),
		GetSemesterGPA:   query.NewGetSemesterGPAHandler(ws),
		GetCumulativeGPA: query.NewGetCumulativeGPAHandler(ws),
		Export:           query.NewExportTranscriptHandler(ws, export.WriteXLSX, export.ContentType, "xlsx", log),

		StorageDriver: repo.Driver(),
		Logger:        log,
	}

	// Pick up the transcript saved under the default key, if any.
	if _, err := deps.Load.Handle(ctx, command.LoadTranscriptCommand{}); err != nil {
		if !shared.IsNotFound(err) {
			return fmt.Errorf("initial load: %w", err)
		}
		log.Info("no saved transcript, starting empty", logger.StorageKey(cfg.Storage.Key))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. SCHEDULER (autosave)
	// ─────────────────────────────────────────────────────────────────────────
	var autosave *jobs.AutosaveJob
	var sched *scheduler.Scheduler
	if cfg.Storage.AutosaveInterval > 0 {
		autosave = jobs.NewAutosaveJob(ws, deps.Save, log)
		sched = scheduler.NewScheduler(scheduler.SchedulerConfig{Logger: log})
		if err := sched.Register(autosave, scheduler.NewIntervalSchedule(cfg.Storage.AutosaveInterval)); err != nil {
			return fmt.Errorf("register autosave: %w", err)
		}
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	httpConfig := httpserver.DefaultConfig()
	httpConfig.Host = cfg.HTTP.Host
	httpConfig.Port = cfg.HTTP.Port
	httpConfig.ReadTimeout = cfg.HTTP.ReadTimeout
	httpConfig.WriteTimeout = cfg.HTTP.WriteTimeout
	httpConfig.IdleTimeout = cfg.HTTP.IdleTimeout
	httpConfig.RequestTimeout = cfg.HTTP.RequestTimeout
	httpConfig.BodyLimit = cfg.HTTP.BodyLimit

	server := httpserver.NewServer(httpConfig, deps)
	errCh := server.StartAsync()

	log.Info("transcriptd is running", logger.String("http_address", httpConfig.Address()))

	// ─────────────────────────────────────────────────────────────────────────
	// 10. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	select {
	case <-ctx.Done():
		log.Info("received shutdown signal")
	case err, ok := <-errCh:
		if ok && err != nil {
			log.Error("http server error", logger.Err(err))
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop HTTP server gracefully", logger.Err(err))
	}

	if sched != nil {
		_ = sched.Stop()
		// Flush changes made since the last autosave.
		if autosave.Pending() {
			if _, err := sched.RunNow(shutdownCtx, jobs.AutosaveJobName); err != nil {
				log.Error("final autosave failed", logger.Err(err))
			}
		}
	}

	log.Info("shutdown completed", logger.Duration("uptime", server.Uptime().Round(time.Second)))
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func onRetry(log *logger.Logger, target string) func(int, error, time.Duration) {
	return func(attempt int, err error, delay time.Duration) {
		log.Warn("connection attempt failed",
			logger.String("target", target),
			logger.Int("attempt", attempt),
			logger.Duration("retry_in", delay),
			logger.Err(err),
		)
	}
}

func connectRedis(ctx context.Context, cfg *config.Config, log *logger.Logger) (*redis.Cache, error) {
	redisCfg := redis.DefaultConfig()
	redisCfg.Host = cfg.Redis.Host
	redisCfg.Port = cfg.Redis.Port
	redisCfg.Password = cfg.Redis.Password
	redisCfg.DB = cfg.Redis.DB
	redisCfg.PoolSize = cfg.Redis.PoolSize
	redisCfg.DialTimeout = cfg.Redis.DialTimeout

	log.Info("connecting to redis...", logger.String("address", redisCfg.Addr()))
	return retry.DoWithData(ctx, func(context.Context) (*redis.Cache, error) {
		return redis.NewCache(redisCfg)
	},
		retry.WithMaxAttempts(cfg.Redis.ConnectAttempts),
		retry.WithInitialDelay(250*time.Millisecond),
		retry.WithRetryIf(retry.Always),
		retry.WithOnRetry(onRetry(log, "redis")),
	)
}

// openRepository builds the store selected by TRANSCRIPT_STORAGE_DRIVER.
// The returned func releases whatever the store holds open.
func openRepository(ctx context.Context, cfg *config.Config, cache *redis.Cache, log *logger.Logger) (transcript.Repository, func(), error) {
	noop := func() {}

	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		store, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, noop, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, func() { _ = store.Close() }, nil

	case config.DriverPostgres:
		pgCfg := postgres.DefaultConfig()
		pgCfg.URL = cfg.Postgres.URL
		pgCfg.Host = cfg.Postgres.Host
		pgCfg.Port = cfg.Postgres.Port
		pgCfg.User = cfg.Postgres.User
		pgCfg.Password = cfg.Postgres.Password
		pgCfg.Database = cfg.Postgres.Name
		pgCfg.SSLMode = cfg.Postgres.SSLMode
		pgCfg.MaxConns = cfg.Postgres.MaxConns
		pgCfg.MinConns = cfg.Postgres.MinConns
		pgCfg.MaxConnLifetime = cfg.Postgres.ConnMaxLifetime
		pgCfg.ConnectTimeout = cfg.Postgres.ConnectTimeout

		log.Info("connecting to database...")
		var conn *postgres.Connection
		err := retry.Connect(cfg.Postgres.ConnectAttempts, onRetry(log, "postgres")).Do(ctx, func(ctx context.Context) error {
			var err error
			conn, err = postgres.NewConnection(ctx, pgCfg)
			return err
		})
		if err != nil {
			return nil, noop, fmt.Errorf("failed to connect to database: %w", err)
		}

		if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
			conn.Close()
			return nil, noop, fmt.Errorf("failed to run migrations: %w", err)
		}
		return postgres.NewTranscriptRepository(conn), conn.Close, nil

	case config.DriverRedis:
		if cache == nil {
			return nil, noop, fmt.Errorf("redis driver selected but redis is not connected")
		}
		return redis.NewTranscriptStore(cache), noop, nil

	default:
		return textfile.NewStore(cfg.Storage.Dir), noop, nil
	}
}
