// Copyright (c) 2026 AetherCore contributors.

/*
Engine is the process entry point for the AetherCore game engine core.

It boots the storage backend, the in-memory working set, the locking and
event infrastructure, the raid, banner, item, and fusion services, the two
example gameplay modules, and — optionally, when JWT keys are configured —
the admin diagnostics HTTP sidecar.

Usage:

	go run cmd/engine/main.go

The environment variables are documented on [config.Config].

Startup Sequence:

 1. Logger: initialize structured JSON logging (slog).
 2. Config: load and validate environment variables.
 3. Storage: open the selected repository backend, optionally Redis-cached.
 4. Core: wire EntityStore, LockManager, EventBus, Executor, Scheduler.
 5. Services: RaidService, BannerManager, item and fusion services, and
    the example gameplay modules.
 6. Admin: optionally bind the diagnostics HTTP sidecar.
 7. Lifecycle: block for a signal, then shut everything down in order.

No business logic lives here. This file is strictly for orchestration and wiring.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/taibuivan/aethercore/internal/admin"
	"github.com/taibuivan/aethercore/internal/core/dataloader"
	"github.com/taibuivan/aethercore/internal/core/eventbus"
	"github.com/taibuivan/aethercore/internal/core/executor"
	"github.com/taibuivan/aethercore/internal/core/lockmgr"
	"github.com/taibuivan/aethercore/internal/core/repository"
	"github.com/taibuivan/aethercore/internal/core/scheduler"
	"github.com/taibuivan/aethercore/internal/core/store"
	"github.com/taibuivan/aethercore/internal/modules/achievements"
	"github.com/taibuivan/aethercore/internal/modules/progression"
	"github.com/taibuivan/aethercore/internal/platform/config"
	"github.com/taibuivan/aethercore/internal/platform/constants"
	"github.com/taibuivan/aethercore/internal/platform/migration"
	pgstore "github.com/taibuivan/aethercore/internal/platform/postgres"
	redisstore "github.com/taibuivan/aethercore/internal/platform/redis"
	"github.com/taibuivan/aethercore/internal/platform/sec"
	"github.com/taibuivan/aethercore/internal/services/banner"
	"github.com/taibuivan/aethercore/internal/services/fusion"
	"github.com/taibuivan/aethercore/internal/services/item"
	"github.com/taibuivan/aethercore/internal/services/raid"
)

func main() {
	if err := run(); err != nil {
		slog.Error("application_startup_failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	// # 1. Logger
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	log := rawLog.With(slog.String("app", "aethercore-engine"))
	slog.SetDefault(log)
	log.Info("engine_initializing")

	// # 2. Configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
		log = debugLog.With(slog.String("app", "aethercore-engine"))
		slog.SetDefault(log)
	}
	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("storage_backend", string(cfg.StorageBackend)),
	)

	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()

	startupCtx, startupCancel := context.WithTimeout(appCtx, 30*time.Second)
	defer startupCancel()

	// # 3. Storage backend
	repo, checkStore, closeStore, err := openRepository(startupCtx, cfg, log)
	if err != nil {
		return fmt.Errorf("open storage backend: %w", err)
	}
	defer closeStore()

	// # 4. Core wiring
	entityStore := store.New(repo, true)
	locks := lockmgr.New()
	bus := eventbus.New(eventbus.Config{HistoryCapacity: cfg.EventHistoryCapacity, Logger: log})
	sched := scheduler.New(log)
	defer sched.Shutdown()

	contentLoader := dataloader.NewFileLoader(cfg.ContentPackPath)
	if err := contentLoader.Load("mobs"); err != nil {
		log.Warn("content_pack_load_failed", slog.String("category", "mobs"), slog.Any("error", err))
	}

	// # 5. Services
	raidSvc := raid.New(entityStore, raid.Config{
		MaxRetries:   cfg.RaidMaxRetries,
		RetryBackoff: cfg.RaidRetryBackoff,
	})
	bannerSvc := banner.New(entityStore, bus, sched, banner.Config{})
	itemSvc := item.New(executor.New(entityStore, locks, true), bus)
	fusionSvc := fusion.New(executor.New(entityStore, locks, true), bus)

	// Example gameplay modules, wired purely as event-bus subscribers —
	// they never see the locking/transaction machinery directly.
	achievements.New(entityStore, bus, defaultAchievements(), log)
	progression.New(entityStore, bus, contentLoader, log)

	log.Info("core_wired", slog.Int("lock_timeout_ms", int(cfg.LockTimeout.Milliseconds())))

	// # 6. Admin diagnostics sidecar (optional)
	adminServer, err := buildAdminServer(appCtx, cfg, log, entityStore, locks, bus, sched, raidSvc, bannerSvc, itemSvc, fusionSvc, checkStore)
	if err != nil {
		return fmt.Errorf("build admin server: %w", err)
	}

	shutdownErr := make(chan error, 1)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	if adminServer != nil {
		go func() {
			if err := adminServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				shutdownErr <- fmt.Errorf("admin_server_crash: %w", err)
			}
		}()
		log.Info("admin_server_running", slog.String("addr", cfg.AdminPort))
	} else {
		log.Info("admin_server_disabled", slog.String("reason", "no JWT keys configured"))
	}

	select {
	case sig := <-quit:
		log.Info("shutdown_signal_received", slog.String("signal", sig.String()))
	case err := <-shutdownErr:
		return err
	}

	if adminServer != nil {
		log.Info("shutting_down_admin_server", slog.Duration("timeout", constants.ShutdownTimeout))
		if err := adminServer.Shutdown(constants.ShutdownTimeout); err != nil {
			return fmt.Errorf("admin_server_shutdown_failed: %w", err)
		}
	}

	log.Info("graceful_shutdown_complete")
	return nil
}

// openRepository opens the configured storage backend and, if Redis is
// enabled, wraps it with a read-through cache decorator. It returns the
// repository, a shallow readiness probe, and a cleanup function.
func openRepository(ctx context.Context, cfg *config.Config, log *slog.Logger) (repository.Repository, func() error, func(), error) {
	var repo repository.Repository
	var checkStore func() error
	var closers []func()

	switch cfg.StorageBackend {
	case config.StoragePostgres:
		pool, err := pgstore.NewPool(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		closers = append(closers, func() { pool.Close() })

		if err := migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log); err != nil {
			return nil, nil, nil, fmt.Errorf("run migrations: %w", err)
		}

		repo = repository.NewPostgresRepository(pool)
		checkStore = func() error { return pgstore.Ping(context.Background(), pool) }

	default:
		boltRepo, err := repository.NewBoltRepository(cfg.BoltPath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open bolt store: %w", err)
		}
		if closer, ok := boltRepo.(interface{ Close() error }); ok {
			closers = append(closers, func() {
				if err := closer.Close(); err != nil {
					log.Error("bolt_close_error", slog.Any("error", err))
				}
			})
		}
		repo = boltRepo
		checkStore = func() error { return nil }
	}

	if cfg.RedisEnabled {
		rdb, err := redisstore.NewClient(ctx, cfg.RedisURL, log)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect to redis: %w", err)
		}
		closers = append(closers, func() {
			if err := rdb.Close(); err != nil {
				log.Error("redis_close_error", slog.Any("error", err))
			}
		})
		repo = repository.NewCacheRepository(repo, rdb, 0)

		inner := checkStore
		checkStore = func() error {
			if err := redisstore.Ping(context.Background(), rdb); err != nil {
				return err
			}
			return inner()
		}
	}

	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	return repo, checkStore, closeAll, nil
}

// buildAdminServer constructs the diagnostics sidecar. It returns a nil
// server (not an error) when no JWT signing keys are configured, since the
// sidecar has no anonymous-write-safe mode.
func buildAdminServer(
	ctx context.Context,
	cfg *config.Config,
	log *slog.Logger,
	entityStore *store.EntityStore,
	locks *lockmgr.LockManager,
	bus *eventbus.Bus,
	sched *scheduler.Scheduler,
	raidSvc *raid.Service,
	bannerSvc *banner.Service,
	itemSvc *item.Service,
	fusionSvc *fusion.Service,
	checkStore func() error,
) (*admin.Server, error) {
	if cfg.JWTPrivKeyPath == "" || cfg.JWTPubKeyPath == "" {
		return nil, nil
	}

	jwtSvc, err := sec.NewTokenService(cfg.JWTPrivKeyPath, cfg.JWTPubKeyPath, constants.AuthIssuer)
	if err != nil {
		return nil, fmt.Errorf("initialize jwt service: %w", err)
	}

	deps := admin.Dependencies{
		Locks:      admin.NewLockView(locks, func() []string { return entityStore.ByType("") }),
		Events:     admin.NewEventView(bus),
		Scheduler:  admin.NewSchedulerView(sched),
		Raids:      admin.NewRaidView(raidSvc),
		Banners:    admin.NewBannerView(bannerSvc),
		Items:      admin.NewItemView(itemSvc),
		Fusion:     admin.NewFusionView(fusionSvc),
		CheckStore: checkStore,
	}

	return admin.NewServer(ctx, ":"+cfg.AdminPort, cfg, log, jwtSvc, deps), nil
}

// defaultAchievements returns the built-in achievement catalogue.
func defaultAchievements() []achievements.Definition {
	return []achievements.Definition{
		{ID: "goblin_slayer", Name: "Goblin Slayer", MobTemplate: "goblin_warrior", Threshold: 10, GoldReward: 1000},
		{ID: "orc_hunter", Name: "Orc Hunter", MobTemplate: "orc_chieftain", Threshold: 5, GoldReward: 2500},
		{ID: "dragon_slayer", Name: "Dragon Slayer", MobTemplate: "dragon_ancient", Threshold: 1, GoldReward: 10000},
		{ID: "monster_hunter", Name: "Monster Hunter", Threshold: 50, GoldReward: 5000},
	}
}
