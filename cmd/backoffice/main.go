package main

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/danceforge/backoffice/internal/api"
	"github.com/danceforge/backoffice/internal/cache"
	"github.com/danceforge/backoffice/internal/catalog"
	"github.com/danceforge/backoffice/internal/checklist"
	"github.com/danceforge/backoffice/internal/cleanup"
	"github.com/danceforge/backoffice/internal/config"
	"github.com/danceforge/backoffice/internal/logger"
	"github.com/danceforge/backoffice/internal/services"
	"github.com/danceforge/backoffice/internal/storage"
	"github.com/danceforge/backoffice/migrations"
	"github.com/danceforge/backoffice/pkg/client"
)

func main() {
	cfg, err := config.Load(os.Getenv("BACKOFFICE_CONFIG_FILE"))
	if err != nil {
		// no logger yet
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		os.Stderr.WriteString("failed to create logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)

	if err := run(cfg, log); err != nil {
		log.Error("backoffice stopped with error", zap.Error(err))
		log.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	log.Info("starting backoffice",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("upstream", cfg.Upstream.BaseURL),
	)

	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()

	repo, err := storage.NewPostgresRepository(initCtx, storage.PostgresConfig{
		DSN:      cfg.Database.DSN,
		MaxConns: int32(cfg.Database.MaxConns),
		MinConns: int32(cfg.Database.MinConns),
	})
	if err != nil {
		return err
	}
	defer repo.Close()
	log.Info("database connected successfully")

	var migrationFS fs.FS = migrations.FS
	if cfg.Database.MigrationsDir != "" {
		migrationFS = os.DirFS(cfg.Database.MigrationsDir)
	}
	if err := storage.RunMigrations(initCtx, repo.Pool(), migrationFS, log.Named("migrate")); err != nil {
		return err
	}

	registry := services.NewRegistry()
	registry.Register("postgres", services.CheckerFunc(repo.Ping))

	var store cache.Store = cache.NewMemoryStore()
	if cfg.Redis.Enabled {
		rdb, err := cache.Connect(initCtx, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer rdb.Close()

		redisStore := cache.NewRedisStore(rdb, cache.WithRedisLogger(log.Named("cache")))
		registry.Register("redis", services.CheckerFunc(redisStore.Ping))
		store = redisStore
		log.Info("redis query cache enabled", zap.String("address", cfg.Redis.Address))
	}

	upstream := newUpstreamClient(cfg.Upstream)
	registry.Register("marketplace", services.CheckerFunc(upstream.Health))

	def, err := checklist.LoadDefinition(cfg.Checklist.DefinitionFile)
	if err != nil {
		return err
	}

	hub := api.NewHub(log.Named("events"))
	defer hub.Close()

	results := cache.NewResultsCache(upstream, store, cfg.Cache.TTL, log.Named("cache"))
	engine, err := checklist.New(def, results,
		checklist.WithInvalidator(results),
		checklist.WithNotifier(hub),
		checklist.WithObserver(hub),
		checklist.WithRecorder(repo),
		checklist.WithLogger(log.Named("checklist")),
	)
	if err != nil {
		return err
	}

	// hydrate from the last persisted run; an unreachable runner is not fatal
	if changed, err := engine.LoadSavedResults(initCtx); err != nil {
		log.Warn("starting with an empty checklist", zap.Error(err))
	} else {
		log.Info("checklist hydrated from saved results", zap.Int("changed", changed))
	}

	catalogService := catalog.NewService(upstream, cfg.Catalog.SellerConcurrency, log.Named("catalog"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pruner := cleanup.NewPruner(repo, cfg.Retention.Interval, cfg.Retention.MaxAge, log.Named("retention"))
	pruner.Start(ctx)

	server := api.NewServer(cfg.Server, api.Deps{
		Readiness:       engine,
		Catalog:         catalogService,
		Store:           repo,
		Registry:        registry,
		Hub:             hub,
		DefaultPageSize: cfg.Catalog.DefaultPageSize,
		RunTimeout:      cfg.Upstream.Timeout + 30*time.Second,
	}, log.Named("http"))

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info("shutting down gracefully", zap.String("signal", sig.String()))
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// websocket subscribers are hijacked connections Shutdown does not wait for
	hub.Close()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}
	<-pruner.Done()

	log.Info("backoffice stopped")
	return nil
}

func newUpstreamClient(cfg config.UpstreamConfig) *client.Client {
	return client.NewClient(cfg.BaseURL, cfg.APIKey,
		client.WithTimeout(cfg.Timeout),
		client.WithEndpoints(client.Endpoints{
			Results:     cfg.Endpoints.Results,
			RunTest:     cfg.Endpoints.RunTest,
			RunCategory: cfg.Endpoints.RunCategory,
			RunAll:      cfg.Endpoints.RunAll,
			Resources:   cfg.Endpoints.Resources,
			Users:       cfg.Endpoints.Users,
		}),
	)
}
