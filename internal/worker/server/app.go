package server

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/dmitrijs2005/storyqueue/internal/logging"
	"github.com/dmitrijs2005/storyqueue/internal/worker"
	"github.com/dmitrijs2005/storyqueue/internal/worker/cache"
	"github.com/dmitrijs2005/storyqueue/internal/worker/config"
	"github.com/dmitrijs2005/storyqueue/internal/worker/manifest"
)

// App is the worker process: cache storage, Worker and HTTP server.
type App struct {
	config  *config.Config
	logger  logging.Logger
	storage cache.Storage
	worker  *worker.Worker
	server  *Server
}

// NewApp wires the worker. Notifications are printed to notifyOut.
func NewApp(ctx context.Context, cfg *config.Config, logger logging.Logger, notifyOut io.Writer) (*App, error) {
	m, err := manifest.Load(cfg.ManifestPath)
	if err != nil {
		return nil, err
	}
	perm, err := worker.ParsePermission(cfg.Permission)
	if err != nil {
		return nil, err
	}

	storage, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("cache storage init error: %w", err)
	}

	w := worker.New(m, storage, worker.NewOrigin(cfg.OriginURL, cfg.OriginTimeout),
		worker.NewTerminalNotifier(notifyOut), nil, logger, worker.Options{
			Permission:         perm,
			InstallConcurrency: cfg.InstallConcurrency,
			FetchRetries:       cfg.FetchRetries,
		})

	return &App{
		config:  cfg,
		logger:  logger,
		storage: storage,
		worker:  w,
		server:  New(cfg.ListenAddr, w, logger, cfg.ShutdownTimeout),
	}, nil
}

func openStorage(ctx context.Context, cfg *config.Config) (cache.Storage, error) {
	switch cfg.CacheBackend {
	case config.BackendMemory:
		return cache.NewMemoryStorage(), nil
	case config.BackendSQLite:
		return cache.OpenSQLite(ctx, cfg.CachePath, cfg.BusyTimeout)
	case config.BackendS3:
		client, err := cache.NewS3Client(ctx, cfg.S3())
		if err != nil {
			return nil, err
		}
		return cache.NewS3Storage(client, cfg.S3Bucket, cfg.S3Prefix), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}
}

// Run installs and activates the worker, then serves until ctx is done.
func (app *App) Run(ctx context.Context) error {
	defer func() {
		if err := app.storage.Close(); err != nil {
			app.logger.Error(ctx, "close cache storage", "error", err)
		}
	}()

	app.logger.Info(ctx, "Starting worker...", "origin", app.config.OriginURL, "backend", app.config.CacheBackend)

	report, err := app.worker.Start(ctx)
	if err != nil {
		return err
	}
	app.logger.Info(ctx, "worker ready", "cache", report.CacheName, "cached", report.Cached, "failed", report.Failed)

	if app.config.GenerationCheck > 0 {
		watchCtx, cancel := context.WithCancel(ctx)
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.worker.WatchGeneration(watchCtx, app.config.GenerationCheck)
		}()
		defer func() {
			cancel()
			wg.Wait()
		}()
	}

	return app.server.Run(ctx)
}
