// Package main is the entry point for the Shelfkeep server.
// Shelfkeep is a personal file-shelf service: upload images and PDFs,
// tag them, retrieve them, and save webpage links.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/shelfkeep/shelfkeep/internal/cache/memory"
	rediscache "github.com/shelfkeep/shelfkeep/internal/cache/redis"
	"github.com/shelfkeep/shelfkeep/internal/config"
	"github.com/shelfkeep/shelfkeep/internal/handler"
	"github.com/shelfkeep/shelfkeep/internal/repository"
	"github.com/shelfkeep/shelfkeep/internal/repository/postgres"
	"github.com/shelfkeep/shelfkeep/internal/repository/sqlite"
	"github.com/shelfkeep/shelfkeep/internal/service"
	"github.com/shelfkeep/shelfkeep/internal/storage"
	"github.com/shelfkeep/shelfkeep/internal/storage/filesystem"
	"github.com/shelfkeep/shelfkeep/internal/storage/gridfs"
	"github.com/shelfkeep/shelfkeep/internal/storage/s3"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("shelfkeep %s (built %s, commit %s)\n", Version, BuildTime, GitCommit)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Logging)

	logger.Info().
		Str("version", Version).
		Str("git_commit", GitCommit).
		Msg("starting shelfkeep server")

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server exited with error")
	}
}

// run builds the dependency graph and serves until a shutdown signal.
func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// === Metadata database ===

	stores, db, err := setupDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close database")
		}
	}()

	// === Metadata cache ===

	if cfg.Redis.Enabled {
		redisCache, err := rediscache.NewCache(ctx, cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return fmt.Errorf("failed to initialize redis cache: %w", err)
		}
		defer redisCache.Close()

		stores.Files = repository.NewCachedFileRepository(stores.Files, redisCache, cfg.Redis.TTL, logger)
		logger.Info().Str("addr", cfg.Redis.Addr()).Msg("redis metadata cache enabled")
	} else {
		memCache := memory.NewCache()
		defer memCache.Stop()

		stores.Files = repository.NewCachedFileRepository(stores.Files, memCache, cfg.Redis.TTL, logger)
	}

	// === Storage backend ===

	backend, err := setupBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if closer, ok := backend.(storage.Closer); ok {
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := closer.Close(closeCtx); err != nil {
				logger.Error().Err(err).Msg("failed to close storage backend")
			}
		}()
	}

	// === Services and HTTP surface ===

	var metrics *handler.Metrics
	if cfg.Metrics.Enabled {
		metrics = handler.NewMetrics()
	}

	router := handler.NewRouter(handler.RouterConfig{
		FileHandler: handler.NewFileHandler(handler.FileHandlerConfig{
			UploadService: service.NewUploadService(stores.Files, backend, cfg.Upload, logger),
			FileService:   service.NewFileService(stores.Files, backend, logger),
			Metrics:       metrics,
			Logger:        logger,
		}),
		WebpageHandler: handler.NewWebpageHandler(
			service.NewWebpageService(stores.Webpages, cfg.Webpage, logger),
			logger,
		),
		DB:      db,
		Metrics: metrics,
		Logger:  logger,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	logger.Info().Msg("server stopped")
	return nil
}

// setupDatabase connects to the configured metadata database, applies
// pending migrations and builds the repositories.
func setupDatabase(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (repository.Stores, repository.DatabaseHealth, error) {
	switch cfg.Database.Driver {
	case "sqlite":
		db, err := sqlite.NewDB(ctx, sqlite.Config{
			Path:            cfg.Database.Path,
			MaxOpenConns:    1,
			MaxIdleConns:    1,
			ConnMaxLifetime: time.Hour,
			JournalMode:     cfg.Database.JournalMode,
			BusyTimeout:     cfg.Database.BusyTimeout,
			CacheSize:       cfg.Database.CacheSize,
			SynchronousMode: cfg.Database.SynchronousMode,
		}, logger)
		if err != nil {
			return repository.Stores{}, nil, fmt.Errorf("failed to connect to sqlite: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return repository.Stores{}, nil, fmt.Errorf("failed to migrate sqlite schema: %w", err)
		}
		return repository.Stores{
			Files:    sqlite.NewFileRepository(db),
			Webpages: sqlite.NewWebpageRepository(db),
		}, db, nil

	case "postgres":
		db, err := postgres.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			return repository.Stores{}, nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return repository.Stores{}, nil, fmt.Errorf("failed to migrate postgres schema: %w", err)
		}
		return repository.Stores{
			Files:    postgres.NewFileRepository(db),
			Webpages: postgres.NewWebpageRepository(db),
		}, db, nil

	default:
		return repository.Stores{}, nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

// setupBackend initializes the configured storage backend.
func setupBackend(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (storage.Backend, error) {
	switch cfg.Storage.Backend {
	case "filesystem":
		backend, err := filesystem.New(cfg.Storage.DataDir, cfg.Storage.TempDir, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize filesystem backend: %w", err)
		}
		return backend, nil

	case "gridfs":
		backend, err := gridfs.New(ctx, cfg.Mongo, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize gridfs backend: %w", err)
		}
		return backend, nil

	case "s3":
		backend, err := s3.New(ctx, cfg.Storage.S3, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize s3 backend: %w", err)
		}
		return backend, nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// setupLogger configures the global logging format and level.
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}

	var out *os.File
	switch cfg.Output {
	case "stderr":
		out = os.Stderr
	default:
		out = os.Stdout
	}

	zerolog.TimeFieldFormat = cfg.TimeFormat

	var logger zerolog.Logger
	if cfg.Format == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(out)
	}

	return logger.Level(level).With().Timestamp().Logger()
}
