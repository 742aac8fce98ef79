package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	config "github.com/Danwoltrs/wolthers-travel-app-sub001/config/web"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/gateways/web"
	asrClient "github.com/Danwoltrs/wolthers-travel-app-sub001/gateways/web/clients/asr"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/gateways/web/handler"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/pkg/database"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/pkg/logger"
	filesStorage "github.com/Danwoltrs/wolthers-travel-app-sub001/services/files/storage"
	filesUsecase "github.com/Danwoltrs/wolthers-travel-app-sub001/services/files/usecase"
	notesStorage "github.com/Danwoltrs/wolthers-travel-app-sub001/services/notes/storage"
	notesUsecase "github.com/Danwoltrs/wolthers-travel-app-sub001/services/notes/usecase"
	tripsStorage "github.com/Danwoltrs/wolthers-travel-app-sub001/services/trips/storage"
	tripsUsecase "github.com/Danwoltrs/wolthers-travel-app-sub001/services/trips/usecase"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	_ "modernc.org/sqlite"
)

const idempotencyTTL = 24 * time.Hour

func main() {
	cfg := config.MustLoad()

	log := logger.New(logger.Config{
		Level:      logger.ParseLevel(cfg.LogLevel),
		Output:     os.Stderr,
		AddSource:  true,
		JSONFormat: false,
	})
	logger.SetDefault(log)

	ctx := logger.WithContext(context.Background(), log)

	rootCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(rootCtx, cfg, log); err != nil {
		log.Error("failed to run()", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	drv, err := openDatabase(cfg.Database)
	if err != nil {
		return err
	}
	defer drv.Close()

	trips := tripsStorage.New(drv)
	if err := trips.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate trips: %w", err)
	}
	notes := notesStorage.New(drv)
	if err := notes.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate notes: %w", err)
	}

	cache, closeCache := idempotencyCache(ctx, cfg.Redis, log)
	defer closeCache()

	files, err := fileStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}

	asr, err := asrClient.New(&cfg.AsrService)
	if err != nil {
		return fmt.Errorf("failed to create asr client: %w", err)
	}
	defer asr.Close()

	srv := web.New(cfg, log, handler.Deps{
		Trips: tripsUsecase.New(trips, cache, tripsUsecase.Options{PublicBaseURL: cfg.PublicBaseURL}),
		Notes: notesUsecase.New(notes),
		Files: filesUsecase.New(files),
		Asr:   asr,
	})

	return srv.Start(ctx)
}

func openDatabase(cfg config.DatabaseConfig) (*entsql.Driver, error) {
	switch cfg.Driver {
	case dialect.SQLite, "sqlite":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "file:travel.db?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
		}
		return database.Open(dialect.SQLite, "sqlite", dsn)
	case dialect.Postgres:
		return database.Open(dialect.Postgres, "postgres", cfg.PostgresDSN())
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// idempotencyCache uses Redis when an address is configured and reachable,
// otherwise an in-process cache.
func idempotencyCache(ctx context.Context, cfg config.RedisConfig, log *slog.Logger) (tripsStorage.IdempotencyCache, func()) {
	if cfg.Addr == "" {
		return tripsStorage.NewMemoryCache(idempotencyTTL), func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn("redis unreachable, using in-memory idempotency cache",
			slog.String("addr", cfg.Addr),
			slog.String("error", err.Error()))
		client.Close()
		return tripsStorage.NewMemoryCache(idempotencyTTL), func() {}
	}

	log.Info("redis idempotency cache connected", slog.String("addr", cfg.Addr))
	return tripsStorage.NewRedisCache(client, idempotencyTTL), func() { client.Close() }
}

func fileStore(ctx context.Context, cfg config.StorageConfig) (filesStorage.Storage, error) {
	switch cfg.Backend {
	case "s3":
		return filesStorage.NewS3Store(ctx, filesStorage.S3Config{
			Bucket:        cfg.Bucket,
			Region:        cfg.Region,
			Endpoint:      cfg.Endpoint,
			Prefix:        cfg.Prefix,
			PublicBaseURL: cfg.PublicBaseURL,
		})
	case "local", "":
		return filesStorage.NewLocalStore(cfg.LocalDir, cfg.PublicBaseURL)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}
