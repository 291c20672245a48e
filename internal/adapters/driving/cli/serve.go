package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/finplan-core/internal/adapters/driven/formfile"
	"github.com/custodia-labs/finplan-core/internal/adapters/driven/notify"
	"github.com/custodia-labs/finplan-core/internal/adapters/driven/postgres"
	redisadapter "github.com/custodia-labs/finplan-core/internal/adapters/driven/redis"
	"github.com/custodia-labs/finplan-core/internal/adapters/driving/http"
	"github.com/custodia-labs/finplan-core/internal/config"
	"github.com/custodia-labs/finplan-core/internal/core/ports/driven"
	"github.com/custodia-labs/finplan-core/internal/core/services"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the collection API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)
	logger.Info("finplan-core starting", "version", version, "form_source", cfg.FormSchemaSource)

	db, err := connectDB(cmd, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("connected to PostgreSQL")

	if cfg.MigrateOnStart {
		if err := db.Migrate(ctx); err != nil {
			return err
		}
	}

	// Redis is optional: without it the lease falls back to a PostgreSQL
	// advisory lock and notifications are only logged.
	redisClient := connectRedis(ctx, cfg, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	var (
		lock          driven.DistributedLock
		redisPinger   http.Pinger
		notifications driven.NotificationLog
		notifiers     = notify.Fanout{notify.NewLogNotifier(logger)}
	)
	if redisClient != nil {
		redisLock := redisadapter.NewLock(redisClient)
		lock = redisLock
		redisPinger = redisLock
		redisNotifier := redisadapter.NewNotifier(redisClient, logger)
		notifiers = append(notifiers, redisNotifier)
		notifications = redisNotifier
		logger.Info("using Redis for editor leases and notifications")
	} else {
		lock = postgres.NewAdvisoryLock(db)
		logger.Info("using PostgreSQL advisory locks for editor leases")
	}

	forms, stopForms, err := formSource(ctx, cfg, db, redisClient, logger)
	if err != nil {
		return err
	}
	defer stopForms()

	collections := services.NewCollectionService(services.CollectionServiceConfig{
		Store:         postgres.NewCollectionStore(db),
		Forms:         forms,
		Lock:          lock,
		Notifier:      notifiers,
		AutosaveDelay: time.Duration(cfg.AutosaveDelay),
		LockTTL:       time.Duration(cfg.EditorLockTTL),
		Logger:        logger,
	})
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := collections.CloseAll(closeCtx); err != nil {
			logger.Error("failed to flush open collections", "error", err)
		}
	}()

	reaper := services.NewSessionReaper(services.SessionReaperConfig{
		Collections: collections,
		Logger:      logger,
		Interval:    time.Duration(cfg.ReaperInterval),
		IdleTimeout: time.Duration(cfg.SessionIdleTimeout),
	})
	reaper.Start(ctx)
	defer reaper.Stop()

	serverCfg := http.DefaultConfig()
	serverCfg.Port = cfg.Port
	serverCfg.Version = version
	serverCfg.Logger = logger
	serverCfg.EditRateLimit = cfg.EditRateLimit
	serverCfg.EditRateBurst = cfg.EditRateBurst
	serverCfg.AllowedOrigins = cfg.AllowedOrigins

	server := http.NewServer(serverCfg, collections, notifications, db, redisPinger)
	return server.Start(ctx)
}

// connectRedis returns nil when REDIS_URL is unset or Redis cannot be reached
func connectRedis(ctx context.Context, cfg config.Config, logger *slog.Logger) *redis.Client {
	if cfg.RedisURL == "" {
		return nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Warn("invalid REDIS_URL, continuing without Redis", "error", err)
		return nil
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis unreachable, continuing without Redis", "error", err)
		client.Close()
		return nil
	}
	logger.Info("connected to Redis")
	return client
}

// formSource builds the configured schema source and returns its cleanup
func formSource(ctx context.Context, cfg config.Config, db *postgres.DB, redisClient *redis.Client, logger *slog.Logger) (driven.FormSource, func(), error) {
	switch cfg.FormSchemaSource {
	case config.FormSourcePostgres:
		store := postgres.NewFormSchemaStore(db)
		if redisClient == nil {
			return store, func() {}, nil
		}
		return redisadapter.NewFormCache(redisClient, store, time.Duration(cfg.FormCacheTTL), logger), func() {}, nil

	case config.FormSourceFile:
		source := formfile.NewSource(formfile.SourceConfig{Path: cfg.FormSchemaFile, Logger: logger})
		if err := source.Reload(); err != nil {
			return nil, nil, err
		}
		if !cfg.FormSchemaWatch {
			return source, func() {}, nil
		}
		if err := source.Watch(ctx); err != nil {
			return nil, nil, fmt.Errorf("watch form schema: %w", err)
		}
		return source, source.Stop, nil
	}
	return nil, nil, fmt.Errorf("unknown form schema source %q", cfg.FormSchemaSource)
}
