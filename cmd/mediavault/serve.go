package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/mediavault/mediavault/internal/config"
	"github.com/mediavault/mediavault/internal/db"
	"github.com/mediavault/mediavault/internal/dedup"
	"github.com/mediavault/mediavault/internal/events"
	"github.com/mediavault/mediavault/internal/handlers"
	"github.com/mediavault/mediavault/internal/healthcheck"
	dependencychecker "github.com/mediavault/mediavault/internal/healthcheck/checkers/dependency"
	"github.com/mediavault/mediavault/internal/ingest"
	"github.com/mediavault/mediavault/internal/logger"
	"github.com/mediavault/mediavault/internal/media"
	"github.com/mediavault/mediavault/internal/server"
	"github.com/mediavault/mediavault/internal/storage/providers/gcs"
	"github.com/mediavault/mediavault/internal/storage/providers/localfs"
	"github.com/mediavault/mediavault/internal/store"
	"github.com/mediavault/mediavault/internal/telegram"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideDBConn,
			provideStore,
			provideStorage,
			provideFetcher,
			provideDeduper,
			providePublisher,
			provideAuthGuard,
			providePipeline,
			provideHealthCheckers,
			provideServerHandler(providePingHandler),
			provideServerHandler(handlers.NewWebhookServerHandler),
			provideServerHandler(handlers.NewMediaHandler),
			provideServer,
		),
		fx.Invoke(
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideDBConn(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	conn, err := db.Open(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { conn.Close(); return nil }})
	return conn, nil
}

func provideStore(log *slog.Logger, conn *pgxpool.Pool) *store.PgStore { return store.New(log, conn) }

func provideStorage(lc fx.Lifecycle, log *slog.Logger, cfg config.Config) (media.StorageProvider, error) {
	switch strings.TrimSpace(cfg.Storage.Provider) {
	case "gcs":
		provider, err := gcs.New(context.Background(), log, gcs.Options{
			Bucket:          cfg.Storage.Bucket,
			PublicBaseURL:   cfg.Storage.PublicBaseURL,
			CredentialsFile: cfg.Storage.CredentialsFile,
		})
		if err != nil {
			return nil, fmt.Errorf("gcs storage: %w", err)
		}
		lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { return provider.Close() }})
		return provider, nil
	case "", "localfs":
		provider, err := localfs.New(cfg.Storage.Root, cfg.Storage.PublicBaseURL)
		if err != nil {
			return nil, fmt.Errorf("localfs storage: %w", err)
		}
		return provider, nil
	default:
		return nil, fmt.Errorf("%w: unknown storage provider %q", media.ErrProviderUnavailable, cfg.Storage.Provider)
	}
}

func provideFetcher(log *slog.Logger, cfg config.Config) *telegram.Fetcher {
	return telegram.NewFetcher(log, cfg.Telegram, &http.Client{Timeout: cfg.Telegram.DownloadTimeout()})
}

func provideDeduper(lc fx.Lifecycle, log *slog.Logger, cfg config.Config) (ingest.Deduper, error) {
	if !cfg.Redis.Enabled() {
		log.Info("redis not configured, update de-duplication disabled")
		return dedup.Noop{}, nil
	}
	st, err := dedup.New(context.Background(), log, cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("dedup: %w", err)
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { return st.Close() }})
	return st, nil
}

func providePublisher(lc fx.Lifecycle, log *slog.Logger, cfg config.Config) (ingest.ActivityPublisher, error) {
	if !cfg.AMQP.Enabled() {
		return events.Noop{}, nil
	}
	pub, err := events.NewPublisher(log, cfg.AMQP)
	if err != nil {
		return nil, fmt.Errorf("events: %w", err)
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { return pub.Close() }})
	return pub, nil
}

func provideAuthGuard(cfg config.Config) *ingest.AuthGuard { return ingest.NewAuthGuard(cfg.Telegram) }

func providePipeline(log *slog.Logger, cfg config.Config, st *store.PgStore, fetcher *telegram.Fetcher, storage media.StorageProvider, deduper ingest.Deduper, publisher ingest.ActivityPublisher) (*ingest.Pipeline, error) {
	ownerID, err := uuid.Parse(strings.TrimSpace(cfg.Ingest.OwnerID))
	if err != nil {
		return nil, fmt.Errorf("ingest owner id: %w", err)
	}
	return ingest.NewPipeline(log, st, fetcher, storage, ingest.Options{
		OwnerID:   ownerID,
		Filenames: media.NewFilenameGenerator(),
		Deduper:   deduper,
		Publisher: publisher,
	}), nil
}

func provideHealthCheckers(log *slog.Logger, conn *pgxpool.Pool, deduper ingest.Deduper) []healthcheck.Checker {
	checkers := []healthcheck.Checker{dependencychecker.NewChecker(log, "postgres", conn)}
	if pinger, ok := deduper.(dependencychecker.Pinger); ok {
		checkers = append(checkers, dependencychecker.NewChecker(log, "redis", pinger, dependencychecker.Optional()))
	}
	return checkers
}

func providePingHandler(log *slog.Logger, checkers []healthcheck.Checker) *handlers.PingHandler {
	return handlers.NewPingHandler(log, checkers...)
}

type serverParams struct {
	fx.In
	Logger         *slog.Logger
	Config         config.Config
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Logger, params.Config.Server.Addr, params.ServerHandlers...)
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner, cfg config.Config) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("starting mediavault",
				slog.String("addr", srv.Addr()),
				slog.String("webhook_path", cfg.Server.WebhookPath),
				slog.String("storage", cfg.Storage.Provider),
			)
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cfg.Server.ShutdownTimeoutMs > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, time.Duration(cfg.Server.ShutdownTimeoutMs)*time.Millisecond)
				defer cancel()
			}
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
