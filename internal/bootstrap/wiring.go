package bootstrap

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"

	"golang.org/x/time/rate"

	"media-translator/internal/auth"
	"media-translator/internal/config"
	"media-translator/internal/diagnostics"
	"media-translator/internal/gateway"
	"media-translator/internal/history"
	"media-translator/internal/metrics"
	"media-translator/internal/monitor"
	"media-translator/internal/queue"
	"media-translator/internal/store"
)

// New builds the application from process configuration.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var tokens gateway.TokenSource
	if cfg.ServiceTokenSecret != "" {
		issuer, err := auth.NewIssuer(cfg.ServiceTokenSecret, "media-translator", "panel", auth.DefaultTTL)
		if err != nil {
			return nil, fmt.Errorf("build service token issuer: %w", err)
		}
		tokens = issuer
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := int(math.Max(1, math.Ceil(cfg.RequestsPerSecond)))
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	client, err := gateway.New(gateway.Options{
		BaseURL:         cfg.ServiceURL,
		StatusTimeout:   cfg.StatusTimeout,
		TransferTimeout: cfg.TransferTimeout,
		Limiter:         limiter,
		Tokens:          tokens,
		Logger:          logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build service client: %w", err)
	}

	backend, closers, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	repo := store.NewRepository(backend, config.DefaultPreferences())
	ledger := history.NewLedger(repo, cfg.HistoryCapacity)

	var push Subscriber
	switch cfg.StatusSource {
	case config.StatusSourceWebSocket:
		push = client
	case config.StatusSourceAMQP:
		subscriber, err := queue.Connect(ctx, cfg.AMQPURL, queue.Options{Exchange: cfg.AMQPExchange, Logger: logger})
		if err != nil {
			closeAll(closers)
			return nil, fmt.Errorf("connect status queue: %w", err)
		}
		push = subscriber
		closers = append(closers, subscriber)
	}

	checker := diagnostics.NewChecker(client.Health, func(ctx context.Context) error {
		_, err := repo.Load(ctx)
		return err
	})

	app, err := NewWithDeps(Deps{
		Service: client,
		Push:    push,
		Ledger:  ledger,
		Metrics: metrics.New(),
		Checker: checker,
		SyncOptions: monitor.Options{
			Interval:      cfg.PollInterval,
			FastInterval:  cfg.FastPollInterval,
			NotFoundLimit: cfg.NotFoundLimit,
			CancelTimeout: cfg.StatusTimeout,
		},
		Logger:  logger,
		Closers: closers,
	})
	if err != nil {
		closeAll(closers)
		return nil, err
	}

	logger.Info("app configured",
		"service_url", client.BaseURL(),
		"status_source", cfg.StatusSource,
		"state_backend", cfg.StateBackend,
	)
	return app, nil
}

// openBackend selects the persisted-state backend and returns what must be closed on shutdown.
func openBackend(ctx context.Context, cfg config.Config) (store.Backend, []io.Closer, error) {
	switch cfg.StateBackend {
	case config.StateBackendRedis:
		client, err := store.OpenRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		return store.NewRedisBackend(client, store.Key), []io.Closer{client}, nil
	case config.StateBackendPostgres:
		db, err := store.OpenPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		backend := store.NewPostgresBackend(db, store.Key)
		if err := backend.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return backend, []io.Closer{db}, nil
	default:
		return store.NewFileBackend(cfg.StatePath), nil, nil
	}
}

func closeAll(closers []io.Closer) {
	for _, closer := range closers {
		_ = closer.Close()
	}
}
