package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/httplog/v2"
	"github.com/redis/go-redis/v9"
	"github.com/vadimbarashkov/link-gateway/internal/adapter/repository/memory"
	"github.com/vadimbarashkov/link-gateway/internal/cipher"
	"github.com/vadimbarashkov/link-gateway/internal/classifier"
	"github.com/vadimbarashkov/link-gateway/internal/config"
	"github.com/vadimbarashkov/link-gateway/internal/entity"
	"github.com/vadimbarashkov/link-gateway/internal/linkstore"
	"github.com/vadimbarashkov/link-gateway/internal/ratelimit"
	"github.com/vadimbarashkov/link-gateway/internal/sentinel"
	"github.com/vadimbarashkov/link-gateway/internal/usecase"
	"github.com/vadimbarashkov/link-gateway/pkg/postgres"
	"golang.org/x/sync/errgroup"

	delivery "github.com/vadimbarashkov/link-gateway/internal/adapter/delivery/http"
	pgrepo "github.com/vadimbarashkov/link-gateway/internal/adapter/repository/postgres"
)

type domainRegistry interface {
	classifier.Registry
	Put(ctx context.Context, e entity.RegistryEntry) error
}

type storage struct {
	links    linkstore.Repository
	registry domainRegistry
	close    func() error
}

func NewLogger(cfg *config.Config) *httplog.Logger {
	opts := httplog.Options{
		LogLevel: slog.LevelDebug,
		Concise:  true,
	}

	if cfg.Env == config.EnvProd {
		opts = httplog.Options{
			JSON:     true,
			LogLevel: slog.LevelInfo,
		}
	}

	return httplog.NewLogger("link-gateway", opts)
}

func Run(ctx context.Context, cfg *config.Config, logger *httplog.Logger) error {
	const op = "app.Run"

	store, err := openStorage(ctx, cfg, logger.Logger)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer store.close()

	if err := seedRegistry(ctx, store.registry, cfg.Registry.Entries()); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	limiter, closeLimiter := newLimiter(ctx, cfg.Redis, logger.Logger)
	defer closeLimiter()

	c, err := assemble(cfg, store, limiter, logger)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	gw := c.gateway

	server := &http.Server{
		Addr:           cfg.HTTPServer.Addr(),
		Handler:        c.handler,
		ReadTimeout:    cfg.HTTPServer.ReadTimeout,
		WriteTimeout:   cfg.HTTPServer.WriteTimeout,
		IdleTimeout:    cfg.HTTPServer.IdleTimeout,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error

		logger.Info("starting server", slog.String("addr", server.Addr), slog.String("storage", cfg.Storage))

		switch cfg.Env {
		case config.EnvProd:
			err = server.ListenAndServeTLS(cfg.HTTPServer.CertFile, cfg.HTTPServer.KeyFile)
		default:
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: server error occurred: %w", op, err)
		}

		return nil
	})

	g.Go(func() error {
		runSweeper(ctx, gw, cfg.Sweeper.Interval, logger.Logger)
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Gateway.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("%s: failed to shutdown server: %w", op, err)
		}

		if err := gw.Drain(shutdownCtx); err != nil {
			return fmt.Errorf("%s: failed to drain click counters: %w", op, err)
		}

		logger.Info("server stopped")

		return nil
	})

	return g.Wait()
}

type components struct {
	gateway *usecase.Gateway
	handler http.Handler
}

// assemble builds the gateway and its router over an opened store.
func assemble(cfg *config.Config, store *storage, limiter rateLimiter, logger *httplog.Logger) (*components, error) {
	const op = "app.assemble"

	urlCipher, err := cipher.New(cfg.Cipher.Secret)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create url cipher: %w", op, err)
	}

	bots, err := newSentinel(cfg.Bots)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	domains := classifier.New(
		store.registry,
		classifier.WithLookupTimeout(cfg.Gateway.RegistryTimeout),
		classifier.WithLogger(logger.Logger),
	)

	links := linkstore.New(
		store.links,
		linkstore.WithShortIDLength(cfg.Gateway.ShortIDLength),
		linkstore.WithLookupTimeout(cfg.Gateway.LookupTimeout),
		linkstore.WithClickTimeout(cfg.Gateway.ClickTimeout),
		linkstore.WithLogger(logger.Logger),
	)

	gw := usecase.New(
		links,
		urlCipher,
		domains,
		bots,
		limiter,
		usecase.WithLogger(logger.Logger),
		usecase.WithBatchConcurrency(cfg.Gateway.BatchConcurrency),
		usecase.WithRateLimits(usecase.RateLimits{
			Redirect: toLimit(cfg.RateLimit.Redirect),
			Continue: toLimit(cfg.RateLimit.Continue),
		}),
	)

	routerOpts := []delivery.Option{
		delivery.WithBotSentinel(bots),
		delivery.WithAllowedOrigins(cfg.HTTPServer.AllowedOrigins...),
		delivery.WithSwaggerFile(cfg.HTTPServer.SwaggerFile),
	}
	if apiLimit := toLimit(cfg.RateLimit.API); apiLimit.Enabled() {
		routerOpts = append(routerOpts, delivery.WithAPIRateLimit(limiter, apiLimit))
	}

	return &components{
		gateway: gw,
		handler: delivery.NewRouter(logger, gw, routerOpts...),
	}, nil
}

func openStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*storage, error) {
	const op = "app.openStorage"

	if cfg.Storage == config.StorageMemory {
		logger.Warn("using in-memory storage, links are lost on restart")

		return &storage{
			links:    memory.NewLinkRepository(),
			registry: memory.NewDomainRegistry(),
			close:    func() error { return nil },
		}, nil
	}

	db, err := postgres.New(
		ctx,
		cfg.Postgres.DSN(),
		postgres.WithConnMaxIdleTime(cfg.Postgres.ConnMaxIdleTime),
		postgres.WithConnMaxLifetime(cfg.Postgres.ConnMaxLifetime),
		postgres.WithMaxIdleConns(cfg.Postgres.MaxIdleConns),
		postgres.WithMaxOpenConns(cfg.Postgres.MaxOpenConns),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to connect to database: %w", op, err)
	}

	version, err := postgres.RunMigrations(cfg.Postgres.MigrationsPath, cfg.Postgres.DSN())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: failed to run migrations: %w", op, err)
	}

	logger.Info("database ready", slog.Uint64("schema_version", uint64(version)))

	return &storage{
		links:    pgrepo.NewLinkRepository(db),
		registry: pgrepo.NewDomainRegistry(db),
		close:    db.Close,
	}, nil
}

func seedRegistry(ctx context.Context, registry domainRegistry, entries []entity.RegistryEntry) error {
	const op = "app.seedRegistry"

	for _, e := range entries {
		if err := registry.Put(ctx, e); err != nil {
			return fmt.Errorf("%s: failed to seed %s: %w", op, e.Domain, err)
		}
	}

	return nil
}

func newSentinel(cfg config.Bots) (*sentinel.Sentinel, error) {
	var opts []sentinel.Option

	if cfg.PatternsFile != "" {
		patterns, err := sentinel.LoadPatterns(cfg.PatternsFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, sentinel.WithPatterns(patterns))
	}

	if len(cfg.ActionPrefixes) > 0 {
		opts = append(opts, sentinel.WithActionPrefixes(cfg.ActionPrefixes...))
	}

	return sentinel.New(opts...), nil
}

type rateLimiter interface {
	Admit(ctx context.Context, identity, routeClass string, maxRequests int, window time.Duration) bool
}

// newLimiter shares counters through Redis when an address is configured.
// An unreachable Redis is logged and the limiter fails open per request.
func newLimiter(ctx context.Context, cfg config.Redis, logger *slog.Logger) (rateLimiter, func()) {
	if cfg.Addr == "" {
		return ratelimit.NewMemoryLimiter(), func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis is unreachable, rate limits fail open", slog.String("addr", cfg.Addr), slog.Any("err", err))
	}

	l := ratelimit.NewRedisLimiter(
		client,
		ratelimit.WithPrefix(cfg.KeyPrefix),
		ratelimit.WithTimeout(cfg.Timeout),
		ratelimit.WithLogger(logger),
	)

	return l, func() { client.Close() }
}

func runSweeper(ctx context.Context, gw *usecase.Gateway, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := gw.PurgeExpired(ctx)
			if err != nil {
				logger.Error("failed to purge expired links", slog.Any("err", err))
				continue
			}
			if deleted > 0 {
				logger.Info("purged expired links", slog.Int64("deleted", deleted))
			}
		}
	}
}

func toLimit(l config.Limit) ratelimit.Limit {
	return ratelimit.Limit{MaxRequests: l.MaxRequests, Window: l.Window}
}
