package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"spese-api/internal/amqp"
	"spese-api/internal/auth"
	"spese-api/internal/cache"
	"spese-api/internal/cli"
	"spese-api/internal/config"
	apphttp "spese-api/internal/http"
	"spese-api/internal/log"
	"spese-api/internal/middleware/ratelimit"
	"spese-api/internal/middleware/security"
	"spese-api/internal/reports"
	"spese-api/internal/services"
)

func main() {
	cli.LoadEnvFile()

	cfg := cli.LoadAndValidateConfig(cli.SetupLogger("info", "text", log.ComponentApp))
	logger := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat, log.ComponentApp)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	logger.Info("SQLite repository ready", "path", cfg.SQLiteDBPath)

	// Report cache, swept by the manager between reads.
	reportCache := cache.NewLRUCache[any](cfg.ReportCacheSize, cfg.ReportCacheTTL)
	cacheManager := cache.NewManager()
	cacheManager.Register(reportCache)
	cacheManager.StartCleanup(time.Minute)

	engine := reports.NewEngine(repo, reportCache)

	// Ledger events are optional; a broker outage at boot only disables them.
	var events services.EventPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, ledger events disabled", log.FieldError, err)
		} else {
			events = client
			logger.Info("Publishing ledger events", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}
	ledger := services.NewLedgerService(repo, events, engine)

	guard := auth.NewGuard(repo,
		auth.NewTokenIssuer(cfg.SecretKey, cfg.AccessTokenTTL),
		auth.NewHasher(cfg.BcryptCost))

	limiterStore, closeLimiter := newRateLimitStore(logger, cfg)
	limiter := ratelimit.NewLimiter(ratelimit.Config{
		Requests: cfg.RateLimitRequests,
		Window:   cfg.RateLimitWindow,
	}, limiterStore)

	proxies := append(append([]string{}, security.DefaultTrustedProxies...), cfg.TrustedProxies...)
	resolver, err := security.NewClientIPResolver(proxies)
	if err != nil {
		logger.Error("Invalid trusted proxy list", log.FieldError, err)
		os.Exit(1)
	}

	srv := apphttp.NewServer(cfg.Addr(), apphttp.Deps{
		Auth:        guard,
		Ledger:      ledger,
		Reports:     engine,
		Ready:       repo.Ping,
		Limiter:     limiter,
		ClientIP:    resolver,
		CORSOrigins: cfg.CORSOrigins,
		Logger:      logger,
	})

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		cacheManager.Stop()
		if err := closeLimiter(); err != nil {
			logger.Warn("Rate limit store close error", log.FieldError, err)
		}
		if err := ledger.Close(); err != nil {
			logger.Warn("Ledger close error", log.FieldError, err)
		}
	})

	logger.Info("Starting spese-api server",
		"addr", cfg.Addr(),
		"rate_limit", cfg.RateLimitRequests,
		"rate_window", cfg.RateLimitWindow,
		"redis", cfg.RedisURL != "",
		"events", events != nil)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "addr", cfg.Addr())
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}

// newRateLimitStore prefers Redis when configured so several instances share
// one window, and falls back to process memory.
func newRateLimitStore(logger *log.Logger, cfg *config.Config) (ratelimit.Store, func() error) {
	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		client, err := ratelimit.NewRedisClient(ctx, cfg.RedisURL)
		if err == nil {
			store := ratelimit.NewRedisStore(client)
			logger.Info("Rate limiting backed by Redis")
			return store, store.Close
		}
		logger.Warn("Redis unavailable, rate limiting in memory", log.FieldError, err)
	}

	store := ratelimit.NewMemoryStore(cfg.RateLimitWindow, 5*time.Minute)
	return store, func() error {
		store.Stop()
		return nil
	}
}
