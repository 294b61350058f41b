package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stream-ledger/config"
	httpHandler "stream-ledger/internal/adapter/http/handler"
	memStorage "stream-ledger/internal/adapter/storage/memory"
	pgStorage "stream-ledger/internal/adapter/storage/postgres"
	redisStorage "stream-ledger/internal/adapter/storage/redis"
	"stream-ledger/internal/core/ports"
	"stream-ledger/internal/service"
	"stream-ledger/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// storage bundles the repositories of the selected driver.
type storage struct {
	streams    ports.StreamRepository
	accounts   ports.AccountRepository
	events     ports.EventRepository
	transactor ports.DBTransactor
	health     ports.HealthChecker
	close      func()
}

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	gin.SetMode(cfg.Server.Mode)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("storage", cfg.Storage.Driver).
		Str("pause_policy", cfg.Ledger.PausePolicy).
		Msg("Starting Stream Ledger")

	if cfg.JWT.Secret == "" {
		log.Fatal().Msg("jwt.secret must be set (SLG_JWT_SECRET)")
	}

	ctx := context.Background()

	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("Failed to open storage")
	}
	defer store.close()

	healthCheckers := []ports.HealthChecker{store.health}

	// Redis backs the idempotency fast path and rate limiting; both degrade
	// to off when it is disabled.
	var (
		idempCache     ports.IdempotencyCache
		rateLimitStore ports.RateLimitStore
	)
	if cfg.Redis.Enabled {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()

		idempCache = redisStorage.NewIdempotencyCache(rdb)
		if cfg.RateLimit.Enabled {
			rateLimitStore = redisStorage.NewRateLimitStore(rdb)
		}
		healthCheckers = append(healthCheckers, redisStorage.NewHealthCheck(rdb))
	} else {
		log.Warn().Msg("Redis disabled: idempotency relies on the database, rate limiting is off")
	}

	// Initialize core services
	sigSvc := service.NewHMACSignatureService()
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	transfer := service.NewEscrowTransferService(store.accounts, log)

	// Initialize business services
	authSvc := service.NewAuthService(store.accounts, hashSvc, tokenSvc, log)
	accountSvc := service.NewAccountService(store.accounts, store.transactor, cfg.Ledger.AllowFunding, log)

	var (
		notifier ports.EventNotifier
		webhook  *service.WebhookNotifier
	)
	if cfg.Notifier.URL != "" {
		webhook = service.NewWebhookNotifier(service.WebhookOptions{
			URL:         cfg.Notifier.URL,
			Secret:      cfg.Notifier.Secret,
			MaxAttempts: cfg.Notifier.MaxAttempts,
		}, sigSvc, &http.Client{Timeout: cfg.Notifier.Timeout}, log)
		notifier = webhook
		log.Info().Str("url", cfg.Notifier.URL).Msg("Event webhook enabled")
	}

	ledger := service.NewStreamLedger(
		store.streams,
		store.accounts,
		store.events,
		transfer,
		store.transactor,
		service.SystemClock{},
		idempCache,
		notifier,
		service.LedgerOptions{
			SettleOnPause:  cfg.Ledger.PausePolicy == config.PausePolicySettle,
			IdempotencyTTL: cfg.Ledger.IdempotencyTTL,
		},
		log,
	)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:        authSvc,
		AccountSvc:     accountSvc,
		Ledger:         ledger,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: healthCheckers,
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	if webhook != nil {
		if err := webhook.Close(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Webhook notifier stopped with undelivered events")
		}
	}

	log.Info().Msg("Server exited")
}

// openStorage connects the configured driver. The memory driver keeps all
// state in process and is meant for local runs and demos.
func openStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*storage, error) {
	switch cfg.Storage.Driver {
	case config.StorageDriverMemory:
		mem := memStorage.NewStore()
		log.Warn().Msg("Using in-memory storage: state is lost on restart")
		return &storage{
			streams:    memStorage.NewStreamRepo(mem),
			accounts:   memStorage.NewAccountRepo(mem),
			events:     memStorage.NewEventRepo(mem),
			transactor: mem,
			health:     mem,
			close:      func() {},
		}, nil

	case config.StorageDriverPostgres:
		pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			return nil, err
		}
		if err := pgStorage.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		log.Info().Msg("PostgreSQL schema applied")
		return &storage{
			streams:    pgStorage.NewStreamRepo(pool),
			accounts:   pgStorage.NewAccountRepo(pool),
			events:     pgStorage.NewEventRepo(pool),
			transactor: pgStorage.NewTransactor(pool),
			health:     pgStorage.NewHealthCheck(pool),
			close:      pool.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
