package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"fintool-server/src/api"
	"fintool-server/src/config"
	"fintool-server/src/db"
	vaultsql "fintool-server/src/db/sql"
	"fintool-server/src/logging"
	"fintool-server/src/metrics"
	"fintool-server/src/middleware"
	"fintool-server/src/plaid"
	"fintool-server/src/services"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		logging.New("info", "console").Error().Err(err).Msg("Failed to load configuration")
		return err
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewPrometheusMetrics(registry)

	codec, err := services.NewCodec(services.KeyConfig{
		ActiveKeyID: cfg.EncryptionActiveKeyID,
		Keys:        cfg.EncryptionKeys,
		LegacyKey:   cfg.EncryptionKey,
	}, recorder, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to build encryption key ring")
		return err
	}

	// Connect to database
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error().Err(err).Msg("DB connection failed")
		return err
	}
	defer pool.Close()

	if err := db.EnsureSchema(ctx, pool); err != nil {
		logger.Error().Err(err).Msg("Failed to prepare schema")
		return err
	}

	cache, err := db.NewVaultCache(int64(cfg.CacheMaxEntries))
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize cache")
		return err
	}
	defer cache.Close()
	store := vaultsql.NewUserStore(pool, cache)

	plaidAPI, err := plaid.NewPlaidClient(cfg.PlaidClientID, cfg.PlaidSecret, cfg.PlaidEnv)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to build Plaid client")
		return err
	}
	upstream := plaid.NewClient(plaidAPI, plaid.LinkSettings{
		ClientName:   cfg.PlaidClientName,
		Language:     cfg.PlaidLanguage,
		CountryCodes: cfg.PlaidCountryCodes,
		RedirectURI:  cfg.PlaidRedirectURI,
	})

	reconciler := services.NewReconciler(upstream, services.ReconcilerOptions{
		MaxPages:           cfg.SyncMaxPages,
		MaxMutationRetries: cfg.SyncMaxMutationRetries,
	}, recorder, logger)

	limiter := middleware.NewRateLimiter(float64(cfg.RateLimitPerSecond), cfg.RateLimitBurst)
	go limiter.Cleanup(ctx, time.Minute, 10*time.Minute)

	router := api.NewRouter(api.Services{
		Link:         services.NewLinkService(store, codec, upstream, cfg.PlaidProducts, recorder, logger),
		Accounts:     services.NewAccountService(store, codec, upstream, recorder, logger),
		Transactions: services.NewTransactionService(store, codec, reconciler, recorder, logger),
		Investments:  services.NewInvestmentService(store, codec, upstream, cfg.InvestmentsLookbackDays, recorder, logger),
		Composition:  services.NewCompositionService(store, codec),
		Rekey:        services.NewRekeyService(store, codec, logger),
	}, api.RouterConfig{
		JWTSecret:      []byte(cfg.JWTSecret),
		AllowedOrigins: cfg.CORSAllowOrigins,
		Metrics:        recorder.Handler(),
		RateLimiter:    limiter,
		Logger:         logger,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("port", cfg.Port).Str("plaid_env", cfg.PlaidEnv).Str("active_key_id", codec.KeyRing().ActiveKeyID()).Msg("API server running")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Server stopped")
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
		return err
	}
	logger.Info().Msg("Server shut down")
	return nil
}
