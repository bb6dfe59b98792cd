package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"storyforge/internal/adapter/repo"
	"storyforge/internal/guard"
	"storyforge/internal/http/handlers"
	"storyforge/internal/http/httpapi"
	"storyforge/internal/infra"
	"storyforge/internal/orchestrator"
	"storyforge/internal/providers"
	"storyforge/internal/providers/cloud"
	"storyforge/internal/providers/local"
	"storyforge/internal/providers/vendorapi"
	"storyforge/internal/scheduler"
	"storyforge/internal/storage"
	"storyforge/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("server: db connection failed")
	}
	defer pool.Close()
	runner := infra.NewSQLRunner(pool, logger)

	storagePath := cfg.StoragePath
	if !filepath.IsAbs(storagePath) {
		if abs, err := filepath.Abs(storagePath); err == nil {
			storagePath = abs
		}
	}
	fileStore, err := storage.NewFileStore(storagePath, cfg.StorageBaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("server: failed to configure storage")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := infra.NewMetrics(registry)

	ruleStore := guard.NewRuleStore(cfg.GuardrailRulesPath, logger)
	contentGuard := guard.New(ruleStore, logger, metrics)

	providerPool := buildProviderPool(cfg, fileStore, logger)
	selector := providers.NewSelector(providerPool)

	orch := orchestrator.New(contentGuard, selector, providerPool, fileStore, orchestrator.Config{
		InferenceMode: cfg.InferenceMode,
		RetryAttempts: cfg.RetryAttempts,
		Timeouts: orchestrator.TimeoutTable{
			Cloud:  cfg.CloudAttemptTimeout,
			Vendor: cfg.VendorAttemptTimeout,
			Local:  cfg.LocalAttemptTimeout,
		},
	}, logger, metrics)

	sched := scheduler.New(logger, metrics)
	sessions := repo.NewSessionRepository(runner)
	moderation := repo.NewModerationRepository(runner)

	jobWorker := worker.New(sched, orch, sessions, moderation, int64(cfg.JobConcurrency), logger, metrics)
	workerDone := make(chan error, 1)
	go func() {
		workerDone <- jobWorker.Run(ctx)
	}()

	auth := handlers.NewKeyListAuth(cfg.PaidAPIKeys)
	app := handlers.NewApp(sched, auth, cfg, logger)
	server := infra.NewHTTPServer(cfg, httpapi.NewRouter(app, registry, storagePath))

	go func() {
		logger.Info().Str("port", cfg.Port).Str("mode", cfg.InferenceMode).Msg("server: listening")
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server: http server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("server: shutting down")

	sched.Close()
	if err := <-workerDone; err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("server: worker stopped with error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server: http shutdown failed")
	}
	logger.Info().Msg("server: stopped")
}

// buildProviderPool registers every back-end that is viable on this host:
// cloud and vendor need credentials, the local CPU model needs headroom for
// its weights. native_mobile has no server-side implementation and is never
// registered, so chains containing it skip straight past.
func buildProviderPool(cfg *infra.Config, fileStore *storage.FileStore, logger infra.Logger) *providers.Pool {
	pool := providers.NewPool(logger)
	httpClient := &http.Client{Timeout: 120 * time.Second}

	if cfg.CloudAPIKey != "" {
		pool.Register(providers.KindCloud, func() (providers.Provider, error) {
			return cloud.NewGenerator(cloud.Options{
				APIKey:     cfg.CloudAPIKey,
				BaseURL:    cfg.CloudBaseURL,
				Model:      cfg.CloudModel,
				HTTPClient: httpClient,
				Logger:     &logger,
				Store:      fileStore,
			})
		})
	} else {
		logger.Warn().Msg("server: cloud api key missing, cloud provider not registered")
	}

	if cfg.VendorAPIKey != "" {
		pool.Register(providers.KindVendor, func() (providers.Provider, error) {
			return vendorapi.NewGenerator(vendorapi.Options{
				APIKey:     cfg.VendorAPIKey,
				BaseURL:    cfg.VendorBaseURL,
				HTTPClient: httpClient,
				Logger:     &logger,
			})
		})
	} else {
		logger.Warn().Msg("server: vendor api key missing, vendor provider not registered")
	}

	if local.HasCapacity(logger) {
		pool.Register(providers.KindLocal, func() (providers.Provider, error) {
			return local.NewGenerator(fileStore, logger)
		})
	}

	return pool
}
