package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"calmiverse/internal/adapter/repo"
	"calmiverse/internal/http/handlers"
	"calmiverse/internal/http/httpapi"
	"calmiverse/internal/infra"
	"calmiverse/internal/infra/credentials"
	"calmiverse/internal/infra/geoip"
	"calmiverse/internal/infra/supaauth"
	"calmiverse/internal/middleware"
	"calmiverse/internal/notify"
	"calmiverse/internal/queue"
	"calmiverse/internal/remotesync"
	"calmiverse/internal/storage"
	"calmiverse/internal/webhook"
)

const (
	cleanupInterval = 60 * time.Second
	sessionTTL      = 24 * time.Hour
	feedLimit       = 100
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "api")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: db connection failed")
	}
	defer pool.Close()

	userRepo := repo.NewUserRepository(pool)
	storyRepo := repo.NewStoryRepository(pool)
	childRepo := repo.NewChildRepository(pool)

	credStore := credentials.NewStore(infra.NewSQLRunner(pool, logger))
	signingSecret, err := credStore.N8NSigningSecret(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("api: failed to load webhook signing secret")
	}

	fileStore, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: failed to configure storage")
	}

	manager := queue.NewManager(
		queue.NewSnapshotStore(cfg.QueueSnapshotPath, logger),
		logger,
		queue.Config{},
	)

	feed := notify.NewFeed(feedLimit)
	dispatcher := notify.NewDispatcher(logger,
		notify.NewPushSender(cfg.NotifyWebhook, nil),
		feed,
	)

	watcher := remotesync.NewWatcher(
		remotesync.NewPQChannel(cfg.DatabaseURL, logger),
		storyRepo,
		manager,
		dispatcher,
		logger,
		cfg.QueuePollInterval,
	)
	if err := watcher.Start(ctx, ""); err != nil {
		// Queue keeps working from local state; jobs finish reconciling
		// once the listener connects on a later restart.
		logger.Error().Err(err).Msg("api: remote sync unavailable")
		manager.SetOnline(false)
	}
	defer watcher.Stop()

	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				manager.Cleanup()
			}
		}
	}()

	var verifier supaauth.Verifier
	if cfg.SupabaseURL != "" && cfg.SupabaseAnonKey != "" {
		v, err := supaauth.New(cfg.SupabaseURL, cfg.SupabaseAnonKey)
		if err != nil {
			logger.Fatal().Err(err).Msg("api: supabase client failed")
		}
		verifier = v
	} else {
		logger.Warn().Msg("api: supabase not configured, session exchange disabled")
	}

	var lookup middleware.CountryLookup
	if resolver, err := geoip.NewResolver(cfg.GeoIPDBPath); err != nil {
		logger.Warn().Err(err).Msg("api: geoip disabled")
	} else if resolver != nil {
		defer resolver.Close()
		lookup = resolver
	}

	app := &handlers.App{
		Users:    userRepo,
		Stories:  storyRepo,
		Children: childRepo,
		DB:       pool,
		Queue:    manager,
		Feed:     feed,
		Webhook: webhook.NewClient(cfg.GenerationWebhook, nil, webhook.Config{
			MaxRetries:    cfg.WebhookMaxRetries,
			Timeout:       cfg.WebhookTimeout,
			SigningSecret: signingSecret,
		}, logger),
		Store:      fileStore,
		Auth:       verifier,
		JWTSecret:  cfg.JWTSecret,
		SessionTTL: sessionTTL,
		Logger:     logger,
	}

	router := httpapi.NewRouter(app, cfg, httpapi.Options{
		CORSOrigins:     []string{"https://calmiverse.app", "http://localhost:3000"},
		RateLimitPerMin: cfg.RateLimitPerMin,
		CountryLookup:   lookup,
		DefaultLocale:   cfg.DefaultLocale,
	})
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("api: listening")
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("api: http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("api: failed to shutdown server")
	}
	logger.Info().Msg("api: stopped")
}
