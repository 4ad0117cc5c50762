package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"styletransfer/internal/accounts"
	"styletransfer/internal/backend"
	"styletransfer/internal/docstore"
	"styletransfer/internal/domain"
	"styletransfer/internal/engine"
	"styletransfer/internal/gallery"
	"styletransfer/internal/http/handlers"
	httpapi "styletransfer/internal/http/httpapi"
	"styletransfer/internal/infra"
	"styletransfer/internal/jobs"
	"styletransfer/internal/notify"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	store, err := backend.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("failed to open object store")
	}
	defer store.Close()

	docs := docstore.New(store.Repo, logger)
	gal := gallery.NewService(docs, store.Locator, logger)

	var eng domain.Engine
	if cfg.EngineURL != "" {
		remote, err := engine.NewRemote(engine.RemoteOptions{
			BaseURL:        cfg.EngineURL,
			Token:          cfg.EngineToken,
			Logger:         &logger,
			RequestTimeout: cfg.EngineTimeout,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid engine configuration")
		}
		eng = remote
		logger.Info().Str("url", cfg.EngineURL).Msg("using remote engine")
	} else {
		eng = engine.NewSynthetic(50*time.Millisecond, &logger)
		logger.Warn().Msg("ENGINE_URL not set, using synthetic engine")
	}

	var notifier domain.Notifier
	if cfg.SMTPConfigured() {
		notifier = notify.NewMailer(notify.SMTPOptions{
			Host:       cfg.SMTPHost,
			Port:       cfg.SMTPPort,
			User:       cfg.SMTPUser,
			Password:   cfg.SMTPPassword,
			From:       cfg.SMTPFromEmail,
			AdminEmail: cfg.AdminEmail,
		}, logger)
	} else {
		notifier = notify.NewLogNotifier(logger)
		logger.Warn().Msg("SMTP credentials not set, notifications are logged only")
	}

	acc := accounts.NewService(docs, accounts.Options{Notifier: notifier, Logger: logger})
	orch := jobs.NewOrchestrator(jobs.Options{
		Engine:        eng,
		Store:         docs,
		Locator:       store.Locator,
		Gallery:       gal,
		MaxConcurrent: cfg.MaxConcurrentJobs,
		Logger:        logger,
	})

	app := handlers.NewApp(handlers.Options{
		Jobs:           orch,
		Gallery:        gal,
		Accounts:       acc,
		Logger:         logger,
		JWTSecret:      cfg.JWTSecret,
		MasterPassword: cfg.MasterPassword,
		TokenTTL:       cfg.TokenTTL,
	})
	router := httpapi.NewRouter(app, httpapi.Options{
		AllowedOrigins:  cfg.AllowedOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		StaticDir:       store.StaticDir,
		Logger:          logger,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if err := orch.Wait(shutdownCtx); err != nil {
		logger.Warn().Err(err).Interface("jobs", orch.Stats()).Msg("jobs still running at shutdown")
	}
	logger.Info().Msg("server stopped")
}
