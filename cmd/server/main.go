package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hydro360/internal/config"
	grpcserver "hydro360/internal/grpc"
	"hydro360/internal/httpapi"
	"hydro360/internal/logging"
	"hydro360/internal/storage"
	"hydro360/internal/weather"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("load config")
	}
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().Str("config", cfg.String()).Msg("configuration loaded")

	ctx := context.Background()

	store, err := storage.Open(ctx, cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("open store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("close store")
		}
	}()

	uploads, err := storage.OpenUploads(ctx, cfg.Upload)
	if err != nil {
		logging.Fatal().Err(err).Msg("open upload store")
	}

	var wc *weather.Client
	if cfg.Weather.APIKey != "" {
		wc = weather.NewClient(weather.Config{
			APIKey:  cfg.Weather.APIKey,
			BaseURL: cfg.Weather.BaseURL,
			Timeout: cfg.Weather.Timeout,
		})
	}

	api := httpapi.New(store, uploads, wc, httpapi.Options{
		JWTSecret:         cfg.Auth.JWTSecret,
		TokenTTL:          cfg.Auth.TokenTTL,
		BcryptCost:        cfg.Auth.BcryptCost,
		ResetTokenTTL:     cfg.Auth.ResetTokenTTL,
		CORSOrigins:       cfg.Security.CORSOrigins,
		RateLimitRequests: cfg.Security.RateLimitReqs,
		RateLimitWindow:   cfg.Security.RateLimitWindow,
	})
	srv := &http.Server{
		Addr:              cfg.Server.ListenAddress(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logging.Info().Str("addr", srv.Addr).Str("uploads", uploads.Backend()).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stopGRPC, err := grpcserver.StartGRPC(cfg, store)
	if err != nil {
		logging.Fatal().Err(err).Msg("start grpc")
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigc
	logging.Info().Str("signal", sig.String()).Msg("shutting down")

	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	sctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		logging.Error().Err(err).Msg("http shutdown")
	}
	if err := stopGRPC(sctx); err != nil {
		logging.Error().Err(err).Msg("grpc shutdown")
	}
}
