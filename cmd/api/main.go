package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"unirecords.org/internal/auth"
	"unirecords.org/internal/config"
	"unirecords.org/internal/httpapi"
	"unirecords.org/internal/obs"
	"unirecords.org/internal/store/pg"
	"unirecords.org/internal/students"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	if err := run(); err != nil {
		obs.Logger().Error("unirecords-api exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	obs.SetLogger(obs.NewLogger(os.Stdout, obs.ParseLevel(cfg.LogLevel)))
	log := obs.Logger()

	// Metrics registry and build info
	obs.Init()
	obs.InitBuildInfo(version, commit)

	db, err := pg.Open(cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	authStore := auth.NewPGStore(db, auth.WithResetTTL(cfg.ResetTokenTTL))
	if cfg.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := authStore.EnsureSchema(ctx)
		cancel()
		if err != nil {
			return err
		}
	}

	authSvc, err := newAuthService(cfg, authStore)
	if err != nil {
		return err
	}
	studentSvc := students.NewService(students.NewPGStore(db))

	api := httpapi.New(httpapi.ReadyProbe{DB: db}, authSvc, studentSvc,
		httpapi.WithVersion(version),
		httpapi.WithRateLimit(cfg.RateLimitBurst, cfg.RateLimitPerSec),
		httpapi.WithMaxBodyBytes(cfg.MaxBodyBytes),
		httpapi.WithCORSOrigins(cfg.CORSOrigins),
		httpapi.WithTrustedProxies(cfg.TrustedProxies),
	)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting unirecords-api", "version", version, "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-stop:
	}
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return err
	}
	log.Info("stopped")
	return nil
}

func newAuthService(cfg config.Config, store *auth.PGStore) (*auth.Service, error) {
	signer, err := auth.NewTokenSigner(cfg.JWTSecret, auth.WithIssuer(cfg.JWTIssuer))
	if err != nil {
		return nil, err
	}
	return auth.NewService(store, store, signer,
		auth.WithHasher(auth.NewBcryptHasher(cfg.BcryptCost)),
		auth.WithAccessTTL(cfg.AccessTokenTTL),
		auth.WithMinPasswordLength(cfg.MinPasswordLength),
	)
}
