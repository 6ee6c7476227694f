package main

import (
	"context"
	"errors"
	"fmt"
	"frecipe_service/internal/auth"
	"frecipe_service/internal/config"
	"frecipe_service/internal/handler"
	"frecipe_service/internal/service"
	"frecipe_service/internal/storage"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	//PARSE ARGS
	cfg := config.MustLoadConfig(config.FetchConfigPath())

	//INIT LOGGER
	lgr := setupLogger(cfg.Env)
	lgr.Info("started frecipe service", slog.String("env", cfg.Env), slog.String("db_driver", cfg.DB.Driver))

	if err := run(cfg, lgr); err != nil {
		lgr.Error("service stopped with error", slog.Any("error", err))
		os.Exit(1)
	}

	lgr.Info("frecipe service stopped")
}

func run(cfg *config.Config, lgr *slog.Logger) error {
	ctx := context.Background()

	//INIT DB
	st, err := setupStorage(ctx, cfg, lgr)
	if err != nil {
		return err
	}
	defer st.Close()

	//INIT SERVICES
	tokens, err := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}

	accounts, err := service.NewAccountService(st, auth.NewPasswordHasher(cfg.Auth.BcryptCost), tokens, service.AccountConfig{
		PhoneRegion:    cfg.Validation.PhoneRegion,
		PublicUserList: cfg.HTTPServer.PublicUserList,
		AdminUsernames: cfg.Auth.AdminUsernames,
	})
	if err != nil {
		return err
	}

	granted, err := accounts.EnsureAdmins(ctx)
	if err != nil {
		return err
	}
	if granted > 0 {
		lgr.Info("granted admin role to configured users", slog.Int("count", granted))
	}

	inventory := service.NewInventoryService(st)

	//INIT SERVER
	if cfg.Env == envProd {
		gin.SetMode(gin.ReleaseMode)
	}

	h := handler.NewHandler(accounts, inventory, tokens, st, lgr, handler.Options{
		PublicUserList: cfg.HTTPServer.PublicUserList,
	})

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      h.InitRoutes(),
		ReadTimeout:  cfg.HTTPServer.ReadTimeout,
		WriteTimeout: cfg.HTTPServer.WriteTimeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		lgr.Info("http server listening", slog.String("address", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		lgr.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTPServer.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			lgr.Error("graceful shutdown failed", slog.Any("error", err))
			_ = srv.Close()
			return err
		}
	}

	return nil
}

func setupStorage(ctx context.Context, cfg *config.Config, lgr *slog.Logger) (storage.Storage, error) {
	if cfg.DB.Driver == config.DriverMemory {
		lgr.Warn("using in-memory storage, data is lost on restart")
		return storage.NewMemoryStorage(), nil
	}

	if cfg.DB.Migrate {
		if err := storage.ApplyMigrations(cfg.DB.DbURL); err != nil {
			return nil, fmt.Errorf("failed to apply migrations: %w", err)
		}
		lgr.Info("database migrations applied")
	}

	st, err := storage.NewPostgresStorage(ctx, cfg.DB.DbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return st, nil
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}
	return log
}
