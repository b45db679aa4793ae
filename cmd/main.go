package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dosada05/round-matches/brackets"
	"github.com/Dosada05/round-matches/config"
	"github.com/Dosada05/round-matches/db"
	"github.com/Dosada05/round-matches/handlers"
	"github.com/Dosada05/round-matches/locks"
	"github.com/Dosada05/round-matches/repositories"
	api "github.com/Dosada05/round-matches/routes"
	"github.com/Dosada05/round-matches/services"
	"github.com/Dosada05/round-matches/storage"
	"github.com/go-chi/chi/v5"
)

func main() {
	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded",
		slog.Int("port", cfg.ServerPort),
		slog.Bool("postgres", cfg.DatabaseURL != ""),
		slog.Duration("lock_timeout", cfg.LockTimeout),
		slog.Bool("export_enabled", cfg.ExportEnabled()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Хранилище: Postgres при заданном DATABASE_URL, иначе память процесса.
	var (
		userRepo  repositories.UserRepository
		matchRepo repositories.MatchRepository
		locker    locks.Locker
		dbConn    *sql.DB
	)
	if cfg.DatabaseURL != "" {
		dbConn, err = db.Connect(cfg.DatabaseURL, 5*time.Second)
		if err != nil {
			logger.Error("failed to connect to database", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := dbConn.Close(); err != nil {
				logger.Error("failed to close database connection", slog.Any("error", err))
			} else {
				logger.Info("database connection closed")
			}
		}()
		if err := db.EnsureSchema(ctx, dbConn); err != nil {
			logger.Error("failed to prepare database schema", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("database connection established")

		userRepo = repositories.NewPostgresUserRepository(dbConn)
		matchRepo = repositories.NewPostgresMatchRepository(dbConn)
		locker = locks.NewPostgresLocker(dbConn, cfg.LockTimeout)
	} else {
		logger.Warn("DATABASE_URL is not set, using in-memory storage")
		userRepo = repositories.NewMemoryUserRepository()
		matchRepo = repositories.NewMemoryMatchRepository()
		locker = locks.NewLocalLocker(cfg.LockTimeout)
	}

	// Выгрузка раундов в Cloudflare R2 (опционально)
	var uploader storage.FileUploader
	if cfg.ExportEnabled() {
		uploader, err = storage.NewCloudflareR2Uploader(ctx, storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("Cloudflare R2 uploader initialized")
	}

	wsHub := brackets.NewHub()
	go wsHub.Run(ctx)
	logger.Info("WebSocket Hub started")

	userService := services.NewUserService(userRepo, logger)
	matchService := services.NewMatchService(matchRepo, userRepo, locker, wsHub, logger)
	roundService := services.NewRoundService(matchRepo, userRepo, locker, wsHub, logger)
	exportService := services.NewExportService(matchService, uploader, logger)
	logger.Info("Services initialized")

	userHandler := handlers.NewUserHandler(userService)
	matchHandler := handlers.NewMatchHandler(matchService)
	adminHandler := handlers.NewAdminHandler(userService, matchService, roundService, exportService)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub, logger)

	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		api.Options{
			JWTSecret:      cfg.JWTSecretKey,
			AdminEmail:     cfg.AdminEmail,
			AllowedOrigins: cfg.CORSAllowedOrigins,
			Logger:         logger,
		},
		userHandler,
		matchHandler,
		adminHandler,
		webSocketHandler,
	)
	logger.Info("Routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			cancel()
			os.Exit(1)
		}
		logger.Info("server stopped gracefully")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		// Закрываем websocket-клиентов до остановки HTTP-сервера.
		cancel()

		logger.Info("shutting down server", slog.Duration("timeout", 15*time.Second))
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
		logger.Info("server shutdown complete")
	}
	logger.Info("application exited")
}
