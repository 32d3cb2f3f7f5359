package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"advisory-cms/internal/config"
	"advisory-cms/internal/database"
	"advisory-cms/internal/handler"
	"advisory-cms/internal/middleware"
	"advisory-cms/internal/repository"
	"advisory-cms/internal/router"
	"advisory-cms/internal/service"
	"advisory-cms/internal/token"
)

type App struct {
	server *http.Server
	db     *database.DB
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	slog.Info("connecting to PostgreSQL")
	db, err := database.New(context.Background(), cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.EnsureSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure database schema: %w", err)
	}

	adminRepo := repository.NewAdminRepository(db.Pool)
	pageRepo := repository.NewPageRepository(db.Pool)
	slog.Info("database ready")

	tokenManager := token.NewManager(cfg.AccessTokenSecret, cfg.RefreshTokenSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	authService := service.NewAuthService(adminRepo, tokenManager)

	if err := authService.SeedInitialAdmin(context.Background(), cfg.SeedAdminEmail, cfg.SeedAdminPassword); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to seed initial admin: %w", err)
	}

	authMiddleware := middleware.NewAuthMiddleware(tokenManager, authService)
	authHandler := handler.NewAuthHandler(authService, cfg.CookieSecure)
	pageService := service.NewPageService(pageRepo)
	pageHandler := handler.NewPageHandler(pageService)

	appRouter := router.New(cfg, authMiddleware, router.Handlers{
		Auth:   authHandler,
		Page:   pageHandler,
		Health: db.Health,
	})

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return &App{server: server, db: db}, nil
}

func (a *App) Run() error {
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if serveErr := a.server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("server failed", "error", serveErr)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.db.Close()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	a.db.Close()
	slog.Info("server stopped")
	return nil
}
