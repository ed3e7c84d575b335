package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/issuedesk/issue-service/internal/api/http"
	"github.com/issuedesk/issue-service/internal/api/http/handlers"
	"github.com/issuedesk/issue-service/internal/app"
	"github.com/issuedesk/issue-service/internal/config"
	"github.com/issuedesk/issue-service/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	container, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to build application", zap.Error(err))
	}
	defer container.Close()

	fiberApp := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(fiberApp, logger, container.Metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(fiberApp, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, cfg.Store.Driver, container.Store, container.Redis, container.Metrics),
		Auth:           handlers.NewAuthHandler(container.Auth, container.Catalog),
		Profile:        handlers.NewProfileHandler(container.Profiles, container.Catalog),
		Issues:         handlers.NewIssuesHandler(container.Issues, container.Catalog),
		Users:          handlers.NewUsersHandler(container.Users, container.Profiles, container.Catalog),
		Reports:        handlers.NewReportsHandler(container.Reports, container.Catalog),
		AuthMiddleware: container.AuthMiddleware(),

		LoginAttemptsPerMinute: cfg.Auth.LoginAttemptsPerMinute,
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()), zap.String("store", cfg.Store.Driver))
		if err := fiberApp.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := fiberApp.Shutdown(); err != nil {
		logger.Warn("fiber shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
