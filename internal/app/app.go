// Package app assembles the store, services and event wiring shared by the API server
// and the admin CLI.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/issuedesk/issue-service/internal/auth"
	"github.com/issuedesk/issue-service/internal/catalog"
	"github.com/issuedesk/issue-service/internal/config"
	"github.com/issuedesk/issue-service/internal/events"
	"github.com/issuedesk/issue-service/internal/lifecycle"
	"github.com/issuedesk/issue-service/internal/observability"
	"github.com/issuedesk/issue-service/internal/persistence"
	"github.com/issuedesk/issue-service/internal/repository"
	"github.com/issuedesk/issue-service/internal/repository/sqlite"
	"github.com/issuedesk/issue-service/internal/service"
	"github.com/issuedesk/issue-service/internal/worker"
)

// Container holds the wired runtime.
type Container struct {
	Config     *config.Config
	Logger     *zap.Logger
	Catalog    *catalog.Catalog
	Store      *repository.Store
	Redis      *persistence.Redis
	Metrics    *observability.Metrics
	Dispatcher events.Dispatcher

	Auth          *service.AuthService
	Profiles      *service.ProfileService
	Users         *service.UserService
	Issues        *service.IssueService
	Reports       *service.ReportService
	Notifications *service.NotificationService
}

// Build opens the configured store, connects Redis and wires every service. Callers
// must Close the container.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Container, error) {
	cat, err := loadCatalog(cfg.Catalog, logger)
	if err != nil {
		return nil, err
	}

	store, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	profiles := service.NewProfileService(store.Profiles, store.Users, cat)
	reports := service.NewReportService(cfg.Reports, service.ReportDependencies{
		IssueRepo:      store.Issues,
		UserRepo:       store.Users,
		ProfileService: profiles,
		Catalog:        cat,
		Redis:          redis,
		Logger:         logger,
	})
	notifications := service.NewNotificationService(dispatcher, logger, cfg.Notification, redis, reports)
	worker.StartNotificationWorker(notifications)

	return &Container{
		Config:     cfg,
		Logger:     logger,
		Catalog:    cat,
		Store:      store,
		Redis:      redis,
		Metrics:    metrics,
		Dispatcher: dispatcher,
		Auth: service.NewAuthService(cfg.Auth, service.AuthDependencies{
			UserRepo:       store.Users,
			ProfileRepo:    store.Profiles,
			ProfileService: profiles,
		}),
		Profiles: profiles,
		Users: service.NewUserService(cfg.Auth, service.UserDependencies{
			UserRepo:       store.Users,
			ProfileRepo:    store.Profiles,
			ProfileService: profiles,
		}),
		Issues: service.NewIssueService(cfg.Issues, service.IssueDependencies{
			IssueRepo:   store.Issues,
			CommentRepo: store.Comments,
			HistoryRepo: store.History,
			UserRepo:    store.Users,
			Tx:          store,
			Engine:      lifecycle.NewEngine(cat),
			Dispatcher:  dispatcher,
			Metrics:     metrics,
			Logger:      logger,
		}),
		Reports:       reports,
		Notifications: notifications,
	}, nil
}

// AuthMiddleware returns the bearer-token middleware bound to this container.
func (c *Container) AuthMiddleware() *auth.AuthMiddleware {
	return auth.NewAuthMiddleware(c.Auth.TokenManager(), c.Store.Users, c.Profiles, c.Catalog)
}

// Close releases the store and Redis client.
func (c *Container) Close() {
	if c == nil {
		return
	}
	c.Redis.Close()
	if err := c.Store.Close(); err != nil {
		c.Logger.Warn("closing store", zap.Error(err))
	}
}

// OpenStore connects the backend selected by cfg.Store.Driver and applies migrations.
// SQLite always migrates on open; Postgres only when POSTGRES_RUN_MIGRATIONS is set.
func OpenStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*repository.Store, error) {
	switch cfg.Store.Driver {
	case config.DriverSQLite:
		db, err := persistence.OpenSQLite(ctx, cfg.Store, logger)
		if err != nil {
			return nil, err
		}
		return sqlite.NewStore(db), nil
	case config.DriverPostgres, "":
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, err
		}
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
				pg.Close()
				return nil, err
			}
		}
		return repository.NewPostgresStore(pg.PoolHandle()), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func loadCatalog(cfg config.CatalogConfig, logger *zap.Logger) (*catalog.Catalog, error) {
	if cfg.Path == "" {
		return catalog.Default(), nil
	}
	cat, err := catalog.Load(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	logger.Info("loaded catalog", zap.String("path", cfg.Path))
	return cat, nil
}
