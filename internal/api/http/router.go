package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/issuedesk/issue-service/internal/api/http/handlers"
	"github.com/issuedesk/issue-service/internal/auth"
	"github.com/issuedesk/issue-service/internal/domain"
	apperrors "github.com/issuedesk/issue-service/pkg/util"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Profile        *handlers.ProfileHandler
	Issues         *handlers.IssuesHandler
	Users          *handlers.UsersHandler
	Reports        *handlers.ReportsHandler
	AuthMiddleware *auth.AuthMiddleware

	// LoginAttemptsPerMinute throttles POST /auth/login per client IP. Zero disables it.
	LoginAttemptsPerMinute int
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	authn := cfg.AuthMiddleware.Handle

	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Health.Metrics)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", loginLimiter(cfg.LoginAttemptsPerMinute), cfg.Auth.Login)
	authGroup.Post("/password/change", authn, cfg.Auth.ChangePassword)

	app.Get("/profile", authn, cfg.Profile.Get)
	app.Put("/profile", authn, cfg.Profile.Update)

	app.Get("/dashboard", authn, cfg.Issues.Dashboard)

	issues := app.Group("/issues", authn)
	issues.Get("/", cfg.Issues.List)
	issues.Post("/", cfg.Issues.Create)
	issues.Get("/mine", cfg.Issues.MyIssues)
	issues.Get("/queue", cfg.Issues.Queue)
	issues.Get("/:id", cfg.Issues.Get)
	issues.Post("/:id/comments", cfg.Issues.AddComment)
	issues.Post("/:id/claim", cfg.Issues.Claim)
	issues.Post("/:id/update", cfg.Issues.Update)
	issues.Post("/:id/resolve", cfg.Issues.Resolve)

	users := app.Group("/users", authn)
	users.Get("/", auth.RequireRole(domain.RoleHardware, domain.RoleManager, domain.RoleAdmin), cfg.Users.List)
	users.Post("/", auth.RequireRole(domain.RoleAdmin), cfg.Users.Create)
	users.Put("/:id/role", auth.RequireRole(domain.RoleAdmin), cfg.Users.SetRole)
	users.Put("/:id/active", auth.RequireRole(domain.RoleAdmin), cfg.Users.SetActive)

	reports := app.Group("/reports", authn, auth.RequireRole(domain.RoleManager, domain.RoleAdmin))
	reports.Get("/summary", cfg.Reports.Summary)
	reports.Get("/download/:format", cfg.Reports.Download)
}

func loginLimiter(perMinute int) fiber.Handler {
	if perMinute <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return limiter.New(limiter.Config{
		Max:        perMinute,
		Expiration: time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			return apperrors.NewRateLimited("too many login attempts, try again later")
		},
	})
}
