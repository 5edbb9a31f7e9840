package routes

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/branchline/accounts/internal/auth"
	"github.com/branchline/accounts/internal/config"
	"github.com/branchline/accounts/internal/identity"
	"github.com/branchline/accounts/internal/metrics"
	"github.com/branchline/accounts/internal/middleware"
	"github.com/branchline/accounts/internal/notification"
)

// legacyPrefix is where the routes were mounted before the root paths existed.
const legacyPrefix = "/api/users"

// Deps aggregates shared dependencies required to wire routes. DB and Cache
// are optional in development.
type Deps struct {
	Cfg     config.Config
	DB      *pgxpool.Pool
	Cache   *redis.Client
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	// Users replaces the store otherwise derived from DB.
	Users identity.Repository
	// AccessLog receives the plain text access log. Nil disables it.
	AccessLog io.Writer
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	if d.AccessLog != nil {
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
			Output:     d.AccessLog,
		}))
	}
	if d.Cfg.CORSAllowOrigins != "" {
		app.Use(cors.New(cors.Config{
			AllowOrigins:     d.Cfg.CORSAllowOrigins,
			AllowCredentials: true,
		}))
	}
	app.Use(middleware.Audit(d.Logger, d.Metrics))

	RegisterHealthRoutes(app, d)
	app.Get("/metrics", adaptor.HTTPHandler(d.Metrics.Handler()))

	users := d.Users
	switch {
	case users != nil:
	case d.DB != nil:
		if err := identity.Migrate(context.Background(), d.DB); err != nil {
			return err
		}
		users = identity.NewPostgresRepository(d.DB)
	default:
		users = identity.NewMemoryRepository()
	}

	var sessions auth.SessionStore
	if d.Cache != nil {
		sessions = auth.NewRedisSessionStore(d.Cache)
	} else {
		sessions = auth.NewMemorySessionStore()
	}

	tokens, err := auth.NewTokens(auth.TokenConfig{
		AccessSecret:  d.Cfg.AccessTokenSecret,
		RefreshSecret: d.Cfg.RefreshTokenSecret,
		AccessTTL:     d.Cfg.AccessTokenTTL,
		RefreshTTL:    d.Cfg.RefreshTokenTTL,
		Issuer:        d.Cfg.TokenIssuer,
	})
	if err != nil {
		return err
	}

	authSvc := auth.NewService(auth.ServiceDeps{
		Users:    users,
		Hasher:   auth.NewPasswordHasher(d.Cfg.BcryptCost),
		Tokens:   tokens,
		Sessions: sessions,
		Notifier: notification.NewLoggerNotifier(d.Logger),
		Metrics:  d.Metrics,
		Logger:   d.Logger,
	})
	authHandler := auth.NewHandler(authSvc, auth.NewCookieManager(tokens.RefreshTTL(), d.Cfg.CookieDomain), d.Logger)

	var idempotency fiber.Handler
	if d.Cache != nil {
		idempotency = middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger)
	}
	rateLimiter := middleware.LoginRateLimit(d.Cache, d.Cfg.LoginAttemptsPerMinute, d.Logger)

	policies := auth.NewPolicyTable()
	gate := middleware.NewGate(tokens, policies, d.Logger)
	profiles := NewProfileHandler(identity.NewService(users))

	RegisterAuthRoutes(app.Group(""), authHandler, rateLimiter, idempotency)
	RegisterAuthRoutes(app.Group(legacyPrefix+"/auth"), authHandler, rateLimiter, idempotency)
	RegisterProfileRoutes(app, "", profiles, gate, policies)
	RegisterProfileRoutes(app, legacyPrefix, profiles, gate, policies)

	return nil
}
