package server

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/branchline/accounts/internal/config"
	"github.com/branchline/accounts/internal/infra"
	"github.com/branchline/accounts/internal/metrics"
	"github.com/branchline/accounts/internal/middleware"
	"github.com/branchline/accounts/internal/routes"
)

// Server wraps the Fiber application and shared dependencies.
type Server struct {
	app    *fiber.App
	cfg    config.Config
	stores infra.Stores
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
func New(cfg config.Config, stores infra.Stores, logger *slog.Logger) (*Server, error) {
	app := fiber.New(fiber.Config{
		AppName:               cfg.AppName,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler:          middleware.ErrorHandler(logger),
		DisableStartupMessage: !cfg.IsDev(),
	})

	deps := routes.Deps{
		Cfg:       cfg,
		DB:        stores.DB,
		Cache:     stores.Cache,
		Logger:    logger,
		Metrics:   metrics.New(),
		AccessLog: os.Stdout,
	}
	if err := routes.Setup(app, deps); err != nil {
		return nil, err
	}

	return &Server{app: app, cfg: cfg, stores: stores}, nil
}

// App exposes the Fiber application, mainly for in-process tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts the HTTP server.
func (s *Server) Listen() error {
	return s.app.Listen(s.cfg.Address())
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
