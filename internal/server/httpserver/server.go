// Package httpserver exposes the user service over HTTP with Echo.
package httpserver

import (
	"context"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/userauth/internal/logging"
	"github.com/dmitrijs2005/userauth/internal/server/config"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	echo   *echo.Echo
	addr   string
	logger logging.Logger
}

// NewServer builds the Echo instance and mounts the routes under
// cfg.BasePath. Prometheus metrics are served at /metrics. Staged uploads
// go to tempDir, which must exist.
func NewServer(cfg *config.Config, tempDir string, svc UserService, logger logging.Logger) *Server {
	logger = logger.With("module", "http")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = newRequestValidator()
	e.HTTPErrorHandler = errorHandler(logger)

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestLogger(logger))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	h := NewHandler(svc, tempDir, cfg.CookieSecure, logger)
	auth := requireAuth(svc)

	g := e.Group(cfg.BasePath)
	g.POST("/register", h.Register)
	g.POST("/login", h.Login)
	g.POST("/logout", h.Logout, auth)
	g.POST("/refresh", h.RefreshToken)
	g.POST("/refresh-token", h.RefreshToken)
	g.GET("/current-user", h.CurrentUser, auth)

	return &Server{echo: e, addr: cfg.EndpointAddrHTTP, logger: logger}
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info(context.Background(), "HTTP server listening", "addr", s.addr)
	if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
