// Package server exposes the chat, feed and directory services over HTTP
// for a browser front-end. Streaming endpoints use server-sent events.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/diogo/techtouch/internal/chat"
	"github.com/diogo/techtouch/internal/feeds"
)

const (
	// DefaultAddr is used when Config.Addr is empty
	DefaultAddr = "127.0.0.1:8787"
	// MaxUploadSize bounds POST /api/chat bodies, attachments included
	MaxUploadSize = "25M"

	shutdownTimeout = 10 * time.Second
)

// Config configures the HTTP server
type Config struct {
	Addr string
	// AllowOrigins lists extra origins allowed to call the API. Pages served
	// from a loopback host on the server port are always allowed.
	AllowOrigins []string
	// ModelName is reported by /healthz
	ModelName string
}

// Server serves the HTTP API
type Server struct {
	cfg    Config
	echo   *echo.Echo
	chat   *chat.Service
	feeds  *feeds.Service
	logger *zap.Logger
}

// New builds a server with every route registered. logger may be nil.
func New(cfg Config, chatSvc *chat.Service, feedSvc *feeds.Service, logger *zap.Logger) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{cfg: cfg, echo: e, chat: chatSvc, feeds: feedSvc, logger: logger}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				logger.Warn("request failed", append(fields, zap.Error(v.Error))...)
				return nil
			}
			logger.Info("request", fields...)
			return nil
		},
	}))
	e.Use(s.rejectForeignOrigins)
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOriginFunc: s.originAllowed,
		AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodDelete},
	}))

	s.RegisterRoutes(e)
	return s
}

// RegisterRoutes registers routes with the echo server
func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", s.Health)

	api := e.Group("/api")
	api.POST("/chat", s.Chat, middleware.BodyLimit(MaxUploadSize))
	api.POST("/info", s.Info)
	api.GET("/personal", s.Personal)

	api.GET("/news", s.News)
	api.GET("/news/stream", s.NewsStream)
	api.GET("/phones", s.Phones)
	api.DELETE("/cache", s.ClearCache)
	api.DELETE("/cache/:kind", s.ClearCache)

	api.GET("/downloads/:name", s.Download)

	api.GET("/conversations", s.ListConversations)
	api.GET("/conversations/:id", s.GetConversation)
	api.DELETE("/conversations/:id", s.DeleteConversation)
}

// originAllowed reports whether a page served from origin may call the API
func (s *Server) originAllowed(origin string) (bool, error) {
	for _, o := range s.cfg.AllowOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true, nil
		}
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false, nil
	}
	_, port, err := net.SplitHostPort(s.cfg.Addr)
	if err != nil || u.Port() != port {
		return false, nil
	}
	switch u.Hostname() {
	case "127.0.0.1", "localhost", "::1":
		return true, nil
	}
	return false, nil
}

// rejectForeignOrigins answers 403 to requests sent by pages of other sites,
// so they never reach a handler
func (s *Server) rejectForeignOrigins(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		origin := req.Header.Get(echo.HeaderOrigin)
		if origin == "" {
			return next(c)
		}
		if u, err := url.Parse(origin); err == nil && strings.EqualFold(u.Host, req.Host) {
			return next(c)
		}
		if ok, _ := s.originAllowed(origin); ok {
			return next(c)
		}
		s.logger.Warn("cross-origin request rejected", zap.String("origin", origin), zap.String("uri", req.RequestURI))
		return c.JSON(http.StatusForbidden, ErrorResponse{Error: "origin not allowed"})
	}
}

// Handler returns the HTTP handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Addr returns the listen address
func (s *Server) Addr() string {
	return s.cfg.Addr
}

// Start listens until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("http server listening", zap.String("addr", s.cfg.Addr))
		if err := s.echo.Start(s.cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.logger.Info("http server shutting down")
		return s.echo.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
