package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/pkg/errors"

	"github.com/llamamind/mindmap/internal/profile"
	"github.com/llamamind/mindmap/internal/version"
	"github.com/llamamind/mindmap/plugin/llm"
	"github.com/llamamind/mindmap/server/metrics"
	apiv1 "github.com/llamamind/mindmap/server/router/api/v1"
	"github.com/llamamind/mindmap/store"
)

type Server struct {
	Secret  string
	Profile *profile.Profile
	Store   *store.Store

	echoServer *echo.Echo
	httpServer *http.Server
	metrics    *metrics.Metrics
	listener   net.Listener
}

func NewServer(ctx context.Context, profile *profile.Profile, store *store.Store) (*Server, error) {
	s := &Server{
		Secret:  profile.Secret,
		Store:   store,
		Profile: profile,
		metrics: metrics.New(),
	}

	gateway, err := newGateway(profile, s.metrics)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create llm client")
	}

	echoServer := echo.New()
	echoServer.Use(middleware.Recover())
	echoServer.Use(requestLogger())
	echoServer.Use(s.metrics.Middleware())
	s.echoServer = echoServer

	echoServer.GET("/healthz", s.healthz)

	apiV1Service := apiv1.NewAPIV1Service(s.Secret, profile, store, gateway)
	apiV1Service.RegisterRoutes(echoServer)

	mux := http.NewServeMux()
	mux.Handle("/metrics", s.metrics.Handler())
	mux.Handle("/", echoServer)
	s.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
	return s, nil
}

// newGateway returns a nil Gateway when no token is configured so the
// public endpoints can still serve fallback content.
func newGateway(profile *profile.Profile, recorder llm.Recorder) (apiv1.Gateway, error) {
	client, err := llm.NewClient(llm.Config{
		Token:       profile.LLMToken,
		Endpoint:    profile.LLMEndpoint,
		Provider:    profile.LLMProvider,
		Model:       profile.LLMModel,
		Timeout:     profile.LLMTimeout,
		Temperature: profile.LLMTemperature,
	}, llm.WithRecorder(recorder))
	if err != nil {
		if errors.Is(err, llm.ErrMissingToken) {
			slog.Warn("llm token not configured, mindmap expansion is disabled and public endpoints serve fallback content")
			return nil, nil
		}
		return nil, err
	}
	return client, nil
}

func (s *Server) healthz(c *echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	if err := s.Store.GetDriver().GetDB().PingContext(ctx); err != nil {
		slog.Error("health check failed", "err", err)
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.GetCurrentVersion(s.Profile.Mode),
	})
}

// Handler exposes the composed HTTP handler, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return errors.Wrap(err, "failed to listen")
	}
	s.listener = listener

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to serve", "err", err)
		}
	}()
	slog.Info("server started", "address", listener.Addr().String(), "mode", s.Profile.Mode, "version", version.GetCurrentVersion(s.Profile.Mode))
	return nil
}

// Addr is the bound listener address, valid after Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	slog.Info("server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown server", "err", err)
	}
	if err := s.Store.Close(); err != nil {
		slog.Error("failed to close database", "err", err)
	}
	slog.Info("mindmap stopped properly")
}

func requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			start := time.Now()
			err := next(c)
			status := http.StatusOK
			if resp, unwrapErr := echo.UnwrapResponse(c.Response()); unwrapErr == nil && resp.Status != 0 {
				status = resp.Status
			}
			var httpErr *echo.HTTPError
			if errors.As(err, &httpErr) {
				status = httpErr.Code
			} else if err != nil {
				status = http.StatusInternalServerError
			}
			level := slog.LevelInfo
			if status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			slog.Log(c.Request().Context(), level, "request",
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"status", status,
				"latency", time.Since(start),
				"remote_ip", c.RealIP(),
			)
			return err
		}
	}
}
