package v1

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v5"
	"github.com/pkg/errors"

	"github.com/llamamind/mindmap/internal/mindmap"
	"github.com/llamamind/mindmap/internal/profile"
	"github.com/llamamind/mindmap/plugin/llm"
	"github.com/llamamind/mindmap/server/auth"
	"github.com/llamamind/mindmap/store"
)

// Gateway is the LLM client surface used by the routes.
type Gateway interface {
	mindmap.Gateway
	TestConnection(ctx context.Context) bool
	Stats() llm.Stats
}

type APIV1Service struct {
	Secret  string
	Profile *profile.Profile
	Store   *store.Store

	engine        *mindmap.Engine
	gateway       Gateway
	webGenerator  mindmap.Generator
	authenticator *auth.Authenticator
	validator     *requestValidator
	webLimiter    *ipRateLimiter
}

// NewAPIV1Service wires the routes to the store and the LLM gateway.
// gateway may be nil when no token is configured; tree operations then
// fail with a 502 and the public endpoints serve fallback content.
func NewAPIV1Service(secret string, profile *profile.Profile, store *store.Store, gateway Gateway) *APIV1Service {
	generator := mindmap.NewLLMGenerator(gateway)
	return &APIV1Service{
		Secret:        secret,
		Profile:       profile,
		Store:         store,
		engine:        mindmap.NewEngine(store, generator),
		gateway:       gateway,
		webGenerator:  mindmap.WithFallback(generator),
		authenticator: auth.NewAuthenticator(store, secret),
		validator:     newRequestValidator(),
		webLimiter:    newIPRateLimiter(defaultWebRate, defaultWebBurst),
	}
}

func (s *APIV1Service) RegisterRoutes(e *echo.Echo) {
	s.registerAuthRoutes(e)
	s.registerMindmapRoutes(e)
	s.registerAdminRoutes(e)
	s.registerWebRoutes(e)
}

// ─────────────────────────────────────────────────────────────────────────────
// Helper: requireAuth / requireAdmin
// ─────────────────────────────────────────────────────────────────────────────

func (s *APIV1Service) requireAuth(c *echo.Context) (*store.User, error) {
	authHeader := c.Request().Header.Get("Authorization")
	cookieHeader := c.Request().Header.Get("Cookie")
	user, err := s.authenticator.AuthenticateToUser(c.Request().Context(), authHeader, cookieHeader)
	if err != nil || user == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	return user, nil
}

func (s *APIV1Service) requireAdmin(c *echo.Context) (*store.User, error) {
	user, err := s.requireAuth(c)
	if err != nil {
		return nil, err
	}
	if user.Role != store.RoleAdmin {
		return nil, echo.NewHTTPError(http.StatusForbidden, "admin access required")
	}
	return user, nil
}

// bind decodes the request body into req and runs struct validation.
func (s *APIV1Service) bind(c *echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := s.validator.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Helper: error mapping
// ─────────────────────────────────────────────────────────────────────────────

// toHTTPError translates engine and gateway failures into status codes.
func toHTTPError(err error) error {
	switch {
	case errors.Is(err, mindmap.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, mindmap.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, mindmap.ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, mindmap.ErrLimitExceeded):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, llm.ErrAuthentication):
		slog.Error("llm authentication failed, check the configured token", "err", err)
		return echo.NewHTTPError(http.StatusBadGateway, "upstream authentication failed")
	case errors.Is(err, llm.ErrBilling):
		slog.Error("llm billing error, check account credits", "err", err)
		return echo.NewHTTPError(http.StatusBadGateway, "upstream billing error")
	case errors.Is(err, llm.ErrUpstream):
		slog.Warn("llm request failed", "err", err)
		return echo.NewHTTPError(http.StatusBadGateway, "upstream request failed")
	}
	slog.Error("request failed", "err", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}
