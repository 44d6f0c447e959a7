package v1

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v5"

	"github.com/llamamind/mindmap/internal/mindmap"
)

type topicRequest struct {
	Topic string `json:"topic" validate:"required,max=500,safetopic"`
}

type gatewayStatsResponse struct {
	TotalCalls          int64   `json:"total_calls"`
	TotalResponseTime   float64 `json:"total_response_time"`
	AverageResponseTime float64 `json:"average_response_time"`
	Model               string  `json:"model"`
	Provider            string  `json:"provider"`
	TokenConfigured     bool    `json:"token_configured"`
}

// registerWebRoutes exposes the stateless topic helpers. They never fail on
// an upstream error; the fallback generator fills in templated content.
func (s *APIV1Service) registerWebRoutes(e *echo.Echo) {
	g := e.Group("/api/web", s.rateLimit)
	g.POST("/expand", s.webExpand)
	g.POST("/breakdown", s.webBreakdown)
	g.POST("/analyze", s.webAnalyze)
	g.GET("/test", s.webTest)
	g.GET("/status", s.webStatus)
}

func (s *APIV1Service) rateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c *echo.Context) error {
		if !s.webLimiter.Allow(c.RealIP()) {
			return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
		}
		return next(c)
	}
}

func (s *APIV1Service) bindTopic(c *echo.Context) (string, error) {
	var req topicRequest
	if err := c.Bind(&req); err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	req.Topic = strings.TrimSpace(req.Topic)
	if err := s.validator.Validate(&req); err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	topic, err := mindmap.ValidateTopic(req.Topic)
	if err != nil {
		return "", toHTTPError(err)
	}
	return topic, nil
}

func (s *APIV1Service) webExpand(c *echo.Context) error {
	topic, err := s.bindTopic(c)
	if err != nil {
		return err
	}
	slog.Info("expanding topic", "topic", topic)
	subtopics, err := s.webGenerator.Subtopics(c.Request().Context(), topic)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success":   true,
		"topic":     topic,
		"subtopics": subtopics,
	})
}

func (s *APIV1Service) webBreakdown(c *echo.Context) error {
	topic, err := s.bindTopic(c)
	if err != nil {
		return err
	}
	slog.Info("breaking down topic", "topic", topic)
	steps, err := s.webGenerator.Steps(c.Request().Context(), topic)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"topic":   topic,
		"steps":   steps,
	})
}

func (s *APIV1Service) webAnalyze(c *echo.Context) error {
	topic, err := s.bindTopic(c)
	if err != nil {
		return err
	}
	slog.Info("analyzing topic", "topic", topic)
	analysis, err := s.webGenerator.Analysis(c.Request().Context(), topic)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success":  true,
		"topic":    topic,
		"analysis": analysis,
	})
}

func (s *APIV1Service) testConnection(c *echo.Context) bool {
	if s.gateway == nil {
		return false
	}
	return s.gateway.TestConnection(c.Request().Context())
}

func (s *APIV1Service) webTest(c *echo.Context) error {
	connected := s.testConnection(c)
	message := "API connection failed"
	if connected {
		message = "API connection successful"
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success":   true,
		"connected": connected,
		"message":   message,
	})
}

func (s *APIV1Service) webStatus(c *echo.Context) error {
	stats := gatewayStatsResponse{
		Model:    s.Profile.LLMModel,
		Provider: s.Profile.LLMProvider,
	}
	if s.gateway != nil {
		snapshot := s.gateway.Stats()
		stats = gatewayStatsResponse{
			TotalCalls:          snapshot.TotalCalls,
			TotalResponseTime:   snapshot.TotalTime.Seconds(),
			AverageResponseTime: snapshot.AverageTime.Seconds(),
			Model:               snapshot.Model,
			Provider:            snapshot.Provider,
			TokenConfigured:     true,
		}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success":   true,
		"connected": s.testConnection(c),
		"stats":     stats,
	})
}
