package v1

import (
	"net/http"

	"github.com/labstack/echo/v5"

	"github.com/llamamind/mindmap/store"
)

// adminLogLimit caps the audit entries returned by /api/admin/logs.
const adminLogLimit = 100

type auditLogResponse struct {
	UID       string         `json:"uid"`
	UserID    int32          `json:"userId"`
	EventType string         `json:"eventType"`
	EventData map[string]any `json:"eventData"`
	CreatedTs int64          `json:"createdTs"`
}

func (s *APIV1Service) registerAdminRoutes(e *echo.Echo) {
	g := e.Group("/api/admin")
	g.GET("/logs", s.listAuditLogs)
	g.GET("/users", s.listUsers)
}

func (s *APIV1Service) listAuditLogs(c *echo.Context) error {
	if _, err := s.requireAdmin(c); err != nil {
		return err
	}
	limit := adminLogLimit
	logs, err := s.Store.ListAuditLogs(c.Request().Context(), &store.FindAuditLog{Limit: &limit})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	resp := make([]auditLogResponse, 0, len(logs))
	for _, log := range logs {
		resp = append(resp, auditLogResponse{
			UID:       log.UID,
			UserID:    log.UserID,
			EventType: log.EventType,
			EventData: log.EventData,
			CreatedTs: log.CreatedTs,
		})
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *APIV1Service) listUsers(c *echo.Context) error {
	if _, err := s.requireAdmin(c); err != nil {
		return err
	}
	users, err := s.Store.ListUsers(c.Request().Context(), &store.FindUser{})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	resp := make([]userResponse, 0, len(users))
	for _, user := range users {
		resp = append(resp, convertUser(user))
	}
	return c.JSON(http.StatusOK, resp)
}
