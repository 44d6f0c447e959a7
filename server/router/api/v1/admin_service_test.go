package v1

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llamamind/mindmap/store"
)

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t, &fakeGateway{})
	admin := s.signup("admin")
	alice := s.signup("alice")

	rec := s.do(http.MethodPost, "/api/mindmap/conversations", map[string]string{"topic": "Audit me"}, alice)
	require.Equal(t, http.StatusCreated, rec.Code)

	for _, path := range []string{"/api/admin/logs", "/api/admin/users"} {
		rec = s.do(http.MethodGet, path, nil, alice)
		assert.Equal(t, http.StatusForbidden, rec.Code, path)
		rec = s.do(http.MethodGet, path, nil, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}

	rec = s.do(http.MethodGet, "/api/admin/users", nil, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	users := decode[[]userResponse](t, rec)
	require.Len(t, users, 2)
	assert.Equal(t, "admin", users[0].Username)
	assert.Equal(t, store.RoleAdmin.String(), users[0].Role)
	assert.Equal(t, store.RoleUser.String(), users[1].Role)

	rec = s.do(http.MethodGet, "/api/admin/logs", nil, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	logs := decode[[]auditLogResponse](t, rec)
	require.NotEmpty(t, logs)
	assert.Equal(t, store.AuditConversationCreated, logs[0].EventType)
	assert.Equal(t, "Audit me", logs[0].EventData["topic"])
}
