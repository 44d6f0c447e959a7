package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveAttempt(t *testing.T) {
	m := New()
	m.ObserveAttempt("ok", 120*time.Millisecond)
	m.ObserveAttempt("timeout", 30*time.Second)
	m.ObserveAttempt("timeout", 30*time.Second)

	assert.InDelta(t, 1, testutil.ToFloat64(m.llmAttempts.WithLabelValues("ok")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.llmAttempts.WithLabelValues("timeout")), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.llmDuration))
}

func TestMiddlewareAndHandler(t *testing.T) {
	m := New()
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/ok/:id", func(c *echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/fail", func(*echo.Context) error {
		return echo.NewHTTPError(http.StatusConflict, "nope")
	})

	for _, path := range []string{"/ok/1", "/ok/2", "/fail"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}
	assert.InDelta(t, 2, testutil.ToFloat64(m.httpRequests.WithLabelValues("/ok/:id", "GET", "200")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.httpRequests.WithLabelValues("/fail", "GET", "409")), 0)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "mindmap_http_requests_total"))
}
