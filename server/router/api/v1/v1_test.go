package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/stretchr/testify/require"

	"github.com/llamamind/mindmap/internal/profile"
	"github.com/llamamind/mindmap/plugin/llm"
	"github.com/llamamind/mindmap/store"
	teststore "github.com/llamamind/mindmap/store/test"
)

type fakeGateway struct {
	mu        sync.Mutex
	err       error
	calls     int
	connected bool
}

func (g *fakeGateway) Generate(_ context.Context, prompt string, _ int) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	switch {
	case strings.Contains(prompt, "sub-tasks"):
		return "1. Alpha\n2. Beta\n3. Gamma\n4. Delta\n5. Epsilon", nil
	case strings.Contains(prompt, "steps"):
		return "- First\n- Second\n- Third\n- Fourth\n- Fifth", nil
	default:
		return "A short analysis.", nil
	}
}

func (g *fakeGateway) TestConnection(context.Context) bool {
	return g.connected
}

func (g *fakeGateway) Stats() llm.Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return llm.Stats{TotalCalls: int64(g.calls), Model: "fake-model", Provider: "fake"}
}

type testServer struct {
	t       *testing.T
	echo    *echo.Echo
	service *APIV1Service
	store   *store.Store
}

func newTestServer(t *testing.T, gateway Gateway) *testServer {
	t.Helper()
	ts := teststore.NewTestingStore(context.Background(), t)
	p := &profile.Profile{
		Mode:          "dev",
		Secret:        "test-secret",
		TokenDuration: time.Hour,
		LLMModel:      "fake-model",
		LLMProvider:   "fake",
	}
	service := NewAPIV1Service(p.Secret, p, ts, gateway)
	e := echo.New()
	service.RegisterRoutes(e)
	return &testServer{t: t, echo: e, service: service, store: ts}
}

func (s *testServer) do(method, path string, body any, token string) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// signup registers and logs in a user, returning its access token.
func (s *testServer) signup(username string) string {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/auth/register", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "secret123",
	}, "")
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = s.do(http.MethodPost, "/api/auth/login", map[string]string{
		"email":    username + "@example.com",
		"password": "secret123",
	}, "")
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[loginResponse](s.t, rec).AccessToken
}
