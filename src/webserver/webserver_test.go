package webserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/anonthink/modrelay/src/components/moderation"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer() *Server {
	gin.SetMode(gin.TestMode)
	engine := moderation.NewEngine(moderation.Config{
		ModeratorID:      "mod-1",
		ReviewChannelID:  "review",
		PublishChannelID: "publish",
	})
	engine.Bans().Ban("42")

	return New(Config{
		Addr:       ":0",
		AdminToken: "admin-token",
		JWTSecret:  "jwt-secret",
	}, engine)
}

func do(s *Server, method, path, body, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	s := newTestServer()

	w := do(s, "GET", "/healthz", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthRejectsBadToken(t *testing.T) {
	s := newTestServer()

	w := do(s, "POST", "/v1/auth", `{"token":"wrong"}`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(s, "POST", "/v1/auth", `{}`, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatsRequiresJWT(t *testing.T) {
	s := newTestServer()

	w := do(s, "GET", "/v1/stats", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(s, "GET", "/v1/stats", "", "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthThenStats(t *testing.T) {
	s := newTestServer()

	w := do(s, "POST", "/v1/auth", `{"token":"admin-token"}`, "")
	require.Equal(t, http.StatusOK, w.Code)

	var authResp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &authResp))
	require.NotEmpty(t, authResp.Token)

	w = do(s, "GET", "/v1/stats", "", authResp.Token)
	require.Equal(t, http.StatusOK, w.Code)

	var report moderation.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, 1, report.Banned)
	assert.Equal(t, uint64(0), report.Total)
}
