package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/johwaworks/QEPipeline/internal/auth"
	"github.com/johwaworks/QEPipeline/internal/config"
	"github.com/johwaworks/QEPipeline/internal/middleware"
)

// testServer builds a Server without a database. Only routes whose
// validation rejects the request before any store call are exercised.
func testServer(t *testing.T) (*Server, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Port:          "5000",
		JWTSecret:     "test-secret",
		AdminUsername: "admin",
		UploadDir:     t.TempDir(),
		RateLimitRPM:  1000,
	}
	limiter := middleware.NewLimiterStore(cfg.RateLimitRPM, 1000, time.Minute)
	t.Cleanup(limiter.Stop)

	s := NewServer(cfg, nil, nil, nil, nil, nil, nil, auth.NewJWTManager(cfg.JWTSecret, time.Hour), limiter)
	return s, s.Routes()
}

func doJSON(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRootAndHealth(t *testing.T) {
	_, router := testServer(t)

	w := doJSON(router, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])

	w = doJSON(router, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServerTime(t *testing.T) {
	_, router := testServer(t)

	w := doJSON(router, http.MethodGet, "/api/time", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		ServerTime string `json:"server_time"`
		Timezone   string `json:"timezone"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "UTC", body.Timezone)
	_, err := time.Parse(time.RFC3339Nano, body.ServerTime)
	assert.NoError(t, err)
}

func TestRegisterValidation(t *testing.T) {
	_, router := testServer(t)

	// missing password fails binding
	w := doJSON(router, http.MethodPost, "/api/register", `{"username":"alice"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// the admin account name is reserved
	w = doJSON(router, http.MethodPost, "/api/register", `{"username":"Admin","password":"pw"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "admin")
}

func TestLoginValidation(t *testing.T) {
	_, router := testServer(t)

	w := doJSON(router, http.MethodPost, "/api/login", `{"username":"alice"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, http.MethodPost, "/api/login", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestResolutionValidation(t *testing.T) {
	_, router := testServer(t)

	w := doJSON(router, http.MethodPut, "/api/shot/abc/resolution", `{"width":1920}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatMessageRequiresUsername(t *testing.T) {
	_, router := testServer(t)

	w := doJSON(router, http.MethodPost, "/api/chat-room/abc/messages", `{"content":"hi"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(router, http.MethodPut, "/api/chat-room/abc/messages/read", `{}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCurrentUsernameResolution(t *testing.T) {
	s, _ := testServer(t)

	// claims beat explicit identification
	token, _, err := s.jwtMgr.GenerateToken(bson.ObjectID{1}, "Alice", false)
	require.NoError(t, err)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	c.Request.Header.Set("Authorization", "Bearer "+token)
	s.authOptional()(c)
	assert.Equal(t, "alice", s.currentUsername(c))

	// header fallback for older clients
	c, _ = gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	c.Request.Header.Set("X-Username", " Bob ")
	assert.Equal(t, "bob", s.currentUsername(c))

	// nothing supplied
	c, _ = gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	assert.Equal(t, "", s.currentUsername(c))
}
