package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/next-cloud-ai/console/internal/config"
	"github.com/next-cloud-ai/console/internal/db"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Auth.JWT.Secret = "router-test-secret-that-is-32-chars"
	cfg.Auth.JWT.TTL = time.Hour
	cfg.Auth.JWT.Issuer = "next-cloud-ai"
	cfg.Auth.Password.Algorithm = "bcrypt"
	cfg.Auth.Password.BcryptCost = 4
	cfg.Deployments.EndpointBaseURL = "https://api.nextcloudai.com"
	cfg.Deployments.APIKeyPrefix = "ncai"
	cfg.Security.CORS.AllowedOrigins = []string{"https://console.example.com"}
	cfg.Security.CORS.AllowedMethods = []string{"GET", "POST", "OPTIONS"}
	cfg.Audit.Enabled = true
	return cfg
}

// newPingMockRouter builds a router over sqlmock with ping monitoring enabled
func newPingMockRouter(t *testing.T, cfg *config.Config) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	router, bg, err := NewRouter(cfg, sqlx.NewDb(sqlDB, "sqlmock"))
	require.NoError(t, err)
	t.Cleanup(func() { bg.Shutdown(context.Background()) })
	return router, mock
}

func serve(router *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), "body=%s", w.Body.String())
	return body
}

func TestHealthCheck(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		router, mock := newPingMockRouter(t, testConfig())
		mock.ExpectPing()

		w := serve(router, http.MethodGet, "/api/health", "", nil)
		require.Equal(t, http.StatusOK, w.Code)

		body := decode(t, w)
		assert.Equal(t, "healthy", body["status"])
		assert.Equal(t, serverName, body["server"])
		assert.Equal(t, Version, body["version"])
		assert.Contains(t, body, "uptime")
		assert.Contains(t, body, "timestamp")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database down", func(t *testing.T) {
		router, mock := newPingMockRouter(t, testConfig())
		mock.ExpectPing().WillReturnError(errors.New("connection refused"))

		w := serve(router, http.MethodGet, "/api/health", "", nil)
		require.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "unhealthy", decode(t, w)["status"])
	})
}

func TestReadiness(t *testing.T) {
	router, mock := newPingMockRouter(t, testConfig())
	mock.ExpectPing().WillReturnError(errors.New("down"))
	mock.ExpectPing()

	w := serve(router, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, false, decode(t, w)["ready"])

	w = serve(router, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["ready"])
}

func TestRootAndVersion(t *testing.T) {
	router, _ := newPingMockRouter(t, testConfig())

	w := serve(router, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, Version, body["version"])
	assert.Contains(t, body, "endpoints")

	w = serve(router, http.MethodGet, "/version", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, apiVersion, decode(t, w)["api_version"])
}

func TestNotFound(t *testing.T) {
	router, _ := newPingMockRouter(t, testConfig())

	w := serve(router, http.MethodGet, "/api/nope", "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Endpoint not found", body["error"])
	assert.Equal(t, "The route GET /api/nope does not exist", body["message"])
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	router, mock := newPingMockRouter(t, testConfig())

	for _, path := range []string{"/api/models", "/api/models/1", "/api/deployments", "/api/stats", "/api/auth/me"} {
		w := serve(router, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
		assert.Equal(t, "Access token required", decode(t, w)["error"], path)
	}
	assert.NoError(t, mock.ExpectationsWereMet(), "rejected requests must not touch the database")
}

func TestSecurityHeadersApplied(t *testing.T) {
	router, _ := newPingMockRouter(t, testConfig())

	w := serve(router, http.MethodGet, "/version", "", nil)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestCORSMiddleware(t *testing.T) {
	tests := []struct {
		name        string
		allowed     []string
		origin      string
		wantOrigin  string
		wantCreds   string
		wantMethods string
	}{
		{"listed origin", []string{"https://console.example.com"}, "https://console.example.com", "https://console.example.com", "true", "GET, POST"},
		{"unlisted origin", []string{"https://console.example.com"}, "https://evil.example.com", "", "", ""},
		{"wildcard", []string{"*"}, "https://any.example.com", "*", "", "GET, POST"},
		{"no origin header", []string{"https://console.example.com"}, "", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Security.CORS.AllowedOrigins = tt.allowed
			cfg.Security.CORS.AllowedMethods = []string{"GET", "POST"}

			r := gin.New()
			r.Use(CORSMiddleware(cfg))
			r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantOrigin, w.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantCreds, w.Header().Get("Access-Control-Allow-Credentials"))
			assert.Equal(t, tt.wantMethods, w.Header().Get("Access-Control-Allow-Methods"))
		})
	}

	t.Run("preflight short-circuits", func(t *testing.T) {
		r := gin.New()
		r.Use(CORSMiddleware(testConfig()))
		r.POST("/x", func(c *gin.Context) { c.Status(http.StatusTeapot) })

		req := httptest.NewRequest(http.MethodOptions, "/x", nil)
		req.Header.Set("Origin", "https://console.example.com")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNoContent, w.Code)
	})
}

func TestAuthRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Security.RateLimiting.Enabled = true
	cfg.Security.RateLimiting.Backend = "memory"
	cfg.Security.RateLimiting.AuthRequestsPerMinute = 10
	cfg.Security.RateLimiting.AuthBurst = 2
	router, _ := newPingMockRouter(t, cfg)

	// Invalid bodies are rejected before any database work but still consume tokens
	for i := 0; i < 2; i++ {
		w := serve(router, http.MethodPost, "/api/auth/login", "", map[string]string{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	}
	w := serve(router, http.MethodPost, "/api/auth/login", "", map[string]string{})
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestNewRouter_RedisUnavailable(t *testing.T) {
	cfg := testConfig()
	cfg.Security.RateLimiting.Enabled = true
	cfg.Security.RateLimiting.Backend = "redis"
	cfg.Security.RateLimiting.Redis.Addr = "127.0.0.1:1"

	sqlDB, _, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	_, _, err = NewRouter(cfg, sqlx.NewDb(sqlDB, "sqlmock"))
	assert.Error(t, err)
}

func TestNewRouter_BadPasswordAlgorithm(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Password.Algorithm = "md5"

	sqlDB, _, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	_, _, err = NewRouter(cfg, sqlx.NewDb(sqlDB, "sqlmock"))
	assert.Error(t, err)
}

// newSQLiteRouter builds a router over a migrated sqlite database file
func newSQLiteRouter(t *testing.T) (*gin.Engine, *sqlx.DB) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "console.db")
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)

	conn, err := db.Connect(db.DriverSQLite, dsn, 1, 1)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, db.RunMigrations(conn, "up"))

	router, bg, err := NewRouter(testConfig(), conn)
	require.NoError(t, err)
	t.Cleanup(func() { bg.Shutdown(context.Background()) })
	return router, conn
}

func register(t *testing.T, router *gin.Engine, email string) string {
	t.Helper()
	w := serve(router, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": email, "password": "pw-" + email, "name": "User " + email,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	token, _ := decode(t, w)["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestEndToEnd_ModelDeploymentFlow(t *testing.T) {
	router, conn := newSQLiteRouter(t)

	token := register(t, router, "a@x.com")

	// Create a model
	w := serve(router, http.MethodPost, "/api/models", token, map[string]string{"name": "M1", "type": "nlp"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	model := decode(t, w)["model"].(map[string]interface{})
	assert.Equal(t, "draft", model["status"])
	assert.EqualValues(t, 0, model["accuracy"])
	modelID := int64(model["id"].(float64))

	// Deploy it
	w = serve(router, http.MethodPost, "/api/deployments", token, map[string]any{"model_id": modelID, "name": "D1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	deployment := decode(t, w)["deployment"].(map[string]interface{})
	assert.Equal(t, "running", deployment["status"])
	assert.Regexp(t, `^ncai_`, deployment["api_key"])
	assert.Equal(t,
		fmt.Sprintf("https://api.nextcloudai.com/v1/deployments/%d/predict", int64(deployment["id"].(float64))),
		deployment["endpoint_url"])

	// The model is now running
	w = serve(router, http.MethodGet, fmt.Sprintf("/api/models/%d", modelID), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "running", decode(t, w)["model"].(map[string]interface{})["status"])

	// Listing includes the joined model name
	w = serve(router, http.MethodGet, "/api/deployments", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode(t, w)
	assert.EqualValues(t, 1, list["count"])
	assert.Equal(t, "M1", list["deployments"].([]interface{})[0].(map[string]interface{})["model_name"])

	w = serve(router, http.MethodGet, "/api/stats", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode(t, w)["stats"].(map[string]interface{})
	assert.EqualValues(t, 1, stats["total_models"])
	assert.EqualValues(t, 1, stats["running_deployments"])

	// Wrong password and duplicate registration are both plain 400s
	w = serve(router, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "a@x.com", "password": "wrong"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid email or password", decode(t, w)["error"])

	w = serve(router, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "a@x.com", "password": "other", "name": "Again",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Registration failed", decode(t, w)["error"])

	// Correct login issues a working token
	w = serve(router, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "a@x.com", "password": "pw-a@x.com"})
	require.Equal(t, http.StatusOK, w.Code)
	loginToken := decode(t, w)["token"].(string)
	w = serve(router, http.MethodGet, "/api/auth/me", loginToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "a@x.com", decode(t, w)["user"].(map[string]interface{})["email"])

	// Mutations were audited
	require.Eventually(t, func() bool {
		var n int
		return conn.Get(&n, "SELECT COUNT(*) FROM audit_logs") == nil && n >= 2
	}, 5*time.Second, 20*time.Millisecond)
}

func TestEndToEnd_CrossUserIsolation(t *testing.T) {
	router, _ := newSQLiteRouter(t)

	alice := register(t, router, "alice@x.com")
	bob := register(t, router, "bob@x.com")

	w := serve(router, http.MethodPost, "/api/models", alice, map[string]string{"name": "Private", "type": "vision"})
	require.Equal(t, http.StatusCreated, w.Code)
	modelID := int64(decode(t, w)["model"].(map[string]interface{})["id"].(float64))

	w = serve(router, http.MethodGet, "/api/models", bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, decode(t, w)["count"])

	w = serve(router, http.MethodGet, fmt.Sprintf("/api/models/%d", modelID), bob, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(router, http.MethodPost, "/api/deployments", bob, map[string]any{"model_id": modelID, "name": "stolen"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Model not found", decode(t, w)["error"])

	w = serve(router, http.MethodGet, "/api/stats", bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, decode(t, w)["stats"].(map[string]interface{})["total_models"])
}
