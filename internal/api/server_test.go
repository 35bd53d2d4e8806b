package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/bumpstory/internal/auth"
	"github.com/terra-clan/bumpstory/internal/catalog"
	"github.com/terra-clan/bumpstory/internal/config"
	"github.com/terra-clan/bumpstory/internal/models"
	"github.com/terra-clan/bumpstory/internal/services"
	"github.com/terra-clan/bumpstory/internal/storage"
)

var fixedNow = time.Date(2025, time.September, 1, 12, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	return &config.Config{
		CORS:      config.CORSConfig{AllowedOrigins: "*", MaxAge: 300},
		RateLimit: config.RateLimitConfig{AuthPerMinute: 600, AuthBurst: 100},
	}
}

func testCatalog(t *testing.T) *catalog.Loader {
	t.Helper()
	l := catalog.NewLoader()
	l.AddCategory(models.Category{ID: "wellbeing", Name: "Wellbeing", Order: 1})
	l.AddCategory(models.Category{ID: "birth-prep", Name: "Birth preparation", Order: 2})

	stories := []models.Story{
		{ID: 1, Category: "wellbeing", Difficulty: models.DifficultyFoundational, Duration: 5,
			RecommendedTrimester: models.TrimesterFirst, Title: "Morning calm", Description: "Gentle breathing"},
		{ID: 2, Category: "wellbeing", Difficulty: models.DifficultyIntermediate, Duration: 58,
			RecommendedTrimester: models.TrimesterAny, Title: "Sleep routines", Description: "Resting well"},
		{ID: 3, Category: "birth-prep", Difficulty: models.DifficultyAdvanced, Duration: 90,
			RecommendedTrimester: models.TrimesterThird, Title: "Labor stages", Description: "What to expect"},
	}
	for _, s := range stories {
		require.NoError(t, l.AddStory(s))
	}
	require.NoError(t, l.AddPath(models.LearningPath{ID: "essentials", Name: "Essentials", StoryIDs: []int{1, 2, 3}}))
	return l
}

func newTestServer(t *testing.T, mutate func(*config.Config), registry *services.Registry) *Server {
	t.Helper()
	cfg := testConfig()
	if mutate != nil {
		mutate(cfg)
	}

	repo := storage.NewMemoryRepository()
	authSvc := auth.NewService(
		repo,
		auth.NewJWTManager("test-secret-test-secret-test-secret", "bumpstory-test", time.Hour),
		auth.NewPasswordHasher(4),
		nil,
		8,
	)

	s := NewServer(cfg, testCatalog(t), repo, authSvc, nil, registry)
	s.now = func() time.Time { return fixedNow }
	t.Cleanup(s.Close)
	return s
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *apiError       `json:"error"`
}

func do(t *testing.T, s *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf *bytes.Buffer
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewBuffer(b)
	}

	var req *http.Request
	if buf != nil {
		req = httptest.NewRequest(method, path, buf)
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	require.True(t, env.Success, rec.Body.String())
	if dst != nil {
		require.NoError(t, json.Unmarshal(env.Data, dst))
	}
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	require.NotNil(t, env.Error, rec.Body.String())
	return env.Error.Code
}

func register(t *testing.T, s *Server, email string) string {
	t.Helper()
	rec := do(t, s, http.MethodPost, "/api/v1/auth/register", "", models.RegisterRequest{
		Email:       email,
		Password:    "password-123",
		DisplayName: "Tester",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp models.AuthResponse
	decodeData(t, rec, &resp)
	require.NotEmpty(t, resp.AccessToken)
	return resp.AccessToken
}

func TestHealthAndReady(t *testing.T) {
	registry := services.NewRegistry()
	registry.Register("catalog", services.NewFuncProvider("catalog", func(context.Context) error { return nil }))
	s := newTestServer(t, nil, registry)

	rec := do(t, s, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	registry.Register("storage", services.NewFuncProvider("storage", func(context.Context) error {
		return errors.New("down")
	}))
	rec = do(t, s, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "not_ready", errorCode(t, rec))
}

func TestAuth_RegisterLoginMe(t *testing.T) {
	s := newTestServer(t, nil, nil)
	register(t, s, "Mia@Example.com")

	rec := do(t, s, http.MethodPost, "/api/v1/auth/register", "", models.RegisterRequest{
		Email: "mia@example.com", Password: "password-123",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "email_taken", errorCode(t, rec))

	rec = do(t, s, http.MethodPost, "/api/v1/auth/login", "", models.LoginRequest{
		Email: "mia@example.com", Password: "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid_credentials", errorCode(t, rec))

	rec = do(t, s, http.MethodPost, "/api/v1/auth/login", "", models.LoginRequest{
		Email: "mia@example.com", Password: "password-123",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.AuthResponse
	decodeData(t, rec, &resp)

	rec = do(t, s, http.MethodGet, "/api/v1/me", resp.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me models.User
	decodeData(t, rec, &me)
	assert.Equal(t, "mia@example.com", me.Email)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = do(t, s, http.MethodGet, "/api/v1/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/v1/me", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/v1/auth/logout", resp.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var out models.LogoutResponse
	decodeData(t, rec, &out)
	assert.Equal(t, "logged out", out.Message)
	assert.False(t, out.Revoked, "no denylist configured")
}

func TestAuth_RegisterRejectsBadInput(t *testing.T) {
	s := newTestServer(t, nil, nil)

	rec := do(t, s, http.MethodPost, "/api/v1/auth/register", "", models.RegisterRequest{
		Email: "not-an-email", Password: "password-123",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", errorCode(t, rec))

	rec = do(t, s, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": "a@b.co", "password": "password-123", "admin": "true",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", errorCode(t, rec))
}

func TestAuth_RateLimited(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) {
		c.RateLimit = config.RateLimitConfig{AuthPerMinute: 1, AuthBurst: 2}
	}, nil)

	login := models.LoginRequest{Email: "ghost@example.com", Password: "password-123"}
	for i := 0; i < 2; i++ {
		rec := do(t, s, http.MethodPost, "/api/v1/auth/login", "", login)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	rec := do(t, s, http.MethodPost, "/api/v1/auth/login", "", login)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limited", errorCode(t, rec))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Catalog browsing is not throttled
	rec = do(t, s, http.MethodGet, "/api/v1/stories", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
