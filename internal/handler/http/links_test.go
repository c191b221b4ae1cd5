package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/julioborgesigt/encurtador/internal/admin"
	"github.com/julioborgesigt/encurtador/internal/auth"
	"github.com/julioborgesigt/encurtador/internal/clicks"
	"github.com/julioborgesigt/encurtador/internal/config"
	"github.com/julioborgesigt/encurtador/internal/domain"
	"github.com/julioborgesigt/encurtador/internal/repository/memory"
	"github.com/julioborgesigt/encurtador/internal/service"
	"github.com/julioborgesigt/encurtador/internal/sweep"
)

type noopSink struct{}

func (noopSink) SubmitClick(*clicks.Click) error { return nil }

type testEnv struct {
	handler http.Handler
	store   *memory.MemStorage
	jwt     *auth.JWTService
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()

	log := zap.NewNop()
	store := memory.New()

	cfg := &config.Config{
		Env: "local",
		Shortener: config.Shortener{
			BaseURL:             "http://localhost:8080",
			CodeLength:          7,
			MaxGenerateAttempts: 5,
			GuestExpirationDays: 7,
		},
	}

	shortener := service.NewShortener(store, noopSink{}, cfg, log)
	jwtService := auth.NewJWTService(&auth.JWTConfig{
		SecretKey: []byte("test-secret"),
		TokenTTL:  time.Hour,
		Issuer:    "encurtador",
	})
	middleware := auth.NewMiddleware(jwtService, "admin@example.com", log)
	googleService := auth.NewGoogleService(auth.GoogleConfig{}, store, log)
	adminService := admin.NewService(nil, log)
	sweeper := sweep.New(store, "0 * * * *", log)

	server := NewServer(store, shortener, adminService, sweeper, googleService, jwtService, middleware, false, cfg.Shortener.BaseURL, log)

	return &testEnv{
		handler: server.SetupRoutes(),
		store:   store,
		jwt:     jwtService,
	}
}

func (e *testEnv) tokenFor(t *testing.T, userID int64, email string) string {
	t.Helper()
	token, err := e.jwt.GenerateToken(userID, email)
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func jsonBody(t *testing.T, v interface{}) *bytes.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

func TestCreateLinkEndpoint(t *testing.T) {
	t.Run("guest creation clamps options", func(t *testing.T) {
		env := setupTestServer(t)

		req := httptest.NewRequest(http.MethodPost, "/api/shorten", jsonBody(t, CreateLinkRequest{
			URL:         "https://example.com/page",
			CustomCode:  "wanted",
			Description: "ignored for guests",
		}))
		rec := env.do(req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp LinkResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotEqual(t, "wanted", resp.ShortCode)
		assert.Len(t, resp.ShortCode, 7)
		assert.Equal(t, "http://localhost:8080/"+resp.ShortCode, resp.ShortURL)
		assert.Nil(t, resp.Description)
		assert.NotNil(t, resp.ExpiresAt)
		assert.NotNil(t, resp.QRCode)
	})

	t.Run("authenticated custom code", func(t *testing.T) {
		env := setupTestServer(t)
		token := env.tokenFor(t, 1, "user@example.com")

		req := httptest.NewRequest(http.MethodPost, "/api/shorten", jsonBody(t, CreateLinkRequest{
			URL:        "https://example.com",
			CustomCode: "my-page",
		}))
		req.Header.Set("Authorization", "Bearer "+token)
		rec := env.do(req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp LinkResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "my-page", resp.ShortCode)
		assert.True(t, resp.IsCustom)
		assert.Nil(t, resp.ExpiresAt)
	})

	t.Run("duplicate custom code returns conflict", func(t *testing.T) {
		env := setupTestServer(t)
		token := env.tokenFor(t, 1, "user@example.com")

		first := httptest.NewRequest(http.MethodPost, "/api/shorten", jsonBody(t, CreateLinkRequest{
			URL:        "https://example.com/a",
			CustomCode: "my-page",
		}))
		first.Header.Set("Authorization", "Bearer "+token)
		require.Equal(t, http.StatusOK, env.do(first).Code)

		second := httptest.NewRequest(http.MethodPost, "/api/shorten", jsonBody(t, CreateLinkRequest{
			URL:        "https://example.com/b",
			CustomCode: "my-page",
		}))
		second.Header.Set("Authorization", "Bearer "+token)
		rec := env.do(second)

		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("validation failure carries field map", func(t *testing.T) {
		env := setupTestServer(t)
		token := env.tokenFor(t, 1, "user@example.com")

		req := httptest.NewRequest(http.MethodPost, "/api/shorten", jsonBody(t, CreateLinkRequest{
			URL:        "not a url",
			CustomCode: "api",
		}))
		req.Header.Set("Authorization", "Bearer "+token)
		rec := env.do(req)

		require.Equal(t, http.StatusBadRequest, rec.Code)

		var resp struct {
			Error  string            `json:"error"`
			Fields map[string]string `json:"fields"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Contains(t, resp.Fields, "url")
		assert.Contains(t, resp.Fields, "customCode")
	})

	t.Run("malformed body", func(t *testing.T) {
		env := setupTestServer(t)

		req := httptest.NewRequest(http.MethodPost, "/api/shorten", bytes.NewReader([]byte("{not json")))
		rec := env.do(req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("method not allowed", func(t *testing.T) {
		env := setupTestServer(t)

		req := httptest.NewRequest(http.MethodGet, "/api/shorten", nil)
		rec := env.do(req)

		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestRedirectEndpoint(t *testing.T) {
	t.Run("redirects to destination unchanged", func(t *testing.T) {
		env := setupTestServer(t)

		require.NoError(t, env.store.Insert(context.Background(), &domain.URL{
			OriginalURL: "https://example.com/path?q=1",
			ShortCode:   "abc1234",
		}))

		req := httptest.NewRequest(http.MethodGet, "/abc1234", nil)
		rec := env.do(req)

		require.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "https://example.com/path?q=1", rec.Header().Get("Location"))
	})

	t.Run("unknown code renders 404 page", func(t *testing.T) {
		env := setupTestServer(t)

		req := httptest.NewRequest(http.MethodGet, "/missing9", nil)
		rec := env.do(req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	})

	t.Run("expired code renders 410 page and removal sticks", func(t *testing.T) {
		env := setupTestServer(t)

		expired := time.Now().Add(-time.Hour)
		require.NoError(t, env.store.Insert(context.Background(), &domain.URL{
			OriginalURL: "https://example.com",
			ShortCode:   "expired",
			ExpiresAt:   &expired,
		}))

		rec := env.do(httptest.NewRequest(http.MethodGet, "/expired", nil))
		assert.Equal(t, http.StatusGone, rec.Code)

		rec = env.do(httptest.NewRequest(http.MethodGet, "/expired", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestListLinksEndpoint(t *testing.T) {
	t.Run("guest gets empty page", func(t *testing.T) {
		env := setupTestServer(t)

		rec := env.do(httptest.NewRequest(http.MethodGet, "/api/urls", nil))

		require.Equal(t, http.StatusOK, rec.Code)

		var resp ListLinksResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Empty(t, resp.URLs)
		assert.Zero(t, resp.Pagination.Total)
	})

	t.Run("pagination and search", func(t *testing.T) {
		env := setupTestServer(t)
		token := env.tokenFor(t, 1, "user@example.com")
		userID := int64(1)

		for _, link := range []domain.URL{
			{OriginalURL: "https://example.com/docs", ShortCode: "docs123", UserID: &userID},
			{OriginalURL: "https://example.com/blog", ShortCode: "blog123", UserID: &userID},
		} {
			link := link
			require.NoError(t, env.store.Insert(context.Background(), &link))
		}

		req := httptest.NewRequest(http.MethodGet, "/api/urls?search=docs&page=1&limit=10", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := env.do(req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp ListLinksResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.URLs, 1)
		assert.Equal(t, "docs123", resp.URLs[0].ShortCode)
		assert.Equal(t, int64(1), resp.Pagination.Total)
	})
}

func TestDeleteLinkEndpoint(t *testing.T) {
	t.Run("unauthenticated delete is rejected", func(t *testing.T) {
		env := setupTestServer(t)

		req := httptest.NewRequest(http.MethodDelete, "/api/urls/whatever", nil)
		rec := env.do(req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("owner deletes, stranger is forbidden", func(t *testing.T) {
		env := setupTestServer(t)
		ownerID := int64(1)

		require.NoError(t, env.store.Insert(context.Background(), &domain.URL{
			OriginalURL: "https://example.com",
			ShortCode:   "mine123",
			UserID:      &ownerID,
		}))

		strangerToken := env.tokenFor(t, 2, "stranger@example.com")
		req := httptest.NewRequest(http.MethodDelete, "/api/urls/mine123", nil)
		req.Header.Set("Authorization", "Bearer "+strangerToken)
		assert.Equal(t, http.StatusForbidden, env.do(req).Code)

		ownerToken := env.tokenFor(t, 1, "owner@example.com")
		req = httptest.NewRequest(http.MethodDelete, "/api/urls/mine123", nil)
		req.Header.Set("Authorization", "Bearer "+ownerToken)
		assert.Equal(t, http.StatusNoContent, env.do(req).Code)

		req = httptest.NewRequest(http.MethodDelete, "/api/urls/mine123", nil)
		req.Header.Set("Authorization", "Bearer "+ownerToken)
		assert.Equal(t, http.StatusNotFound, env.do(req).Code)
	})
}

func TestStatsEndpoint(t *testing.T) {
	env := setupTestServer(t)
	ownerID := int64(1)

	now := time.Now()
	require.NoError(t, env.store.Insert(context.Background(), &domain.URL{
		OriginalURL:  "https://example.com",
		ShortCode:    "stat123",
		UserID:       &ownerID,
		Clicks:       42,
		LastAccessed: &now,
	}))

	t.Run("requires authentication", func(t *testing.T) {
		rec := env.do(httptest.NewRequest(http.MethodGet, "/api/stats/stat123", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("owner sees counters", func(t *testing.T) {
		token := env.tokenFor(t, 1, "owner@example.com")
		req := httptest.NewRequest(http.MethodGet, "/api/stats/stat123", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := env.do(req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp LinkResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, int64(42), resp.Clicks)
		assert.NotNil(t, resp.LastAccessed)
	})
}

func TestRequestIDHeader(t *testing.T) {
	env := setupTestServer(t)

	t.Run("generated when absent", func(t *testing.T) {
		rec := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	})

	t.Run("preserved when present", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("X-Request-ID", "req-42")
		rec := env.do(req)
		assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
	})
}
