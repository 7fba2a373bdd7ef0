package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"quakecache/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestServeOpenAPISpec(t *testing.T) {
	handlers := NewHandlers(&MockGateway{})

	rec := httptest.NewRecorder()
	handlers.ServeOpenAPISpec(rec, httptest.NewRequest(http.MethodGet, openAPISpecPath, nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/yaml", rec.Header().Get("Content-Type"))
	assert.Equal(t, docsCacheControl, rec.Header().Get("Cache-Control"))
	assert.Equal(t, openAPIETag, rec.Header().Get("ETag"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "openapi: 3.0.3"))
}

func TestServeOpenAPISpec_Conditional(t *testing.T) {
	tests := []struct {
		name        string
		ifNoneMatch string
		wantStatus  int
		wantBody    bool
	}{
		{"matching etag", openAPIETag, http.StatusNotModified, false},
		{"stale etag", `"0000000000000000"`, http.StatusOK, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handlers := NewHandlers(&MockGateway{})
			req := httptest.NewRequest(http.MethodGet, openAPISpecPath, nil)
			req.Header.Set("If-None-Match", tt.ifNoneMatch)

			rec := httptest.NewRecorder()
			handlers.ServeOpenAPISpec(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantBody, rec.Body.Len() > 0)
		})
	}
}

func TestServeSwaggerUI(t *testing.T) {
	handlers := NewHandlers(&MockGateway{})

	rec := httptest.NewRecorder()
	handlers.ServeSwaggerUI(rec, httptest.NewRequest(http.MethodGet, "/api/v1/docs", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, `data-spec-url="/api/v1/openapi.yaml"`)
	assert.Contains(t, body, "<title>quakecache API - Documentation</title>")
	assert.Contains(t, body, "swagger-ui-bundle.js")
}

func TestOpenAPIRoutes_AreNotRateLimited(t *testing.T) {
	limiter := &denyAll{}
	router := SetupRoutes(NewHandlers(&MockGateway{}), models.NewDefaultConfig(), WithRateLimiter(limiter.middleware))
	server := httptest.NewServer(router)
	defer server.Close()

	for _, path := range []string{openAPISpecPath, "/api/v1/docs"} {
		t.Run(path, func(t *testing.T) {
			resp, err := http.Get(server.URL + path)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, http.StatusOK, resp.StatusCode)
		})
	}
	assert.Zero(t, limiter.hits)
}

func TestOpenAPISpec_DocumentsRoutes(t *testing.T) {
	var doc struct {
		OpenAPI string                    `yaml:"openapi"`
		Paths   map[string]map[string]any `yaml:"paths"`
	}
	require.NoError(t, yaml.Unmarshal(openAPISpec, &doc))

	assert.Equal(t, "3.0.3", doc.OpenAPI)
	for _, path := range []string{"/api/v1/earthquakes", "/api/v1/earthquakes/{id}", "/health", "/api/v1/health"} {
		ops, ok := doc.Paths[path]
		if assert.True(t, ok, "missing path %s", path) {
			assert.Contains(t, ops, "get")
		}
	}
}
