package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"quakecache/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func newRequest(xff string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/earthquakes", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	if xff != "" {
		req.Header.Set("X-Forwarded-For", xff)
	}
	return req
}

func TestMiddleware_AllowedRequest(t *testing.T) {
	limiter, _, clock := newTestLimiter(t)
	handler := Middleware(limiter, time.Minute)(http.HandlerFunc(okHandler))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, newRequest("203.0.113.7"))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "3", rr.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "2", rr.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, strconv.FormatInt(clock.Now().Add(time.Minute).Unix(), 10), rr.Header().Get("X-RateLimit-Reset"))
}

func TestMiddleware_DeniedRequest(t *testing.T) {
	limiter, _, _ := newTestLimiter(t)
	handler := Middleware(limiter, time.Minute)(http.HandlerFunc(okHandler))

	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, newRequest("203.0.113.7"))
		require.Equal(t, http.StatusOK, rr.Code)
	}

	// Fourth request should be denied
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, newRequest("203.0.113.7"))

	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))
	assert.Equal(t, "0", rr.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var errResp models.ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&errResp))
	assert.Equal(t, "Rate limit exceeded", errResp.Error)
	assert.Equal(t, "Rate limit exceeded", errResp.Message)
	assert.Equal(t, models.ErrorCodeRateLimitExceeded, errResp.Code)
}

func TestMiddleware_FailOpenReportsUnknownRemaining(t *testing.T) {
	store := new(MockStore)
	store.On("Get", mock.Anything, mock.Anything).Return(nil, errors.New("store down"))
	limiter := NewFixedWindowLimiter(store, 3, time.Minute)
	handler := Middleware(limiter, time.Minute)(http.HandlerFunc(okHandler))

	for i := 0; i < 10; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, newRequest("203.0.113.7"))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "unknown", rr.Header().Get("X-RateLimit-Remaining"))
		assert.Empty(t, rr.Header().Get("X-RateLimit-Reset"))
	}
}

func TestMiddleware_UsesFirstForwardedAddress(t *testing.T) {
	var seen []string
	limiter := limiterFunc(func(ctx context.Context, identity string) Decision {
		seen = append(seen, identity)
		return Decision{Allowed: true, Known: true, Limit: 3, Remaining: 2}
	})
	handler := Middleware(limiter, time.Minute)(http.HandlerFunc(okHandler))

	handler.ServeHTTP(httptest.NewRecorder(), newRequest("198.51.100.4, 10.0.0.1"))
	handler.ServeHTTP(httptest.NewRecorder(), newRequest(""))

	assert.Equal(t, []string{"198.51.100.4", "unknown"}, seen)
}

type limiterFunc func(ctx context.Context, identity string) Decision

func (f limiterFunc) Admit(ctx context.Context, identity string) Decision {
	return f(ctx, identity)
}

func TestClientIdentity(t *testing.T) {
	tests := []struct {
		name     string
		xff      string
		expected string
	}{
		{name: "single address", xff: "203.0.113.7", expected: "203.0.113.7"},
		{name: "proxy chain", xff: "203.0.113.7, 10.0.0.1, 10.0.0.2", expected: "203.0.113.7, 10.0.0.1, 10.0.0.2"},
		{name: "surrounding spaces", xff: "  203.0.113.7  ", expected: "203.0.113.7"},
		{name: "ipv6", xff: "2001:db8::1", expected: "2001:db8::1"},
		{name: "absent", xff: "", expected: "unknown"},
		{name: "blank", xff: "   ", expected: "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClientIdentity(newRequest(tt.xff)))
		})
	}
}

func TestClientIdentity_RepeatedHeaders(t *testing.T) {
	req := newRequest("")
	req.Header.Add("X-Forwarded-For", "203.0.113.7")
	req.Header.Add("X-Forwarded-For", "10.0.0.1")

	assert.Equal(t, "203.0.113.7, 10.0.0.1", ClientIdentity(req))
}

func TestMiddleware_ProxyChainIsSeparateWindow(t *testing.T) {
	limiter, _, _ := newTestLimiter(t)
	handler := Middleware(limiter, time.Minute)(http.HandlerFunc(okHandler))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, newRequest("203.0.113.7"))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, newRequest("203.0.113.7"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, newRequest("203.0.113.7, 10.0.0.1"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Remaining"))
}
