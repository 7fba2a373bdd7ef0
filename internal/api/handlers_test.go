package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"quakecache/internal/gateway"
	"quakecache/internal/kvstore"
	"quakecache/internal/models"
	"quakecache/internal/version"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	featureJSON    = `{"type":"Feature","id":"us7000abcd","properties":{"mag":4.6},"geometry":{"type":"Point","coordinates":[120.1,-5.2,10]}}`
	collectionJSON = `{"type":"FeatureCollection","metadata":{"count":1},"features":[` + featureJSON + `]}`
)

// MockGateway implements gateway.Resolver for testing
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Resolve(ctx context.Context, req gateway.Request) (gateway.Result, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(gateway.Result), args.Error(1)
}

func (m *MockGateway) Events(ctx context.Context, params models.QueryParams) (gateway.Result, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(gateway.Result), args.Error(1)
}

func (m *MockGateway) Event(ctx context.Context, id string) (gateway.Result, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(gateway.Result), args.Error(1)
}

// pingStore is a kvstore.Store whose Ping returns pingErr. Only Ping may be
// called on it.
type pingStore struct {
	*kvstore.MemoryStore
	pingErr error
}

func (p *pingStore) Ping(_ context.Context) error { return p.pingErr }

func serve(t *testing.T, handlers *Handlers, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	router := mux.NewRouter()
	router.HandleFunc("/api/v1/earthquakes", handlers.ListEarthquakes).Methods("GET")
	router.HandleFunc("/api/v1/earthquakes/{id}", handlers.GetEarthquake).Methods("GET")
	router.HandleFunc("/health", handlers.HealthCheck).Methods("GET")

	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var errResp models.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&errResp))
	return errResp
}

func TestNewHandlers(t *testing.T) {
	gw := &MockGateway{}
	handlers := NewHandlers(gw)

	assert.NotNil(t, handlers)
	assert.Equal(t, gw, handlers.gateway)
	assert.Nil(t, handlers.store)
}

func TestNewHandlers_WithOptions(t *testing.T) {
	store := &pingStore{}
	handlers := NewHandlers(&MockGateway{}, WithStore(store), WithVersion(version.Info{Version: "1.2.3"}))

	assert.Equal(t, store, handlers.store)
	assert.Equal(t, "1.2.3", handlers.version.Version)
}

func TestHandlers_ListEarthquakes_Success(t *testing.T) {
	gw := &MockGateway{}
	handlers := NewHandlers(gw)

	gw.On("Events", mock.Anything, mock.MatchedBy(func(p models.QueryParams) bool {
		return p.MinMagnitude != nil && *p.MinMagnitude == 4.5 &&
			p.Limit != nil && *p.Limit == 10 &&
			p.StartTime != nil && *p.StartTime == "2024-01-01" &&
			p.EndTime == nil && p.OrderBy == nil
	})).Return(gateway.Result{Payload: json.RawMessage(collectionJSON), Provenance: models.ProvenanceAPI}, nil)

	rec := serve(t, handlers, http.MethodGet, "/api/v1/earthquakes?minmagnitude=4.5&limit=10&starttime=2024-01-01")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"data":`+collectionJSON+`,"source":"api"}`, rec.Body.String())
	gw.AssertExpectations(t)
}

func TestHandlers_ListEarthquakes_CacheHit(t *testing.T) {
	gw := &MockGateway{}
	handlers := NewHandlers(gw)
	gw.On("Events", mock.Anything, models.QueryParams{}).
		Return(gateway.Result{Payload: json.RawMessage(collectionJSON), Provenance: models.ProvenanceCache}, nil)

	rec := serve(t, handlers, http.MethodGet, "/api/v1/earthquakes")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))

	var body models.DataResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, models.ProvenanceCache, body.Source)
	assert.JSONEq(t, collectionJSON, string(body.Data))
}

func TestHandlers_ListEarthquakes_InvalidParams(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"non-numeric minmagnitude", "minmagnitude=big"},
		{"non-numeric maxmagnitude", "maxmagnitude=7.x"},
		{"non-integer limit", "limit=ten"},
		{"infinite minmagnitude", "minmagnitude=%2BInf"},
		{"NaN maxmagnitude", "maxmagnitude=NaN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &MockGateway{}
			handlers := NewHandlers(gw)

			rec := serve(t, handlers, http.MethodGet, "/api/v1/earthquakes?"+tt.query)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			errResp := decodeError(t, rec)
			assert.Equal(t, models.ErrorCodeInvalidRequest, errResp.Code)
			gw.AssertNotCalled(t, "Events", mock.Anything, mock.Anything)
		})
	}
}

func TestHandlers_ServiceErrors(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		expectedCode int
		expectedErr  string
		expectedMsg  string
	}{
		{
			name:         "validation",
			err:          gateway.NewInvalidRequestError("invalid orderby: depth", nil),
			expectedCode: http.StatusBadRequest,
			expectedErr:  models.ErrorCodeInvalidRequest,
			expectedMsg:  "invalid orderby: depth",
		},
		{
			name:         "not found",
			err:          gateway.NewNotFoundError("Earthquake not found"),
			expectedCode: http.StatusNotFound,
			expectedErr:  models.ErrorCodeNotFound,
			expectedMsg:  "Earthquake not found",
		},
		{
			name:         "upstream failure",
			err:          gateway.NewUpstreamError("Failed to fetch earthquake data", errors.New("503")),
			expectedCode: http.StatusBadGateway,
			expectedErr:  models.ErrorCodeUpstreamFailure,
			expectedMsg:  "Failed to fetch earthquake data",
		},
		{
			name:         "cancelled",
			err:          context.Canceled,
			expectedCode: http.StatusServiceUnavailable,
			expectedErr:  models.ErrorCodeServiceUnavailable,
			expectedMsg:  "Request cancelled",
		},
		{
			name:         "unexpected",
			err:          errors.New("boom"),
			expectedCode: http.StatusInternalServerError,
			expectedErr:  models.ErrorCodeInternalError,
			expectedMsg:  "Internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &MockGateway{}
			handlers := NewHandlers(gw)
			gw.On("Event", mock.Anything, "us7000abcd").Return(gateway.Result{}, tt.err)

			rec := serve(t, handlers, http.MethodGet, "/api/v1/earthquakes/us7000abcd")

			assert.Equal(t, tt.expectedCode, rec.Code)
			errResp := decodeError(t, rec)
			assert.Equal(t, tt.expectedErr, errResp.Code)
			assert.Equal(t, tt.expectedMsg, errResp.Error)
			assert.Equal(t, tt.expectedMsg, errResp.Message)
			assert.False(t, errResp.Timestamp.IsZero())
		})
	}
}

func TestHandlers_GetEarthquake_Success(t *testing.T) {
	gw := &MockGateway{}
	handlers := NewHandlers(gw)
	gw.On("Event", mock.Anything, "us7000abcd").
		Return(gateway.Result{Payload: json.RawMessage(featureJSON), Provenance: models.ProvenanceAPI}, nil)

	rec := serve(t, handlers, http.MethodGet, "/api/v1/earthquakes/us7000abcd")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":`+featureJSON+`,"source":"api"}`, rec.Body.String())
}

func TestHandlers_HealthCheck(t *testing.T) {
	tests := []struct {
		name            string
		store           *pingStore
		expectedStatus  string
		expectStoreComp bool
		storeStatus     string
	}{
		{"no store configured", nil, models.StatusHealthy, false, ""},
		{"store reachable", &pingStore{}, models.StatusHealthy, true, models.StatusHealthy},
		{"store unreachable", &pingStore{pingErr: errors.New("dial tcp: refused")}, models.StatusDegraded, true, models.StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := []HandlerOption{WithVersion(version.Info{Version: "1.2.3"})}
			if tt.store != nil {
				opts = append(opts, WithStore(tt.store))
			}
			handlers := NewHandlers(&MockGateway{}, opts...)

			rec := serve(t, handlers, http.MethodGet, "/health")

			assert.Equal(t, http.StatusOK, rec.Code)
			var resp models.HealthCheckResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tt.expectedStatus, resp.Status)
			assert.Equal(t, "1.2.3", resp.Version)
			assert.Contains(t, resp.Components, "api")

			comp, ok := resp.Components["store"]
			assert.Equal(t, tt.expectStoreComp, ok)
			if ok {
				assert.Equal(t, tt.storeStatus, comp.Status)
			}
		})
	}
}
