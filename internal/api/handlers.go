package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"quakecache/internal/gateway"
	"quakecache/internal/kvstore"
	"quakecache/internal/models"
	"quakecache/internal/version"

	"github.com/gorilla/mux"
)

// healthPingTimeout bounds the store ping made by the health endpoint.
const healthPingTimeout = 2 * time.Second

// Handlers contains HTTP handlers for the earthquake API
type Handlers struct {
	gateway gateway.Resolver
	store   kvstore.Store
	version version.Info
}

// HandlerOption configures optional handler dependencies.
type HandlerOption func(*Handlers)

// WithStore enables the store component of the health check.
func WithStore(s kvstore.Store) HandlerOption {
	return func(h *Handlers) { h.store = s }
}

// WithVersion sets the build info reported by the health check.
func WithVersion(v version.Info) HandlerOption {
	return func(h *Handlers) { h.version = v }
}

// NewHandlers creates a new handlers instance
func NewHandlers(gw gateway.Resolver, opts ...HandlerOption) *Handlers {
	h := &Handlers{gateway: gw}
	for _, o := range opts {
		o(h)
	}
	return h
}

// ListEarthquakes handles collection queries
// GET /api/v1/earthquakes?starttime&endtime&minmagnitude&maxmagnitude&limit&orderby
func (h *Handlers) ListEarthquakes(w http.ResponseWriter, r *http.Request) {
	params, err := models.ParseQueryParams(r.URL.Query().Get)
	if err != nil {
		h.writeErrorResponse(w, r, http.StatusBadRequest, models.ErrorCodeInvalidRequest, err.Error())
		return
	}

	result, err := h.gateway.Events(r.Context(), params)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeResult(w, result)
}

// GetEarthquake handles by-id lookups
// GET /api/v1/earthquakes/{id}
func (h *Handlers) GetEarthquake(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	result, err := h.gateway.Event(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeResult(w, result)
}

// HealthCheck handles health check requests
// GET /health
// The store being down degrades the service but does not make it unavailable:
// requests still fall through to the upstream and the limiter fails open.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := models.NewHealthCheckResponse(models.StatusHealthy)
	response.Version = h.version.Version

	if h.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
		defer cancel()

		start := time.Now()
		if err := h.store.Ping(ctx); err != nil {
			response.Status = models.StatusDegraded
			response.AddComponent("store", models.StatusUnhealthy, err.Error())
		} else {
			response.AddComponent("store", models.StatusHealthy, "Store is operational")
		}
		response.AddMetric("store_ping_ms", time.Since(start).Milliseconds())
	}
	response.AddComponent("api", models.StatusHealthy, "API is operational")

	h.writeJSONResponse(w, http.StatusOK, response)
}

// writeResult writes a gateway result as {"data": ..., "source": ...}.
func (h *Handlers) writeResult(w http.ResponseWriter, result gateway.Result) {
	if result.Provenance == models.ProvenanceCache {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	h.writeJSONResponse(w, http.StatusOK, models.NewDataResponse(result.Payload, result.Provenance))
}

// writeServiceError maps gateway errors onto HTTP responses.
func (h *Handlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var se *gateway.ServiceError
	switch {
	case errors.As(err, &se):
		h.writeErrorResponse(w, r, se.StatusCode, se.Code, se.Message)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		slog.WarnContext(r.Context(), "Request abandoned", "path", r.URL.Path, "error", err)
		h.writeErrorResponse(w, r, http.StatusServiceUnavailable, models.ErrorCodeServiceUnavailable, "Request cancelled")
	default:
		slog.ErrorContext(r.Context(), "Unhandled error", "path", r.URL.Path, "error", err)
		h.writeErrorResponse(w, r, http.StatusInternalServerError, models.ErrorCodeInternalError, "Internal server error")
	}
}

// writeJSONResponse writes a JSON response
func (h *Handlers) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	writeJSON(w, statusCode, data)
}

// writeErrorResponse writes an error response tagged with the request id
func (h *Handlers) writeErrorResponse(w http.ResponseWriter, r *http.Request, statusCode int, errorCode, message string) {
	writeError(w, r, statusCode, errorCode, message)
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already written; nothing more can be sent.
		slog.Error("Error encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, statusCode int, errorCode, message string) {
	errorResp := models.NewErrorResponse(message, errorCode)
	errorResp.RequestID = RequestIDFromContext(r.Context())
	writeJSON(w, statusCode, errorResp)
}
