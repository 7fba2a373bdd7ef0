package api

import (
	"net/http"

	"quakecache/internal/models"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
)

type routeOptions struct {
	otelServiceName string
	rateLimiter     mux.MiddlewareFunc
}

// RouteOption configures optional route behavior.
type RouteOption func(*routeOptions)

// WithOTelMiddleware adds OpenTelemetry HTTP instrumentation middleware.
func WithOTelMiddleware(serviceName string) RouteOption {
	return func(o *routeOptions) { o.otelServiceName = serviceName }
}

// WithRateLimiter throttles the earthquake routes. Health and documentation
// routes are never limited.
func WithRateLimiter(middleware func(http.Handler) http.Handler) RouteOption {
	return func(o *routeOptions) { o.rateLimiter = middleware }
}

// untracedPaths are excluded from request tracing.
var untracedPaths = map[string]bool{
	"/health":              true,
	"/api/v1/health":       true,
	"/api/v1/openapi.yaml": true,
	"/api/v1/docs":         true,
}

// SetupRoutes configures the HTTP routes for the API
func SetupRoutes(handlers *Handlers, config *models.Config, opts ...RouteOption) *mux.Router {
	var o routeOptions
	for _, opt := range opts {
		opt(&o)
	}

	router := mux.NewRouter()

	router.Use(requestIDMiddleware)
	if o.otelServiceName != "" {
		router.Use(otelmux.Middleware(o.otelServiceName,
			otelmux.WithFilter(func(r *http.Request) bool {
				return !untracedPaths[r.URL.Path]
			}),
		))
	}
	router.Use(loggingMiddleware)
	router.Use(recoveryMiddleware)
	if config.Server.CORS.Enabled {
		router.Use(corsMiddleware(config.Server.CORS))
	}

	api := router.PathPrefix("/api/v1").Subrouter()

	earthquakes := api.PathPrefix("/earthquakes").Subrouter()
	if o.rateLimiter != nil {
		earthquakes.Use(o.rateLimiter)
	}
	earthquakes.HandleFunc("", handlers.ListEarthquakes).Methods(http.MethodGet)
	earthquakes.HandleFunc("/{id}", handlers.GetEarthquake).Methods(http.MethodGet)

	api.HandleFunc("/openapi.yaml", handlers.ServeOpenAPISpec).Methods(http.MethodGet)
	api.HandleFunc("/docs", handlers.ServeSwaggerUI).Methods(http.MethodGet)
	api.HandleFunc("/health", handlers.HealthCheck).Methods(http.MethodGet)

	router.HandleFunc("/health", handlers.HealthCheck).Methods(http.MethodGet)

	// Preflight requests for any API path; CORS headers are added by middleware.
	api.PathPrefix("").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodOptions)

	router.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowedHandler)
	router.NotFoundHandler = requestIDMiddleware(http.HandlerFunc(notFoundHandler))

	return router
}

// methodNotAllowedHandler handles requests with invalid HTTP methods
func methodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusMethodNotAllowed, models.ErrorCodeInvalidRequest, "Method not allowed")
}

// notFoundHandler handles requests for unknown paths
func notFoundHandler(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusNotFound, models.ErrorCodeNotFound, "Resource not found")
}
