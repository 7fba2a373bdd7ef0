// Package models - API response types and error handling.
// This file defines all outgoing API response structures.
//
// Response shapes:
// - Success: {"data": <payload>, "source": "cache"|"api"}
// - Failure: {"error": <message>, "code": <machine code>, ...}
// - Timestamps are RFC3339
package models

import (
	"encoding/json"
	"time"
)

// Provenance records where a payload came from.
type Provenance string

const (
	ProvenanceCache Provenance = "cache"
	ProvenanceAPI   Provenance = "api"
)

// DataResponse wraps a payload with its provenance. Data is kept as raw JSON
// so a cached payload is returned byte-for-byte as it was stored.
type DataResponse struct {
	Data   json.RawMessage `json:"data"`
	Source Provenance      `json:"source"`
}

// ErrorResponse is the body for every non-2xx response.
//
// Error and Message both carry the human-readable description so clients
// reading either field get the text; Code is machine-readable and stable
// across releases.
type ErrorResponse struct {
	Error     string            `json:"error"`
	Message   string            `json:"message"`
	Code      string            `json:"code,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	RequestID string            `json:"request_id,omitempty"`
}

type HealthCheckResponse struct {
	Status     string                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
	Metrics    map[string]interface{}     `json:"metrics,omitempty"`
}

type ComponentHealth struct {
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Health Status Constants
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusDegraded  = "degraded"
)

// Error codes
//
// Upper-case with underscores, each mapped to a single HTTP status.
const (
	ErrorCodeNotFound           = "NOT_FOUND"           // 404: event does not exist upstream
	ErrorCodeInvalidRequest     = "INVALID_REQUEST"     // 400: malformed query parameters
	ErrorCodeInternalError      = "INTERNAL_ERROR"      // 500: server-side error
	ErrorCodeRateLimitExceeded  = "RATE_LIMIT_EXCEEDED" // 429: client throttled
	ErrorCodeUpstreamFailure    = "UPSTREAM_FAILURE"    // 502: event service failed
	ErrorCodeServiceUnavailable = "SERVICE_UNAVAILABLE" // 503: service temporarily down
)

func NewErrorResponse(message string, code string) *ErrorResponse {
	return &ErrorResponse{
		Error:     message,
		Message:   message,
		Code:      code,
		Timestamp: time.Now(),
	}
}

func NewDataResponse(data json.RawMessage, source Provenance) *DataResponse {
	return &DataResponse{
		Data:   data,
		Source: source,
	}
}

func NewHealthCheckResponse(status string) *HealthCheckResponse {
	return &HealthCheckResponse{
		Status:     status,
		Timestamp:  time.Now(),
		Components: make(map[string]ComponentHealth),
		Metrics:    make(map[string]interface{}),
	}
}

func (h *HealthCheckResponse) AddComponent(name, status, message string) {
	h.Components[name] = ComponentHealth{
		Status:    status,
		Message:   message,
		Timestamp: time.Now(),
	}
}

func (h *HealthCheckResponse) AddMetric(name string, value interface{}) {
	h.Metrics[name] = value
}
