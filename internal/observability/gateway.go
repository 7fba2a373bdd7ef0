package observability

import (
	"context"
	"errors"
	"time"

	"quakecache/internal/gateway"
	"quakecache/internal/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// GatewayMetrics records cache gateway resolutions. It implements
// gateway.Recorder.
type GatewayMetrics struct {
	resolutions metric.Int64Counter
	duration    metric.Float64Histogram
}

func NewGatewayMetrics() (*GatewayMetrics, error) {
	meter := otel.Meter("quakecache/gateway")

	resolutions, err := meter.Int64Counter(
		"gateway.resolutions",
		metric.WithDescription("Number of resolved requests by kind and result (cache, api or an error code)"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"gateway.resolution.duration",
		metric.WithDescription("End-to-end resolution time in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &GatewayMetrics{resolutions: resolutions, duration: duration}, nil
}

func (m *GatewayMetrics) RecordResolution(ctx context.Context, kind string, source models.Provenance, err error, elapsed time.Duration) {
	result := string(source)
	if err != nil {
		result = errorCode(err)
	}
	attrs := metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("result", result),
	)
	m.resolutions.Add(ctx, 1, attrs)
	m.duration.Record(ctx, elapsed.Seconds(), attrs)
}

// errorCode maps a resolution error to its service error code.
func errorCode(err error) string {
	var se *gateway.ServiceError
	if errors.As(err, &se) {
		return se.Code
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "CANCELLED"
	}
	return models.ErrorCodeInternalError
}

var _ gateway.Recorder = (*GatewayMetrics)(nil)
