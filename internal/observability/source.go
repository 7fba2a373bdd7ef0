package observability

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"quakecache/internal/gateway"
	"quakecache/internal/models"
	"quakecache/internal/usgs"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentedSource wraps the upstream event source with tracing and
// request metrics.
type InstrumentedSource struct {
	inner    gateway.Source
	tracer   trace.Tracer
	duration metric.Float64Histogram
	requests metric.Int64Counter
}

func NewInstrumentedSource(inner gateway.Source) (*InstrumentedSource, error) {
	tracer := otel.Tracer("quakecache/usgs")
	meter := otel.Meter("quakecache/usgs")

	duration, err := meter.Float64Histogram(
		"upstream.request.duration",
		metric.WithDescription("Duration of event service requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	requests, err := meter.Int64Counter(
		"upstream.requests",
		metric.WithDescription("Number of event service requests by operation and outcome"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	return &InstrumentedSource{
		inner:    inner,
		tracer:   tracer,
		duration: duration,
		requests: requests,
	}, nil
}

// outcome classifies an upstream result for metrics.
func outcome(err error) string {
	var se *usgs.StatusError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, usgs.ErrNotFound):
		return "not_found"
	case errors.Is(err, usgs.ErrMalformedPayload):
		return "malformed"
	case errors.As(err, &se):
		return "status_error"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "transport_error"
	}
}

func (s *InstrumentedSource) observe(ctx context.Context, span trace.Span, operation string, start time.Time, payload json.RawMessage, err error) {
	result := outcome(err)
	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", result),
	)
	s.duration.Record(ctx, time.Since(start).Seconds(), attrs)
	s.requests.Add(ctx, 1, attrs)

	span.SetAttributes(
		attribute.String("upstream.outcome", result),
		attribute.Int("upstream.response_bytes", len(payload)),
	)
	var se *usgs.StatusError
	if errors.As(err, &se) {
		span.SetAttributes(attribute.Int("http.response.status_code", se.StatusCode))
	}
	if err != nil && result != "not_found" {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func (s *InstrumentedSource) QueryEvents(ctx context.Context, params models.QueryParams) (json.RawMessage, error) {
	attrs := make([]attribute.KeyValue, 0, 6)
	for _, p := range params.Params() {
		attrs = append(attrs, attribute.String("usgs.query."+p.Name, p.Value))
	}
	ctx, span := s.tracer.Start(ctx, "usgs.QueryEvents",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
	start := time.Now()
	payload, err := s.inner.QueryEvents(ctx, params)
	s.observe(ctx, span, "QueryEvents", start, payload, err)
	return payload, err
}

func (s *InstrumentedSource) GetEvent(ctx context.Context, id string) (json.RawMessage, error) {
	ctx, span := s.tracer.Start(ctx, "usgs.GetEvent",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("usgs.event_id", id)),
	)
	start := time.Now()
	payload, err := s.inner.GetEvent(ctx, id)
	s.observe(ctx, span, "GetEvent", start, payload, err)
	return payload, err
}

var _ gateway.Source = (*InstrumentedSource)(nil)
