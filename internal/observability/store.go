package observability

import (
	"context"
	"errors"
	"strings"
	"time"

	"quakecache/internal/kvstore"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentedStore wraps a kvstore.Store with OpenTelemetry tracing and
// metrics. Keys are reduced to their namespace (the text before the first
// colon) so attributes stay low-cardinality.
type InstrumentedStore struct {
	inner    kvstore.Store
	tracer   trace.Tracer
	duration metric.Float64Histogram
	errors   metric.Int64Counter
	lookups  metric.Int64Counter
}

// NewInstrumentedStore creates a store wrapper that records trace spans,
// operation latency histograms, error counters and hit/miss counts for every
// store call.
func NewInstrumentedStore(inner kvstore.Store) (*InstrumentedStore, error) {
	tracer := otel.Tracer("quakecache/kvstore")
	meter := otel.Meter("quakecache/kvstore")

	duration, err := meter.Float64Histogram(
		"kvstore.operation.duration",
		metric.WithDescription("Duration of key-value store operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	errCounter, err := meter.Int64Counter(
		"kvstore.operation.errors",
		metric.WithDescription("Number of key-value store operation errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	lookups, err := meter.Int64Counter(
		"kvstore.lookups",
		metric.WithDescription("Number of Get calls by namespace and result"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	return &InstrumentedStore{
		inner:    inner,
		tracer:   tracer,
		duration: duration,
		errors:   errCounter,
		lookups:  lookups,
	}, nil
}

// keyNamespace returns the portion of key before the first colon.
func keyNamespace(key string) string {
	ns, _, found := strings.Cut(key, ":")
	if !found {
		return "other"
	}
	return ns
}

func (s *InstrumentedStore) startSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "kvstore."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(append([]attribute.KeyValue{
			attribute.String("kvstore.operation", operation),
		}, attrs...)...),
	)
}

func (s *InstrumentedStore) record(ctx context.Context, span trace.Span, operation, namespace string, start time.Time, err error) {
	elapsed := time.Since(start).Seconds()
	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("namespace", namespace),
	)

	s.duration.Record(ctx, elapsed, attrs)

	// A missing key is an expected outcome, not a failure.
	if err != nil && !errors.Is(err, kvstore.ErrNotFound) {
		s.errors.Add(ctx, 1, attrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End()
}

func (s *InstrumentedStore) Get(ctx context.Context, key string) ([]byte, error) {
	ns := keyNamespace(key)
	ctx, span := s.startSpan(ctx, "Get", attribute.String("kvstore.namespace", ns))
	start := time.Now()
	value, err := s.inner.Get(ctx, key)

	result := "hit"
	switch {
	case errors.Is(err, kvstore.ErrNotFound):
		result = "miss"
	case err != nil:
		result = "error"
	}
	span.SetAttributes(attribute.String("kvstore.result", result))
	s.lookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("namespace", ns),
		attribute.String("result", result),
	))

	s.record(ctx, span, "Get", ns, start, err)
	return value, err
}

func (s *InstrumentedStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ns := keyNamespace(key)
	ctx, span := s.startSpan(ctx, "Set",
		attribute.String("kvstore.namespace", ns),
		attribute.Int("kvstore.value_bytes", len(value)),
		attribute.Int64("kvstore.ttl_ms", ttl.Milliseconds()),
	)
	start := time.Now()
	err := s.inner.Set(ctx, key, value, ttl)
	s.record(ctx, span, "Set", ns, start, err)
	return err
}

func (s *InstrumentedStore) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	ns := keyNamespace(key)
	ctx, span := s.startSpan(ctx, "SetNX", attribute.String("kvstore.namespace", ns))
	start := time.Now()
	created, err := s.inner.SetNX(ctx, key, value, ttl)
	span.SetAttributes(attribute.Bool("kvstore.created", created))
	s.record(ctx, span, "SetNX", ns, start, err)
	return created, err
}

func (s *InstrumentedStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	ns := keyNamespace(key)
	ctx, span := s.startSpan(ctx, "Incr", attribute.String("kvstore.namespace", ns))
	start := time.Now()
	n, err := s.inner.Incr(ctx, key, ttl)
	s.record(ctx, span, "Incr", ns, start, err)
	return n, err
}

func (s *InstrumentedStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	ns := keyNamespace(key)
	ctx, span := s.startSpan(ctx, "Expire", attribute.String("kvstore.namespace", ns))
	start := time.Now()
	err := s.inner.Expire(ctx, key, ttl)
	s.record(ctx, span, "Expire", ns, start, err)
	return err
}

func (s *InstrumentedStore) Ping(ctx context.Context) error {
	ctx, span := s.startSpan(ctx, "Ping")
	start := time.Now()
	err := s.inner.Ping(ctx)
	s.record(ctx, span, "Ping", "", start, err)
	return err
}

func (s *InstrumentedStore) Close() error {
	return s.inner.Close()
}

var _ kvstore.Store = (*InstrumentedStore)(nil)
