package observability

import (
	"context"

	"quakecache/internal/ratelimit"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentedLimiter counts admission decisions. Identities are not
// recorded as metric attributes; they only appear on the active span.
type InstrumentedLimiter struct {
	inner     ratelimit.Limiter
	decisions metric.Int64Counter
}

func NewInstrumentedLimiter(inner ratelimit.Limiter) (*InstrumentedLimiter, error) {
	meter := otel.Meter("quakecache/ratelimit")

	decisions, err := meter.Int64Counter(
		"ratelimit.decisions",
		metric.WithDescription("Number of rate limit decisions by result"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, err
	}

	return &InstrumentedLimiter{inner: inner, decisions: decisions}, nil
}

func decisionResult(d ratelimit.Decision) string {
	switch {
	case !d.Known:
		return "fail_open"
	case d.Allowed:
		return "allowed"
	default:
		return "denied"
	}
}

func (l *InstrumentedLimiter) Admit(ctx context.Context, identity string) ratelimit.Decision {
	d := l.inner.Admit(ctx, identity)
	result := decisionResult(d)

	l.decisions.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))

	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.String("ratelimit.identity", identity),
		attribute.String("ratelimit.result", result),
	)
	if d.Known {
		span.SetAttributes(attribute.Int("ratelimit.remaining", d.Remaining))
	}
	return d
}

var _ ratelimit.Limiter = (*InstrumentedLimiter)(nil)
