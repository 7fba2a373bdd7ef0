package gateway

import (
	"context"
	"encoding/json"
	"time"

	"quakecache/internal/models"
)

// Source fetches payloads from the upstream event service. GetEvent reports
// a missing event with an error wrapping usgs.ErrNotFound.
type Source interface {
	QueryEvents(ctx context.Context, params models.QueryParams) (json.RawMessage, error)
	GetEvent(ctx context.Context, id string) (json.RawMessage, error)
}

// Recorder observes completed resolutions. source is empty when err is set.
type Recorder interface {
	RecordResolution(ctx context.Context, kind string, source models.Provenance, err error, elapsed time.Duration)
}

// Resolver is the read-through operation exposed to the HTTP layer.
type Resolver interface {
	Resolve(ctx context.Context, req Request) (Result, error)
	Events(ctx context.Context, params models.QueryParams) (Result, error)
	Event(ctx context.Context, id string) (Result, error)
}

var _ Resolver = (*Service)(nil)
