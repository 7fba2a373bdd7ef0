// Package gateway implements the read-through cache in front of the event
// service. A request is answered from the key-value store when a fresh entry
// exists; otherwise the upstream is queried once and a successful payload is
// stored with a kind-specific TTL. Store failures never fail a request.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"quakecache/internal/kvstore"
	"quakecache/internal/models"
	"quakecache/internal/usgs"
)

// Kind distinguishes the two request shapes.
type Kind int

const (
	KindCollection Kind = iota
	KindEvent
)

func (k Kind) String() string {
	switch k {
	case KindCollection:
		return "collection"
	case KindEvent:
		return "event"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Request is a collection query (Params) or a by-id lookup (ID).
type Request struct {
	Kind   Kind
	Params models.QueryParams
	ID     string
}

// Result is a payload and where it came from.
type Result struct {
	Payload    json.RawMessage
	Provenance models.Provenance
}

const (
	DefaultEventTTL      = 600 * time.Second
	DefaultCollectionTTL = 300 * time.Second
)

// Service resolves requests against the store and the upstream source.
type Service struct {
	store        kvstore.Store
	source       Source
	recorder     Recorder
	logger       *slog.Logger
	eventTTL     time.Duration
	queryTTL     time.Duration
	storeTimeout time.Duration
	defaultLimit int
	defaultOrder string
}

type Option func(*Service)

// WithTTLs sets the entry lifetimes for by-id lookups and collection queries.
func WithTTLs(event, collection time.Duration) Option {
	return func(s *Service) {
		s.eventTTL = event
		s.queryTTL = collection
	}
}

// WithStoreTimeout bounds each store call. Zero leaves calls bounded only by
// the request context.
func WithStoreTimeout(d time.Duration) Option {
	return func(s *Service) { s.storeTimeout = d }
}

// WithQueryDefaults sets the limit and orderby applied to collection queries
// that omit them.
func WithQueryDefaults(limit int, orderBy string) Option {
	return func(s *Service) {
		s.defaultLimit = limit
		s.defaultOrder = orderBy
	}
}

func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a gateway over store and source.
func NewService(store kvstore.Store, source Source, opts ...Option) *Service {
	s := &Service{
		store:        store,
		source:       source,
		logger:       slog.Default(),
		eventTTL:     DefaultEventTTL,
		queryTTL:     DefaultCollectionTTL,
		defaultLimit: models.DefaultQueryLimit,
		defaultOrder: models.OrderByTime,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// NewServiceFromConfig creates a gateway using the cache section of the config.
func NewServiceFromConfig(store kvstore.Store, source Source, cfg models.CacheConfig, opts ...Option) *Service {
	base := []Option{
		WithTTLs(cfg.EventTTL, cfg.QueryTTL),
		WithStoreTimeout(cfg.StoreTimeout),
		WithQueryDefaults(cfg.DefaultLimit, cfg.DefaultOrder),
	}
	return NewService(store, source, append(base, opts...)...)
}

// Events resolves a collection query.
func (s *Service) Events(ctx context.Context, params models.QueryParams) (Result, error) {
	return s.Resolve(ctx, Request{Kind: KindCollection, Params: params})
}

// Event resolves a by-id lookup.
func (s *Service) Event(ctx context.Context, id string) (Result, error) {
	return s.Resolve(ctx, Request{Kind: KindEvent, ID: id})
}

// Resolve answers req from the store when possible, otherwise from the
// upstream source, caching successful upstream payloads.
func (s *Service) Resolve(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	result, err := s.resolve(ctx, req)
	if s.recorder != nil {
		s.recorder.RecordResolution(ctx, req.Kind.String(), result.Provenance, err, time.Since(start))
	}
	return result, err
}

func (s *Service) resolve(ctx context.Context, req Request) (Result, error) {
	key, ttl, req, err := s.prepare(req)
	if err != nil {
		return Result{}, err
	}

	if payload, ok := s.lookup(ctx, key); ok {
		return Result{Payload: payload, Provenance: models.ProvenanceCache}, nil
	}

	payload, err := s.fetch(ctx, req)
	if err != nil {
		return Result{}, err
	}

	s.save(ctx, key, payload, ttl)

	return Result{Payload: payload, Provenance: models.ProvenanceAPI}, nil
}

// prepare validates req and derives its key and TTL. Collection params come
// back with the boundary defaults applied so the upstream sees the same query
// the key describes.
func (s *Service) prepare(req Request) (string, time.Duration, Request, error) {
	switch req.Kind {
	case KindEvent:
		if strings.TrimSpace(req.ID) == "" {
			return "", 0, req, NewInvalidRequestError("earthquake id is required", nil)
		}
		return EventKey(req.ID), s.eventTTL, req, nil
	case KindCollection:
		req.Params = req.Params.WithDefaults(s.defaultLimit, s.defaultOrder)
		if err := req.Params.Validate(); err != nil {
			return "", 0, req, NewInvalidRequestError(err.Error(), err)
		}
		return CollectionKey(req.Params), s.queryTTL, req, nil
	default:
		return "", 0, req, NewInvalidRequestError(fmt.Sprintf("unsupported request kind: %s", req.Kind), nil)
	}
}

// lookup reads key from the store. Misses, corrupt entries and store errors
// all report ok=false.
func (s *Service) lookup(ctx context.Context, key string) (json.RawMessage, bool) {
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	raw, err := s.store.Get(storeCtx, key)
	switch {
	case err == nil:
	case errors.Is(err, kvstore.ErrNotFound):
		return nil, false
	default:
		s.logger.WarnContext(ctx, "Cache read failed, falling back to upstream", "key", key, "error", err)
		return nil, false
	}

	if !json.Valid(raw) {
		s.logger.WarnContext(ctx, "Discarding corrupt cache entry", "key", key, "bytes", len(raw))
		return nil, false
	}
	return json.RawMessage(raw), true
}

func (s *Service) fetch(ctx context.Context, req Request) (json.RawMessage, error) {
	var (
		payload json.RawMessage
		err     error
	)
	switch req.Kind {
	case KindEvent:
		payload, err = s.source.GetEvent(ctx, req.ID)
	default:
		payload, err = s.source.QueryEvents(ctx, req.Params)
	}
	if err == nil {
		return payload, nil
	}

	// The caller went away; there is nobody to report an upstream failure to.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	if req.Kind == KindEvent && errors.Is(err, usgs.ErrNotFound) {
		return nil, NewNotFoundError("Earthquake not found")
	}

	s.logger.ErrorContext(ctx, "Upstream fetch failed", "kind", req.Kind.String(), "error", err)
	return nil, NewUpstreamError("Failed to fetch earthquake data", err)
}

// save stores payload under key. It runs detached from the request's
// cancellation so a payload already fetched is still cached if the client
// disconnects, but remains bounded by the store timeout.
func (s *Service) save(ctx context.Context, key string, payload json.RawMessage, ttl time.Duration) {
	storeCtx, cancel := s.storeContext(context.WithoutCancel(ctx))
	defer cancel()

	if err := s.store.Set(storeCtx, key, payload, ttl); err != nil {
		s.logger.WarnContext(ctx, "Cache write failed", "key", key, "error", err)
	}
}

func (s *Service) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.storeTimeout > 0 {
		return context.WithTimeout(ctx, s.storeTimeout)
	}
	return context.WithCancel(ctx)
}
