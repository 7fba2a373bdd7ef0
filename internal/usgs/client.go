// Package usgs is a client for the USGS FDSN event web service.
//
// Both operations return the response body verbatim as json.RawMessage after
// checking that it decodes into the expected GeoJSON shape, so callers can
// cache and replay exactly what the service sent.
package usgs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"quakecache/internal/models"
	"quakecache/internal/version"

	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the FDSN event service root.
	DefaultBaseURL = "https://earthquake.usgs.gov/fdsnws/event/1/"

	// maxBodyBytes bounds how much of a response is read. A 20000-event
	// collection is well under this.
	maxBodyBytes = 64 << 20

	// maxErrorBodyBytes bounds the body excerpt kept in a StatusError.
	maxErrorBodyBytes = 512
)

type Client struct {
	http      *http.Client
	baseURL   *url.URL
	userAgent string
	timeout   time.Duration
	limiter   *rate.Limiter // nil means unpaced
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithBaseURL(raw string) Option {
	return func(c *Client) {
		if u, err := url.Parse(raw); err == nil {
			if !strings.HasSuffix(u.Path, "/") {
				u.Path += "/"
			}
			c.baseURL = u
		}
	}
}

// WithTimeout bounds each request, including time spent waiting for the pacer.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithRateLimit paces outbound requests to rps with the given burst.
// A non-positive rps disables pacing.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// New creates a client for the public USGS endpoint unless overridden by opts.
func New(opts ...Option) *Client {
	u, _ := url.Parse(DefaultBaseURL)
	c := &Client{
		http:      http.DefaultClient,
		baseURL:   u,
		userAgent: version.GetInfo().UserAgent(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// NewFromConfig builds a client from the upstream section of the service config.
func NewFromConfig(cfg models.UpstreamConfig, opts ...Option) *Client {
	base := []Option{
		WithBaseURL(cfg.BaseURL),
		WithTimeout(cfg.Timeout),
		WithRateLimit(cfg.RequestsPerSecond, cfg.Burst),
	}
	if cfg.UserAgent != "" {
		base = append(base, WithUserAgent(cfg.UserAgent))
	}
	return New(append(base, opts...)...)
}

// QueryEvents fetches the collection matching params. Absent fields are not sent.
func (c *Client) QueryEvents(ctx context.Context, params models.QueryParams) (json.RawMessage, error) {
	q := url.Values{}
	for _, p := range params.Params() {
		q.Set(p.Name, p.Value)
	}

	body, status, err := c.get(ctx, q)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, statusError(status, body)
	}

	var collection models.EarthquakeCollection
	if err := json.Unmarshal(body, &collection); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if collection.Type != "FeatureCollection" {
		return nil, fmt.Errorf("%w: expected FeatureCollection, got %q", ErrMalformedPayload, collection.Type)
	}

	return json.RawMessage(body), nil
}

// GetEvent fetches a single event by id. It returns ErrNotFound when the
// service reports 404 or 204, or answers with an empty collection.
func (c *Client) GetEvent(ctx context.Context, id string) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("eventid", id)

	body, status, err := c.get(ctx, q)
	if err != nil {
		return nil, err
	}
	switch status {
	case http.StatusOK:
	case http.StatusNotFound, http.StatusNoContent:
		return nil, fmt.Errorf("event %s: %w", id, ErrNotFound)
	default:
		return nil, statusError(status, body)
	}

	var envelope struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	switch envelope.Type {
	case "Feature":
		var quake models.Earthquake
		if err := json.Unmarshal(body, &quake); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		return json.RawMessage(body), nil
	case "FeatureCollection":
		// Some service versions wrap a single lookup in a collection.
		if len(envelope.Features) == 0 {
			return nil, fmt.Errorf("event %s: %w", id, ErrNotFound)
		}
		var quake models.Earthquake
		if err := json.Unmarshal(envelope.Features[0], &quake); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		return envelope.Features[0], nil
	default:
		return nil, fmt.Errorf("%w: unexpected type %q", ErrMalformedPayload, envelope.Type)
	}
}

// get issues GET <base>/query?format=geojson&<q> and returns the body and status.
func (c *Client) get(ctx context.Context, q url.Values) ([]byte, int, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, 0, fmt.Errorf("usgs: waiting for request slot: %w", err)
		}
	}

	u := c.baseURL.ResolveReference(&url.URL{Path: "query"})
	q.Set("format", "geojson")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("usgs: building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("usgs: GET %s: %w", u.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, 0, fmt.Errorf("usgs: reading response: %w", err)
	}
	return bytes.TrimSpace(body), resp.StatusCode, nil
}

func statusError(status int, body []byte) error {
	excerpt := string(body)
	if len(excerpt) > maxErrorBodyBytes {
		excerpt = excerpt[:maxErrorBodyBytes]
	}
	return &StatusError{
		StatusCode: status,
		Status:     fmt.Sprintf("%d %s", status, http.StatusText(status)),
		Body:       strings.TrimSpace(excerpt),
	}
}
