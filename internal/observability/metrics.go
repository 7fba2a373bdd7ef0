package observability

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// MetricsServer exposes the scrape endpoint on its own port so that it is
// never behind the public middleware chain or the rate limiter.
type MetricsServer struct {
	server *http.Server
}

// NewMetricsServer mounts provider's handler at path. With a nil or disabled
// provider every path answers 404.
func NewMetricsServer(port int, path string, provider *Provider) *MetricsServer {
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	if provider != nil && provider.registry != nil {
		mux.Handle(path, provider.Handler())
	}

	return &MetricsServer{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

func (ms *MetricsServer) Addr() string {
	return ms.server.Addr
}

// Start blocks until the server stops. It returns http.ErrServerClosed after Shutdown.
func (ms *MetricsServer) Start() error {
	slog.Info("Starting metrics server", "addr", ms.server.Addr)
	return ms.server.ListenAndServe()
}

func (ms *MetricsServer) Shutdown(ctx context.Context) error {
	return ms.server.Shutdown(ctx)
}
