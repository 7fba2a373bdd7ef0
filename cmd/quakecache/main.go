package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quakecache/internal/api"
	"quakecache/internal/config"
	"quakecache/internal/gateway"
	"quakecache/internal/kvstore"
	"quakecache/internal/logger"
	"quakecache/internal/observability"
	"quakecache/internal/ratelimit"
	"quakecache/internal/usgs"
	"quakecache/internal/version"
)

var (
	configFile    = flag.String("config", "", "Path to configuration file")
	exampleConfig = flag.String("write-example-config", "", "Write an example configuration to this path and exit")
	showVersion   = flag.Bool("version", false, "Print version information and exit")
)

func main() {
	flag.Parse()

	ver := version.GetInfo()
	if *showVersion {
		fmt.Println(ver.String())
		return
	}
	if *exampleConfig != "" {
		if err := config.SaveExample(*exampleConfig); err != nil {
			slog.Error("Failed to write example configuration", "error", err)
			os.Exit(1)
		}
		return
	}

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize structured logging
	log, closer, err := logger.Setup(cfg.Logging, cfg.Observability.ServiceName, ver)
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	if closer != nil {
		defer closer.Close()
	}
	slog.SetDefault(log)

	// Initialize observability (OpenTelemetry)
	otelProvider, err := observability.Setup(cfg.Metrics, cfg.Observability, ver)
	if err != nil {
		slog.Error("Failed to initialize observability", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otelProvider.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shutdown observability", "error", err)
		}
	}()

	// Initialize the shared key-value store
	initCtx, cancelInit := context.WithTimeout(context.Background(), 30*time.Second)
	baseStore, err := kvstore.NewFactory().CreateOrDefer(initCtx, cfg.Store)
	cancelInit()
	if err != nil {
		slog.Error("Failed to initialize store", "type", cfg.Store.Type, "error", err)
		os.Exit(1)
	}
	defer baseStore.Close()
	slog.Info("Store initialized", "type", cfg.Store.Type)

	// Wrap the store, upstream and limiter with instrumentation if metrics are enabled
	var store kvstore.Store = baseStore
	var source gateway.Source = usgs.NewFromConfig(cfg.Upstream)
	gatewayOpts := []gateway.Option{gateway.WithLogger(log)}
	if cfg.Metrics.Enabled {
		instrumentedStore, err := observability.NewInstrumentedStore(baseStore)
		if err != nil {
			slog.Error("Failed to create instrumented store", "error", err)
			os.Exit(1)
		}
		store = instrumentedStore

		instrumentedSource, err := observability.NewInstrumentedSource(source)
		if err != nil {
			slog.Error("Failed to create instrumented upstream client", "error", err)
			os.Exit(1)
		}
		source = instrumentedSource

		recorder, err := observability.NewGatewayMetrics()
		if err != nil {
			slog.Error("Failed to create gateway metrics", "error", err)
			os.Exit(1)
		}
		gatewayOpts = append(gatewayOpts, gateway.WithRecorder(recorder))
	}

	// Initialize the cache gateway
	service := gateway.NewServiceFromConfig(store, source, cfg.Cache, gatewayOpts...)

	handlers := api.NewHandlers(service,
		api.WithStore(store),
		api.WithVersion(ver),
	)

	// Setup routes with middleware
	routeOpts := []api.RouteOption{}
	if cfg.Observability.Tracing.Enabled {
		routeOpts = append(routeOpts, api.WithOTelMiddleware(cfg.Observability.ServiceName))
	}

	// Initialize rate limiter if enabled
	if cfg.RateLimit.Enabled {
		rlCfg := cfg.RateLimit
		var limiter ratelimit.Limiter = ratelimit.NewFixedWindowLimiter(store, rlCfg.Requests, rlCfg.Window,
			ratelimit.WithStoreTimeout(rlCfg.StoreTimeout),
			ratelimit.WithLogger(log),
		)
		if cfg.Metrics.Enabled {
			instrumented, err := observability.NewInstrumentedLimiter(limiter)
			if err != nil {
				slog.Error("Failed to create instrumented rate limiter", "error", err)
				os.Exit(1)
			}
			limiter = instrumented
		}
		routeOpts = append(routeOpts, api.WithRateLimiter(ratelimit.Middleware(limiter, rlCfg.Window)))
		slog.Info("Rate limiting enabled", "requests", rlCfg.Requests, "window", rlCfg.Window)
	}

	router := api.SetupRoutes(handlers, cfg, routeOpts...)

	// Start metrics server if enabled
	var metricsServer *observability.MetricsServer
	if cfg.Metrics.Enabled {
		metricsServer = observability.NewMetricsServer(cfg.Metrics.Port, cfg.Metrics.Path, otelProvider)
		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("Starting server", "addr", server.Addr, "upstream", cfg.Upstream.BaseURL)

		var err error
		if cfg.Server.TLSEnabled {
			if cfg.Server.TLSCertFile == "" || cfg.Server.TLSKeyFile == "" {
				slog.Error("TLS is enabled but cert file or key file is not specified")
				os.Exit(1)
			}
			slog.Info("Starting HTTPS server with TLS")
			err = server.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			slog.Info("Starting HTTP server")
			err = server.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			slog.Error("Metrics server forced to shutdown", "error", err)
		}
	}

	// In-flight cache writes run detached from their requests and are bounded
	// by the store timeout, so the store is closed only after the server drains.
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server shutdown complete")
}
