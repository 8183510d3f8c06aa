package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const readHeaderTimeout = 5 * time.Second

// MetricsServer serves a Prometheus registry on /metrics while a workload runs.
type MetricsServer struct {
	server   *http.Server
	listener net.Listener
}

// NewMetricsServer starts serving registry at addr. Use port 0 to pick a free port.
func NewMetricsServer(addr string, registry *prometheus.Registry, logger *slog.Logger) (*MetricsServer, error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", PrometheusHandler(registry))

	var lc net.ListenConfig

	listener, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: readHeaderTimeout}

	go func() {
		serveErr := srv.Serve(listener)
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", "error", serveErr)
		}
	}()

	return &MetricsServer{server: srv, listener: listener}, nil
}

// Addr returns the address the server is listening on.
func (ms *MetricsServer) Addr() string {
	return ms.listener.Addr().String()
}

// Close gracefully shuts down the server.
func (ms *MetricsServer) Close(ctx context.Context) error {
	err := ms.server.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("shutdown metrics server: %w", err)
	}

	return nil
}
