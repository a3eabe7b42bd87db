package observability

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// MetricsServer exposes the Prometheus scrape endpoint on its own port so the
// loan API's rate limiter never sees scrape traffic.
type MetricsServer struct {
	server *http.Server
	path   string
}

// NewMetricsServer serves provider's metrics at path. A provider with metrics
// disabled yields a server that answers 404 everywhere.
func NewMetricsServer(port int, path string, provider *Provider) *MetricsServer {
	mux := http.NewServeMux()
	if provider != nil {
		if h := provider.MetricsHandler(); h != nil {
			mux.Handle(path, h)
		}
	}

	return &MetricsServer{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		path: path,
	}
}

// Start blocks serving scrapes. It returns http.ErrServerClosed after Shutdown.
func (ms *MetricsServer) Start() error {
	slog.Info(fmt.Sprintf("Metrics available at http://localhost%s%s", ms.server.Addr, ms.path))
	return ms.server.ListenAndServe()
}

func (ms *MetricsServer) Shutdown(ctx context.Context) error {
	return ms.server.Shutdown(ctx)
}
