package observability

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ajitpratap0/zfits/pkg/errors"
	"github.com/ajitpratap0/zfits/pkg/logger"
)

// MetricsHandler serves the collectors of the default registry.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{})
}

// MetricsServer exposes /metrics over HTTP.
type MetricsServer struct {
	server   *http.Server
	listener net.Listener
	logger   *zap.Logger
	done     chan error
}

// StartMetricsServer listens on addr and serves /metrics in the background.
func StartMetricsServer(addr string, log *zap.Logger) (*MetricsServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to listen for metrics").WithDetail("addr", addr)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", MetricsHandler())

	s := &MetricsServer{
		server:   &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		listener: ln,
		logger:   logger.OrDefault(log, "metrics"),
		done:     make(chan error, 1),
	}
	go func() {
		err := s.server.Serve(ln)
		if err == http.ErrServerClosed {
			err = nil
		}
		s.done <- err
	}()

	s.logger.Info("serving metrics", zap.String("addr", s.Addr()))
	return s, nil
}

// Addr returns the address the server listens on.
func (s *MetricsServer) Addr() string {
	return s.listener.Addr().String()
}

// Shutdown stops the server, waiting for in-flight scrapes until ctx ends.
func (s *MetricsServer) Shutdown(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to stop metrics server")
	}
	return <-s.done
}
