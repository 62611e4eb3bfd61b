package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const readHeaderTimeout = 5 * time.Second

// OpsServer serves /metrics and the health probes. Once ctx is cancelled readiness reports
// draining, then the listener is shut down within the grace period.
type OpsServer struct {
	srv    *http.Server
	probes *Probes
	grace  time.Duration
	log    *slog.Logger
}

// NewOpsServer routes metrics and probes on addr. wrap, when set, decorates the routed handler
// (access logging, correlation ids).
func NewOpsServer(addr string, probes *Probes, wrap func(http.Handler) http.Handler, grace time.Duration, log *slog.Logger) *OpsServer {
	if log == nil {
		log = slog.Default()
	}
	if grace <= 0 {
		grace = 10 * time.Second
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	probes.Register(mux)

	var handler http.Handler = mux
	if wrap != nil {
		handler = wrap(mux)
	}

	return &OpsServer{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: readHeaderTimeout,
		},
		probes: probes,
		grace:  grace,
		log:    log,
	}
}

// Handler returns the routed handler.
func (s *OpsServer) Handler() http.Handler {
	return s.srv.Handler
}

// Run serves until ctx is cancelled or the listener fails.
func (s *OpsServer) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("ops server listening", slog.String("addr", s.srv.Addr))
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		s.probes.Drain()
		return fmt.Errorf("ops server: %w", err)
	case <-ctx.Done():
	}

	s.probes.Drain()
	s.log.Info("draining ops server", slog.Duration("timeout", s.grace))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.grace)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		s.log.Error("ops server shutdown failed", slog.Any("error", err))
		return fmt.Errorf("shutdown ops server: %w", err)
	}
	return nil
}
