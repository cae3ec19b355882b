package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/niraj-rajbhandari/cryptanalyse/internal/health"
	"github.com/niraj-rajbhandari/cryptanalyse/internal/logging"
	"github.com/niraj-rajbhandari/cryptanalyse/internal/metrics"
)

func statusHandler(reg *metrics.Registry, checker *health.Checker) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", reg.HTTPHandler())
	mux.Handle("/healthz", checker.HealthHandler())
	mux.Handle("/livez", checker.LivenessHandler())
	mux.Handle("/readyz", checker.ReadinessHandler())
	return mux
}

// startStatusServer listens on addr and serves the status endpoints in the
// background. The listener is bound before returning so that a busy port is
// reported as an error.
func startStatusServer(addr string, reg *metrics.Registry, checker *health.Checker) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           statusHandler(reg, checker),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go srv.Serve(ln)
	return srv, nil
}

func shutdownStatusServer(srv *http.Server, log *logging.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Warn("status server shutdown", "error", err)
	}
}
