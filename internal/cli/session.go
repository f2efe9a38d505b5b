package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/gqlbridge/internal/config"
	"github.com/roach88/gqlbridge/internal/engine"
	"github.com/roach88/gqlbridge/internal/logging"
	"github.com/roach88/gqlbridge/internal/metrics"
	"github.com/roach88/gqlbridge/internal/store"
)

// session is a configured engine plus the resources backing it.
type session struct {
	cfg     *config.Config
	engine  *engine.Engine
	logger  *slog.Logger
	metrics *http.Server
}

// openSession loads configuration and builds an engine against the
// configured store. Diagnostics go to stderr.
func openSession(opts *RootOptions, stderr io.Writer) (*session, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Verbose {
		cfg.Log.Level = "DEBUG"
	}
	logger := logging.New(cfg.Log, stderr)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	client := store.NewClient(cfg.ClientConfig(), store.WithObserver(m))

	s := &session{
		cfg:    cfg,
		engine: engine.New(client, engine.WithLogger(logger), engine.WithMetrics(m)),
		logger: logger,
	}
	if cfg.Metrics.Addr != "" {
		if err := s.serveMetrics(cfg.Metrics.Addr, reg); err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to start metrics endpoint", err)
		}
	}
	logger.Debug("session opened",
		"base_url", cfg.Store.BaseURL,
		"project_id", cfg.Store.ProjectID,
		"metrics_addr", cfg.Metrics.Addr,
	)
	return s, nil
}

func (s *session) serveMetrics(addr string, reg *prometheus.Registry) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	s.metrics = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := s.metrics.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics endpoint stopped", "error", err)
		}
	}()
	s.logger.Info("metrics endpoint listening", "addr", ln.Addr().String())
	return nil
}

// Close stops the metrics endpoint, if any.
func (s *session) Close() {
	if s.metrics == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.metrics.Shutdown(ctx); err != nil {
		s.logger.Warn("metrics endpoint shutdown", "error", err)
	}
}
