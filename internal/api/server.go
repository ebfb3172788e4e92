package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/digiy/pulse/internal/audit"
	"github.com/digiy/pulse/internal/auth"
	"github.com/digiy/pulse/internal/metrics"
)

// Options configures the HTTP server.
type Options struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// DefaultMerchant is minted when /mint has no merchantId.
	DefaultMerchant string

	MetricsEnabled bool
	MetricsPath    string

	// MaxBodyBytes caps ingestion bodies. Zero means 1 MiB.
	MaxBodyBytes int64
}

// Server represents the HTTP API server.
type Server struct {
	httpServer     *http.Server
	stream         StreamPort
	minter         MinterPort
	authMiddleware *auth.Middleware
	audit          *audit.Logger
	log            logrus.FieldLogger
	opts           Options
}

// NewServer creates a new API server. auditLog may be nil.
func NewServer(stream StreamPort, minter MinterPort, authMiddleware *auth.Middleware, auditLog *audit.Logger, log logrus.FieldLogger, opts Options) *Server {
	if opts.DefaultMerchant == "" {
		opts.DefaultMerchant = "default-merchant"
	}
	if opts.MetricsPath == "" {
		opts.MetricsPath = "/metrics"
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 30 * time.Second
	}

	s := &Server{
		stream:         stream,
		minter:         minter,
		authMiddleware: authMiddleware,
		audit:          auditLog,
		log:            log,
		opts:           opts,
	}
	authMiddleware.OnReject(s.onAuthReject)

	s.httpServer = &http.Server{
		Addr:         opts.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		IdleTimeout:  opts.IdleTimeout,
	}
	return s
}

// Handler returns the full handler chain: recovery, request logging, CORS
// and routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return s.recoverer(s.requestLogger(cors(mux)))
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Serve accepts connections on l and blocks until the server stops.
func (s *Server) Serve(l net.Listener) error {
	if err := s.httpServer.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve HTTP: %w", err)
	}
	return nil
}

// Stop gracefully stops the HTTP server. Long-lived streams must be ended
// first (stream.Engine.Close) or Shutdown waits for them until the timeout.
func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, s.opts.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}

func (s *Server) onAuthReject(r *http.Request, code string, err error) {
	s.log.WithFields(logrus.Fields{
		"path":          r.URL.Path,
		"code":          code,
		"correlationId": r.Header.Get(CorrelationHeader),
	}).WithError(err).Warn("api: request rejected")

	switch {
	case r.URL.Path == "/ingest/tx":
		metrics.IngestRejected.WithLabelValues(code).Inc()
		s.audit.LogIngest(r.Context(), "", sourceHTTP, nil, err)
	case r.URL.Path == "/mint":
		s.audit.LogMint(r.Context(), r.URL.Query().Get("merchantId"), sourceHTTP, err)
	case strings.HasPrefix(r.URL.Path, "/events"):
		metrics.ConnectionsTotal.WithLabelValues(transportOf(r), "rejected").Inc()
	}
}
