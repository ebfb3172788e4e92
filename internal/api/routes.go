package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/digiy/pulse/internal/auth"
	"github.com/digiy/pulse/internal/event"
	"github.com/digiy/pulse/internal/metrics"
	"github.com/digiy/pulse/internal/stream"
)

const (
	sourceHTTP = "http"

	transportSSE = "sse"
	transportWS  = "ws"
)

// RootMessage is the liveness text served at "/".
const RootMessage = "DIGIY Pulse API OK 🚀"

// RegisterRoutes registers all endpoints on mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/{$}", allow(s.handleRoot, http.MethodGet))

	// Merchant streams and stats authenticate with ?token=
	mux.HandleFunc("/events", allow(s.authMiddleware.RequireQueryToken(s.handleEvents), http.MethodGet))
	mux.HandleFunc("/events/ws", allow(s.authMiddleware.RequireQueryToken(s.handleEventsWS), http.MethodGet))
	mux.HandleFunc("/stats/today", allow(s.authMiddleware.RequireQueryToken(s.handleStats), http.MethodGet))

	// Ingestion authenticates with a Bearer header
	mux.HandleFunc("/ingest/tx", allow(s.authMiddleware.RequireBearer(s.handleIngest), http.MethodPost))

	// Admin
	mux.HandleFunc("/mint", allow(s.authMiddleware.RequireAdmin(s.handleMint), http.MethodGet))

	if s.opts.MetricsEnabled {
		mux.Handle(s.opts.MetricsPath, promhttp.Handler())
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, CodeNotFound)
	})
}

// allow rejects methods other than the given ones with 405.
func allow(next http.HandlerFunc, methods ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for _, m := range methods {
			if r.Method == m {
				next(w, r)
				return
			}
		}
		w.Header().Set("Allow", methods[0])
		writeError(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed)
	}
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(RootMessage))
}

// handleIngest handles POST /ingest/tx
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	merchantID := auth.MerchantID(r)
	ctx := stream.WithSource(r.Context(), sourceHTTP)

	payload, err := event.DecodePayload(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes))
	if err != nil {
		status, code := ToAPIError(err)
		metrics.IngestRejected.WithLabelValues(code).Inc()
		s.audit.LogIngest(ctx, merchantID, sourceHTTP, nil, err)
		writeError(w, status, code)
		return
	}

	evt, err := s.stream.Ingest(ctx, merchantID, payload)
	s.audit.LogIngest(ctx, merchantID, sourceHTTP, map[string]interface{}(payload), err)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"merchantId":    merchantID,
			"correlationId": r.Header.Get(CorrelationHeader),
		}).WithError(err).Info("api: ingest rejected")
		writeAPIError(w, err)
		return
	}

	s.log.WithFields(logrus.Fields{
		"merchantId": merchantID,
		"event":      evt.ID,
		"amount":     evt.Amount,
	}).Debug("api: transaction ingested")
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

// handleStats handles GET /stats/today
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := s.stream.Stats(auth.MerchantID(r))
	writeJSON(w, http.StatusOK, statsResponse{
		OK:  true,
		CA:  stats.CA,
		TX:  stats.TX,
		AOV: stats.AOV,
	})
}

// handleMint handles GET /mint
func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	merchantID := r.URL.Query().Get("merchantId")
	if merchantID == "" {
		merchantID = s.opts.DefaultMerchant
	}

	token, claims, err := s.minter.Mint(merchantID)
	s.audit.LogMint(r.Context(), merchantID, sourceHTTP, err)
	if err != nil {
		s.log.WithError(err).WithField("merchantId", merchantID).Error("api: mint failed")
		writeAPIError(w, err)
		return
	}

	metrics.TokensMinted.Inc()
	s.log.WithFields(logrus.Fields{
		"merchantId": merchantID,
		"expiresAt":  claims.ExpiresAt.Format(time.RFC3339),
	}).Info("api: credential minted")
	writeJSON(w, http.StatusOK, mintResponse{OK: true, Token: token})
}

// handleEvents handles GET /events (SSE)
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	merchantID := auth.MerchantID(r)
	if s.rejectClosed(w, r, transportSSE, merchantID) {
		return
	}
	err := s.stream.Serve(r.Context(), merchantID, stream.NewSSEWriter(w))
	s.endStream(r, transportSSE, merchantID, err)
}

// handleEventsWS handles GET /events/ws
func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	merchantID := auth.MerchantID(r)
	if s.rejectClosed(w, r, transportWS, merchantID) {
		return
	}

	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Any origin, like the CORS policy.
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		// Accept has already written the HTTP error.
		s.endStream(r, transportWS, merchantID, err)
		return
	}

	// CloseRead keeps reading control frames so pings are answered; the
	// returned context ends when the peer goes away.
	ctx := conn.CloseRead(r.Context())
	err = s.stream.Serve(ctx, merchantID, stream.NewWSWriter(conn))
	s.endStream(r, transportWS, merchantID, err)

	switch {
	case errors.Is(err, stream.ErrEngineClosed):
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
	case err != nil:
		_ = conn.Close(websocket.StatusInternalError, "stream error")
	default:
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}
}

// rejectClosed answers 503 before any stream headers are sent once the
// engine has stopped.
func (s *Server) rejectClosed(w http.ResponseWriter, r *http.Request, transport, merchantID string) bool {
	if !s.stream.Closed() {
		return false
	}
	s.endStream(r, transport, merchantID, stream.ErrEngineClosed)
	writeAPIError(w, stream.ErrEngineClosed)
	return true
}

// endStream records the outcome of a stream connection.
func (s *Server) endStream(r *http.Request, transport, merchantID string, err error) {
	log := s.log.WithFields(logrus.Fields{
		"merchantId":    merchantID,
		"transport":     transport,
		"correlationId": r.Header.Get(CorrelationHeader),
	})

	if err == nil || errors.Is(err, context.Canceled) {
		metrics.ConnectionsTotal.WithLabelValues(transport, "closed").Inc()
		log.Debug("api: stream closed")
		return
	}

	metrics.ConnectionsTotal.WithLabelValues(transport, "error").Inc()
	log.WithError(err).Info("api: stream ended with error")
}

func transportOf(r *http.Request) string {
	if r.URL.Path == "/events/ws" {
		return transportWS
	}
	return transportSSE
}
