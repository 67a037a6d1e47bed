// Package server exposes the orchestrator over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pario-ai/conduit/pkg/apierror"
	"github.com/pario-ai/conduit/pkg/config"
	"github.com/pario-ai/conduit/pkg/logging"
	"github.com/pario-ai/conduit/pkg/metrics"
	"github.com/pario-ai/conduit/pkg/orchestrator"
)

const (
	maxRequestBytes = 10 << 20
	shutdownTimeout = 5 * time.Second
)

// Server is the conduit HTTP front.
type Server struct {
	cfg     *config.Config
	manager *orchestrator.Manager
	metrics *metrics.Collector
	logger  *zap.Logger
	mux     *http.ServeMux
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = logging.OrNop(l) }
}

// WithMetrics serves c on GET /metrics.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Server) { s.metrics = c }
}

// New creates a Server that forwards calls to m.
func New(cfg *config.Config, m *orchestrator.Manager, opts ...Option) *Server {
	s := &Server{
		cfg:     cfg,
		manager: m,
		logger:  zap.NewNop(),
		mux:     http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mux.HandleFunc("POST /v1/call/{operation}", s.handleCall)
	s.mux.HandleFunc("DELETE /v1/cache", s.handleInvalidate)
	s.mux.HandleFunc("GET /v1/cache/stats", s.handleCacheStats)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}
	return s
}

// ServeHTTP implements http.Handler. Every request carries an X-Request-ID,
// generated when the client did not send one.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get("X-Request-ID")
	if id == "" {
		id = uuid.NewString()
	}
	w.Header().Set("X-Request-ID", id)
	s.mux.ServeHTTP(w, r.WithContext(orchestrator.WithRequestID(r.Context(), id)))
}

// ListenAndServe starts the server with graceful shutdown support.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("conduit listening", zap.String("addr", s.cfg.Listen))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		return err
	}
}

// callRequest is the body of POST /v1/call/{operation}. Without providers the
// operation's configured route is used.
type callRequest struct {
	Providers []string        `json:"providers,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

type callResponse struct {
	Value    json.RawMessage `json:"value"`
	Provider string          `json:"provider,omitempty"`
	Cached   bool            `json:"cached"`
	Shared   bool            `json:"shared"`
}

func (s *Server) handleCall(w http.ResponseWriter, r *http.Request) {
	operation := r.PathValue("operation")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes+1))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if len(body) > maxRequestBytes {
		writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	var req callRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	var res orchestrator.Result
	if len(req.Providers) > 0 {
		res, err = s.manager.Call(r.Context(), operation, req.Providers, req.Payload)
	} else {
		res, err = s.manager.CallOperation(r.Context(), operation, req.Payload)
	}
	if err != nil {
		writeJSONError(w, statusFor(err), err.Error())
		return
	}

	switch {
	case res.Cached:
		w.Header().Set("X-Conduit-Cache", "hit")
	case res.Shared:
		w.Header().Set("X-Conduit-Cache", "shared")
	default:
		w.Header().Set("X-Conduit-Cache", "miss")
	}
	if res.Provider != "" {
		w.Header().Set("X-Conduit-Provider", res.Provider)
	}
	writeJSON(w, http.StatusOK, callResponse{
		Value:    res.Value,
		Provider: res.Provider,
		Cached:   res.Cached,
		Shared:   res.Shared,
	})
}

func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	removed := s.manager.Invalidate(prefix)
	s.logger.Info("cache invalidated", zap.String("prefix", prefix), zap.Int("removed", removed))
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.CacheStats())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusFor maps a call error to an HTTP status. For an exhausted chain the
// last provider's failure decides.
func statusFor(err error) int {
	if errors.Is(err, orchestrator.ErrInvalidCall) {
		return http.StatusBadRequest
	}
	var ex *apierror.ExhaustedError
	if errors.As(err, &ex) && ex.Last() != nil {
		err = ex.Last()
	}
	switch apierror.KindOf(err) {
	case apierror.KindRateLimitExceeded:
		return http.StatusTooManyRequests
	case apierror.KindTimeout:
		return http.StatusGatewayTimeout
	case apierror.KindHTTPStatus:
		if code := apierror.StatusCode(err); code >= 400 && code < 500 {
			return code
		}
	}
	return http.StatusBadGateway
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprintf(w, `{"error":{"message":%q,"type":"conduit_error","code":%d}}`, message, code)
}
