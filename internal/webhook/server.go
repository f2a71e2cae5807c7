package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mattjoyce/wxgate/internal/responder"
)

// Server represents the callback HTTP server.
type Server struct {
	config    Config
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time

	// endpoints maps URL paths to their configurations
	endpoints map[string]*EndpointConfig
}

// New creates a new webhook server instance.
func New(config Config, logger *slog.Logger) *Server {
	endpoints := make(map[string]*EndpointConfig)
	for i := range config.Endpoints {
		ep := &config.Endpoints[i]

		if ep.MaxBodySize == 0 {
			ep.MaxBodySize = DefaultMaxBodySize
		}

		endpoints[ep.Path] = ep
	}

	return &Server{
		config:    config,
		logger:    logger,
		startedAt: time.Now(),
		endpoints: endpoints,
	}
}

// Handler returns the routed handler without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// Start starts the webhook HTTP server (blocking).
func (s *Server) Start(ctx context.Context) error {
	router := s.setupRoutes()

	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("webhook server starting", "listen", s.config.Listen, "endpoints", len(s.endpoints))

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for context cancellation or server error
	select {
	case <-ctx.Done():
		s.logger.Info("webhook server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("webhook server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("webhook server error: %w", err)
	}
}

// setupRoutes configures the HTTP router.
func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get(HealthPath, s.handleHealthz)

	for path := range s.endpoints {
		r.Get(path, s.handleHandshake)
		r.Post(path, s.handleDelivery)
	}

	return r
}

// loggingMiddleware logs HTTP requests (excludes payloads and query strings).
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info("webhook request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
			"remote_addr", r.RemoteAddr,
		)
	})
}

// handleHealthz handles GET /healthz.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	resp := HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		Endpoints:     len(s.endpoints),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

// handleHandshake answers the GET ownership challenge.
func (s *Server) handleHandshake(w http.ResponseWriter, r *http.Request) {
	endpoint, ok := s.endpoints[r.URL.Path]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	q := queryFrom(r)
	q.EchoStr = r.URL.Query().Get(ParamEchoStr)

	res := endpoint.Callback.Verify(q)
	endpoint.Callback.Log(r.Context(), "handshake", res)
	s.writeResult(w, res, "text/plain; charset=utf-8")
}

// handleDelivery handles one POSTed message.
func (s *Server) handleDelivery(w http.ResponseWriter, r *http.Request) {
	endpoint, ok := s.endpoints[r.URL.Path]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	// Enforce body size limit
	body, err := io.ReadAll(io.LimitReader(r.Body, endpoint.MaxBodySize+1))
	if err != nil {
		s.logger.Warn("failed to read request body", "path", r.URL.Path, "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if int64(len(body)) > endpoint.MaxBodySize {
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		return
	}

	res := endpoint.Callback.Respond(r.Context(), queryFrom(r), body)
	endpoint.Callback.Log(r.Context(), "delivery", res)
	s.writeResult(w, res, "application/xml; charset=utf-8")
}

// writeResult maps an outcome to the response. Rejections never carry a body.
func (s *Server) writeResult(w http.ResponseWriter, res responder.Result, contentType string) {
	if res.Outcome != responder.OutcomeReplied || len(res.Body) == 0 {
		w.WriteHeader(res.Outcome.Status())
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(res.Outcome.Status())
	if _, err := w.Write(res.Body); err != nil {
		s.logger.Debug("failed to write response", "error", err)
	}
}

// queryFrom extracts the signing parameters. msg_signature is preferred; the
// bare signature parameter is accepted from older platform versions.
func queryFrom(r *http.Request) responder.Query {
	values := r.URL.Query()
	sig := values.Get(ParamMsgSignature)
	if sig == "" {
		sig = values.Get(ParamLegacySignature)
	}
	return responder.Query{
		Timestamp: values.Get(ParamTimestamp),
		Nonce:     values.Get(ParamNonce),
		Signature: sig,
	}
}
