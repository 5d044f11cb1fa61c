// Package server exposes the query pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/poiesic/insight/core"
	"github.com/poiesic/insight/metrics"
)

// QueryService answers analysis queries. *rag.Pipeline satisfies it.
type QueryService interface {
	Run(ctx context.Context, query string, k int) (string, error)
	Retrieve(ctx context.Context, query string, k int) ([]core.SearchResult, error)
}

// IndexStats reports the size of the served index for /healthz.
type IndexStats interface {
	Len() int
	Dimension() int
}

// QueryRequest is the body of POST /v1/query.
type QueryRequest struct {
	Query string `json:"query"`
	K     *int   `json:"k,omitempty"`
}

// QueryResponse is returned by POST /v1/query.
type QueryResponse struct {
	ID       string `json:"id"`
	Query    string `json:"query"`
	Response string `json:"response"`
}

// Hit is one retrieved profile.
type Hit struct {
	CustomerID string      `json:"customer_id"`
	Score      float32     `json:"score"`
	Summary    string      `json:"summary"`
	Record     core.Record `json:"record"`
}

// SearchResponse is returned by GET /v1/search.
type SearchResponse struct {
	Query string `json:"query"`
	Hits  []Hit  `json:"hits"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Server routes HTTP requests to a QueryService.
type Server struct {
	queries  QueryService
	stats    IndexStats
	gatherer prometheus.Gatherer
	defaultK int
	logger   *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger.With("component", "http")
	}
}

// WithIndexStats reports index size on /healthz.
func WithIndexStats(stats IndexStats) Option {
	return func(s *Server) {
		s.stats = stats
	}
}

// WithDefaultK sets k for requests that omit it. Default is 3.
func WithDefaultK(k int) Option {
	return func(s *Server) {
		s.defaultK = k
	}
}

// WithGatherer sets the registry served on /metrics.
// Default is prometheus.DefaultGatherer.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// New creates a Server.
func New(queries QueryService, opts ...Option) *Server {
	s := &Server{
		queries:  queries,
		gatherer: prometheus.DefaultGatherer,
		defaultK: 3,
		logger:   slog.Default().With("component", "http"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the chi router with every route mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware())

	r.Get("/healthz", s.health)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/query", s.query)
		r.Get("/search", s.search)
	})
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully within shutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string, readTimeout, writeTimeout, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"status": "ok"}
	if s.stats != nil {
		body["entries"] = s.stats.Len()
		body["dimension"] = s.stats.Dimension()
	}
	writeJSON(w, http.StatusOK, body)
}

// query handles POST /v1/query.
func (s *Server) query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}

	k := s.defaultK
	if req.K != nil {
		k = *req.K
	}

	response, err := s.queries.Run(r.Context(), req.Query, k)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, QueryResponse{
		ID:       middleware.GetReqID(r.Context()),
		Query:    req.Query,
		Response: response,
	})
}

// search handles GET /v1/search?q=&k=.
func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")

	k := s.defaultK
	if raw := r.URL.Query().Get("k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "k must be an integer")
			return
		}
		k = parsed
	}

	results, err := s.queries.Retrieve(r.Context(), q, k)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	hits := make([]Hit, len(results))
	for i, res := range results {
		hits[i] = Hit{
			CustomerID: res.Record.CustomerID,
			Score:      res.Score,
			Summary:    res.Record.Summary,
			Record:     res.Record,
		}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Query: q, Hits: hits})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrQuery), errors.Is(err, core.ErrConfig):
		s.logger.Info("rejected query", "err", err)
		writeError(w, http.StatusBadRequest, "invalid_query", err.Error())
	case errors.Is(err, core.ErrRetrieval):
		s.logger.Warn("retrieval failed", "err", err)
		writeError(w, http.StatusBadGateway, "retrieval_failed", core.ErrRetrieval.Error())
	case errors.Is(err, core.ErrGeneration):
		s.logger.Warn("generation failed", "err", err)
		writeError(w, http.StatusBadGateway, "generation_failed", core.ErrGeneration.Error())
	case errors.Is(err, context.DeadlineExceeded):
		s.logger.Warn("query timed out", "err", err)
		writeError(w, http.StatusGatewayTimeout, "timeout", "query timed out")
	default:
		s.logger.Error("query failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
