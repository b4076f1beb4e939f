// Package server exposes the aggregators over HTTP.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"plk-instructions/pkg/aggregate"
)

// Config wires the server dependencies
type Config struct {
	Aggregator  *aggregate.Aggregator
	DefaultURLs []string
	// AllowedPrefixes lists URL prefixes a request may name in ?url= besides
	// the defaults. Scheme and host must match exactly.
	AllowedPrefixes []string
	// FetchTimeout bounds the aggregation of one request; zero means none
	FetchTimeout time.Duration
	FilesDir     string              // served under /files/ when set
	Gatherer     prometheus.Gatherer // served under /metrics when set
	Logger       *zap.Logger
}

// Server is the HTTP API
type Server struct {
	router      *chi.Mux
	logger      *zap.Logger
	aggregator  *aggregate.Aggregator
	defaultURLs []string
	allowed     []*url.URL
	timeout     time.Duration
	filesDir    string
	gatherer    prometheus.Gatherer
}

// New creates the server and its routes
func New(cfg Config) *Server {
	if cfg.Aggregator == nil {
		cfg.Aggregator = aggregate.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	s := &Server{
		router:      chi.NewRouter(),
		logger:      cfg.Logger.Named("api"),
		aggregator:  cfg.Aggregator,
		defaultURLs: cfg.DefaultURLs,
		timeout:     cfg.FetchTimeout,
		filesDir:    cfg.FilesDir,
		gatherer:    cfg.Gatherer,
	}

	for _, prefix := range cfg.AllowedPrefixes {
		u, err := url.Parse(prefix)
		if err != nil || u.Scheme == "" || u.Host == "" {
			s.logger.Warn("API: ignoring invalid allowed prefix", zap.String("prefix", prefix))
			continue
		}
		s.allowed = append(s.allowed, u)
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/instructions", s.handleInstructions)
		r.Get("/stats", s.handleStats)
		r.Get("/results", s.handleResults)
	})

	if s.filesDir != "" {
		fs := http.StripPrefix("/files/", http.FileServer(http.Dir(s.filesDir)))
		r.Get("/files/*", fs.ServeHTTP)
	}

	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
}

// ServeHTTP makes Server an http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleInstructions(w http.ResponseWriter, r *http.Request) {
	s.runAggregation(w, r, func(ctx context.Context, urls []string) any {
		return s.aggregator.Instructions(ctx, urls)
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.runAggregation(w, r, func(ctx context.Context, urls []string) any {
		return s.aggregator.Stats(ctx, urls)
	})
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	s.runAggregation(w, r, func(ctx context.Context, urls []string) any {
		return s.aggregator.FetchAll(ctx, urls)
	})
}

// runAggregation resolves the request URLs and runs fn under the fetch timeout
func (s *Server) runAggregation(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, urls []string) any) {
	urls, err := s.requestURLs(r)
	if err != nil {
		s.logger.Warn("API: rejected url", zap.Error(err))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	writeJSON(w, fn(ctx, urls))
}

// requestURLs returns the url query parameters in order, or the defaults when
// there are none. Every parameter must be a default URL or fall under an
// allowed prefix.
func (s *Server) requestURLs(r *http.Request) ([]string, error) {
	urls := r.URL.Query()["url"]
	if len(urls) == 0 {
		return s.defaultURLs, nil
	}
	for _, u := range urls {
		if !s.isAllowed(u) {
			return nil, fmt.Errorf("url not allowed: %s", u)
		}
	}
	return urls, nil
}

func (s *Server) isAllowed(raw string) bool {
	for _, d := range s.defaultURLs {
		if raw == d {
			return true
		}
	}

	u, err := url.Parse(raw)
	if err != nil || u.User != nil || strings.Contains(u.Path, "..") {
		return false
	}
	for _, prefix := range s.allowed {
		if strings.EqualFold(u.Scheme, prefix.Scheme) &&
			strings.EqualFold(u.Host, prefix.Host) &&
			strings.HasPrefix(u.Path, prefix.Path) {
			return true
		}
	}
	return false
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		s.logger.Info("API: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
