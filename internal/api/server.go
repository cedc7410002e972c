// Package api exposes the HTTP interface for the catalog scraper service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/shelfwise/catalog-scraper/internal/scraper"
)

// ScrapeService triggers scrape runs. Both operations are synchronous and
// long-running; callers apply their own timeout policy.
type ScrapeService interface {
	ScrapeCategories(ctx context.Context) (scraper.RunReport, error)
	ScrapeProducts(ctx context.Context, slug string) (scraper.RunReport, error)
}

// Server wires HTTP handlers to the coordinator and stores.
type Server struct {
	router     chi.Router
	scrapes    ScrapeService
	categories scraper.CategoryStore
	products   scraper.ProductStore
	logger     *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	scrapes ScrapeService,
	categories scraper.CategoryStore,
	products scraper.ProductStore,
	requestTimeout time.Duration,
	logger *zap.Logger,
) *Server {
	s := &Server{
		scrapes:    scrapes,
		categories: categories,
		products:   products,
		logger:     logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(timeoutMiddleware(requestTimeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/scrape/categories", s.scrapeCategories)
		r.Post("/scrape/products/{slug}", s.scrapeProducts)
		r.Get("/categories", s.listCategories)
		r.Get("/products", s.listProducts)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if _, err := s.categories.ListCategories(r.Context()); err != nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "storage unavailable"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) scrapeCategories(w http.ResponseWriter, r *http.Request) {
	// Navigation failures are reported, not raised: the structured report
	// carries the error text either way.
	report, _ := s.scrapes.ScrapeCategories(r.Context())
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) scrapeProducts(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	report, err := s.scrapes.ScrapeProducts(r.Context(), slug)
	if errors.Is(err, scraper.ErrCategoryNotFound) {
		s.writeJSON(w, http.StatusNotFound, report)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.categories.ListCategories(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to list categories")
		return
	}
	if cats == nil {
		cats = []scraper.Category{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"categories": cats})
}

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	q := scraper.ProductQuery{
		CategorySlug: r.URL.Query().Get("category"),
		Search:       r.URL.Query().Get("search"),
		Page:         queryInt(r, "page", 1),
		Limit:        queryInt(r, "limit", 50),
	}
	listing, err := s.products.ListProducts(r.Context(), q)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to list products")
		return
	}
	if listing.Products == nil {
		listing.Products = []scraper.Product{}
	}
	s.writeJSON(w, http.StatusOK, listing)
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	return n
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
