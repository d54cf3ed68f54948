// Package server exposes the crawl pipeline over HTTP: a JSON search
// endpoint with cache-aside semantics, a server-sent-events stream, and
// a platform listing.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"bookrate/internal/cache"
	"bookrate/internal/crawl"
	"bookrate/internal/model"
	"bookrate/internal/platform"
)

// Searcher is the crawl capability the server is built over.
type Searcher interface {
	Search(ctx context.Context, query string, platforms []string) *model.SearchAggregate
	SearchStream(ctx context.Context, query string, platforms []string) <-chan crawl.Event
}

// Server holds the HTTP handler state.
type Server struct {
	searcher Searcher
}

// New creates a server over the given searcher.
func New(searcher Searcher) *Server {
	return &Server{searcher: searcher}
}

// Routes builds the chi router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/search", s.handleSearch)
		r.Post("/search", s.handleSearch)
		r.Get("/search/stream", s.handleSearchStream)
		r.Get("/platforms", s.handlePlatforms)
	})
	return r
}

// ListenAndServe runs the server until the context is cancelled, then
// shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.ListenAndServe() }()
	slog.Info("Server listening", "addr", addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

type searchRequest struct {
	Query     string   `json:"query"`
	Platforms []string `json:"platforms"`
}

// platformRating is a PlatformOutcome with the normalized rating
// rendered alongside the raw one.
type platformRating struct {
	model.PlatformOutcome
	NormalizedRating *float64 `json:"normalized_rating"`
}

type searchSummary struct {
	Query         string   `json:"query"`
	AvgRating     *float64 `json:"avg_rating"`
	TotalReviews  int      `json:"total_reviews"`
	PlatformCount int      `json:"platform_count"`
}

type searchResponse struct {
	Source  string           `json:"source"`
	Search  searchSummary    `json:"search"`
	Ratings []platformRating `json:"ratings"`
}

func buildSearchResponse(source string, aggregate *model.SearchAggregate) *searchResponse {
	ratings := make([]platformRating, 0, len(aggregate.Outcomes))
	for i := range aggregate.Outcomes {
		outcome := aggregate.Outcomes[i]
		ratings = append(ratings, platformRating{
			PlatformOutcome:  outcome,
			NormalizedRating: outcome.NormalizedRating(),
		})
	}
	return &searchResponse{
		Source: source,
		Search: searchSummary{
			Query:         aggregate.Query,
			AvgRating:     aggregate.MeanRating(),
			TotalReviews:  aggregate.TotalReviews(),
			PlatformCount: len(aggregate.Outcomes),
		},
		Ratings: ratings,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "bookrate"})
}

// handleSearch serves /api/search with cache-aside: a fresh cached
// aggregate for the same normalized query and platform set is returned
// without crawling. GET takes q/platforms query parameters, POST a JSON
// body.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if r.Method == http.MethodGet {
		req.Query = r.URL.Query().Get("q")
		if raw := r.URL.Query().Get("platforms"); raw != "" {
			req.Platforms = strings.Split(raw, ",")
		}
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	selected := platform.Filter(req.Platforms)
	key := cache.NormalizeKey(query, strings.Join(platform.Canonical(selected), ","))

	aggregate, hit, err := cache.GetOrFetch(cache.SearchTable, key, func() (*model.SearchAggregate, error) {
		return s.searcher.Search(r.Context(), query, selected), nil
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	source := "crawl"
	if hit {
		source = "cache"
	}
	writeJSON(w, http.StatusOK, buildSearchResponse(source, aggregate))
}

// handleSearchStream serves GET /api/search/stream as server-sent
// events: one "result" event per platform in completion order, then a
// terminal "done" event.
func (s *Server) handleSearchStream(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	var platforms []string
	if raw := r.URL.Query().Get("platforms"); raw != "" {
		platforms = strings.Split(raw, ",")
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for event := range s.searcher.SearchStream(r.Context(), query, platforms) {
		name := "result"
		var payload any
		switch {
		case event.Outcome != nil:
			payload = platformRating{
				PlatformOutcome:  *event.Outcome,
				NormalizedRating: event.Outcome.NormalizedRating(),
			}
		case event.Done != nil:
			name = "done"
			payload = event.Done
		default:
			continue
		}

		data, err := json.Marshal(payload)
		if err != nil {
			slog.Warn("Failed to marshal stream event", "error", err)
			continue
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
		flusher.Flush()
	}
}

type platformInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

func (s *Server) handlePlatforms(w http.ResponseWriter, _ *http.Request) {
	infos := make([]platformInfo, 0)
	for _, name := range platform.Names() {
		kind := "domestic"
		if platform.IsForeign(name) {
			kind = "foreign"
		}
		infos = append(infos, platformInfo{Name: name, Type: kind})
	}
	writeJSON(w, http.StatusOK, map[string][]platformInfo{"platforms": infos})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
