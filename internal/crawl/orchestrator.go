// Package crawl fans a search query out over the platform adapters and
// aggregates per-platform outcomes.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"bookrate/internal/cache"
	"bookrate/internal/model"
	"bookrate/internal/platform"
	"bookrate/internal/resolve"
)

// queryResolver maps a Korean query to a Western-platform search target.
type queryResolver interface {
	Resolve(ctx context.Context, sess *platform.Session, query string) *resolve.Resolution
}

// Orchestrator drives concurrent crawls over the registered platforms.
type Orchestrator struct {
	resolver queryResolver
}

// New builds an orchestrator with the default resolver.
func New() *Orchestrator {
	return &Orchestrator{resolver: resolve.New()}
}

// NewWith builds an orchestrator over an explicit resolver.
func NewWith(resolver queryResolver) *Orchestrator {
	return &Orchestrator{resolver: resolver}
}

// Event is one streamed search update. Either Outcome is set (a platform
// finished successfully) or Done is, terminating the stream.
type Event struct {
	Outcome *model.PlatformOutcome `json:"outcome,omitempty"`
	Done    *DoneSummary           `json:"done,omitempty"`
}

// DoneSummary closes a stream with the aggregate numbers.
type DoneSummary struct {
	Query         string   `json:"query"`
	MeanRating    *float64 `json:"mean_rating"`
	TotalReviews  int      `json:"total_reviews"`
	PlatformCount int      `json:"platform_count"`
}

// task is one platform crawl to run: the primary query and an optional
// fallback tried when the primary finds nothing.
type task struct {
	name     string
	query    string
	fallback string
}

// newID returns a short correlation token.
func newID() string {
	return uuid.New().String()[:8]
}

// lookupPlatform is swappable in tests.
var lookupPlatform = platform.Lookup

// Search crawls the requested platforms concurrently and returns the
// aggregate with outcomes re-ordered to the caller's requested platform
// order. Unknown platform names are dropped; an empty valid set yields
// an empty aggregate. One platform failing never disturbs the others.
func (o *Orchestrator) Search(ctx context.Context, query string, platforms []string) *model.SearchAggregate {
	aggregate := model.NewSearchAggregate(query)
	byPlatform := make(map[string]*model.PlatformOutcome)
	var mu sync.Mutex

	selected := o.run(ctx, query, platforms, func(outcome *model.PlatformOutcome) {
		mu.Lock()
		byPlatform[outcome.Platform] = outcome
		mu.Unlock()
	})

	for _, name := range selected {
		if outcome, ok := byPlatform[name]; ok {
			aggregate.Add(*outcome)
		}
	}
	return aggregate
}

// SearchStream crawls the requested platforms concurrently and sends an
// event per successful platform in completion order, closing with a Done
// event. The channel is closed when the stream ends.
func (o *Orchestrator) SearchStream(ctx context.Context, query string, platforms []string) <-chan Event {
	events := make(chan Event)
	go func() {
		defer close(events)

		aggregate := model.NewSearchAggregate(query)
		var mu sync.Mutex

		o.run(ctx, query, platforms, func(outcome *model.PlatformOutcome) {
			mu.Lock()
			aggregate.Add(*outcome)
			mu.Unlock()
			select {
			case events <- Event{Outcome: outcome}:
			case <-ctx.Done():
			}
		})

		done := &DoneSummary{
			Query:         query,
			MeanRating:    aggregate.MeanRating(),
			TotalReviews:  aggregate.TotalReviews(),
			PlatformCount: len(aggregate.Outcomes),
		}
		select {
		case events <- Event{Done: done}:
		case <-ctx.Done():
		}
	}()
	return events
}

// run is the shared fan-out: resolve the foreign query once if needed,
// build per-platform tasks, crawl them concurrently and hand successful
// outcomes to emit (called from worker goroutines, completion order).
// Returns the selected platform names in the caller's requested order.
func (o *Orchestrator) run(ctx context.Context, query string, platforms []string, emit func(*model.PlatformOutcome)) []string {
	executionID := newID()
	log := slog.Default().With("execution_id", executionID)

	selected := platform.Filter(platforms)
	if len(selected) == 0 {
		log.Info("no valid platforms requested", "query", query)
		return selected
	}
	log.Info("search started", "query", query, "platforms", selected)

	var resolution *resolve.Resolution
	if platform.HasForeign(selected) {
		sess := &platform.Session{
			ExecutionID:   executionID,
			SessionID:     newID(),
			OriginalQuery: query,
			Attempt:       1,
		}
		resolution = o.resolveCached(ctx, sess, query)
	}

	var tasks []task
	for _, name := range selected {
		if !platform.IsForeign(name) {
			tasks = append(tasks, task{name: name, query: query})
			continue
		}
		// Western platforms only run when resolution produced something:
		// an ISBN for direct lookup with the title as fallback, or just
		// the title for keyword search.
		switch {
		case resolution == nil || !resolution.Available():
			log.Info("skipping foreign platform, no resolution", "platform", name)
		case resolution.ISBN != "":
			tasks = append(tasks, task{name: name, query: resolution.ISBN, fallback: resolution.Title})
		default:
			tasks = append(tasks, task{name: name, query: resolution.Title})
		}
	}

	var wg sync.WaitGroup
	for _, tk := range tasks {
		wg.Add(1)
		go func(tk task) {
			defer wg.Done()
			if outcome := o.crawlOne(ctx, log, executionID, query, tk); outcome != nil {
				emit(outcome)
			}
		}(tk)
	}
	wg.Wait()

	log.Info("search finished", "query", query)
	return selected
}

// errResolutionUnavailable keeps failed resolutions out of the cache so
// a transient reference-platform outage is retried on the next search.
var errResolutionUnavailable = errors.New("resolution unavailable")

// resolveCached serves Hangul-query resolutions through the resolution
// cache so repeat searches skip the reference-platform and ISBN-chain
// walk. Non-Hangul queries resolve verbatim without network and are not
// worth a cache row.
func (o *Orchestrator) resolveCached(ctx context.Context, sess *platform.Session, query string) *resolve.Resolution {
	if !model.ContainsHangul(query) {
		return o.resolver.Resolve(ctx, sess, query)
	}
	resolution, _, err := cache.GetOrFetch(cache.ResolutionTable, cache.NormalizeKey(query),
		func() (*resolve.Resolution, error) {
			if res := o.resolver.Resolve(ctx, sess, query); res.Available() {
				return res, nil
			}
			return nil, errResolutionUnavailable
		})
	if err != nil || resolution == nil {
		// The resolver already ran inside the fetch and found nothing usable.
		return &resolve.Resolution{}
	}
	return resolution
}

// crawlOne runs one platform task: the primary query, then the fallback
// query on a definite miss. Panics in an adapter are contained here so a
// single platform cannot take the whole search down.
func (o *Orchestrator) crawlOne(ctx context.Context, log *slog.Logger, executionID, originalQuery string, tk task) (outcome *model.PlatformOutcome) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("platform crawl panicked", "platform", tk.name, "panic", fmt.Sprint(r))
			outcome = nil
		}
	}()

	entry, ok := lookupPlatform(tk.name)
	if !ok {
		return nil
	}
	adapter := entry.New()

	sess := &platform.Session{
		ExecutionID:   executionID,
		SessionID:     newID(),
		OriginalQuery: originalQuery,
		Attempt:       1,
	}

	outcome, err := adapter.Crawl(ctx, sess, tk.query)
	if err == nil {
		return outcome
	}
	if !errors.Is(err, platform.ErrNotFound) || tk.fallback == "" || tk.fallback == tk.query {
		if !errors.Is(err, platform.ErrNotFound) {
			log.Warn("platform crawl failed", "platform", tk.name, "error", err)
		}
		return nil
	}

	sess.SessionID = newID()
	sess.Attempt = 2
	outcome, err = adapter.Crawl(ctx, sess, tk.fallback)
	if err != nil {
		if !errors.Is(err, platform.ErrNotFound) {
			log.Warn("platform crawl failed", "platform", tk.name, "error", err)
		}
		return nil
	}
	return outcome
}
