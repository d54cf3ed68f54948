// Package platform implements the adapter contract for every external
// book platform and the shared crawl flow that composes per-site search
// and extraction into one operation.
package platform

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"bookrate/internal/model"
	"bookrate/internal/ratelimit"
)

// Adapter is the capability contract every platform implements. Crawl
// resolves a query to a detail resource and extracts (rating, review
// count) from it, returning ErrNotFound on a definite miss and a
// TransportError on a transient one.
type Adapter interface {
	Name() string
	RatingScale() int
	Crawl(ctx context.Context, sess *Session, query string) (*model.PlatformOutcome, error)
}

// candidate is a resolved detail resource on one platform. Adapters whose
// resolution step already yields rating data (redirect-to-detail sites)
// mark it extracted so the flow skips the second fetch.
type candidate struct {
	url         string
	title       string
	productID   string
	rating      *float64
	reviewCount int
	extracted   bool
}

// politenessDelay is swappable in tests.
var politenessDelay = ratelimit.Delay

// site is the strategy set behind the shared crawl flow. Each adapter
// supplies keyword search and extraction; identifier lookup is an optional
// extra capability.
type site interface {
	Name() string
	RatingScale() int
	delayRange() ratelimit.DelayRange
	searchKeyword(ctx context.Context, log *slog.Logger, keyword string) (*candidate, error)
	extract(ctx context.Context, log *slog.Logger, c *candidate) (*float64, int, error)
}

// identifierSite is the optional direct-lookup capability. An identifier
// denotes one specific edition: a miss means that edition does not exist
// on the platform, so the flow never widens to keyword search.
type identifierSite interface {
	isIdentifier(query string) bool
	searchIdentifier(ctx context.Context, log *slog.Logger, id string) (*candidate, error)
}

// run is the shared crawl flow: resolve, politeness delay, extract,
// outcome assembly. All eight adapters delegate their Crawl to it.
func run(ctx context.Context, s site, sess *Session, query string) (*model.PlatformOutcome, error) {
	log := sess.Logger(s.Name())
	start := time.Now()
	log.Debug("search start", "query", query)

	var cand *candidate
	var err error
	if ids, ok := s.(identifierSite); ok && ids.isIdentifier(query) {
		cand, err = ids.searchIdentifier(ctx, log, query)
	} else {
		cand, err = s.searchKeyword(ctx, log, query)
	}
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Info("search complete", "query", query, "found", false,
				"elapsed_ms", time.Since(start).Milliseconds())
			return nil, ErrNotFound
		}
		log.Warn("search failed", "query", query, "error", err)
		return nil, err
	}
	log.Info("search complete", "query", query, "found", true, "title", cand.title)

	rating := cand.rating
	reviewCount := cand.reviewCount
	if !cand.extracted {
		if err := politenessDelay(ctx, s.delayRange()); err != nil {
			return nil, NewTransportError(s.Name(), err)
		}
		rating, reviewCount, err = s.extract(ctx, log, cand)
		if err != nil {
			log.Warn("extract failed", "url", cand.url, "error", err)
			return nil, err
		}
	}
	rating = clampRating(rating, s.RatingScale())
	if reviewCount < 0 {
		reviewCount = 0
	}

	log.Info("crawl complete", "query", query, "success", true,
		"title", cand.title, "rating", ratingValue(rating),
		"review_count", reviewCount, "rating_scale", s.RatingScale(),
		"elapsed_ms", time.Since(start).Milliseconds())

	return &model.PlatformOutcome{
		Platform:    s.Name(),
		Rating:      rating,
		RatingScale: s.RatingScale(),
		ReviewCount: reviewCount,
		URL:         cand.url,
		BookTitle:   cand.title,
		CrawledAt:   time.Now(),
	}, nil
}

// clampRating drops ratings outside (0, scale] rather than propagating
// garbage parsed from markup.
func clampRating(rating *float64, scale int) *float64 {
	if rating == nil {
		return nil
	}
	if *rating <= 0 || *rating > float64(scale) {
		return nil
	}
	return rating
}

func ratingValue(r *float64) any {
	if r == nil {
		return nil
	}
	return *r
}
