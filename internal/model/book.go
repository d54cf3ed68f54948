// Package model defines the core value types shared by the crawl
// pipeline: per-platform rating outcomes and the aggregate built from them.
package model

import (
	"fmt"
	"strings"
	"time"
)

// PlatformOutcome is the result of one successful platform crawl.
// It is created once by an adapter and never mutated afterwards.
type PlatformOutcome struct {
	Platform    string    `json:"platform"`
	Rating      *float64  `json:"rating"`
	RatingScale int       `json:"rating_scale"`
	ReviewCount int       `json:"review_count"`
	URL         string    `json:"url"`
	BookTitle   string    `json:"book_title"`
	CrawledAt   time.Time `json:"crawled_at"`
}

// NormalizedRating rescales the raw rating to a common 10-point basis.
// A nil raw rating stays nil.
func (o *PlatformOutcome) NormalizedRating() *float64 {
	return Normalize(o.Rating, o.RatingScale)
}

// Normalize converts a (value, scale) pair to the 10-point basis.
func Normalize(rating *float64, scale int) *float64 {
	if rating == nil {
		return nil
	}
	if scale == 5 {
		v := *rating * 2
		return &v
	}
	v := *rating
	return &v
}

// SearchAggregate is the immutable record of one search: the original
// query plus the per-platform outcomes, in insertion order. Platforms
// that failed or found nothing are simply absent.
type SearchAggregate struct {
	Query    string            `json:"query"`
	Outcomes []PlatformOutcome `json:"results"`
}

// NewSearchAggregate creates an empty aggregate for the given query.
func NewSearchAggregate(query string) *SearchAggregate {
	return &SearchAggregate{Query: query}
}

// Add appends an outcome. Only the orchestrator calls this, during the
// fan-out phase.
func (a *SearchAggregate) Add(outcome PlatformOutcome) {
	a.Outcomes = append(a.Outcomes, outcome)
}

// MeanRating returns the mean of the normalized ratings across outcomes,
// or nil when no outcome carries a rating.
func (a *SearchAggregate) MeanRating() *float64 {
	var sum float64
	var n int
	for i := range a.Outcomes {
		if r := a.Outcomes[i].NormalizedRating(); r != nil {
			sum += *r
			n++
		}
	}
	if n == 0 {
		return nil
	}
	mean := sum / float64(n)
	return &mean
}

// TotalReviews returns the summed review count across outcomes.
func (a *SearchAggregate) TotalReviews() int {
	var total int
	for i := range a.Outcomes {
		total += a.Outcomes[i].ReviewCount
	}
	return total
}

// Summary renders a human-readable result table for CLI output.
func (a *SearchAggregate) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "query: %s\n", a.Query)
	b.WriteString(strings.Repeat("-", 50))
	b.WriteString("\n")
	for i := range a.Outcomes {
		o := &a.Outcomes[i]
		rating := "N/A"
		if o.Rating != nil {
			rating = fmt.Sprintf("%.1f/%d", *o.Rating, o.RatingScale)
		}
		fmt.Fprintf(&b, "%-12s | rating: %-8s | reviews: %d\n", o.Platform, rating, o.ReviewCount)
	}
	if mean := a.MeanRating(); mean != nil {
		fmt.Fprintf(&b, "mean: %.2f/10 across %d platforms, %d reviews total\n",
			*mean, len(a.Outcomes), a.TotalReviews())
	}
	return b.String()
}
