package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"

	"bookrate/internal/fetch"
	"bookrate/internal/model"
	"bookrate/internal/ratelimit"
)

// Overridable in tests.
var (
	sarakBaseURL = "https://sarak.yes24.com"
	sarakAPIURL  = "https://sarak-api.yes24.com/api24/v1/reading-note/book"
)

var sarakProductIDPattern = regexp.MustCompile(`(?i)/(?:product/)?goods/(\d+)`)

// Sarak crawls Sarak, Yes24's reading community. Resolution rides on the
// Yes24 search page to obtain a product id; extraction uses the Sarak
// statistics API. 10-point scale.
type Sarak struct{}

// NewSarak creates the sarak adapter.
func NewSarak() *Sarak { return &Sarak{} }

func (s *Sarak) Name() string { return "sarak" }

func (s *Sarak) RatingScale() int { return 10 }

func (s *Sarak) delayRange() ratelimit.DelayRange { return ratelimit.HTTPDelay }

// Crawl implements the Adapter contract.
func (s *Sarak) Crawl(ctx context.Context, sess *Session, query string) (*model.PlatformOutcome, error) {
	return run(ctx, s, sess, query)
}

func (s *Sarak) searchKeyword(ctx context.Context, log *slog.Logger, keyword string) (*candidate, error) {
	cand, err := yes24Search(ctx, s.Name(), keyword)
	if err != nil {
		return nil, err
	}

	m := sarakProductIDPattern.FindStringSubmatch(cand.url)
	if m == nil {
		return nil, ErrNotFound
	}
	productID := m[1]

	log.Debug("search match", "title", cand.title, "product_id", productID)
	return &candidate{
		url:       fmt.Sprintf("%s/reading-note/book/%s", sarakBaseURL, productID),
		title:     cand.title,
		productID: productID,
	}, nil
}

func (s *Sarak) extract(ctx context.Context, log *slog.Logger, c *candidate) (*float64, int, error) {
	statsURL := fmt.Sprintf("%s/%s/book-statistics-summary", sarakAPIURL, c.productID)

	body, err := fetch.Get(ctx, statsURL)
	if err != nil {
		return nil, 0, NewTransportError(s.Name(), err)
	}

	var stats sarakStatsResponse
	if err := json.Unmarshal([]byte(body), &stats); err != nil {
		return nil, 0, NewTransportError(s.Name(), fmt.Errorf("decoding statistics response: %w", err))
	}

	log.Debug("rating extracted", "method", "api", "product_id", c.productID)
	return stats.StarPointAverage, stats.VoterCount, nil
}

type sarakStatsResponse struct {
	StarPointAverage *float64 `json:"starPointAverageForBookInfo"`
	VoterCount       int      `json:"userWhoDidVoteThisBookCount"`
}
