package platform

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"bookrate/internal/fetch"
	"bookrate/internal/model"
	"bookrate/internal/ratelimit"
)

// Overridable in tests.
var amazonBaseURL = "https://www.amazon.com"

var (
	amazonOutOfFive = regexp.MustCompile(`([\d.]+)\s*out of\s*5`)
	amazonDPLink    = regexp.MustCompile(`/dp/([A-Z0-9]{10})`)
)

// Amazon crawls Amazon's book catalog with the stealth header set. ASINs
// and ISBNs resolve directly through /dp/{id}; keyword queries go through
// the books search listing, which usually already carries rating data.
// 5-point scale.
type Amazon struct{}

// NewAmazon creates the amazon adapter.
func NewAmazon() *Amazon { return &Amazon{} }

func (a *Amazon) Name() string { return "amazon" }

func (a *Amazon) RatingScale() int { return 5 }

func (a *Amazon) delayRange() ratelimit.DelayRange { return ratelimit.HTTPDelay }

// Crawl implements the Adapter contract.
func (a *Amazon) Crawl(ctx context.Context, sess *Session, query string) (*model.PlatformOutcome, error) {
	return run(ctx, a, sess, query)
}

func (a *Amazon) isIdentifier(query string) bool {
	return model.IsISBN(query) || model.IsASIN(query)
}

func (a *Amazon) searchIdentifier(ctx context.Context, log *slog.Logger, id string) (*candidate, error) {
	directURL := amazonBaseURL + "/dp/" + model.CleanISBN(id)

	html, _, err := fetch.StealthGet(ctx, directURL, 1)
	if err != nil {
		return nil, NewTransportError(a.Name(), err)
	}

	title, rating, reviewCount := parseAmazonDetail(html)
	if title == "" {
		return nil, ErrNotFound
	}
	log.Debug("identifier match", "title", title)
	return &candidate{url: directURL, title: title, rating: rating, reviewCount: reviewCount, extracted: true}, nil
}

func (a *Amazon) searchKeyword(ctx context.Context, log *slog.Logger, keyword string) (*candidate, error) {
	searchURL := amazonBaseURL + "/s?k=" + url.QueryEscape(keyword) + "&i=stripbooks-intl-ship"

	html, _, err := fetch.StealthGet(ctx, searchURL, 1)
	if err != nil {
		return nil, NewTransportError(a.Name(), err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, NewTransportError(a.Name(), err)
	}

	var cand *candidate
	doc.Find(`[data-component-type="s-search-result"]`).EachWithBreak(func(_ int, result *goquery.Selection) bool {
		asin, _ := result.Attr("data-asin")
		if asin == "" {
			return true
		}
		title := strings.TrimSpace(result.Find("h2 a span").First().Text())
		if title == "" {
			title = strings.TrimSpace(result.Find("h2 span").First().Text())
		}
		if title == "" {
			return true
		}

		cand = &candidate{url: amazonBaseURL + "/dp/" + asin, title: title}

		// Listings usually embed the rating; take it and skip the detail
		// page entirely.
		aria, _ := result.Find(`span[aria-label*="out of 5 stars"]`).First().Attr("aria-label")
		if m := amazonOutOfFive.FindStringSubmatch(aria); m != nil {
			if v, err := parseFloat(m[1]); err == nil {
				cand.rating = &v
				cand.extracted = true
			}
		}
		countText := result.Find(`span[aria-label*="rating"]`).First().Text()
		if countText == "" {
			countText = result.Find(`a[href*="customerReviews"] span`).First().Text()
		}
		if n, ok := firstNumber(countText); ok {
			cand.reviewCount = n
		}
		return false
	})

	if cand == nil {
		// Fallback: any /dp/ link with a plausible title.
		doc.Find(`a[href*="/dp/"]`).EachWithBreak(func(_ int, link *goquery.Selection) bool {
			href, _ := link.Attr("href")
			m := amazonDPLink.FindStringSubmatch(href)
			if m == nil {
				return true
			}
			title := strings.TrimSpace(link.Text())
			if len(title) <= 5 {
				return true
			}
			cand = &candidate{url: amazonBaseURL + "/dp/" + m[1], title: title}
			return false
		})
	}

	if cand == nil {
		return nil, ErrNotFound
	}
	log.Debug("search match", "title", cand.title, "url", cand.url)
	return cand, nil
}

func (a *Amazon) extract(ctx context.Context, log *slog.Logger, c *candidate) (*float64, int, error) {
	html, _, err := fetch.StealthGet(ctx, c.url, 1)
	if err != nil {
		return nil, 0, NewTransportError(a.Name(), err)
	}
	_, rating, reviewCount := parseAmazonDetail(html)
	log.Debug("rating extracted", "method", "json-ld")
	return rating, reviewCount, nil
}

// parseAmazonDetail pulls title, rating and rating count from a product
// page: JSON-LD first, the review widgets as fallback.
func parseAmazonDetail(html string) (title string, rating *float64, reviewCount int) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", nil, 0
	}

	title = strings.TrimSpace(doc.Find("#productTitle").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("#btAsinTitle").First().Text())
	}

	var jsonLDFound bool
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, script *goquery.Selection) bool {
		var data struct {
			AggregateRating *struct {
				RatingValue float64 `json:"ratingValue"`
				RatingCount int     `json:"ratingCount"`
				ReviewCount int     `json:"reviewCount"`
			} `json:"aggregateRating"`
		}
		if err := json.Unmarshal([]byte(script.Text()), &data); err != nil || data.AggregateRating == nil {
			return true
		}
		v := data.AggregateRating.RatingValue
		rating = &v
		reviewCount = data.AggregateRating.RatingCount
		if reviewCount == 0 {
			reviewCount = data.AggregateRating.ReviewCount
		}
		jsonLDFound = true
		return false
	})
	if jsonLDFound {
		return title, rating, reviewCount
	}

	// Aggregate-rating widgets, most specific selector first so individual
	// review stars do not win.
	for _, selector := range []string{
		"#acrPopover span.a-icon-alt",
		"#averageCustomerReviews .a-icon-alt",
		"span.a-icon-alt",
	} {
		text := doc.Find(selector).First().Text()
		if m := amazonOutOfFive.FindStringSubmatch(text); m != nil {
			if v, err := parseFloat(m[1]); err == nil {
				rating = &v
			}
			break
		}
	}

	for _, selector := range []string{
		"#acrCustomerReviewText",
		`span[data-hook="total-review-count"]`,
	} {
		if n, ok := firstNumber(doc.Find(selector).First().Text()); ok {
			reviewCount = n
			break
		}
	}
	return title, rating, reviewCount
}
