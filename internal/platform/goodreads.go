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
var goodreadsBaseURL = "https://www.goodreads.com"

var goodreadsAriaRating = regexp.MustCompile(`([\d.]+)\s*out of\s*5`)

// Goodreads crawls Goodreads over plain-but-stealthy HTTP. Detail pages
// embed a JSON-LD block with the aggregate rating; search requests for
// exact matches redirect straight to the detail page. 5-point scale.
type Goodreads struct{}

// NewGoodreads creates the goodreads adapter.
func NewGoodreads() *Goodreads { return &Goodreads{} }

func (g *Goodreads) Name() string { return "goodreads" }

func (g *Goodreads) RatingScale() int { return 5 }

func (g *Goodreads) delayRange() ratelimit.DelayRange { return ratelimit.HTTPDelay }

// Crawl implements the Adapter contract.
func (g *Goodreads) Crawl(ctx context.Context, sess *Session, query string) (*model.PlatformOutcome, error) {
	return run(ctx, g, sess, query)
}

func (g *Goodreads) isIdentifier(query string) bool {
	return model.IsISBN(query)
}

// searchIdentifier resolves an ISBN through /book/isbn/{isbn}, which
// redirects to the detail page. Rating data comes out of the same
// response, so no second fetch is needed.
func (g *Goodreads) searchIdentifier(ctx context.Context, log *slog.Logger, id string) (*candidate, error) {
	directURL := goodreadsBaseURL + "/book/isbn/" + model.CleanISBN(id)

	html, finalURL, err := fetch.StealthGet(ctx, directURL, 2)
	if err != nil {
		return nil, NewTransportError(g.Name(), err)
	}

	title, rating, reviewCount := parseGoodreadsDetail(html)
	if title == "" {
		return nil, ErrNotFound
	}
	log.Debug("identifier match", "title", title, "url", finalURL)
	return &candidate{url: finalURL, title: title, rating: rating, reviewCount: reviewCount, extracted: true}, nil
}

func (g *Goodreads) searchKeyword(ctx context.Context, log *slog.Logger, keyword string) (*candidate, error) {
	searchURL := goodreadsBaseURL + "/search?q=" + url.QueryEscape(keyword)

	html, finalURL, err := fetch.StealthGet(ctx, searchURL, 2)
	if err != nil {
		return nil, NewTransportError(g.Name(), err)
	}

	// An exact match redirects straight to the detail page.
	if strings.Contains(finalURL, "/book/show/") {
		title, rating, reviewCount := parseGoodreadsDetail(html)
		if title == "" {
			return nil, ErrNotFound
		}
		return &candidate{url: finalURL, title: title, rating: rating, reviewCount: reviewCount, extracted: true}, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, NewTransportError(g.Name(), err)
	}

	link := doc.Find("a.bookTitle").First()
	if link.Length() == 0 {
		link = doc.Find(`a[href*="/book/show/"]`).First()
	}
	if link.Length() == 0 {
		return nil, ErrNotFound
	}

	href, _ := link.Attr("href")
	title := strings.TrimSpace(link.Text())
	if href == "" || title == "" {
		return nil, ErrNotFound
	}
	if !strings.HasPrefix(href, "http") {
		href = goodreadsBaseURL + href
	}
	log.Debug("search match", "title", title, "url", href)
	return &candidate{url: href, title: title}, nil
}

func (g *Goodreads) extract(ctx context.Context, log *slog.Logger, c *candidate) (*float64, int, error) {
	html, _, err := fetch.StealthGet(ctx, c.url, 2)
	if err != nil {
		return nil, 0, NewTransportError(g.Name(), err)
	}
	_, rating, reviewCount := parseGoodreadsDetail(html)
	log.Debug("rating extracted", "method", "json-ld")
	return rating, reviewCount, nil
}

// parseGoodreadsDetail pulls title, rating and rating count from a detail
// page: JSON-LD first, visible markup as fallback.
func parseGoodreadsDetail(html string) (title string, rating *float64, reviewCount int) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", nil, 0
	}

	title = strings.TrimSpace(doc.Find(`h1[data-testid="bookTitle"]`).First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1.Text__title1").First().Text())
	}

	var jsonLDFound bool
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, script *goquery.Selection) bool {
		var data struct {
			AggregateRating *struct {
				RatingValue float64 `json:"ratingValue"`
				RatingCount int     `json:"ratingCount"`
			} `json:"aggregateRating"`
		}
		if err := json.Unmarshal([]byte(script.Text()), &data); err != nil || data.AggregateRating == nil {
			return true
		}
		v := data.AggregateRating.RatingValue
		rating = &v
		// ratingCount counts star raters; reviewCount would count written
		// reviews only.
		reviewCount = data.AggregateRating.RatingCount
		jsonLDFound = true
		return false
	})
	if jsonLDFound {
		return title, rating, reviewCount
	}

	// Visible-markup fallback.
	aria, _ := doc.Find(`div[class*="RatingStatistics"] span[class*="RatingStars"]`).First().Attr("aria-label")
	if m := goodreadsAriaRating.FindStringSubmatch(aria); m != nil {
		if v, err := parseFloat(m[1]); err == nil {
			rating = &v
		}
	}
	countText := doc.Find(`span[data-testid="reviewsCount"]`).First().Text()
	if n, ok := firstNumber(countText); ok {
		reviewCount = n
	}
	return title, rating, reviewCount
}
