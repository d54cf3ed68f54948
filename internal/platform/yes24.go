package platform

import (
	"context"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"bookrate/internal/fetch"
	"bookrate/internal/model"
	"bookrate/internal/ratelimit"
)

// Overridable in tests.
var yes24BaseURL = "https://www.yes24.com"

var yes24ReviewPatterns = []*regexp.Regexp{
	regexp.MustCompile(`회원리뷰\s*\(\s*(\d[\d,]*)\s*건?\s*\)`),
	regexp.MustCompile(`구매평\s*\(\s*(\d[\d,]*)\s*\)`),
	regexp.MustCompile(`리뷰\s*(\d[\d,]*)\s*건`),
}

// Yes24 crawls the Yes24 bookstore via plain HTTP: search result and
// detail page scraping, no JavaScript rendering required. 10-point scale.
type Yes24 struct{}

// NewYes24 creates the yes24 adapter.
func NewYes24() *Yes24 { return &Yes24{} }

func (y *Yes24) Name() string { return "yes24" }

func (y *Yes24) RatingScale() int { return 10 }

func (y *Yes24) delayRange() ratelimit.DelayRange { return ratelimit.HTTPDelay }

// Crawl implements the Adapter contract.
func (y *Yes24) Crawl(ctx context.Context, sess *Session, query string) (*model.PlatformOutcome, error) {
	return run(ctx, y, sess, query)
}

func (y *Yes24) searchKeyword(ctx context.Context, log *slog.Logger, keyword string) (*candidate, error) {
	cand, err := yes24Search(ctx, y.Name(), keyword)
	if err != nil {
		return nil, err
	}
	log.Debug("search match", "title", cand.title, "url", cand.url)
	return cand, nil
}

// yes24Search resolves a keyword on the Yes24 search page. Shared with the
// sarak adapter, which rides on Yes24's catalog for product ids.
func yes24Search(ctx context.Context, platform, keyword string) (*candidate, error) {
	searchURL := yes24BaseURL + "/Product/Search?domain=ALL&query=" + url.QueryEscape(keyword)

	html, err := fetch.Get(ctx, searchURL)
	if err != nil {
		return nil, NewTransportError(platform, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, NewTransportError(platform, err)
	}

	keywordLower := strings.ToLower(keyword)
	var best *candidate

	doc.Find("a.gd_name").EachWithBreak(func(_ int, link *goquery.Selection) bool {
		href, _ := link.Attr("href")
		text := strings.TrimSpace(link.Text())

		// Skip the secondhand shop.
		if strings.Contains(href, "UsedShopHub") {
			return true
		}
		if !strings.Contains(strings.ToLower(href), "/product/goods/") {
			return true
		}

		if best == nil {
			best = &candidate{url: href, title: text}
		}
		// A result containing the query verbatim wins outright.
		if strings.Contains(strings.ToLower(text), keywordLower) {
			best = &candidate{url: href, title: text}
			return false
		}
		return true
	})

	if best == nil {
		return nil, ErrNotFound
	}
	if strings.HasPrefix(best.url, "/") {
		best.url = yes24BaseURL + best.url
	}
	return best, nil
}

func (y *Yes24) extract(ctx context.Context, log *slog.Logger, c *candidate) (*float64, int, error) {
	html, err := fetch.Get(ctx, c.url)
	if err != nil {
		return nil, 0, NewTransportError(y.Name(), err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, 0, NewTransportError(y.Name(), err)
	}

	var rating *float64
	for _, selector := range []string{".gd_rating em", "span.gd_rating em", ".yes_b"} {
		text := strings.TrimSpace(doc.Find(selector).First().Text())
		if text == "" {
			continue
		}
		if v, err := strconv.ParseFloat(text, 64); err == nil {
			rating = &v
			break
		}
	}

	reviewCount := 0
	pageText := doc.Text()
	for _, pattern := range yes24ReviewPatterns {
		if m := pattern.FindStringSubmatch(pageText); m != nil {
			if n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", "")); err == nil {
				reviewCount = n
				break
			}
		}
	}

	log.Debug("rating extracted", "method", "scrape")
	return rating, reviewCount, nil
}
