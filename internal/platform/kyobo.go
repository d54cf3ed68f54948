package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"bookrate/internal/fetch"
	"bookrate/internal/model"
	"bookrate/internal/ratelimit"
	"bookrate/internal/similarity"
)

// Overridable in tests.
var (
	kyoboSearchURL = "https://search.kyobobook.co.kr/search"
	kyoboStatsURL  = "https://product.kyobobook.co.kr/api/review/statistics"
	kyoboCountURL  = "https://product.kyobobook.co.kr/api/gw/pdt/review/status-count"
)

var kyoboProductIDPattern = regexp.MustCompile(`/detail/(\w+)`)

// Kyobo crawls Kyobo Book Centre: search page scraping for resolution,
// review statistics APIs for extraction. 10-point scale.
type Kyobo struct{}

// NewKyobo creates the kyobo adapter.
func NewKyobo() *Kyobo { return &Kyobo{} }

func (k *Kyobo) Name() string { return "kyobo" }

func (k *Kyobo) RatingScale() int { return 10 }

func (k *Kyobo) delayRange() ratelimit.DelayRange { return ratelimit.HTTPDelay }

// Crawl implements the Adapter contract.
func (k *Kyobo) Crawl(ctx context.Context, sess *Session, query string) (*model.PlatformOutcome, error) {
	return run(ctx, k, sess, query)
}

func (k *Kyobo) searchKeyword(ctx context.Context, log *slog.Logger, keyword string) (*candidate, error) {
	searchURL := fmt.Sprintf("%s?keyword=%s&gbCode=TOT&target=total",
		kyoboSearchURL, url.QueryEscape(keyword))

	html, err := fetch.Get(ctx, searchURL)
	if err != nil {
		return nil, NewTransportError(k.Name(), err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, NewTransportError(k.Name(), err)
	}

	keywordNorm := similarity.Normalize(keyword)
	var first, matched *candidate

	doc.Find(".prod_item").EachWithBreak(func(_ int, item *goquery.Selection) bool {
		link := item.Find("a.prod_info").First()
		if link.Length() == 0 {
			return true
		}

		title := strings.TrimSpace(link.Text())
		// Strip the "[국내도서]" style prefix.
		if strings.HasPrefix(title, "[") {
			if idx := strings.Index(title, "]"); idx >= 0 {
				title = strings.TrimSpace(title[idx+1:])
			}
		}

		bookURL, _ := link.Attr("href")
		if bookURL == "" {
			return true
		}
		if !strings.HasPrefix(bookURL, "http") {
			bookURL = "https://product.kyobobook.co.kr" + bookURL
		}
		// Paper books only.
		if strings.Contains(strings.ToLower(bookURL), "ebook") {
			return true
		}
		if isBundleTitle(title) {
			return true
		}

		if first == nil {
			first = &candidate{url: bookURL, title: title}
		}
		if strings.Contains(similarity.Normalize(title), keywordNorm) {
			matched = &candidate{url: bookURL, title: title}
			return false
		}
		return true
	})

	best := matched
	if best == nil {
		best = first
	}
	if best == nil {
		return nil, ErrNotFound
	}
	log.Debug("search match", "title", best.title, "url", best.url)
	return best, nil
}

func (k *Kyobo) extract(ctx context.Context, log *slog.Logger, c *candidate) (*float64, int, error) {
	m := kyoboProductIDPattern.FindStringSubmatch(c.url)
	if m == nil {
		log.Warn("product id extraction failed", "url", c.url)
		return nil, 0, nil
	}
	productID := m[1]

	var rating *float64
	reviewCount := 0

	// Average rating from the statistics API.
	var stats kyoboStatsResponse
	if err := k.fetchAPI(ctx, fmt.Sprintf("%s?saleCmdtid=%s", kyoboStatsURL, productID), &stats); err == nil && stats.ResultCode == "000000" {
		if stats.Data.RevwRvgrAvg != nil {
			rating = stats.Data.RevwRvgrAvg
		}
	}

	// Total review count from the status-count API; patr code 000 is "all".
	var counts kyoboCountResponse
	if err := k.fetchAPI(ctx, fmt.Sprintf("%s?saleCmdtid=%s", kyoboCountURL, productID), &counts); err == nil && counts.ResultCode == "000000" {
		for _, item := range counts.Data {
			if item.RevwPatrCode == "000" {
				reviewCount = item.Count
				break
			}
		}
	}

	log.Debug("rating extracted", "method", "api", "product_id", productID)
	return rating, reviewCount, nil
}

func (k *Kyobo) fetchAPI(ctx context.Context, apiURL string, v any) error {
	body, err := fetch.Get(ctx, apiURL)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(body), v)
}

type kyoboStatsResponse struct {
	ResultCode string `json:"resultCode"`
	Data       struct {
		RevwRvgrAvg *float64 `json:"revwRvgrAvg"`
	} `json:"data"`
}

type kyoboCountResponse struct {
	ResultCode string `json:"resultCode"`
	Data       []struct {
		RevwPatrCode string `json:"revwPatrCode"`
		Count        int    `json:"count"`
	} `json:"data"`
}
