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
var watchaBaseURL = "https://pedia.watcha.com"

var (
	watchaContentLink = regexp.MustCompile(`/ko-KR/contents/[a-zA-Z0-9]+`)
	watchaTitleSuffix = regexp.MustCompile(`\s*\d{4}\s*・.*$`)
	watchaRatingText  = regexp.MustCompile(`평균\s+([\d.]+)`)
	watchaVotersInMan = regexp.MustCompile(`\(([\d.]+)만명\)`)
	watchaVotersPlain = regexp.MustCompile(`\(([\d,]+)명\)`)
)

// Watcha crawls Watcha Pedia's book section. The pages are server-side
// rendered, so plain HTTP with text-pattern extraction suffices. 5-point
// scale.
type Watcha struct{}

// NewWatcha creates the watcha adapter.
func NewWatcha() *Watcha { return &Watcha{} }

func (w *Watcha) Name() string { return "watcha" }

func (w *Watcha) RatingScale() int { return 5 }

func (w *Watcha) delayRange() ratelimit.DelayRange { return ratelimit.HTTPDelay }

// Crawl implements the Adapter contract.
func (w *Watcha) Crawl(ctx context.Context, sess *Session, query string) (*model.PlatformOutcome, error) {
	return run(ctx, w, sess, query)
}

func (w *Watcha) searchKeyword(ctx context.Context, log *slog.Logger, keyword string) (*candidate, error) {
	searchURL := watchaBaseURL + "/ko-KR/searches/books?query=" + url.QueryEscape(keyword)

	html, err := fetch.Get(ctx, searchURL)
	if err != nil {
		return nil, NewTransportError(w.Name(), err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, NewTransportError(w.Name(), err)
	}

	var cand *candidate
	doc.Find("a").EachWithBreak(func(_ int, link *goquery.Selection) bool {
		href, _ := link.Attr("href")
		if !watchaContentLink.MatchString(href) {
			return true
		}
		// Link text carries "title year ・ author"; keep the title part.
		title := strings.TrimSpace(watchaTitleSuffix.ReplaceAllString(strings.TrimSpace(link.Text()), ""))
		if strings.HasPrefix(href, "/") {
			href = watchaBaseURL + href
		}
		cand = &candidate{url: href, title: title}
		return false
	})

	if cand == nil {
		return nil, ErrNotFound
	}
	log.Debug("search match", "title", cand.title, "url", cand.url)
	return cand, nil
}

func (w *Watcha) extract(ctx context.Context, log *slog.Logger, c *candidate) (*float64, int, error) {
	html, err := fetch.Get(ctx, c.url)
	if err != nil {
		return nil, 0, NewTransportError(w.Name(), err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, 0, NewTransportError(w.Name(), err)
	}
	text := doc.Text()

	var rating *float64
	if m := watchaRatingText.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			rating = &v
		}
	}

	// Voter counts render as "(3.2만명)" for tens of thousands or "(500명)".
	reviewCount := 0
	if m := watchaVotersInMan.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			reviewCount = int(v * 10000)
		}
	} else if m := watchaVotersPlain.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", "")); err == nil {
			reviewCount = n
		}
	}

	log.Debug("rating extracted", "method", "scrape")
	return rating, reviewCount, nil
}
