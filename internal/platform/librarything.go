package platform

import (
	"context"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"bookrate/internal/automation"
	"bookrate/internal/config"
	"bookrate/internal/model"
	"bookrate/internal/ratelimit"
)

// Overridable in tests.
var (
	librarythingBaseURL = "https://www.librarything.com"
	librarythingRender  = automation.RenderPage
)

var (
	librarythingRating  = regexp.MustCompile(`\((\d+\.\d+)\)`)
	librarythingReviews = regexp.MustCompile(`>(\d[\d,]*)\s*Reviews</a>`)
)

// LibraryThing crawls LibraryThing through a rendered browser page.
// Cloudflare fronting rejects plain HTTP clients, so every page goes
// through an isolated Chrome process. 5-point scale.
type LibraryThing struct{}

// NewLibraryThing creates the librarything adapter.
func NewLibraryThing() *LibraryThing { return &LibraryThing{} }

func (l *LibraryThing) Name() string { return "librarything" }

func (l *LibraryThing) RatingScale() int { return 5 }

func (l *LibraryThing) delayRange() ratelimit.DelayRange { return ratelimit.BrowserDelay }

// Crawl implements the Adapter contract.
func (l *LibraryThing) Crawl(ctx context.Context, sess *Session, query string) (*model.PlatformOutcome, error) {
	return run(ctx, l, sess, query)
}

func (l *LibraryThing) isIdentifier(query string) bool {
	return model.IsISBN(query)
}

func (l *LibraryThing) render(ctx context.Context, pageURL string) (*automation.RenderResult, error) {
	return librarythingRender(ctx, pageURL, automation.RenderOptions{Headless: config.Headless})
}

// searchIdentifier resolves an ISBN through /isbn/{isbn}, which redirects
// to the work page when the edition is known.
func (l *LibraryThing) searchIdentifier(ctx context.Context, log *slog.Logger, id string) (*candidate, error) {
	directURL := librarythingBaseURL + "/isbn/" + model.CleanISBN(id)

	res, err := l.render(ctx, directURL)
	if err != nil {
		return nil, NewTransportError(l.Name(), err)
	}
	if !strings.Contains(res.FinalURL, "/work/") {
		return nil, ErrNotFound
	}

	title, rating, reviewCount := parseLibraryThingWork(res.HTML)
	if title == "" {
		return nil, ErrNotFound
	}
	log.Debug("identifier match", "title", title, "url", res.FinalURL)
	return &candidate{url: res.FinalURL, title: title, rating: rating, reviewCount: reviewCount, extracted: true}, nil
}

// searchKeyword tries /title/{keyword} first, which redirects to the work
// page on an exact title hit, then falls back to the search page. A
// subtitled query that misses is retried with just the primary title.
func (l *LibraryThing) searchKeyword(ctx context.Context, log *slog.Logger, keyword string) (*candidate, error) {
	titleURL := librarythingBaseURL + "/title/" + url.PathEscape(keyword)
	if res, err := l.render(ctx, titleURL); err == nil && strings.Contains(res.FinalURL, "/work/") {
		if title, rating, reviewCount := parseLibraryThingWork(res.HTML); title != "" {
			log.Debug("title match", "title", title, "url", res.FinalURL)
			return &candidate{url: res.FinalURL, title: title, rating: rating, reviewCount: reviewCount, extracted: true}, nil
		}
	}

	workURL, err := l.searchPage(ctx, keyword)
	if err != nil {
		return nil, err
	}
	if workURL == "" {
		primary := strings.TrimSpace(strings.SplitN(keyword, ":", 2)[0])
		if primary != keyword && primary != "" {
			log.Debug("retrying with primary title", "primary", primary)
			if workURL, err = l.searchPage(ctx, primary); err != nil {
				return nil, err
			}
		}
	}
	if workURL == "" {
		return nil, ErrNotFound
	}

	res, err := l.render(ctx, workURL)
	if err != nil {
		return nil, NewTransportError(l.Name(), err)
	}
	title, rating, reviewCount := parseLibraryThingWork(res.HTML)
	if title == "" {
		return nil, ErrNotFound
	}
	log.Debug("search match", "title", title, "url", res.FinalURL)
	return &candidate{url: res.FinalURL, title: title, rating: rating, reviewCount: reviewCount, extracted: true}, nil
}

// searchPage returns the first work link off the search results page, or
// "" when the page has none.
func (l *LibraryThing) searchPage(ctx context.Context, keyword string) (string, error) {
	searchURL := librarythingBaseURL + "/search.php?search=" + url.QueryEscape(keyword) +
		"&searchtype=newwork_titles&sortchoice=0"

	res, err := l.render(ctx, searchURL)
	if err != nil {
		return "", NewTransportError(l.Name(), err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(res.HTML))
	if err != nil {
		return "", NewTransportError(l.Name(), err)
	}

	link := doc.Find("td.worktitle a").First()
	if link.Length() == 0 {
		link = doc.Find(`a[href*="/work/"]`).First()
	}
	href, _ := link.Attr("href")
	if href == "" {
		return "", nil
	}
	if !strings.HasPrefix(href, "http") {
		href = librarythingBaseURL + href
	}
	return href, nil
}

// extract exists to satisfy the site contract; every resolution path
// above already parses the work page.
func (l *LibraryThing) extract(ctx context.Context, log *slog.Logger, c *candidate) (*float64, int, error) {
	res, err := l.render(ctx, c.url)
	if err != nil {
		return nil, 0, NewTransportError(l.Name(), err)
	}
	_, rating, reviewCount := parseLibraryThingWork(res.HTML)
	log.Debug("rating extracted", "method", "browser")
	return rating, reviewCount, nil
}

// parseLibraryThingWork pulls title, rating and review count from a work
// page. The average sits in parentheses next to the star widget.
func parseLibraryThingWork(html string) (title string, rating *float64, reviewCount int) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", nil, 0
	}
	title = strings.TrimSpace(doc.Find("h1").First().Text())

	if m := librarythingRating.FindStringSubmatch(html); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			rating = &v
		}
	}
	if m := librarythingReviews.FindStringSubmatch(html); m != nil {
		if n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", "")); err == nil {
			reviewCount = n
		}
	}
	return title, rating, reviewCount
}
