package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"bookrate/internal/config"
	"bookrate/internal/fetch"
	"bookrate/internal/model"
	"bookrate/internal/ratelimit"
)

// Overridable in tests.
var aladinAPIBaseURL = "http://www.aladin.co.kr/ttb/api"

var (
	aladinYearSuffix = regexp.MustCompile(`\s*\(\d{4}년?\)$`)
	aladinAuthorName = regexp.MustCompile(`(.+?)\s*\(지은이\)`)
)

// OriginalEdition is the original-work metadata the reference platform
// supplies for a localized edition.
type OriginalEdition struct {
	Title  string
	Author string
	ISBN13 string
}

// Aladin crawls the Aladin bookstore through its TTB JSON API. It doubles
// as the reference platform: its catalog cross-references localized
// editions to their original title/author/ISBN. 10-point scale.
type Aladin struct {
	ttbKey string

	// Search state consumed by extract and OriginalEdition.
	currentItemID int64
	currentISBN13 string
}

// NewAladin creates the aladin adapter with the configured TTB key.
func NewAladin() *Aladin {
	return &Aladin{ttbKey: config.AladinTTBKey}
}

func (a *Aladin) Name() string { return "aladin" }

func (a *Aladin) RatingScale() int { return 10 }

// API calls need no scraping etiquette.
func (a *Aladin) delayRange() ratelimit.DelayRange { return ratelimit.NoDelay }

// Crawl implements the Adapter contract.
func (a *Aladin) Crawl(ctx context.Context, sess *Session, query string) (*model.PlatformOutcome, error) {
	return run(ctx, a, sess, query)
}

// The TTB API enforces a daily quota; pace calls instead of delaying.
var ttbLimiter = ratelimit.PerSecond("aladin-ttb", 5)

func (a *Aladin) apiRequest(ctx context.Context, log *slog.Logger, endpoint string, params url.Values, v any) error {
	if a.ttbKey == "" {
		return NewConfigError(a.Name(), "ALADIN_TTB_KEY")
	}
	if err := ttbLimiter.Wait(ctx); err != nil {
		return NewTransportError(a.Name(), err)
	}
	params.Set("ttbkey", a.ttbKey)
	params.Set("output", "js")
	params.Set("Version", "20131101")

	reqURL := fmt.Sprintf("%s/%s?%s", aladinAPIBaseURL, endpoint, params.Encode())
	body, err := fetch.Get(ctx, reqURL)
	if err != nil {
		// Mask the API key in logged URLs.
		log.Warn("api request failed", "url", strings.ReplaceAll(reqURL, a.ttbKey, "***"), "error", err)
		return NewTransportError(a.Name(), err)
	}
	if err := json.Unmarshal([]byte(body), v); err != nil {
		return NewTransportError(a.Name(), fmt.Errorf("decoding %s response: %w", endpoint, err))
	}
	return nil
}

func (a *Aladin) searchKeyword(ctx context.Context, log *slog.Logger, keyword string) (*candidate, error) {
	params := url.Values{}
	params.Set("Query", keyword)
	params.Set("QueryType", "Keyword")
	params.Set("MaxResults", "10")
	params.Set("SearchTarget", "Book")

	var result aladinSearchResponse
	if err := a.apiRequest(ctx, log, "ItemSearch.aspx", params, &result); err != nil {
		return nil, err
	}
	if len(result.Item) == 0 {
		return nil, ErrNotFound
	}

	candidates := make([]rankCandidate, len(result.Item))
	for i, item := range result.Item {
		candidates[i] = rankCandidate{title: item.Title, salesPoint: item.SalesPoint}
	}
	best := bestCandidate(keyword, candidates)
	if best < 0 {
		return nil, ErrNotFound
	}

	item := result.Item[best]
	title := item.Title
	if item.Publisher != "" {
		title = fmt.Sprintf("%s (%s)", title, item.Publisher)
	}
	a.currentItemID = item.ItemID
	a.currentISBN13 = item.ISBN13

	log.Debug("search match", "title", title, "item_id", item.ItemID, "sales_point", item.SalesPoint)
	return &candidate{url: item.Link, title: title, productID: fmt.Sprint(item.ItemID)}, nil
}

func (a *Aladin) extract(ctx context.Context, log *slog.Logger, c *candidate) (*float64, int, error) {
	if a.currentItemID == 0 {
		return nil, 0, nil
	}

	params := url.Values{}
	params.Set("itemIdType", "ItemId")
	params.Set("ItemId", fmt.Sprint(a.currentItemID))
	params.Set("OptResult", "ratingInfo")

	var result aladinLookupResponse
	if err := a.apiRequest(ctx, log, "ItemLookUp.aspx", params, &result); err != nil {
		return nil, 0, err
	}
	if len(result.Item) == 0 {
		return nil, 0, nil
	}

	item := result.Item[0]
	rating := item.SubInfo.RatingInfo.RatingScore
	// ratingCount is the number of star raters; commentReviewCount would be
	// the 100-character review count.
	reviewCount := item.SubInfo.RatingInfo.RatingCount

	if rating == nil && item.CustomerReviewRank != nil {
		rating = item.CustomerReviewRank
	}

	log.Debug("rating extracted", "method", "api")
	return rating, reviewCount, nil
}

// OriginalEdition looks up original-work metadata for the book found by
// the preceding keyword search. Resolution order: the ItemLookUp
// originalTitle field, then for translated works an author search against
// Aladin's foreign-book catalog.
func (a *Aladin) OriginalEdition(ctx context.Context, sess *Session, query string) (*OriginalEdition, error) {
	log := sess.Logger(a.Name())

	if _, err := a.searchKeyword(ctx, log, query); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("itemIdType", "ItemId")
	params.Set("ItemId", fmt.Sprint(a.currentItemID))

	var result aladinLookupResponse
	if err := a.apiRequest(ctx, log, "ItemLookUp.aspx", params, &result); err != nil {
		return nil, err
	}
	if len(result.Item) == 0 {
		return nil, ErrNotFound
	}

	item := result.Item[0]
	originalTitle := item.SubInfo.OriginalTitle
	author := item.Author
	isbn13 := item.ISBN13
	if isbn13 == "" {
		isbn13 = a.currentISBN13
	}

	if originalTitle != "" {
		originalTitle = html.UnescapeString(originalTitle)
		originalTitle = strings.TrimSpace(aladinYearSuffix.ReplaceAllString(originalTitle, ""))
		log.Debug("original title found", "title", originalTitle)
	}

	if originalTitle == "" {
		authorName, translated := parseAladinAuthor(author)
		if !translated {
			// A Korean original work has no foreign edition to search for.
			return nil, ErrNotFound
		}
		if authorName != "" {
			log.Debug("translated work, searching foreign catalog", "author", authorName)
			if foreign := a.searchForeignEdition(ctx, log, authorName); foreign != nil {
				originalTitle = foreign.Title
				if foreign.ISBN13 != "" {
					isbn13 = foreign.ISBN13
				}
			}
		}
	}

	if originalTitle == "" && isbn13 == "" {
		return nil, ErrNotFound
	}
	return &OriginalEdition{Title: originalTitle, Author: author, ISBN13: isbn13}, nil
}

// searchForeignEdition queries Aladin's foreign-book catalog by the
// author's Korean name.
func (a *Aladin) searchForeignEdition(ctx context.Context, log *slog.Logger, author string) *OriginalEdition {
	params := url.Values{}
	params.Set("Query", author)
	params.Set("QueryType", "Author")
	params.Set("MaxResults", "5")
	params.Set("SearchTarget", "Foreign")

	var result aladinSearchResponse
	if err := a.apiRequest(ctx, log, "ItemSearch.aspx", params, &result); err != nil {
		return nil
	}
	if len(result.Item) == 0 || result.Item[0].Title == "" {
		return nil
	}
	item := result.Item[0]
	log.Debug("foreign catalog match", "title", item.Title, "isbn13", item.ISBN13)
	return &OriginalEdition{Title: item.Title, ISBN13: item.ISBN13}
}

// parseAladinAuthor extracts the author name from Aladin's combined credit
// string ("저자명 (지은이), 역자명 (옮긴이)") and reports whether the book
// is a translation.
func parseAladinAuthor(author string) (name string, translated bool) {
	translated = strings.Contains(author, "옮긴이")
	if m := aladinAuthorName.FindStringSubmatch(author); m != nil {
		name = strings.TrimSpace(m[1])
	}
	return name, translated
}

type aladinSearchResponse struct {
	Item []aladinItem `json:"item"`
}

type aladinLookupResponse struct {
	Item []aladinItem `json:"item"`
}

type aladinItem struct {
	ItemID             int64    `json:"itemId"`
	Title              string   `json:"title"`
	Link               string   `json:"link"`
	Author             string   `json:"author"`
	Publisher          string   `json:"publisher"`
	ISBN13             string   `json:"isbn13"`
	SalesPoint         float64  `json:"salesPoint"`
	CustomerReviewRank *float64 `json:"customerReviewRank"`
	SubInfo            struct {
		OriginalTitle string `json:"originalTitle"`
		RatingInfo    struct {
			RatingScore *float64 `json:"ratingScore"`
			RatingCount int      `json:"ratingCount"`
		} `json:"ratingInfo"`
	} `json:"subInfo"`
}
