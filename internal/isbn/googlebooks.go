package isbn

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"bookrate/internal/config"
	"bookrate/internal/fetch"
	"bookrate/internal/ratelimit"
	"bookrate/internal/similarity"
)

// Overridable in tests.
var googleBooksBaseURL = "https://www.googleapis.com/books/v1/volumes"

// Similarity floor for accepting a volume as the searched title, and the
// score containment is promoted to.
const (
	googleBooksMinSimilarity  = 0.6
	googleBooksContainmentSim = 0.8
)

// asianLanguages are editions that cannot be the original of a book we
// are trying to find a Western edition for.
var asianLanguages = map[string]bool{"ko": true, "ja": true, "zh": true}

// GoogleBooks queries the Google Books volumes API. Requires an API key.
type GoogleBooks struct {
	apiKey string
}

// NewGoogleBooks creates the provider with the configured API key.
func NewGoogleBooks() *GoogleBooks {
	return &GoogleBooks{apiKey: config.GoogleBooksAPIKey}
}

func (g *GoogleBooks) Name() string { return "google_books" }

// Available reports whether the API key is configured.
func (g *GoogleBooks) Available() bool { return g.apiKey != "" }

// Keyed quota, paced rather than delayed.
var googleBooksLimiter = ratelimit.PerSecond("google-books", 2)

func (g *GoogleBooks) apiGet(ctx context.Context, query string, extraParams string) (*googleBooksResponse, error) {
	if err := googleBooksLimiter.Wait(ctx); err != nil {
		return nil, err
	}
	reqURL := fmt.Sprintf("%s?q=%s%s&key=%s", googleBooksBaseURL, url.QueryEscape(query), extraParams, g.apiKey)
	body, err := fetch.Get(ctx, reqURL)
	if err != nil {
		return nil, err
	}
	var data googleBooksResponse
	if err := json.Unmarshal([]byte(body), &data); err != nil {
		return nil, fmt.Errorf("decoding volumes response: %w", err)
	}
	return &data, nil
}

// Search looks up an ISBN for a title/author pair with phrase-scoped
// advanced query syntax. Results whose titles stray too far from the
// query are skipped.
func (g *GoogleBooks) Search(ctx context.Context, title, author string) (*Result, error) {
	if !g.Available() {
		return nil, nil
	}

	query := fmt.Sprintf("intitle:%q", cleanTitle(title))
	if a := cleanAuthor(author); a != "" {
		query += fmt.Sprintf(" inauthor:%q", a)
	}

	data, err := g.apiGet(ctx, query, "")
	if err != nil {
		return nil, err
	}

	for _, item := range data.Items {
		info := item.VolumeInfo
		if info.Title == "" {
			continue
		}

		score := similarity.Ratio(strings.ToLower(title), strings.ToLower(info.Title))
		if containsEither(title, info.Title) && score < googleBooksContainmentSim {
			score = googleBooksContainmentSim
		}
		if score < googleBooksMinSimilarity {
			continue
		}

		if isbn := extractISBN(info.IndustryIdentifiers); isbn != "" {
			return &Result{ISBN: isbn, Title: info.Title, Authors: info.Authors, Provider: g.Name()}, nil
		}
	}
	return nil, nil
}

// FindOriginalByISBN resolves a localized edition's ISBN to its original
// work via the volume's language field.
func (g *GoogleBooks) FindOriginalByISBN(ctx context.Context, isbn string) (*Original, error) {
	if !g.Available() {
		return nil, nil
	}
	data, err := g.apiGet(ctx, "isbn:"+isbn, "")
	if err != nil {
		return nil, err
	}
	return g.pickOriginal(ctx, data)
}

// FindOriginalByTitle searches the localized title and walks to a Western
// edition of the same work.
func (g *GoogleBooks) FindOriginalByTitle(ctx context.Context, title string) (*Original, error) {
	if !g.Available() {
		return nil, nil
	}
	data, err := g.apiGet(ctx, fmt.Sprintf("intitle:%q", title), "")
	if err != nil {
		return nil, err
	}
	return g.pickOriginal(ctx, data)
}

// FindOriginalByAuthor searches English-language volumes by author name.
func (g *GoogleBooks) FindOriginalByAuthor(ctx context.Context, author string) (*Original, error) {
	if !g.Available() {
		return nil, nil
	}
	return g.englishEditionByAuthor(ctx, author)
}

// pickOriginal inspects the top search hit: a non-Asian-language volume
// is itself the original; an Asian-language one pivots to an English
// search by its authors.
func (g *GoogleBooks) pickOriginal(ctx context.Context, data *googleBooksResponse) (*Original, error) {
	if len(data.Items) == 0 {
		return nil, nil
	}
	info := data.Items[0].VolumeInfo

	if !asianLanguages[info.Language] {
		if info.Title == "" {
			return nil, nil
		}
		return &Original{
			Title:   info.Title,
			Authors: info.Authors,
			ISBN:    extractISBN(info.IndustryIdentifiers),
		}, nil
	}

	for _, author := range info.Authors {
		original, err := g.englishEditionByAuthor(ctx, author)
		if err != nil {
			continue
		}
		if original != nil {
			return original, nil
		}
	}
	return nil, nil
}

func (g *GoogleBooks) englishEditionByAuthor(ctx context.Context, author string) (*Original, error) {
	query := fmt.Sprintf("inauthor:%q", author)
	data, err := g.apiGet(ctx, query, "&langRestrict=en&maxResults=5")
	if err != nil {
		return nil, err
	}
	for _, item := range data.Items {
		info := item.VolumeInfo
		if info.Title == "" {
			continue
		}
		return &Original{
			Title:   info.Title,
			Authors: info.Authors,
			ISBN:    extractISBN(info.IndustryIdentifiers),
		}, nil
	}
	return nil, nil
}

// extractISBN prefers ISBN-13 over ISBN-10.
func extractISBN(identifiers []googleBooksIdentifier) string {
	isbn10 := ""
	for _, ident := range identifiers {
		switch ident.Type {
		case "ISBN_13":
			return ident.Identifier
		case "ISBN_10":
			if isbn10 == "" {
				isbn10 = ident.Identifier
			}
		}
	}
	return isbn10
}

func containsEither(a, b string) bool {
	a, b = strings.ToLower(a), strings.ToLower(b)
	return strings.Contains(a, b) || strings.Contains(b, a)
}

type googleBooksResponse struct {
	TotalItems int `json:"totalItems"`
	Items      []struct {
		VolumeInfo struct {
			Title               string                  `json:"title"`
			Authors             []string                `json:"authors"`
			Language            string                  `json:"language"`
			IndustryIdentifiers []googleBooksIdentifier `json:"industryIdentifiers"`
		} `json:"volumeInfo"`
	} `json:"items"`
}

type googleBooksIdentifier struct {
	Type       string `json:"type"`
	Identifier string `json:"identifier"`
}
