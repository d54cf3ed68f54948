// Package isbn looks up ISBNs and original-work metadata through public
// book APIs: Google Books first when a key is configured, Open Library as
// the keyless fallback.
package isbn

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
)

// Result is one successful ISBN lookup.
type Result struct {
	ISBN     string
	Title    string
	Authors  []string
	Provider string
}

// ISBN13 returns the ISBN when it is a 13-digit one, else "".
func (r *Result) ISBN13() string {
	if len(r.ISBN) == 13 {
		return r.ISBN
	}
	return ""
}

// Original is original-work metadata recovered for a localized edition.
type Original struct {
	Title   string
	Authors []string
	ISBN    string
}

// Provider is one ISBN lookup backend. A miss is (nil, nil); errors are
// transport-level and let the chain continue with the next provider.
type Provider interface {
	Name() string
	Search(ctx context.Context, title, author string) (*Result, error)
}

// isbnOriginalFinder recovers original-work metadata from a localized
// edition's ISBN.
type isbnOriginalFinder interface {
	FindOriginalByISBN(ctx context.Context, isbn string) (*Original, error)
}

// titleOriginalFinder recovers original-work metadata from a localized
// title or a romanized author name.
type titleOriginalFinder interface {
	FindOriginalByTitle(ctx context.Context, title string) (*Original, error)
	FindOriginalByAuthor(ctx context.Context, author string) (*Original, error)
}

var (
	queryNoise  = regexp.MustCompile(`[():]`)
	authorCred  = regexp.MustCompile(`\(.*?\)`)
	whitespaces = regexp.MustCompile(`\s+`)
)

// cleanTitle strips punctuation that confuses phrase queries.
func cleanTitle(title string) string {
	return strings.TrimSpace(whitespaces.ReplaceAllString(queryNoise.ReplaceAllString(title, " "), " "))
}

// cleanAuthor strips role credits like "(지은이)" and keeps the first
// listed name.
func cleanAuthor(author string) string {
	author = authorCred.ReplaceAllString(author, "")
	author = strings.SplitN(author, ",", 2)[0]
	return strings.TrimSpace(author)
}

// Lookup chains providers in priority order.
type Lookup struct {
	providers []Provider
}

// NewLookup builds the default provider chain: Google Books when its API
// key is configured, always Open Library.
func NewLookup() *Lookup {
	var providers []Provider
	if g := NewGoogleBooks(); g.Available() {
		providers = append(providers, g)
	}
	providers = append(providers, NewOpenLibrary())
	return &Lookup{providers: providers}
}

// NewLookupWith builds a chain over explicit providers, in order.
func NewLookupWith(providers ...Provider) *Lookup {
	return &Lookup{providers: providers}
}

// Search returns the first provider hit for a title/author pair.
func (l *Lookup) Search(ctx context.Context, title, author string) *Result {
	for _, p := range l.providers {
		result, err := p.Search(ctx, title, author)
		if err != nil {
			slog.Warn("isbn provider search failed", "provider", p.Name(), "error", err)
			continue
		}
		if result != nil {
			slog.Debug("isbn found", "provider", p.Name(), "isbn", result.ISBN, "title", result.Title)
			return result
		}
	}
	return nil
}

// GetISBN is the string-only convenience form of Search.
func (l *Lookup) GetISBN(ctx context.Context, title, author string) string {
	if result := l.Search(ctx, title, author); result != nil {
		return result.ISBN
	}
	return ""
}

// FindOriginal recovers original-work metadata for a localized edition.
// Resolution order: the edition ISBN through whichever providers can walk
// it, then the localized title, then a romanized author name scraped off
// the bookstore detail page.
func (l *Lookup) FindOriginal(ctx context.Context, editionISBN, localTitle string) *Original {
	if editionISBN != "" {
		for _, p := range l.providers {
			finder, ok := p.(isbnOriginalFinder)
			if !ok {
				continue
			}
			original, err := finder.FindOriginalByISBN(ctx, editionISBN)
			if err != nil {
				slog.Warn("original lookup by isbn failed", "provider", p.Name(), "error", err)
				continue
			}
			if original != nil {
				return original
			}
		}
	}

	if localTitle == "" {
		return nil
	}

	for _, p := range l.providers {
		finder, ok := p.(titleOriginalFinder)
		if !ok {
			continue
		}
		original, err := finder.FindOriginalByTitle(ctx, localTitle)
		if err != nil {
			slog.Warn("original lookup by title failed", "provider", p.Name(), "error", err)
			continue
		}
		if original != nil {
			return original
		}
	}

	author, err := scrapeRomanizedAuthor(ctx, localTitle)
	if err != nil || author == "" {
		return nil
	}
	slog.Debug("romanized author scraped", "author", author)
	for _, p := range l.providers {
		finder, ok := p.(titleOriginalFinder)
		if !ok {
			continue
		}
		original, err := finder.FindOriginalByAuthor(ctx, author)
		if err != nil {
			continue
		}
		if original != nil {
			return original
		}
	}
	return nil
}
