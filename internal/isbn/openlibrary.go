package isbn

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"bookrate/internal/fetch"
	"bookrate/internal/ratelimit"
)

// Overridable in tests.
var openLibraryBaseURL = "https://openlibrary.org"

// OpenLibrary queries the Open Library APIs. No key required.
type OpenLibrary struct{}

// NewOpenLibrary creates the provider.
func NewOpenLibrary() *OpenLibrary { return &OpenLibrary{} }

func (o *OpenLibrary) Name() string { return "open_library" }

// Open Library asks clients to stay under a request per second or so;
// the find-original walk fires several calls back to back.
var openLibraryLimiter = ratelimit.PerSecond("open-library", 2)

func (o *OpenLibrary) apiGet(ctx context.Context, path string, v any) error {
	if err := openLibraryLimiter.Wait(ctx); err != nil {
		return err
	}
	body, err := fetch.Get(ctx, openLibraryBaseURL+path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(body), v); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

// Search returns the first search document carrying an ISBN, 13-digit
// ones preferred.
func (o *OpenLibrary) Search(ctx context.Context, title, author string) (*Result, error) {
	query := cleanTitle(title)
	if a := cleanAuthor(author); a != "" {
		query += " " + a
	}

	var data openLibrarySearchResponse
	if err := o.apiGet(ctx, "/search.json?q="+url.QueryEscape(query)+"&limit=5", &data); err != nil {
		return nil, err
	}

	for _, doc := range data.Docs {
		if isbn := pickISBN(doc.ISBN); isbn != "" {
			return &Result{ISBN: isbn, Title: doc.Title, Authors: doc.AuthorName, Provider: o.Name()}, nil
		}
	}
	return nil, nil
}

// FindOriginalByISBN walks edition to work to sibling editions: the work
// record carries the original title, and an English (or failing that, any
// non-Korean) edition supplies the original ISBN.
func (o *OpenLibrary) FindOriginalByISBN(ctx context.Context, isbn string) (*Original, error) {
	var edition openLibraryEdition
	if err := o.apiGet(ctx, "/isbn/"+isbn+".json", &edition); err != nil {
		return nil, err
	}
	if len(edition.Works) == 0 || edition.Works[0].Key == "" {
		return nil, nil
	}
	workKey := edition.Works[0].Key

	var work openLibraryWork
	if err := o.apiGet(ctx, workKey+".json", &work); err != nil {
		return nil, err
	}
	if work.Title == "" {
		return nil, nil
	}

	original := &Original{Title: work.Title}

	var editions openLibraryEditionsResponse
	if err := o.apiGet(ctx, workKey+"/editions.json?limit=20", &editions); err != nil {
		// The work title alone is still a usable result.
		return original, nil
	}

	for _, ed := range editions.Entries {
		if ed.hasLanguage("/languages/eng") {
			if isbn := ed.firstISBN(); isbn != "" {
				original.ISBN = isbn
				break
			}
		}
	}
	if original.ISBN == "" {
		for _, ed := range editions.Entries {
			if ed.hasLanguage("/languages/kor") {
				continue
			}
			if isbn := ed.firstISBN(); isbn != "" {
				original.ISBN = isbn
				break
			}
		}
	}
	return original, nil
}

// pickISBN prefers a 13-digit ISBN from the document's list.
func pickISBN(isbns []string) string {
	isbn10 := ""
	for _, isbn := range isbns {
		switch len(isbn) {
		case 13:
			return isbn
		case 10:
			if isbn10 == "" {
				isbn10 = isbn
			}
		}
	}
	return isbn10
}

type openLibrarySearchResponse struct {
	Docs []struct {
		Title      string   `json:"title"`
		AuthorName []string `json:"author_name"`
		ISBN       []string `json:"isbn"`
	} `json:"docs"`
}

type openLibraryEdition struct {
	Works []struct {
		Key string `json:"key"`
	} `json:"works"`
}

type openLibraryWork struct {
	Title string `json:"title"`
}

type openLibraryEditionsResponse struct {
	Entries []openLibraryEditionEntry `json:"entries"`
}

type openLibraryEditionEntry struct {
	Languages []struct {
		Key string `json:"key"`
	} `json:"languages"`
	ISBN13 []string `json:"isbn_13"`
	ISBN10 []string `json:"isbn_10"`
}

func (e *openLibraryEditionEntry) hasLanguage(key string) bool {
	for _, lang := range e.Languages {
		if lang.Key == key {
			return true
		}
	}
	return false
}

func (e *openLibraryEditionEntry) firstISBN() string {
	if len(e.ISBN13) > 0 {
		return e.ISBN13[0]
	}
	if len(e.ISBN10) > 0 {
		return e.ISBN10[0]
	}
	return ""
}
