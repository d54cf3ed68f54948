package platform

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goodreadsDetailHTML = `<html><body>
<h1 data-testid="bookTitle">The Vegetarian</h1>
<script type="application/ld+json">
{"@type":"Book","name":"The Vegetarian","aggregateRating":{"@type":"AggregateRating","ratingValue":4.35,"ratingCount":231842,"reviewCount":25817}}
</script>
</body></html>`

func stubGoodreadsBaseURL(t *testing.T, url string) {
	t.Helper()
	orig := goodreadsBaseURL
	goodreadsBaseURL = url
	t.Cleanup(func() { goodreadsBaseURL = orig })
}

func TestGoodreads_CrawlISBN(t *testing.T) {
	stubDelay(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/book/isbn/9781101906118", r.URL.Path)
		fmt.Fprint(w, goodreadsDetailHTML)
	}))
	t.Cleanup(server.Close)
	stubGoodreadsBaseURL(t, server.URL)

	outcome, err := NewGoodreads().Crawl(context.Background(), testSession(), "978-1-101-90611-8")

	require.NoError(t, err)
	assert.Equal(t, "goodreads", outcome.Platform)
	assert.Equal(t, "The Vegetarian", outcome.BookTitle)
	require.NotNil(t, outcome.Rating)
	assert.Equal(t, 4.35, *outcome.Rating)
	assert.Equal(t, 231842, outcome.ReviewCount)
	assert.Equal(t, 5, outcome.RatingScale)

	// 5-point ratings double on the shared 10-point scale.
	assert.InDelta(t, 8.7, *outcome.NormalizedRating(), 0.0001)
}

func TestGoodreads_ISBNMissIsNotFound(t *testing.T) {
	stubDelay(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><h3>Search results</h3></body></html>`)
	}))
	t.Cleanup(server.Close)
	stubGoodreadsBaseURL(t, server.URL)

	_, err := NewGoodreads().Crawl(context.Background(), testSession(), "9781101906118")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGoodreads_KeywordSearchResultList(t *testing.T) {
	stubDelay(t)
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Human Acts", r.URL.Query().Get("q"))
		fmt.Fprint(w, `<html><body><table>
<tr><td><a class="bookTitle" href="/book/show/30091914-human-acts"><span>Human Acts</span></a></td></tr>
</table></body></html>`)
	})
	mux.HandleFunc("/book/show/30091914-human-acts", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
<h1 data-testid="bookTitle">Human Acts</h1>
<script type="application/ld+json">{"aggregateRating":{"ratingValue":4.42,"ratingCount":70211}}</script>
</body></html>`)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	stubGoodreadsBaseURL(t, server.URL)

	outcome, err := NewGoodreads().Crawl(context.Background(), testSession(), "Human Acts")

	require.NoError(t, err)
	assert.Equal(t, "Human Acts", outcome.BookTitle)
	assert.Equal(t, 4.42, *outcome.Rating)
	assert.Equal(t, 70211, outcome.ReviewCount)
}

func TestParseGoodreadsDetail_AriaFallback(t *testing.T) {
	html := `<html><body>
<h1 data-testid="bookTitle">The White Book</h1>
<div class="RatingStatistics__column"><span class="RatingStars__medium" aria-label="Rating 3.68 out of 5"></span></div>
<span data-testid="reviewsCount">18,204 reviews</span>
</body></html>`

	title, rating, reviewCount := parseGoodreadsDetail(html)

	assert.Equal(t, "The White Book", title)
	require.NotNil(t, rating)
	assert.Equal(t, 3.68, *rating)
	assert.Equal(t, 18204, reviewCount)
}
