package isbn

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"bookrate/internal/fetch"
)

// Overridable in tests.
var yes24ScrapeBaseURL = "https://www.yes24.com"

// scrapeRomanizedAuthor pulls the romanized author name off the bookstore
// detail page for a localized title. Korean editions of foreign books
// list the author's original name in parentheses next to the Korean one.
func scrapeRomanizedAuthor(ctx context.Context, localTitle string) (string, error) {
	searchURL := yes24ScrapeBaseURL + "/Product/Search?domain=ALL&query=" + url.QueryEscape(localTitle)
	html, err := fetch.Get(ctx, searchURL)
	if err != nil {
		return "", err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	href := ""
	doc.Find("a.gd_name").EachWithBreak(func(_ int, link *goquery.Selection) bool {
		h, _ := link.Attr("href")
		if strings.Contains(strings.ToLower(h), "/product/goods/") {
			href = h
			return false
		}
		return true
	})
	if href == "" {
		return "", nil
	}
	if strings.HasPrefix(href, "/") {
		href = yes24ScrapeBaseURL + href
	}

	detail, err := fetch.Get(ctx, href)
	if err != nil {
		return "", err
	}
	detailDoc, err := goquery.NewDocumentFromReader(strings.NewReader(detail))
	if err != nil {
		return "", err
	}

	name := strings.TrimSpace(detailDoc.Find("span.name_other").First().Text())
	name = strings.TrimPrefix(name, "(")
	name = strings.TrimSuffix(name, ")")
	return strings.TrimSpace(name), nil
}
