package platform

import (
	"math"
	"regexp"
	"strings"

	"bookrate/internal/similarity"
)

// Keyword-ranking policy constants. These are tuned values, not contract:
// the only guarantee is best-candidate-above-floor wins.
const (
	exactMatchBonus  = 50
	substringBonus   = 20
	salesPointWeight = 15
	penaltyWeight    = 30
	minRankScore     = 30
)

// penaltyKeywords disqualify editions that rank well on popularity but are
// the wrong product: children's adaptations, workbooks, secondhand
// listings, comics.
var penaltyKeywords = []string{
	"중학생", "초등", "어린이", "청소년", "워크북", "중고", "만화", "코믹스",
}

// setKeywords exclude multi-volume bundles from keyword results.
var setKeywords = []string{"세트", "에디션", "전집", "박스세트", "3종", "2종"}

var primaryTitleSplit = regexp.MustCompile(`[:\-]`)

// rankCandidate is one keyword search result under scoring.
type rankCandidate struct {
	title      string
	salesPoint float64
}

// scoreCandidate ranks a candidate against the query: exact or
// primary-title match is a strong positive, substring containment a
// moderate one, sales rank a modest log-scaled one, and disqualifying
// keywords a strong negative.
func scoreCandidate(query string, c rankCandidate) float64 {
	queryNorm := similarity.Normalize(query)
	titleNorm := similarity.Normalize(c.title)

	score := similarity.Ratio(queryNorm, titleNorm) * 100

	primary := similarity.Normalize(primaryTitleSplit.Split(c.title, 2)[0])
	switch {
	case queryNorm == titleNorm:
		score += exactMatchBonus
	case queryNorm == primary:
		score += exactMatchBonus
	case strings.HasPrefix(titleNorm, queryNorm):
		score += exactMatchBonus
	case strings.Contains(titleNorm, queryNorm):
		score += substringBonus
	}

	if c.salesPoint > 0 {
		score += math.Log10(c.salesPoint) * salesPointWeight
	}

	for _, kw := range penaltyKeywords {
		if strings.Contains(c.title, kw) {
			score -= penaltyWeight
		}
	}
	return score
}

// bestCandidate returns the index of the highest-scoring candidate at or
// above the minimum floor, or -1 when every candidate falls below it.
func bestCandidate(query string, candidates []rankCandidate) int {
	best := -1
	bestScore := math.Inf(-1)
	for i, c := range candidates {
		if score := scoreCandidate(query, c); score > bestScore {
			best = i
			bestScore = score
		}
	}
	if bestScore < minRankScore {
		return -1
	}
	return best
}

// isBundleTitle reports whether a result title names a box set or bundled
// edition rather than a single book.
func isBundleTitle(title string) bool {
	for _, kw := range setKeywords {
		if strings.Contains(title, kw) {
			return true
		}
	}
	return false
}
