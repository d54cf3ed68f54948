// Package similarity implements the lexical title matching used by the
// keyword rankers and the ISBN lookup chain.
package similarity

import (
	"regexp"
	"strings"
)

var normalizePattern = regexp.MustCompile(`[\s\-_,.()\[\]:]`)

// Normalize lowercases a title and strips whitespace and punctuation so
// that "Clean Code: A Handbook" and "clean code a handbook" compare equal.
func Normalize(title string) string {
	return strings.ToLower(normalizePattern.ReplaceAllString(title, ""))
}

// Ratio returns a similarity ratio in [0,1] between two strings:
// 2*M / (len(a)+len(b)) where M is the length of their longest common
// subsequence, computed over runes.
func Ratio(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}

	// Single-row LCS table.
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	lcs := prev[len(rb)]
	return 2 * float64(lcs) / float64(len(ra)+len(rb))
}

// TitleMatch reports whether a candidate title matches the query title at
// or above the given ratio. Substring containment in either direction
// counts as a strong match regardless of the ratio.
func TitleMatch(query, candidate string, minRatio float64) bool {
	q := strings.ToLower(query)
	c := strings.ToLower(candidate)
	if q == "" || c == "" {
		return false
	}
	if strings.Contains(q, c) || strings.Contains(c, q) {
		return true
	}
	return Ratio(q, c) >= minRatio
}
