package platform

import (
	"regexp"
	"strconv"
	"strings"
)

var numberPattern = regexp.MustCompile(`([\d,]+)`)

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// firstNumber extracts the first comma-grouped integer in the text.
func firstNumber(text string) (int, bool) {
	m := numberPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return 0, false
	}
	return n, true
}
