package model

import "strings"

// CleanISBN strips hyphens and spaces from an ISBN-like string.
func CleanISBN(isbn string) string {
	isbn = strings.ReplaceAll(isbn, "-", "")
	return strings.ReplaceAll(isbn, " ", "")
}

// IsISBN reports whether the query looks like an ISBN-10 or ISBN-13:
// digits only after stripping hyphens/spaces, length 10 or 13.
func IsISBN(query string) bool {
	clean := CleanISBN(query)
	if len(clean) != 10 && len(clean) != 13 {
		return false
	}
	for _, c := range clean {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// IsASIN reports whether the query looks like an Amazon ASIN: ten
// alphanumeric characters starting with 'B' and containing at least one
// digit. Purely alphabetic strings are titles, not ASINs.
func IsASIN(query string) bool {
	clean := CleanISBN(query)
	if len(clean) != 10 {
		return false
	}
	if clean[0] != 'B' && clean[0] != 'b' {
		return false
	}
	hasDigit := false
	for _, c := range clean {
		switch {
		case c >= '0' && c <= '9':
			hasDigit = true
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		default:
			return false
		}
	}
	return hasDigit
}

// ContainsHangul reports whether the text contains Korean script.
func ContainsHangul(text string) bool {
	for _, r := range text {
		if r >= 0xAC00 && r <= 0xD7A3 {
			return true
		}
	}
	return false
}
