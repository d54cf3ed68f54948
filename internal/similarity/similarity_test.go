package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "spaces and case", input: "Clean Code", expected: "cleancode"},
		{name: "punctuation", input: "Clean Code: A Handbook", expected: "cleancodeahandbook"},
		{name: "brackets and dashes", input: "[Set] Demian - Hesse", expected: "setdemianhesse"},
		{name: "korean unchanged", input: "클린 코드", expected: "클린코드"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Normalize(tc.input))
		})
	}
}

func TestRatio(t *testing.T) {
	assert.InDelta(t, 1.0, Ratio("demian", "demian"), 0.0001)
	assert.InDelta(t, 0.0, Ratio("abc", "xyz"), 0.0001)
	assert.Greater(t, Ratio("clean code", "clean coder"), 0.9)
	assert.Less(t, Ratio("clean code", "refactoring"), 0.5)
	assert.InDelta(t, 1.0, Ratio("", ""), 0.0001)
	assert.InDelta(t, 0.0, Ratio("", "abc"), 0.0001)
}

func TestTitleMatch(t *testing.T) {
	// Containment overrides a poor ratio in either direction.
	assert.True(t, TitleMatch("Siddhartha", "Siddhartha: A Novel by Hermann Hesse", 0.9))
	assert.True(t, TitleMatch("Siddhartha: A Novel", "siddhartha", 0.9))

	assert.True(t, TitleMatch("clean code", "Clean Code", 0.6))
	assert.False(t, TitleMatch("clean code", "The Pragmatic Programmer", 0.6))
	assert.False(t, TitleMatch("", "anything", 0.6))
}
