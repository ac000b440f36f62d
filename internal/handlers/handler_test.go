package handlers

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeTextTrimsAndStripsControlChars(t *testing.T) {
	assert.Equal(t, "hello", sanitizeText("  hello\t\x00 ", 100))
	assert.Equal(t, "line one\nline two", sanitizeText("line one\nline two", 100), "newlines survive")
	assert.Equal(t, "clean", sanitizeText("\x00\x01clean\x7f", 100))
}

func TestSanitizeTextTruncatesOnRuneBoundary(t *testing.T) {
	in := strings.Repeat("ñ", 10) // two bytes per rune
	out := sanitizeText(in, 5)

	assert.True(t, utf8.ValidString(out))
	assert.Equal(t, strings.Repeat("ñ", 2), out)
	assert.LessOrEqual(t, len(out), 5)

	// A four byte rune straddling the limit is dropped whole.
	out = sanitizeText("ab\U0001F600", 4)
	assert.True(t, utf8.ValidString(out))
	assert.Equal(t, "ab", out)
}

func TestIsValidEmail(t *testing.T) {
	assert.True(t, isValidEmail("student@upr.edu"))
	assert.False(t, isValidEmail("not-an-email"))
	assert.False(t, isValidEmail("trailing@dot."))
}
