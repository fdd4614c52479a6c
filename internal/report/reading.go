package report

import (
	"math"
	"strings"
	"unicode"
)

// readingWPM is the assumed reading speed for analysis prose.
const readingWPM = 220

// ReadingMinutes estimates how long the body takes to read, rounded up.
// Empty text is 0 minutes, anything else at least 1.
func ReadingMinutes(text string) int {
	words := countWords(text)
	if words == 0 {
		return 0
	}
	return max(1, int(math.Ceil(float64(words)/readingWPM)))
}

// countWords counts runs of letters or digits, so markdown syntax such as
// "##", "-" or "**" does not inflate the count.
func countWords(text string) int {
	return len(strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\'' && r != '%'
	}))
}
