// Package analysis implements the similarity detection pipeline: tokenization,
// TF-IDF vectorization, all-pairs cosine similarity, and suspicion classification.
package analysis

import (
	"strings"
	"unicode"
)

// Tokenize normalizes raw text into word tokens: lower-cased, punctuation and
// whitespace runs stripped. Empty or whitespace-only input yields an empty
// slice. Malformed UTF-8 is replaced with the replacement character, never an error.
func Tokenize(raw string) []string {
	raw = strings.ToValidUTF8(raw, "�")
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteByte(' ')
		}
	}
	return strings.Fields(b.String())
}
