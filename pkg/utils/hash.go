package utils

import (
	"crypto/md5"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

func HashString(input string) string {
	hash := md5.Sum([]byte(input))
	return fmt.Sprintf("%x", hash)
}

// NormalizeText lowercases s, trims it and collapses every run of whitespace to one space.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

var foldMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify turns a display name into a lowercase, hyphen-joined URL path segment.
// Accents are folded ("Björk" -> "bjork"); other letters and digits are kept, punctuation is dropped.
// The result is empty when s has no letters or digits.
func Slugify(s string) string {
	folded, _, err := transform.String(foldMarks, strings.ToLower(s))
	if err != nil {
		folded = strings.ToLower(s)
	}

	var parts []string
	for _, field := range strings.Fields(folded) {
		var b strings.Builder
		for _, r := range field {
			if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' {
				b.WriteRune(r)
			}
		}
		if b.Len() > 0 {
			parts = append(parts, b.String())
		}
	}
	return strings.Join(parts, "-")
}
