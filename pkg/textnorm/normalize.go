// Package textnorm normalises free-text queries and compares track titles
// across catalogues.
package textnorm

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	featRegex       = regexp.MustCompile(`(?i)\s*[\(\[]?\s*(?:feat\.?|ft\.?|featuring)\s+[^\)\]]*[\)\]]?\s*`)
	versionRegex    = regexp.MustCompile(`(?i)\s*[\(\[]\s*(?:official\s+(?:music\s+)?video|official\s+audio|lyrics?(?:\s+video)?|audio|visualizer|remaster(?:ed)?(?:\s+\d{4})?|radio edit|explicit|clean)\s*[\)\]]\s*`)
	punctRegex      = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
)

// Query prepares user input for an upstream search: compatibility forms
// are folded (full-width letters, ligatures) and whitespace is collapsed.
func Query(s string) string {
	s = norm.NFKC.String(s)
	s = whitespaceRegex.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Fold reduces s to lowercase letters, digits and single spaces with
// diacritics removed, for comparisons.
func Fold(s string) string {
	s = norm.NFKD.String(s)

	var b strings.Builder
	for _, r := range s {
		if !unicode.IsMark(r) {
			b.WriteRune(r)
		}
	}
	s = b.String()

	s = punctRegex.ReplaceAllString(s, " ")
	s = whitespaceRegex.ReplaceAllString(s, " ")
	return strings.TrimSpace(strings.ToLower(s))
}

// CleanTitle strips featured artists and video decorations such as
// "(Official Video)" from a title and folds it.
func CleanTitle(title string) string {
	title = featRegex.ReplaceAllString(title, " ")
	title = versionRegex.ReplaceAllString(title, " ")
	return Fold(title)
}

// Similarity returns a score in [0, 1] based on the longest common
// subsequence of the folded inputs.
func Similarity(a, b string) float64 {
	a, b = Fold(a), Fold(b)
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	ra, rb := []rune(a), []rune(b)
	return float64(lcs(ra, rb)) / float64(max(len(ra), len(rb)))
}

func lcs(a, b []rune) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else {
				curr[j] = max(prev[j], curr[j-1])
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
