package ralph

import (
	"strings"
	"unicode"
)

const (
	ngramSize          = 5
	duplicateThreshold = 0.9
)

// isDuplicateEvidence reports whether candidate matches any previous evidence
// string: normalised 5-gram Jaccard >= 0.9. URL duplicates are handled
// separately by the loop via exact match.
func isDuplicateEvidence(candidate string, previous []string) bool {
	candGrams := ngrams(normalizeEvidence(candidate), ngramSize)

	for _, prev := range previous {
		if jaccard(candGrams, ngrams(normalizeEvidence(prev), ngramSize)) >= duplicateThreshold {
			return true
		}
	}

	return false
}

// normalizeEvidence trims, lowercases, strips punctuation, and collapses
// whitespace.
func normalizeEvidence(s string) string {
	var b strings.Builder

	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// ngrams returns the set of character n-grams of s. Strings shorter than n
// contribute themselves as a single gram so short texts still compare.
func ngrams(s string, n int) map[string]bool {
	grams := make(map[string]bool)

	runes := []rune(s)
	if len(runes) == 0 {
		return grams
	}

	if len(runes) <= n {
		grams[string(runes)] = true

		return grams
	}

	for i := 0; i+n <= len(runes); i++ {
		grams[string(runes[i:i+n])] = true
	}

	return grams
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}

	intersection := 0

	for g := range a {
		if b[g] {
			intersection++
		}
	}

	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}

	return float64(intersection) / float64(union)
}
