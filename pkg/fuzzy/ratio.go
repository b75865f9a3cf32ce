// Package fuzzy implements the string similarity metrics used for schema
// name resolution: plain edit-distance ratio, best-substring partial ratio,
// and a token-sort ratio that ignores word order.
//
// All ratios are integers in 0..100 so they compose directly with the
// resolver's score ladder.
package fuzzy

import (
	"sort"
	"strings"
)

// Distance calculates the Levenshtein edit distance between two strings.
func Distance(s1, s2 string) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	// Use two rows of the DP table for space efficiency
	prev := make([]int, len(s2)+1)
	curr := make([]int, len(s2)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(s1); i++ {
		curr[0] = i
		for j := 1; j <= len(s2); j++ {
			cost := 0
			if s1[i-1] != s2[j-1] {
				cost = 1
			}
			curr[j] = minInt(
				curr[j-1]+1,    // insertion
				prev[j]+1,      // deletion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(s2)]
}

// Ratio returns a 0..100 similarity score derived from edit distance over
// the longer string. Identical strings score 100, fully dissimilar 0.
func Ratio(a, b string) int {
	if a == b {
		return 100
	}
	longer := len(a)
	if len(b) > longer {
		longer = len(b)
	}
	if longer == 0 {
		return 100
	}
	d := Distance(a, b)
	return (longer - d) * 100 / longer
}

// PartialRatio returns the best Ratio between the shorter string and any
// equal-length substring of the longer one. "app" against "applications"
// scores 100 because "app" appears verbatim.
func PartialRatio(a, b string) int {
	shorter, longer := a, b
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if len(shorter) == 0 {
		if len(longer) == 0 {
			return 100
		}
		return 0
	}

	best := 0
	for i := 0; i+len(shorter) <= len(longer); i++ {
		r := Ratio(shorter, longer[i:i+len(shorter)])
		if r > best {
			best = r
		}
		if best == 100 {
			break
		}
	}
	return best
}

// TokenSortRatio splits both strings on non-letter boundaries, sorts the
// tokens, and compares the rejoined forms. Word order and separators stop
// mattering: "student cars" matches "cars_student".
func TokenSortRatio(a, b string) int {
	return Ratio(sortedTokens(a), sortedTokens(b))
}

func sortedTokens(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})
	sort.Strings(fields)
	return strings.Join(fields, " ")
}

// BestRatio returns the maximum of Ratio, PartialRatio and TokenSortRatio,
// the composite score the resolver uses for typo-tolerant matching.
func BestRatio(a, b string) int {
	best := Ratio(a, b)
	if r := PartialRatio(a, b); r > best {
		best = r
	}
	if r := TokenSortRatio(a, b); r > best {
		best = r
	}
	return best
}

// SequenceRatio returns a 0..1 similarity based on the longest common
// subsequence, comparable to difflib-style matching. Used by the suggestion
// engine where fractional confidences are reported.
func SequenceRatio(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	lcs := lcsLength(a, b)
	return 2.0 * float64(lcs) / float64(len(a)+len(b))
}

// lcsLength computes the longest common subsequence length with two rows.
func lcsLength(a, b string) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
		for j := range curr {
			curr[j] = 0
		}
	}
	return prev[len(b)]
}

// minInt returns the minimum of three integers.
func minInt(a, b, c int) int {
	if a <= b && a <= c {
		return a
	}
	if b <= c {
		return b
	}
	return c
}
