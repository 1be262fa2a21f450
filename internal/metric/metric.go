// Package metric provides distance functions usable as BK-tree metrics.
package metric

import (
	"math/bits"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Levenshtein returns the edit distance between a and b: the least number of
// single-rune insertions, deletions and substitutions turning one into the
// other. Bytes that are not valid UTF-8 are compared as individual symbols, so
// the distance is zero only for identical strings.
func Levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	s, t := symbols(a), symbols(b)
	if len(s) < len(t) {
		s, t = t, s
	}
	if len(t) == 0 {
		return len(s)
	}

	// Two rows of the DP table, indexed by position in the shorter string.
	prev := make([]int, len(t)+1)
	curr := make([]int, len(t)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(s); i++ {
		curr[0] = i
		for j := 1; j <= len(t); j++ {
			cost := 1
			if s[i-1] == t[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(t)]
}

// symbols decodes s into runes; invalid bytes become distinct negative values.
func symbols(s string) []int32 {
	out := make([]int32, 0, len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			out = append(out, -1-int32(s[i]))
		} else {
			out = append(out, r)
		}
		i += size
	}
	return out
}

// Hamming returns the number of differing bits between two 64-bit hashes.
func Hamming(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// Normalize trims surrounding space, applies Unicode NFC composition and case
// folding, so that visually identical terms compare at distance zero.
func Normalize(s string) string {
	s = norm.NFC.String(strings.TrimSpace(s))
	// A Caser keeps state between calls and cannot be shared.
	return cases.Fold().String(s)
}
