// Package match resolves normalized person and committee names to database ids.
package match

import (
	"math"
	"sort"
	"strings"

	"github.com/agext/levenshtein"

	"github.com/sells-group/congress-cli/internal/normalize"
)

// ratio is the Levenshtein similarity of two strings scaled to 0..100.
func ratio(a, b string) float64 {
	if a == "" && b == "" {
		return 100
	}
	return round2(levenshtein.Similarity(a, b, nil) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// TokenSort scores two names after sorting their key tokens, so word order
// does not matter ("Grassley Chuck" vs "Chuck Grassley" scores 100).
func TokenSort(a, b string) float64 {
	return ratio(sortedTokens(strings.Fields(normalize.Key(a))), sortedTokens(strings.Fields(normalize.Key(b))))
}

func sortedTokens(tokens []string) string {
	out := append([]string(nil), tokens...)
	sort.Strings(out)
	return strings.Join(out, " ")
}

// TokenSet scores two committee phrases by comparing their shared tokens
// against each side's remainder. A phrase whose tokens are a subset of the
// other's scores 100.
func TokenSet(a, b string) float64 {
	ta, tb := uniq(normalize.Tokens(a)), uniq(normalize.Tokens(b))
	inB := make(map[string]bool, len(tb))
	for _, t := range tb {
		inB[t] = true
	}
	inA := make(map[string]bool, len(ta))
	for _, t := range ta {
		inA[t] = true
	}

	var inter, onlyA, onlyB []string
	for _, t := range ta {
		if inB[t] {
			inter = append(inter, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for _, t := range tb {
		if !inA[t] {
			onlyB = append(onlyB, t)
		}
	}
	if len(ta) == 0 || len(tb) == 0 {
		return ratio(strings.Join(ta, " "), strings.Join(tb, " "))
	}

	base := sortedTokens(inter)
	withA := strings.TrimSpace(base + " " + sortedTokens(onlyA))
	withB := strings.TrimSpace(base + " " + sortedTokens(onlyB))

	best := ratio(withA, withB)
	if base != "" {
		best = math.Max(best, math.Max(ratio(base, withA), ratio(base, withB)))
	}
	return best
}

func uniq(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	out := tokens[:0:0]
	for _, t := range tokens {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
