package graph

import (
	"strings"

	"github.com/notegraph/backend/pkg/common"
)

// CalculateSimilarity scores how likely two nodes are to describe the same
// entity, in [0, 1]. Nodes of different canonical types never match and
// score 0. Otherwise the score combines:
//
//   - label similarity: the better of a normalized Levenshtein ratio and a
//     token containment check, so that "Alice" still matches "Alice Smith"
//   - property overlap: matching key/value pairs over the union of keys;
//     two nodes without any properties count as fully overlapping
//
// weighted by the configured label and property weights.
func (c *GraphClient) CalculateSimilarity(a, b common.Node) float64 {
	if c.canonicalType(a.Type) != c.canonicalType(b.Type) {
		return 0
	}
	labelSim := labelSimilarity(normalizeLabel(a.Label), normalizeLabel(b.Label))
	propSim := propertyOverlap(a.Properties, b.Properties)
	return c.labelWeight*labelSim + c.propertyWeight*propSim
}

// ShouldMerge reports whether two nodes score at or above the merge threshold.
func (c *GraphClient) ShouldMerge(a, b common.Node) bool {
	return c.CalculateSimilarity(a, b) >= c.mergeThreshold
}

func labelSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}

	lev := levenshteinRatio(a, b)
	tok := tokenSimilarity(a, b)
	if tok > lev {
		return tok
	}
	return lev
}

// levenshteinRatio is 1 minus the edit distance normalized by the longer
// string's length.
func levenshteinRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(ra, rb))/float64(longest)
}

func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min3(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

// tokenSimilarity treats labels as word sets. A label whose words are all
// contained in the other label is a full match; otherwise the Dice
// coefficient of the two sets is used.
func tokenSimilarity(a, b string) float64 {
	ta, tb := tokenSet(a), tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	shared := 0
	for t := range ta {
		if tb[t] {
			shared++
		}
	}
	if shared == len(ta) || shared == len(tb) {
		return 1
	}
	return 2 * float64(shared) / float64(len(ta)+len(tb))
}

func tokenSet(s string) map[string]bool {
	set := map[string]bool{}
	for _, t := range strings.Fields(s) {
		set[t] = true
	}
	return set
}

// propertyOverlap is the number of key/value pairs present and equal in both
// maps, divided by the number of distinct keys across both. Two empty maps
// overlap fully.
func propertyOverlap(a, b map[string]string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}

	keys := map[string]bool{}
	for k := range a {
		keys[k] = true
	}
	for k := range b {
		keys[k] = true
	}

	matching := 0
	for k := range keys {
		va, oka := a[k]
		vb, okb := b[k]
		if oka && okb && va == vb {
			matching++
		}
	}
	return float64(matching) / float64(len(keys))
}
