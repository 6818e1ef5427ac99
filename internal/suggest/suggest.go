// Package suggest finds near matches for names the user mistyped.
package suggest

import (
	"sort"
	"strings"
)

// distance is the Levenshtein edit distance between a and b, by rune.
func distance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

// Names returns up to three candidates close to unknown, best first.
// Comparison ignores case. A candidate that starts with unknown always
// qualifies.
func Names(unknown string, candidates []string) []string {
	needle := strings.ToLower(strings.TrimSpace(unknown))
	if needle == "" {
		return nil
	}

	type scored struct {
		name  string
		score int
	}
	var matches []scored
	maxDist := max(2, len([]rune(needle))/2)
	for _, c := range candidates {
		lc := strings.ToLower(c)
		d := distance(needle, lc)
		if strings.HasPrefix(lc, needle) {
			d = 0
		}
		if d <= maxDist {
			matches = append(matches, scored{c, d})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].score < matches[j].score })

	var out []string
	for i := 0; i < len(matches) && i < 3; i++ {
		out = append(out, matches[i].name)
	}
	return out
}
