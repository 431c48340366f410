// Package fuzzy provides nearest-string suggestion helpers shared by the
// configuration loader's "unknown field" messages and the skill
// registry's "unknown skill" pedagogical messages.
package fuzzy

import "strings"

// Suggest returns up to 3 candidates most similar to typo, ordered by
// ascending Levenshtein distance. Candidates farther than maxDistance are
// only included when typo and the candidate are substrings of one another
// (catches truncations and prefixes a strict distance cutoff would miss).
func Suggest(typo string, candidates []string, maxDistance int) []string {
	typoLower := strings.ToLower(typo)

	type scored struct {
		candidate string
		distance  int
	}
	var matches []scored

	for _, candidate := range candidates {
		candidateLower := strings.ToLower(candidate)
		distance := Distance(typoLower, candidateLower)

		switch {
		case distance <= maxDistance:
			matches = append(matches, scored{candidate, distance})
		case strings.Contains(candidateLower, typoLower) || strings.Contains(typoLower, candidateLower):
			matches = append(matches, scored{candidate, maxDistance})
		}
	}

	for i := 0; i < len(matches) && i < 3; i++ {
		best := i
		for j := i + 1; j < len(matches); j++ {
			if matches[j].distance < matches[best].distance {
				best = j
			}
		}
		if best != i {
			matches[i], matches[best] = matches[best], matches[i]
		}
	}

	limit := len(matches)
	if limit > 3 {
		limit = 3
	}

	suggestions := make([]string, 0, limit)
	for i := 0; i < limit; i++ {
		suggestions = append(suggestions, matches[i].candidate)
	}
	return suggestions
}

// Distance computes the Levenshtein edit distance between two strings.
func Distance(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	row := make([]int, len(b)+1)
	for j := range row {
		row[j] = j
	}

	for i := 1; i <= len(a); i++ {
		prev := row[0]
		row[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur := min3(row[j]+1, row[j-1]+1, prev+cost)
			prev = row[j]
			row[j] = cur
		}
	}

	return row[len(b)]
}

func min3(a, b, c int) int {
	if a < b {
		if a < c {
			return a
		}
		return c
	}
	if b < c {
		return b
	}
	return c
}
