package metadata

import (
	"sort"
	"strings"
	"unicode"

	"flikz/models"
)

// foldTitle lowercases s, keeps letters and digits, and collapses everything
// else into single spaces. "&" counts as "and".
func foldTitle(s string) string {
	s = strings.ReplaceAll(s, "&", " and ")
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// editDistance is the rune-wise Levenshtein distance, kept to two rows.
func editDistance(a, b []rune) int {
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
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

// titleSimilarity scores name against what the user typed, from 0 to 1.
// A name that starts with the query on a word boundary scores at least 0.9.
func titleSimilarity(query, name string) float64 {
	q, n := foldTitle(query), foldTitle(name)
	if q == "" || n == "" {
		return 0
	}
	if q == n {
		return 1
	}
	qr, nr := []rune(q), []rune(n)
	if strings.HasPrefix(n, q) && (len(nr) == len(qr) || nr[len(qr)] == ' ' || unicode.IsDigit(nr[len(qr)])) {
		return 0.9 + 0.1*float64(len(qr))/float64(len(nr))
	}
	return 1 - float64(editDistance(qr, nr))/float64(max(len(qr), len(nr)))
}

func suggestionScore(query string, r models.SearchResult) float64 {
	switch {
	case r.Title != nil:
		return max(titleSimilarity(query, r.Title.Name), titleSimilarity(query, r.Title.OriginalName))
	case r.Person != nil:
		return titleSimilarity(query, r.Person.Name)
	}
	return 0
}

// rankSuggestions orders results by how closely their names match query.
// Ties keep TMDB's popularity order.
func rankSuggestions(query string, results []models.SearchResult) []models.SearchResult {
	scores := make([]float64, len(results))
	idx := make([]int, len(results))
	for i, r := range results {
		scores[i] = suggestionScore(query, r)
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] > scores[idx[b]] })
	out := make([]models.SearchResult, len(results))
	for i, j := range idx {
		out[i] = results[j]
	}
	return out
}
