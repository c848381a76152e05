package discovery

import "strings"

// Match scores.
const (
	ScoreExact     = 100
	ScorePrefix    = 95
	ScoreSubstring = 90
	ScoreOther     = 85
)

// Score rates how well title matches query, case-insensitively. Titles that
// do not contain the query still get ScoreOther; callers filter those out.
func Score(title, query string) int {
	t := strings.ToLower(title)
	q := strings.ToLower(query)
	switch {
	case t == q:
		return ScoreExact
	case strings.HasPrefix(t, q):
		return ScorePrefix
	case strings.Contains(t, q):
		return ScoreSubstring
	default:
		return ScoreOther
	}
}
