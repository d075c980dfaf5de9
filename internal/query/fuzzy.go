package query

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/starford/ansuz/internal/apperr"
)

// FuzzyMatch is one scored hit from a fuzzy search.
type FuzzyMatch struct {
	Path  string  `json:"path"`
	Field string  `json:"field"`
	Value string  `json:"value"`
	Score float64 `json:"score"`
}

// FuzzyFields are the searchable candidate fields.
var FuzzyFields = []string{"title", "headings", "tags"}

// DiceSimilarity computes the Sørensen–Dice coefficient over character
// bigrams of the case-folded inputs. 1.0 for identical strings, 0.0 for
// disjoint ones; stable in [0,1].
func DiceSimilarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == b {
		if a == "" {
			return 0
		}
		return 1
	}
	ba := bigrams(a)
	bb := bigrams(b)
	if len(ba) == 0 || len(bb) == 0 {
		return 0
	}
	var shared int
	for g, n := range ba {
		if m, ok := bb[g]; ok {
			shared += min(n, m)
		}
	}
	var totalA, totalB int
	for _, n := range ba {
		totalA += n
	}
	for _, n := range bb {
		totalB += n
	}
	return 2 * float64(shared) / float64(totalA+totalB)
}

func bigrams(s string) map[string]int {
	runes := []rune(s)
	out := make(map[string]int, len(runes))
	for i := 0; i+1 < len(runes); i++ {
		out[string(runes[i:i+2])]++
	}
	return out
}

// FuzzySearch scores the requested fields of every document against term and
// returns matches at or above threshold, best first, capped at topN.
// Empty fields means all of FuzzyFields.
func (e *Engine) FuzzySearch(ctx context.Context, term string, fields []string, threshold float64, topN int) ([]FuzzyMatch, error) {
	if strings.TrimSpace(term) == "" {
		return nil, &apperr.ValidationError{Reason: "empty fuzzy term"}
	}
	if threshold <= 0 {
		threshold = 0.4
	}
	if topN <= 0 {
		topN = 20
	}
	if len(fields) == 0 {
		fields = FuzzyFields
	}

	var matches []FuzzyMatch
	for _, field := range fields {
		candidates, err := e.fuzzyCandidates(ctx, field)
		if err != nil {
			return nil, err
		}
		for _, c := range candidates {
			if score := DiceSimilarity(term, c.Value); score >= threshold {
				c.Score = score
				matches = append(matches, c)
			}
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Path < matches[j].Path
	})
	if len(matches) > topN {
		matches = matches[:topN]
	}
	return matches, nil
}

// fuzzyCandidates loads (path, value) pairs for one field.
func (e *Engine) fuzzyCandidates(ctx context.Context, field string) ([]FuzzyMatch, error) {
	var stmt string
	switch field {
	case "title":
		stmt = `SELECT path, title FROM content WHERE title != ''`
	case "headings":
		stmt = `SELECT path, headings FROM content WHERE headings != ''`
	case "tags":
		stmt = `SELECT path, tag FROM tags`
	default:
		return nil, &apperr.ValidationError{Reason: "unknown fuzzy field", Detail: field}
	}

	rows, err := e.st.Conn().QueryContext(ctx, stmt)
	if err != nil {
		return nil, &apperr.ExecutionError{Cause: fmt.Errorf("fuzzy candidates %s: %w", field, err)}
	}
	defer rows.Close()

	var out []FuzzyMatch
	for rows.Next() {
		var m FuzzyMatch
		if err := rows.Scan(&m.Path, &m.Value); err != nil {
			return nil, err
		}
		m.Field = field
		// Headings are newline-joined; score each line separately.
		if field == "headings" {
			for _, line := range strings.Split(m.Value, "\n") {
				if line != "" {
					out = append(out, FuzzyMatch{Path: m.Path, Field: field, Value: line})
				}
			}
			continue
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
