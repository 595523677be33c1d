package retrieve

import (
	"strings"
	"unicode"
)

// decomposition trades a bounded number of extra searches for recall: one
// broad free-text description becomes several narrower sub-queries, each
// fanned out independently and max-merged afterwards.

// DecomposeOptions bounds the expansion.
type DecomposeOptions struct {
	// MaxSubQueries caps sub-queries per candidate.
	MaxSubQueries int

	// Budget is a hard cap on candidates x sub-queries per candidate
	// across one matching pass.
	Budget int
}

// SubQueryAllowance returns how many sub-queries each of n candidates may
// expand into without exceeding the budget. Always at least 1: the
// original query itself is never suppressed.
func (o DecomposeOptions) SubQueryAllowance(candidates int) int {
	allowed := o.MaxSubQueries
	if allowed <= 0 {
		allowed = 1
	}
	if o.Budget > 0 && candidates > 0 {
		if per := o.Budget / candidates; per < allowed {
			allowed = per
		}
	}
	if allowed < 1 {
		allowed = 1
	}
	return allowed
}

// Decompose expands free text into at most limit sub-queries. The full
// text (trimmed) always comes first; subsequent entries are its sentences,
// longest first, skipping fragments too short to carry signal.
func Decompose(text string, limit int) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	if limit <= 1 {
		return []string{compact(trimmed)}
	}

	queries := []string{compact(trimmed)}
	seen := map[string]bool{queries[0]: true}

	for _, sentence := range splitSentences(trimmed) {
		if len(queries) >= limit {
			break
		}
		s := compact(sentence)
		if len(s) < 24 || seen[s] {
			continue
		}
		seen[s] = true
		queries = append(queries, s)
	}
	return queries
}

// splitSentences breaks text on sentence terminators and newlines.
func splitSentences(text string) []string {
	var sentences []string
	var cur strings.Builder
	for _, r := range text {
		switch r {
		case '.', '!', '?', '\n', ';':
			if s := strings.TrimSpace(cur.String()); s != "" {
				sentences = append(sentences, s)
			}
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// compact collapses runs of whitespace to single spaces.
func compact(s string) string {
	var b strings.Builder
	space := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}
