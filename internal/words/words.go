package words

import "math/rand"

// A Word is a single entry of the static corpus. The corpus is read-only:
// nothing in the server ever mutates a Word.
type Word struct {
	Word       string `json:"word"`
	Category   string `json:"category"`
	Difficulty string `json:"difficulty"`
}

// Available filters corpus down to the entries matching both an allowed
// category and an allowed difficulty.
func Available(corpus []Word, categories, difficulties []string) []Word {
	cats := toSet(categories)
	diffs := toSet(difficulties)

	out := make([]Word, 0, len(corpus))
	for _, w := range corpus {
		if cats[w.Category] && diffs[w.Difficulty] {
			out = append(out, w)
		}
	}
	return out
}

// Pick selects a uniformly random word from pool that belongs to category and
// has not been used yet. The second return is false when the category is
// exhausted; callers treat that as a signal to end the turn or the game, not
// as an error.
func Pick(pool []Word, used map[string]bool, category string) (Word, bool) {
	remaining := make([]Word, 0, len(pool))
	for _, w := range pool {
		if w.Category == category && !used[w.Word] {
			remaining = append(remaining, w)
		}
	}
	if len(remaining) == 0 {
		return Word{}, false
	}
	return remaining[rand.Intn(len(remaining))], true
}

// WithRemaining returns the subset of categories that still have at least one
// unused word in pool, preserving the order of the categories argument.
func WithRemaining(pool []Word, used map[string]bool, categories []string) []string {
	counts := make(map[string]int)
	for _, w := range pool {
		if !used[w.Word] {
			counts[w.Category]++
		}
	}

	out := make([]string, 0, len(categories))
	for _, c := range categories {
		if counts[c] > 0 {
			out = append(out, c)
		}
	}
	return out
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
