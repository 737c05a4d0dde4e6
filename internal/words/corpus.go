package words

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

//go:embed data/words.json
var corpusJSON []byte

// LoadCorpus parses the embedded word list. Called once at startup; the
// returned slice is shared read-only by every session.
func LoadCorpus() ([]Word, error) {
	var corpus []Word
	if err := json.Unmarshal(corpusJSON, &corpus); err != nil {
		return nil, fmt.Errorf("parsing embedded corpus: %w", err)
	}
	if len(corpus) == 0 {
		return nil, fmt.Errorf("embedded corpus is empty")
	}
	return corpus, nil
}

// Categories lists the distinct categories present in corpus, in order of
// first appearance.
func Categories(corpus []Word) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, w := range corpus {
		if !seen[w.Category] {
			seen[w.Category] = true
			out = append(out, w.Category)
		}
	}
	return out
}
