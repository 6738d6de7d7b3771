package stem

import (
	"log/slog"
	"strings"

	"github.com/kljensen/snowball"
)

// Porter2 wraps the Snowball English stemmer.
type Porter2 struct{}

// NewPorter2 creates a Snowball English stemmer.
func NewPorter2() *Porter2 {
	return &Porter2{}
}

// Stem returns the Snowball English stem of word.
// Stopwords are stemmed too; filtering them is the caller's job.
func (p *Porter2) Stem(word string) string {
	word = strings.ToLower(word)
	stemmed, err := snowball.Stem(word, "english", false)
	if err != nil {
		// snowball only fails on unknown languages; keep the word
		slog.Debug("Snowball stemming failed", "word", word, "error", err)
		return word
	}
	return stemmed
}

// Name returns "porter2".
func (p *Porter2) Name() string {
	return Porter2Name
}
