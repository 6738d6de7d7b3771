// Package segment splits an extracted page into comment-sized pieces so each
// can be classified on its own.
//
// Paragraphs (blank-line separated blocks) are the natural unit: discussion
// pages render one comment per block, and short blocks such as "you idiot"
// must not be merged into their neighbours. Only paragraphs longer than the
// limit are broken further, first into sentences and then into words.
//
// Usage Example:
//
//	for _, s := range segment.Split(pageText, 1000) {
//		fmt.Println(s.Index, s.Text)
//	}
package segment

import (
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/jdkato/prose/v2"
)

// DefaultMaxRunes is the segment limit used when none is given.
const DefaultMaxRunes = 2000

// Segment is one piece of a document in reading order.
type Segment struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// Split breaks text into segments of at most maxRunes runes. A non-positive
// maxRunes selects DefaultMaxRunes. Whitespace-only input yields no segments.
func Split(text string, maxRunes int) []Segment {
	if maxRunes <= 0 {
		maxRunes = DefaultMaxRunes
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	var pieces []string
	for _, paragraph := range strings.Split(text, "\n\n") {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}
		if utf8.RuneCountInString(paragraph) <= maxRunes {
			pieces = append(pieces, paragraph)
			continue
		}
		pieces = append(pieces, splitLong(paragraph, maxRunes)...)
	}

	segments := make([]Segment, len(pieces))
	for i, piece := range pieces {
		segments[i] = Segment{Index: i, Text: piece}
	}
	slog.Debug("Document segmented", "runes", utf8.RuneCountInString(text), "segments", len(segments))
	return segments
}

// splitLong packs the sentences of an oversized paragraph, falling back to
// words for sentences that are themselves too long
func splitLong(paragraph string, maxRunes int) []string {
	var units []string
	for _, sentence := range sentences(paragraph) {
		if utf8.RuneCountInString(sentence) <= maxRunes {
			units = append(units, sentence)
			continue
		}
		units = append(units, pack(strings.Fields(sentence), maxRunes)...)
	}
	return pack(units, maxRunes)
}

// sentences uses the prose sentence segmenter, or lines when it fails
func sentences(text string) []string {
	doc, err := prose.NewDocument(text, prose.WithTagging(false), prose.WithExtraction(false), prose.WithTokenization(false))
	if err != nil {
		slog.Debug("Sentence segmentation failed, splitting on lines", "error", err)
		return strings.Split(text, "\n")
	}

	var out []string
	for _, s := range doc.Sentences() {
		if trimmed := strings.TrimSpace(s.Text); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return []string{text}
	}
	return out
}

// pack joins consecutive units with spaces while the result fits in maxRunes.
// A single unit longer than maxRunes is split at rune boundaries.
func pack(units []string, maxRunes int) []string {
	var result []string
	var current strings.Builder
	currentRunes := 0

	flush := func() {
		if current.Len() > 0 {
			result = append(result, current.String())
			current.Reset()
			currentRunes = 0
		}
	}

	for _, unit := range units {
		n := utf8.RuneCountInString(unit)
		if n > maxRunes {
			flush()
			runes := []rune(unit)
			for start := 0; start < len(runes); start += maxRunes {
				end := min(start+maxRunes, len(runes))
				result = append(result, string(runes[start:end]))
			}
			continue
		}

		needed := n
		if currentRunes > 0 {
			needed++ // separator
		}
		if currentRunes+needed > maxRunes {
			flush()
			needed = n
		}
		if currentRunes > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(unit)
		currentRunes += needed
	}
	flush()
	return result
}
