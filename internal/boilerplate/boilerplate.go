// Package boilerplate recognizes page furniture around user comments.
//
// Discussion pages surround each comment with controls and metadata
// ("Reply", "Report", "3 hours ago", "Sign in to comment") and end with
// legal footers. Classifying those segments for toxicity is noise, so the
// Detector drops them before prediction. A segment is boilerplate when the
// share of its words whose stems appear in the boilerplate vocabulary exceeds
// a threshold that is lowest at the edges of the page and highest in the
// middle. Segments of three or more words also need at least two vocabulary
// hits, so a comment using one chrome-like word ("sign", "report") is kept.
package boilerplate

import (
	"log/slog"
	"math"
	"regexp"
	"strings"

	"github.com/kljensen/snowball"

	"github.com/chriscorrea/civil/internal/segment"
)

// vocabulary holds snowball (english) stems typical of comment-page chrome
var vocabulary = map[string]struct{}{
	// --- Comment controls ---
	"comment":   {},
	"edit":      {},
	"flag":      {},
	"permalink": {},
	"repli":     {}, // reply, replies
	"report":    {},
	"share":     {},
	"thread":    {},
	"upvot":     {},
	"downvot":   {},
	"vote":      {},

	// --- Timestamps ---
	"ago":   {},
	"hour":  {},
	"minut": {},
	"month": {},
	"week":  {},

	// --- Sorting & paging ---
	"load":   {},
	"newest": {},
	"oldest": {},
	"sort":   {},
	"page":   {},

	// --- Accounts ---
	"account":  {},
	"log":      {},
	"login":    {},
	"member":   {},
	"password": {},
	"regist":   {},
	"sign":     {},
	"subscrib": {},

	// --- Navigation ---
	"menu":     {},
	"navig":    {},
	"newslett": {},
	"advertis": {},

	// --- Legal & moderation ---
	"communiti": {},
	"cooki":     {},
	"copyright": {},
	"guidelin":  {},
	"moder":     {},
	"polici":    {},
	"privaci":   {},
	"reserv":    {},
	"right":     {},
	"term":      {},
}

// Detector scores segments against the boilerplate vocabulary.
type Detector struct {
	tokenRegex *regexp.Regexp
}

// New returns a ready Detector.
func New() *Detector {
	return &Detector{
		tokenRegex: regexp.MustCompile(`\b[a-zA-Z]+\b`),
	}
}

// IsBoilerplate reports whether a segment is page chrome rather than a comment.
//
// Parameters:
//   - text: the segment text
//   - index: zero-based position of the segment in the page
//   - total: number of segments in the page
//
// Returns true for segments without any words. Invalid positions are never
// boilerplate.
func (d *Detector) IsBoilerplate(text string, index, total int) bool {
	if total <= 0 || index < 0 || index >= total {
		return false
	}

	tokens := d.tokenRegex.FindAllString(strings.ToLower(text), -1)
	if len(tokens) == 0 {
		return true
	}

	hits := 0
	for _, token := range tokens {
		stemmed, err := snowball.Stem(token, "english", true)
		if err != nil {
			stemmed = token
		}
		if _, ok := vocabulary[stemmed]; ok {
			hits++
		}
	}

	if hits < minHits(len(tokens)) {
		return false
	}
	return float64(hits)/float64(len(tokens)) > threshold(index, total)
}

// minHits is the vocabulary matches a segment of n words needs before the
// ratio test applies
func minHits(n int) int {
	if n <= 2 {
		return 1
	}
	return 2
}

// Filter returns the segments that are not boilerplate, keeping their
// original indexes.
func (d *Detector) Filter(segments []segment.Segment) []segment.Segment {
	kept := make([]segment.Segment, 0, len(segments))
	for i, s := range segments {
		if d.IsBoilerplate(s.Text, i, len(segments)) {
			continue
		}
		kept = append(kept, s)
	}
	slog.Debug("Boilerplate filtered", "segments", len(segments), "kept", len(kept))
	return kept
}

// threshold follows an inverted V over the page: 0.1 at the first and last
// segment rising to 0.33 in the middle. Pages of three or fewer segments use
// 0.5 throughout.
func threshold(index, total int) float64 {
	if total <= 3 {
		return 0.5
	}

	position := float64(index) / float64(total-1)
	factor := 1.0 - math.Abs(2.0*position-1.0)

	const edge, middle = 0.1, 0.33
	return edge + (middle-edge)*factor
}
