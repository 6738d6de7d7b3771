package segment_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/chriscorrea/civil/internal/segment"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		maxRunes    int
		expectTexts []string
		expectCount int
		description string
	}{
		{
			name:        "empty string",
			text:        "",
			maxRunes:    100,
			expectCount: 0,
			description: "should return no segments for empty input",
		},
		{
			name:        "whitespace only",
			text:        "   \n\n\t  \n\n",
			maxRunes:    100,
			expectCount: 0,
			description: "should return no segments for whitespace-only input",
		},
		{
			name:        "single comment",
			text:        "  You are so stupid and worthless!!!  ",
			maxRunes:    100,
			expectTexts: []string{"You are so stupid and worthless!!!"},
			description: "should trim a single paragraph",
		},
		{
			name:        "short comments stay separate",
			text:        "Thanks for the edit.\n\nyou idiot\n\r\nGreat article!",
			maxRunes:    1000,
			expectTexts: []string{"Thanks for the edit.", "you idiot", "Great article!"},
			description: "should never merge paragraphs",
		},
		{
			name:        "single newlines stay inside a comment",
			text:        "first line\nsecond line",
			maxRunes:    100,
			expectTexts: []string{"first line\nsecond line"},
			description: "should keep line breaks within a paragraph",
		},
		{
			name:        "long paragraph split by words",
			text:        "alpha beta gamma delta epsilon zeta eta theta iota kappa",
			maxRunes:    20,
			expectCount: 3,
			description: "should pack words up to the limit",
		},
		{
			name:        "default limit",
			text:        "short",
			maxRunes:    0,
			expectTexts: []string{"short"},
			description: "should fall back to the default limit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			segments := segment.Split(tt.text, tt.maxRunes)

			if tt.expectTexts != nil {
				if len(segments) != len(tt.expectTexts) {
					t.Fatalf("Split() = %d segments, want %d: %s", len(segments), len(tt.expectTexts), tt.description)
				}
				for i, want := range tt.expectTexts {
					if segments[i].Text != want {
						t.Errorf("segment %d = %q, want %q", i, segments[i].Text, want)
					}
				}
			} else if len(segments) != tt.expectCount {
				t.Errorf("Split() = %d segments, want %d: %s", len(segments), tt.expectCount, tt.description)
			}

			for i, s := range segments {
				if s.Index != i {
					t.Errorf("segment %d has Index %d", i, s.Index)
				}
				limit := tt.maxRunes
				if limit <= 0 {
					limit = segment.DefaultMaxRunes
				}
				if n := utf8.RuneCountInString(s.Text); n > limit {
					t.Errorf("segment %d has %d runes, limit %d", i, n, limit)
				}
			}
		})
	}
}

func TestSplit_LongSentences(t *testing.T) {
	text := "The first sentence talks about the bridge. The second one is about the river. " +
		"The third mentions the old mill."

	segments := segment.Split(text, 50)
	if len(segments) < 2 {
		t.Fatalf("Split() = %d segments, want at least 2", len(segments))
	}

	// nothing is lost and no word is cut
	var rebuilt []string
	for _, s := range segments {
		rebuilt = append(rebuilt, s.Text)
	}
	if got := strings.Join(strings.Fields(strings.Join(rebuilt, " ")), " "); got != text {
		t.Errorf("segments rebuild to %q, want %q", got, text)
	}
}

func TestSplit_OversizedWord(t *testing.T) {
	word := strings.Repeat("é", 25)
	segments := segment.Split(word, 10)
	if len(segments) != 3 {
		t.Fatalf("Split() = %d segments, want 3", len(segments))
	}
	if segments[2].Text != strings.Repeat("é", 5) {
		t.Errorf("last segment = %q", segments[2].Text)
	}
}
