// Package normalize turns raw comment text into the normalized token string
// that both model training and inference feed to the vectorizer.
//
// The pipeline is deterministic and order-sensitive:
//  1. Tokenize with the prose word tokenizer
//  2. Keep purely alphabetic tokens that are not English stopwords
//  3. Stem each token (Lancaster by default)
//  4. Join the stems with single spaces
//  5. Residual cleanup: drop non-alphanumerics, drop digit-bearing words,
//     replace punctuation, lowercase, collapse whitespace
//
// Step 5 is a no-op for almost every input once step 2 has run. It is kept
// because models trained with it must be served with it.
//
// Usage Example:
//
//	n, err := normalize.New(normalize.Options{Stemmer: "lancaster"})
//	doc := n.Normalize("The quick Fox3 runs!!") // "quick run"
//
// A Normalizer is immutable and safe for concurrent use. Its Fingerprint is
// stored with every trained model so a mismatched pipeline fails at load time
// instead of silently degrading predictions.
package normalize

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	"github.com/chriscorrea/civil/internal/stem"

	"github.com/jdkato/prose/v2"
	"github.com/samber/lo"
)

// Version changes whenever the output of Normalize changes for some input.
const Version = "v1"

// tokenizerName identifies the word segmenter in fingerprints.
const tokenizerName = "prose-v2"

// asciiPunctuation is the ASCII punctuation set replaced during cleanup.
const asciiPunctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// cleanup patterns are compiled once; regexp.Regexp is safe for concurrent use
var (
	nonAlphanumericRegex = regexp.MustCompile(`[^A-Za-z0-9\s]`)
	digitWordRegex       = regexp.MustCompile(`\w*\d\w*`)
)

// Options configures a Normalizer.
type Options struct {
	// Stemmer names the stemming algorithm ("lancaster" or "porter2").
	// Empty selects lancaster.
	Stemmer string
}

// Normalizer applies the shared preprocessing pipeline.
type Normalizer struct {
	stemmer     stem.Stemmer
	fingerprint string
}

// New builds a Normalizer from opts.
func New(opts Options) (*Normalizer, error) {
	stemmer, err := stem.ByName(opts.Stemmer)
	if err != nil {
		return nil, fmt.Errorf("failed to create normalizer: %w", err)
	}
	return NewWithStemmer(stemmer), nil
}

// NewWithStemmer builds a Normalizer around an existing stemmer.
func NewWithStemmer(stemmer stem.Stemmer) *Normalizer {
	fingerprint := fmt.Sprintf("normalize/%s;tokenizer=%s;stemmer=%s;stopwords=%s",
		Version, tokenizerName, stem.Identity(stemmer), stopwordDigest())

	slog.Debug("Normalizer created", "fingerprint", fingerprint)
	return &Normalizer{
		stemmer:     stemmer,
		fingerprint: fingerprint,
	}
}

// Fingerprint identifies everything that influences Normalize output.
// Two normalizers with equal fingerprints produce identical output.
func (n *Normalizer) Fingerprint() string {
	return n.fingerprint
}

// StemmerName returns the configured stemmer's name.
func (n *Normalizer) StemmerName() string {
	return n.stemmer.Name()
}

// Normalize returns the normalized form of text. It never fails; text
// without any retained token yields "".
func (n *Normalizer) Normalize(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	return Cleanup(strings.Join(n.Tokens(text), " "))
}

// Tokens returns the filtered, stemmed tokens of text in their original order,
// before rejoin and cleanup.
func (n *Normalizer) Tokens(text string) []string {
	if strings.TrimSpace(text) == "" {
		return []string{}
	}

	kept := lo.Filter(tokenize(text), func(token string, _ int) bool {
		return isAlpha(token) && !IsStopword(token)
	})
	return lo.Map(kept, func(token string, _ int) string {
		return n.stemmer.Stem(token)
	})
}

// Cleanup is the residual cleanup stage. It is idempotent.
func Cleanup(text string) string {
	text = nonAlphanumericRegex.ReplaceAllString(text, "")
	text = strings.TrimSpace(digitWordRegex.ReplaceAllString(text, ""))
	text = strings.Map(func(r rune) rune {
		if strings.ContainsRune(asciiPunctuation, r) {
			return ' '
		}
		return r
	}, strings.ToLower(text))

	// stems are separated by exactly one space
	return strings.Join(strings.Fields(text), " ")
}

// tokenize splits text into word-level tokens.
func tokenize(text string) []string {
	doc, err := prose.NewDocument(text,
		prose.WithSegmentation(false),
		prose.WithTagging(false),
		prose.WithExtraction(false))
	if err != nil {
		// prose only fails while loading models, which are all disabled here
		slog.Debug("Tokenizer failed, falling back to whitespace split", "error", err)
		return strings.Fields(text)
	}

	tokens := make([]string, 0, len(doc.Tokens()))
	for _, tok := range doc.Tokens() {
		tokens = append(tokens, tok.Text)
	}
	return tokens
}

// isAlpha reports whether token is non-empty and made of letters only.
func isAlpha(token string) bool {
	if token == "" {
		return false
	}
	for _, r := range token {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
