// Package tfidf provides the TF-IDF (Term Frequency-Inverse Document Frequency) vectorizer
// that turns normalized documents into classifier features.
//
// The weighting follows the conventions of the vectorizer the original models were
// trained with, so feature values are comparable across implementations:
//   - Term Frequency (TF): raw count of the term in the document
//   - Inverse Document Frequency (IDF): ln((1+n)/(1+df)) + 1 (smoothed)
//   - Each document vector is scaled to unit L2 norm
//
// Usage Example:
//
//	vec, err := tfidf.Fit(documents, tfidf.Options{})
//	features := vec.Transform("quick run")
//
// Vocabulary columns are assigned in sorted term order. A fitted Vectorizer is
// immutable; Transform is safe for concurrent use.
package tfidf

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/chriscorrea/civil/internal/sparse"
)

// tokenRegex matches words of two or more word characters
var tokenRegex = regexp.MustCompile(`\b\w\w+\b`)

// ErrEmptyVocabulary is returned by Fit when no document contributes a term.
var ErrEmptyVocabulary = errors.New("empty vocabulary; documents contain no terms")

// Options tunes vocabulary construction.
type Options struct {
	// MinDF drops terms that appear in fewer documents (default 1 keeps all).
	MinDF int
}

// Vectorizer holds a fitted vocabulary and its IDF weights.
type Vectorizer struct {
	vocabulary map[string]int // term -> column
	terms      []string       // column -> term
	idf        []float64      // column -> idf weight
	documents  int            // corpus size at fit time
}

// Fit builds a Vectorizer from a corpus of normalized documents.
//
// Parameters:
//   - documents: corpus to learn the vocabulary and document frequencies from
//   - opts: vocabulary options
//
// Returns:
//   - *Vectorizer: fitted vectorizer
//   - error: ErrEmptyVocabulary when no terms survive tokenization and MinDF
func Fit(documents []string, opts Options) (*Vectorizer, error) {
	minDF := opts.MinDF
	if minDF < 1 {
		minDF = 1
	}

	slog.Debug("Fitting TF-IDF vectorizer", "documentCount", len(documents), "minDF", minDF)

	// track document frequency for each unique term
	docFrequencies := make(map[string]int)
	for _, doc := range documents {
		uniqueTerms := make(map[string]struct{})
		for _, token := range tokenize(doc) {
			uniqueTerms[token] = struct{}{}
		}
		for term := range uniqueTerms {
			docFrequencies[term]++
		}
	}

	terms := make([]string, 0, len(docFrequencies))
	for term, df := range docFrequencies {
		if df >= minDF {
			terms = append(terms, term)
		}
	}
	if len(terms) == 0 {
		return nil, ErrEmptyVocabulary
	}
	sort.Strings(terms)

	n := float64(len(documents))
	v := &Vectorizer{
		vocabulary: make(map[string]int, len(terms)),
		terms:      terms,
		idf:        make([]float64, len(terms)),
		documents:  len(documents),
	}
	for column, term := range terms {
		v.vocabulary[term] = column
		v.idf[column] = math.Log((1+n)/(1+float64(docFrequencies[term]))) + 1
	}

	slog.Debug("TF-IDF vectorizer fitted", "terms", len(terms), "documents", v.documents)
	return v, nil
}

// Transform maps a normalized document onto the fitted feature space.
// Terms outside the vocabulary are ignored; a document without known terms
// yields the empty vector.
func (v *Vectorizer) Transform(doc string) sparse.Vector {
	counts := make(map[int]float64)
	for _, token := range tokenize(doc) {
		if column, ok := v.vocabulary[token]; ok {
			counts[column]++
		}
	}
	if len(counts) == 0 {
		return sparse.Vector{}
	}

	var norm float64
	for column, tf := range counts {
		weight := tf * v.idf[column]
		counts[column] = weight
		norm += weight * weight
	}
	norm = math.Sqrt(norm)
	for column := range counts {
		counts[column] /= norm
	}

	return sparse.FromMap(counts)
}

// TransformAll transforms every document in docs.
func (v *Vectorizer) TransformAll(docs []string) []sparse.Vector {
	vectors := make([]sparse.Vector, len(docs))
	for i, doc := range docs {
		vectors[i] = v.Transform(doc)
	}
	return vectors
}

// Features returns the number of feature columns.
func (v *Vectorizer) Features() int {
	return len(v.terms)
}

// Term returns the term mapped to column, or "" when out of range.
func (v *Vectorizer) Term(column int) string {
	if column < 0 || column >= len(v.terms) {
		return ""
	}
	return v.terms[column]
}

// IDF returns the weight of term and whether it is in the vocabulary.
func (v *Vectorizer) IDF(term string) (float64, bool) {
	column, ok := v.vocabulary[strings.ToLower(term)]
	if !ok {
		return 0, false
	}
	return v.idf[column], true
}

// snapshot is the serialized form of a Vectorizer.
type snapshot struct {
	Terms     []string  `json:"terms"`
	IDF       []float64 `json:"idf"`
	Documents int       `json:"documents"`
}

// MarshalJSON encodes the fitted state.
func (v *Vectorizer) MarshalJSON() ([]byte, error) {
	return json.Marshal(snapshot{Terms: v.terms, IDF: v.idf, Documents: v.documents})
}

// UnmarshalJSON restores a fitted state produced by MarshalJSON.
func (v *Vectorizer) UnmarshalJSON(data []byte) error {
	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if len(s.Terms) != len(s.IDF) {
		return fmt.Errorf("corrupt vectorizer: %d terms but %d idf weights", len(s.Terms), len(s.IDF))
	}

	vocabulary := make(map[string]int, len(s.Terms))
	for column, term := range s.Terms {
		if _, dup := vocabulary[term]; dup {
			return fmt.Errorf("corrupt vectorizer: duplicate term %q", term)
		}
		vocabulary[term] = column
	}

	*v = Vectorizer{
		vocabulary: vocabulary,
		terms:      s.Terms,
		idf:        s.IDF,
		documents:  s.Documents,
	}
	return nil
}

// tokenize lowercases text and extracts word tokens of at least two characters.
func tokenize(text string) []string {
	if text == "" {
		return []string{}
	}
	return tokenRegex.FindAllString(strings.ToLower(text), -1)
}
