// Package stats describes a labeled corpus before training: class balance,
// comment lengths, what survives normalization and which languages appear.
//
// Usage Example:
//
//	counter, _ := stats.NewCounter(stats.Words)
//	summary, err := stats.Compute(ctx, ds, normalizer, counter, stats.Options{})
//
// Lengths are measured on the raw comment text with the chosen Counter;
// stem counts are measured on the normalized text.
package stats

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/abadojack/whatlanggo"
	"github.com/samber/lo"

	"github.com/chriscorrea/civil/internal/dataset"
	"github.com/chriscorrea/civil/internal/model"
	"github.com/chriscorrea/civil/internal/normalize"
)

// Options tunes Compute.
type Options struct {
	TopStems int // most frequent stems reported per class (default 10)
	Workers  int // normalization workers; 0 means GOMAXPROCS
}

// StemCount is a stem with its corpus frequency.
type StemCount struct {
	Stem  string `json:"stem"`
	Count int    `json:"count"`
}

// ClassSummary describes the examples of one label.
type ClassSummary struct {
	Label      model.Label `json:"label"`
	Examples   int         `json:"examples"`
	MeanLength float64     `json:"mean_length"` // raw text, in the counter's unit
	MeanStems  float64     `json:"mean_stems"`
	Empty      int         `json:"empty"` // examples that normalize to ""
	TopStems   []StemCount `json:"top_stems"`
}

// Summary is the corpus description.
type Summary struct {
	Unit       string          `json:"unit"`
	Examples   int             `json:"examples"`
	Vocabulary int             `json:"vocabulary"` // distinct stems
	Classes    [2]ClassSummary `json:"classes"`    // indexed by label
	Languages  map[string]int  `json:"languages"`  // ISO 639-1 code of reliably detected comments
	Retention  float64         `json:"retention"`  // stems kept per raw word
}

// reliableConfidence is the language detection confidence counted in Languages.
const reliableConfidence = 0.8

// Compute normalizes every example with n and summarizes the corpus.
func Compute(ctx context.Context, ds *dataset.Dataset, n *normalize.Normalizer, counter Counter, opts Options) (*Summary, error) {
	if ds == nil || ds.Len() == 0 {
		return nil, fmt.Errorf("dataset is empty")
	}
	if opts.TopStems <= 0 {
		opts.TopStems = 10
	}

	docs, err := model.NormalizeAll(ctx, n, ds.Texts(), opts.Workers)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		Unit:      counter.Name(),
		Examples:  ds.Len(),
		Languages: make(map[string]int),
	}

	vocabulary := make(map[string]struct{})
	stemCounts := [2]map[string]int{{}, {}}
	lengths := [2]int{}
	stems := [2]int{}
	var rawWords, keptStems int

	for i, example := range ds.Examples {
		label := example.Label
		if label != 0 && label != 1 {
			return nil, fmt.Errorf("example %d has label %d, want 0 or 1", i, label)
		}
		class := &summary.Classes[label]
		class.Examples++

		lengths[label] += counter.Count(example.Text)
		rawWords += len(strings.Fields(example.Text))

		tokens := strings.Fields(docs[i])
		if len(tokens) == 0 {
			class.Empty++
		}
		stems[label] += len(tokens)
		keptStems += len(tokens)
		for _, token := range tokens {
			vocabulary[token] = struct{}{}
			stemCounts[label][token]++
		}

		if info := whatlanggo.Detect(example.Text); info.Confidence >= reliableConfidence {
			summary.Languages[info.Lang.Iso6391()]++
		}
	}

	for label := range summary.Classes {
		class := &summary.Classes[label]
		class.Label = model.Label(label)
		if class.Examples > 0 {
			class.MeanLength = float64(lengths[label]) / float64(class.Examples)
			class.MeanStems = float64(stems[label]) / float64(class.Examples)
		}
		class.TopStems = topStems(stemCounts[label], opts.TopStems)
	}
	summary.Vocabulary = len(vocabulary)
	if rawWords > 0 {
		summary.Retention = float64(keptStems) / float64(rawWords)
	}

	slog.Debug("Corpus summarized", "examples", summary.Examples, "vocabulary", summary.Vocabulary,
		"languages", len(summary.Languages))
	return summary, nil
}

// NonEnglishShare returns the share of reliably detected comments that are
// not English.
func (s *Summary) NonEnglishShare() float64 {
	total := lo.Sum(lo.Values(s.Languages))
	if total == 0 {
		return 0
	}
	return float64(total-s.Languages["en"]) / float64(total)
}

// topStems returns the k most frequent stems, ties broken alphabetically.
func topStems(counts map[string]int, k int) []StemCount {
	ranked := lo.MapToSlice(counts, func(stem string, count int) StemCount {
		return StemCount{Stem: stem, Count: count}
	})
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Stem < ranked[j].Stem
	})
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked
}
