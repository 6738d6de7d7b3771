// Package dataset loads labeled comment corpora for training.
//
// The expected input is a CSV file with a header row, a free-text column
// (comment_text by default) and the six binary toxicity columns. The
// sub-labels are collapsed into one binary label: a comment is toxic when any
// of them is set. Files that already carry a single "label" column are
// accepted as well.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// DefaultTextColumn is the free-text column of the toxic comment corpus.
const DefaultTextColumn = "comment_text"

// CollapsedLabelColumn is accepted when the fine-grained columns are absent.
const CollapsedLabelColumn = "label"

// LabelColumns are the fine-grained toxicity columns OR-ed into one label.
var LabelColumns = []string{"toxic", "severe_toxic", "obscene", "threat", "insult", "identity_hate"}

// ErrMissingColumn is returned when the header lacks a required column.
var ErrMissingColumn = errors.New("missing column")

// Example is one labeled comment.
type Example struct {
	ID    string
	Text  string
	Label int // 0 non-toxic, 1 toxic
}

// Dataset is an ordered collection of examples.
type Dataset struct {
	Examples []Example
}

// LoadOptions selects the columns to read.
type LoadOptions struct {
	TextColumn string // defaults to DefaultTextColumn
	IDColumn   string // optional; defaults to "id" when present
}

// Load reads a labeled CSV corpus from r.
func Load(r io.Reader, opts LoadOptions) (*Dataset, error) {
	textColumn := opts.TextColumn
	if textColumn == "" {
		textColumn = DefaultTextColumn
	}
	idColumn := opts.IDColumn
	if idColumn == "" {
		idColumn = "id"
	}

	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("dataset is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}

	textIndex, ok := columns[textColumn]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, textColumn)
	}
	idIndex, hasID := columns[idColumn]

	labelIndexes, err := labelColumnIndexes(columns)
	if err != nil {
		return nil, err
	}

	ds := &Dataset{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read record: %w", err)
		}
		line, _ := reader.FieldPos(0)

		label := 0
		for _, idx := range labelIndexes {
			value, err := strconv.Atoi(strings.TrimSpace(record[idx]))
			if err != nil || value < 0 || value > 1 {
				return nil, fmt.Errorf("line %d: invalid label %q in column %q", line, record[idx], header[idx])
			}
			if value > 0 {
				label = 1
			}
		}

		example := Example{Text: record[textIndex], Label: label}
		if hasID {
			example.ID = record[idIndex]
		}
		ds.Examples = append(ds.Examples, example)
	}

	negatives, positives := ds.Counts()
	slog.Debug("Dataset loaded", "examples", ds.Len(), "positives", positives, "negatives", negatives)
	return ds, nil
}

// labelColumnIndexes returns the fine-grained label columns, or the
// collapsed label column when none of them is present.
func labelColumnIndexes(columns map[string]int) ([]int, error) {
	var indexes []int
	var missing []string
	for _, name := range LabelColumns {
		if idx, ok := columns[name]; ok {
			indexes = append(indexes, idx)
		} else {
			missing = append(missing, name)
		}
	}

	switch {
	case len(missing) == 0:
		return indexes, nil
	case len(indexes) == 0:
		if idx, ok := columns[CollapsedLabelColumn]; ok {
			return []int{idx}, nil
		}
		return nil, fmt.Errorf("%w: need %s or %q", ErrMissingColumn, strings.Join(LabelColumns, ", "), CollapsedLabelColumn)
	default:
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
}

// Len returns the number of examples.
func (d *Dataset) Len() int {
	return len(d.Examples)
}

// Counts returns the number of non-toxic and toxic examples.
func (d *Dataset) Counts() (negatives, positives int) {
	positives = lo.CountBy(d.Examples, func(e Example) bool { return e.Label == 1 })
	return len(d.Examples) - positives, positives
}

// Texts returns the example texts in order.
func (d *Dataset) Texts() []string {
	return lo.Map(d.Examples, func(e Example, _ int) string { return e.Text })
}

// Labels returns the example labels in order.
func (d *Dataset) Labels() []int {
	return lo.Map(d.Examples, func(e Example, _ int) int { return e.Label })
}

// Balance keeps every toxic example and ratio times as many shuffled
// non-toxic examples (fewer if the corpus has fewer). Non-toxic examples come
// first in the result. A ratio <= 0 returns a copy of the dataset.
func (d *Dataset) Balance(seed int64, ratio float64) *Dataset {
	if ratio <= 0 {
		return &Dataset{Examples: append([]Example(nil), d.Examples...)}
	}

	negatives := lo.Filter(d.Examples, func(e Example, _ int) bool { return e.Label == 0 })
	positives := lo.Filter(d.Examples, func(e Example, _ int) bool { return e.Label == 1 })

	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(negatives), func(i, j int) { negatives[i], negatives[j] = negatives[j], negatives[i] })
	rng.Shuffle(len(positives), func(i, j int) { positives[i], positives[j] = positives[j], positives[i] })

	keep := int(math.Round(ratio * float64(len(positives))))
	if keep > len(negatives) {
		keep = len(negatives)
	}

	balanced := make([]Example, 0, keep+len(positives))
	balanced = append(balanced, negatives[:keep]...)
	balanced = append(balanced, positives...)

	slog.Debug("Dataset balanced", "negatives", keep, "positives", len(positives))
	return &Dataset{Examples: balanced}
}

// Split shuffles the dataset and holds out testFraction of it (rounded up)
// as a test set.
func (d *Dataset) Split(seed int64, testFraction float64) (train, test *Dataset, err error) {
	if testFraction <= 0 || testFraction >= 1 {
		return nil, nil, fmt.Errorf("test fraction %v must be between 0 and 1", testFraction)
	}

	n := len(d.Examples)
	testSize := int(math.Ceil(testFraction * float64(n)))
	if testSize < 1 || testSize >= n {
		return nil, nil, fmt.Errorf("cannot split %d examples with test fraction %v", n, testFraction)
	}

	order := rand.New(rand.NewSource(seed)).Perm(n)
	test = &Dataset{Examples: make([]Example, 0, testSize)}
	train = &Dataset{Examples: make([]Example, 0, n-testSize)}
	for i, idx := range order {
		if i < testSize {
			test.Examples = append(test.Examples, d.Examples[idx])
		} else {
			train.Examples = append(train.Examples, d.Examples[idx])
		}
	}
	return train, test, nil
}
