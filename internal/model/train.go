package model

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"time"

	"github.com/chriscorrea/civil/internal/dataset"
	"github.com/chriscorrea/civil/internal/forest"
	"github.com/chriscorrea/civil/internal/normalize"
	"github.com/chriscorrea/civil/internal/sparse"
	"github.com/chriscorrea/civil/internal/tfidf"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// topFeatureCount is the number of most important terms kept in an artifact.
const topFeatureCount = 20

// TrainConfig holds training parameters.
type TrainConfig struct {
	Seed           int64
	TestFraction   float64 // share of the balanced corpus held out for evaluation
	NegativeRatio  float64 // non-toxic examples kept per toxic example; 0 keeps all
	MinDF          int
	Trees          int
	MaxDepth       int
	MinSamplesLeaf int
	Workers        int // 0 means GOMAXPROCS

	// Progress, when set, reports fitted trees.
	Progress func(done, total int)
}

// DefaultTrainConfig mirrors the reference training run: balanced classes,
// an 80/20 split and 100 trees, all seeded with 42.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		Seed:           42,
		TestFraction:   0.2,
		NegativeRatio:  1,
		MinDF:          1,
		Trees:          100,
		MinSamplesLeaf: 1,
	}
}

// Train fits a vectorizer and random forest on ds and evaluates them on a
// held-out split.
//
// Parameters:
//   - ctx: cancels normalization and forest fitting
//   - cfg: training parameters
//   - ds: labeled corpus of raw comments
//   - n: the normalizer every document goes through (also used for serving)
//
// Returns:
//   - *Artifact: the trained model with its test metrics
//   - error: if the corpus cannot be split, yields no vocabulary, or ctx ends
func Train(ctx context.Context, cfg TrainConfig, ds *dataset.Dataset, n *normalize.Normalizer) (*Artifact, error) {
	if ds == nil || ds.Len() == 0 {
		return nil, fmt.Errorf("cannot train on an empty dataset")
	}

	balanced := ds.Balance(cfg.Seed, cfg.NegativeRatio)
	negatives, positives := balanced.Counts()
	if negatives == 0 || positives == 0 {
		return nil, fmt.Errorf("training needs both classes, got %d non-toxic and %d toxic examples", negatives, positives)
	}
	slog.Debug("Training corpus prepared", "negatives", negatives, "positives", positives)

	docs, err := NormalizeAll(ctx, n, balanced.Texts(), cfg.Workers)
	if err != nil {
		return nil, err
	}

	// the vectorizer sees the whole balanced corpus, the forest only the train split
	vectorizer, err := tfidf.Fit(docs, tfidf.Options{MinDF: cfg.MinDF})
	if err != nil {
		return nil, fmt.Errorf("failed to fit vectorizer: %w", err)
	}

	prepared := &dataset.Dataset{Examples: make([]dataset.Example, balanced.Len())}
	for i, e := range balanced.Examples {
		prepared.Examples[i] = dataset.Example{ID: e.ID, Text: docs[i], Label: e.Label}
	}
	train, test, err := prepared.Split(cfg.Seed, cfg.TestFraction)
	if err != nil {
		return nil, fmt.Errorf("failed to split dataset: %w", err)
	}

	forestOpts := forest.Options{
		Trees:          cfg.Trees,
		MaxDepth:       cfg.MaxDepth,
		MinSamplesLeaf: cfg.MinSamplesLeaf,
		Seed:           cfg.Seed,
		Workers:        cfg.Workers,
		Progress:       cfg.Progress,
	}
	fitted, err := forest.Fit(ctx, vectorizer.TransformAll(train.Texts()), train.Labels(), vectorizer.Features(), forestOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to fit forest: %w", err)
	}

	predicted := lo.Map(vectorizer.TransformAll(test.Texts()), func(x sparse.Vector, _ int) int {
		return fitted.Predict(x)
	})
	metrics := Evaluate(predicted, test.Labels())
	slog.Debug("Model evaluated", "accuracy", metrics.Accuracy, "precision", metrics.Precision,
		"recall", metrics.Recall, "f1", metrics.F1, "support", metrics.Support)

	return &Artifact{
		Fingerprint: n.Fingerprint(),
		Stemmer:     n.StemmerName(),
		Vectorizer:  vectorizer,
		Forest:      fitted,
		Metrics:     metrics,
		Params: Params{
			Seed:           cfg.Seed,
			TestFraction:   cfg.TestFraction,
			NegativeRatio:  cfg.NegativeRatio,
			MinDF:          cfg.MinDF,
			Trees:          fitted.Size(),
			MaxDepth:       cfg.MaxDepth,
			MinSamplesLeaf: cfg.MinSamplesLeaf,
			Examples:       balanced.Len(),
		},
		TrainedAt:   time.Now().UTC(),
		TopFeatures: topFeatures(vectorizer, fitted, topFeatureCount),
	}, nil
}

// NormalizeAll normalizes texts concurrently and returns them in input order.
// It is the training-side entry point to the shared normalizer.
func NormalizeAll(ctx context.Context, n *normalize.Normalizer, texts []string, workers int) ([]string, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	docs := make([]string, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, text := range texts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			docs[i] = n.Normalize(text)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("normalization stopped: %w", err)
	}
	return docs, nil
}

// topFeatures returns the k terms with the highest forest importance.
func topFeatures(v *tfidf.Vectorizer, f *forest.Forest, k int) []FeatureImportance {
	ranked := make([]FeatureImportance, 0, v.Features())
	for column, importance := range f.Importances() {
		if importance > 0 {
			ranked = append(ranked, FeatureImportance{Term: v.Term(column), Importance: importance})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Importance != ranked[j].Importance {
			return ranked[i].Importance > ranked[j].Importance
		}
		return ranked[i].Term < ranked[j].Term
	})
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked
}
