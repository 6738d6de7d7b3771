// Package forest implements the random forest classifier that labels
// TF-IDF feature vectors as toxic (1) or non-toxic (0).
//
// Each tree is a CART tree grown on a bootstrap sample, choosing among
// sqrt(features) randomly drawn candidate features at every node and
// minimizing Gini impurity. Candidates are drawn from the features present
// in the node's samples; a feature absent from all of them is constant zero
// and could not split the node anyway. Trees are grown to purity unless MaxDepth or
// MinSamplesLeaf stop them earlier. Predictions average the leaf
// probabilities of all trees.
//
// Usage Example:
//
//	f, err := forest.Fit(ctx, vectors, labels, vec.Features(), forest.DefaultOptions())
//	label := f.Predict(vec.Transform("stupid worthless"))
//
// Fitting is deterministic for a given Seed regardless of Workers: every
// tree derives its own random source from the seed before any goroutine
// starts. A fitted Forest is immutable and safe for concurrent use.
package forest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"runtime"
	"sync/atomic"

	"github.com/chriscorrea/civil/internal/sparse"

	"golang.org/x/sync/errgroup"
)

// ErrInvalidTrainingData is returned by Fit for unusable inputs.
var ErrInvalidTrainingData = errors.New("invalid training data")

// Options configures forest fitting.
type Options struct {
	Trees          int   // number of trees (default 100)
	MaxDepth       int   // 0 grows trees until leaves are pure
	MinSamplesLeaf int   // minimum bootstrap weight per leaf (default 1)
	MaxFeatures    int   // candidate features per node; 0 means sqrt(features)
	Seed           int64 // random seed
	Workers        int   // concurrent tree builders; 0 means GOMAXPROCS

	// Progress, when set, is called after each tree completes.
	// It may be called from several goroutines.
	Progress func(done, total int)
}

// DefaultOptions returns 100 fully grown trees with seed 42.
func DefaultOptions() Options {
	return Options{
		Trees:          100,
		MinSamplesLeaf: 1,
		Seed:           42,
	}
}

// Forest is a fitted random forest.
type Forest struct {
	trees       []*Tree
	features    int
	importances []float64
}

// Fit grows a forest on feature vectors x with binary labels y.
//
// Parameters:
//   - ctx: cancels fitting between nodes
//   - x: one sparse vector per sample
//   - y: labels (0 or 1), same length as x
//   - features: dimensionality of the feature space
//   - opts: forest options
//
// Returns:
//   - *Forest: fitted forest
//   - error: ErrInvalidTrainingData for empty or inconsistent inputs, or ctx.Err()
func Fit(ctx context.Context, x []sparse.Vector, y []int, features int, opts Options) (*Forest, error) {
	if len(x) == 0 {
		return nil, fmt.Errorf("%w: no samples", ErrInvalidTrainingData)
	}
	if len(x) != len(y) {
		return nil, fmt.Errorf("%w: %d samples but %d labels", ErrInvalidTrainingData, len(x), len(y))
	}
	if features <= 0 {
		return nil, fmt.Errorf("%w: feature space is empty", ErrInvalidTrainingData)
	}
	for i, label := range y {
		if label != 0 && label != 1 {
			return nil, fmt.Errorf("%w: label %d at sample %d is not 0 or 1", ErrInvalidTrainingData, label, i)
		}
	}

	if opts.Trees <= 0 {
		opts.Trees = 100
	}
	if opts.MinSamplesLeaf <= 0 {
		opts.MinSamplesLeaf = 1
	}
	maxFeatures := opts.MaxFeatures
	if maxFeatures <= 0 {
		maxFeatures = int(math.Sqrt(float64(features)))
	}
	if maxFeatures < 1 {
		maxFeatures = 1
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	slog.Debug("Fitting random forest", "samples", len(x), "features", features,
		"trees", opts.Trees, "maxFeatures", maxFeatures, "workers", workers)

	data := newDataset(x, y, features)

	// derive per-tree seeds up front so results do not depend on scheduling
	master := rand.New(rand.NewSource(opts.Seed))
	seeds := make([]int64, opts.Trees)
	for i := range seeds {
		seeds[i] = master.Int63()
	}

	trees := make([]*Tree, opts.Trees)
	importances := make([][]float64, opts.Trees)
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range trees {
		g.Go(func() error {
			tree, imp, err := newTreeBuilder(gctx, data, opts, maxFeatures, seeds[i]).build()
			if err != nil {
				return err
			}
			trees[i] = tree
			importances[i] = imp

			completed := int(done.Add(1))
			if opts.Progress != nil {
				opts.Progress(completed, opts.Trees)
			}
			slog.Debug("Tree fitted", "tree", i, "nodes", len(tree.Nodes))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("forest fitting stopped: %w", err)
	}

	// average per-tree importances; single-leaf trees contribute nothing, so
	// the mean is renormalized
	averaged := make([]float64, features)
	var total float64
	for _, imp := range importances {
		for f, v := range imp {
			averaged[f] += v / float64(len(importances))
		}
	}
	for _, v := range averaged {
		total += v
	}
	if total > 0 {
		for f := range averaged {
			averaged[f] /= total
		}
	}

	return &Forest{trees: trees, features: features, importances: averaged}, nil
}

// PredictProba returns the mean positive-class probability over all trees.
func (f *Forest) PredictProba(x sparse.Vector) float64 {
	if len(f.trees) == 0 {
		return 0
	}
	var sum float64
	for _, t := range f.trees {
		sum += t.predict(x)
	}
	return sum / float64(len(f.trees))
}

// Predict returns 1 when the positive class has the strictly higher mean
// probability, 0 otherwise.
func (f *Forest) Predict(x sparse.Vector) int {
	if f.PredictProba(x) > 0.5 {
		return 1
	}
	return 0
}

// Size returns the number of trees.
func (f *Forest) Size() int {
	return len(f.trees)
}

// Features returns the dimensionality the forest was fitted on.
func (f *Forest) Features() int {
	return f.features
}

// Importances returns the mean decrease in Gini impurity per feature,
// normalized to sum to 1 (all zeros when no tree split). The returned slice
// must not be modified.
func (f *Forest) Importances() []float64 {
	return f.importances
}

// snapshot is the serialized form of a Forest.
type snapshot struct {
	Features    int       `json:"features"`
	Trees       []*Tree   `json:"trees"`
	Importances []float64 `json:"importances,omitempty"`
}

// MarshalJSON encodes the fitted trees.
func (f *Forest) MarshalJSON() ([]byte, error) {
	return json.Marshal(snapshot{Features: f.features, Trees: f.trees, Importances: f.importances})
}

// UnmarshalJSON restores a forest and checks node references.
func (f *Forest) UnmarshalJSON(data []byte) error {
	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for i, t := range s.Trees {
		if t == nil || len(t.Nodes) == 0 {
			return fmt.Errorf("corrupt forest: tree %d is empty", i)
		}
		for j, n := range t.Nodes {
			if n.Leaf {
				continue
			}
			// children are appended after their parent, which rules out cycles
			if n.Left <= j || n.Right <= j || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
				return fmt.Errorf("corrupt forest: tree %d node %d has invalid children", i, j)
			}
		}
	}
	*f = Forest{trees: s.Trees, features: s.Features, importances: s.Importances}
	return nil
}
