package forest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync/atomic"
	"testing"

	"github.com/chriscorrea/civil/internal/sparse"
)

// separable returns samples where feature 0 marks positives and feature 1 negatives.
func separable(n int) ([]sparse.Vector, []int) {
	x := make([]sparse.Vector, 0, n)
	y := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			x = append(x, sparse.Vector{{Index: 0, Value: 0.5 + float64(i)/100}, {Index: 2, Value: 0.1}})
			y = append(y, 1)
		} else {
			x = append(x, sparse.Vector{{Index: 1, Value: 0.7}, {Index: 2, Value: 0.1}})
			y = append(y, 0)
		}
	}
	return x, y
}

func TestFit_Separable(t *testing.T) {
	x, y := separable(40)
	opts := DefaultOptions()
	opts.Trees = 15
	opts.Workers = 3

	f, err := Fit(context.Background(), x, y, 3, opts)
	if err != nil {
		t.Fatalf("Fit() unexpected error: %v", err)
	}
	if f.Size() != 15 {
		t.Errorf("Size() = %d, want 15", f.Size())
	}
	if f.Features() != 3 {
		t.Errorf("Features() = %d, want 3", f.Features())
	}

	for i, vec := range x {
		if got := f.Predict(vec); got != y[i] {
			t.Errorf("Predict(sample %d) = %d, want %d", i, got, y[i])
		}
	}

	if got := f.Predict(sparse.Vector{{Index: 0, Value: 0.9}}); got != 1 {
		t.Errorf("Predict(positive marker) = %d, want 1", got)
	}
	if got := f.Predict(sparse.Vector{{Index: 1, Value: 0.9}}); got != 0 {
		t.Errorf("Predict(negative marker) = %d, want 0", got)
	}

	// the empty vector still gets a prediction, it is not an error
	p := f.PredictProba(sparse.Vector{})
	if p < 0 || p > 1 {
		t.Errorf("PredictProba(empty) = %f, want value in [0, 1]", p)
	}
}

func TestFit_Importances(t *testing.T) {
	x, y := separable(40)
	opts := DefaultOptions()
	opts.Trees = 10

	f, err := Fit(context.Background(), x, y, 3, opts)
	if err != nil {
		t.Fatalf("Fit() unexpected error: %v", err)
	}

	imp := f.Importances()
	if len(imp) != 3 {
		t.Fatalf("Importances() length = %d, want 3", len(imp))
	}
	var sum float64
	for _, v := range imp {
		sum += v
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("Importances() sum = %f, want 1", sum)
	}
	// feature 2 has the same value for every sample and can never split
	if imp[2] != 0 {
		t.Errorf("constant feature importance = %f, want 0", imp[2])
	}
}

func TestFit_Deterministic(t *testing.T) {
	x, y := separable(30)

	encode := func(workers int) []byte {
		opts := DefaultOptions()
		opts.Trees = 8
		opts.Workers = workers
		f, err := Fit(context.Background(), x, y, 3, opts)
		if err != nil {
			t.Fatalf("Fit() unexpected error: %v", err)
		}
		data, err := json.Marshal(f)
		if err != nil {
			t.Fatalf("json.Marshal() unexpected error: %v", err)
		}
		return data
	}

	single := encode(1)
	parallel := encode(4)
	if !bytes.Equal(single, parallel) {
		t.Error("forests fitted with the same seed differ between 1 and 4 workers")
	}
}

func TestFit_MaxDepth(t *testing.T) {
	x, y := separable(20)
	opts := DefaultOptions()
	opts.Trees = 5
	opts.MaxDepth = 1

	f, err := Fit(context.Background(), x, y, 3, opts)
	if err != nil {
		t.Fatalf("Fit() unexpected error: %v", err)
	}
	for i, tree := range f.trees {
		if len(tree.Nodes) > 3 {
			t.Errorf("tree %d has %d nodes, want at most 3 with MaxDepth 1", i, len(tree.Nodes))
		}
	}
}

func TestFit_Progress(t *testing.T) {
	x, y := separable(10)
	var calls atomic.Int32
	opts := DefaultOptions()
	opts.Trees = 6
	opts.Progress = func(done, total int) {
		calls.Add(1)
		if total != 6 || done < 1 || done > 6 {
			t.Errorf("Progress(%d, %d) out of range", done, total)
		}
	}

	if _, err := Fit(context.Background(), x, y, 3, opts); err != nil {
		t.Fatalf("Fit() unexpected error: %v", err)
	}
	if calls.Load() != 6 {
		t.Errorf("Progress called %d times, want 6", calls.Load())
	}
}

func TestFit_InvalidInput(t *testing.T) {
	x, y := separable(4)

	tests := []struct {
		name     string
		x        []sparse.Vector
		y        []int
		features int
	}{
		{"no samples", nil, nil, 3},
		{"length mismatch", x, y[:2], 3},
		{"no features", x, y, 0},
		{"bad label", x, []int{0, 1, 2, 0}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Fit(context.Background(), tt.x, tt.y, tt.features, DefaultOptions())
			if !errors.Is(err, ErrInvalidTrainingData) {
				t.Errorf("Fit() error = %v, want ErrInvalidTrainingData", err)
			}
		})
	}
}

func TestFit_Cancelled(t *testing.T) {
	x, y := separable(20)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Fit(ctx, x, y, 3, DefaultOptions())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Fit() error = %v, want context.Canceled", err)
	}
}

func TestFit_SingleClass(t *testing.T) {
	x := []sparse.Vector{{{Index: 0, Value: 1}}, {{Index: 1, Value: 1}}}
	y := []int{0, 0}

	f, err := Fit(context.Background(), x, y, 2, DefaultOptions())
	if err != nil {
		t.Fatalf("Fit() unexpected error: %v", err)
	}
	if got := f.PredictProba(x[0]); got != 0 {
		t.Errorf("PredictProba() = %f, want 0 for a negative-only training set", got)
	}
}

func TestForest_JSON(t *testing.T) {
	x, y := separable(20)
	opts := DefaultOptions()
	opts.Trees = 4

	f, err := Fit(context.Background(), x, y, 3, opts)
	if err != nil {
		t.Fatalf("Fit() unexpected error: %v", err)
	}
	data, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("json.Marshal() unexpected error: %v", err)
	}

	var restored Forest
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("json.Unmarshal() unexpected error: %v", err)
	}
	for i, vec := range x {
		if restored.PredictProba(vec) != f.PredictProba(vec) {
			t.Errorf("sample %d: restored proba %f, want %f", i, restored.PredictProba(vec), f.PredictProba(vec))
		}
	}

	corrupt := []string{
		`{"features":1,"trees":[{"nodes":[]}]}`,
		`{"features":1,"trees":[{"nodes":[{"f":0,"t":0.5,"l":0,"r":0,"p":0.5}]}]}`,
		`{"features":1,"trees":[{"nodes":[{"f":0,"t":0.5,"l":1,"r":5,"p":0.5},{"leaf":true,"p":1}]}]}`,
	}
	for _, c := range corrupt {
		var bad Forest
		if err := json.Unmarshal([]byte(c), &bad); err == nil {
			t.Errorf("json.Unmarshal(%s) expected error", c)
		}
	}
}

func TestGini(t *testing.T) {
	tests := []struct {
		w0, w1 float64
		want   float64
	}{
		{0, 0, 0},
		{5, 0, 0},
		{0, 3, 0},
		{2, 2, 0.5},
		{1, 3, 0.375},
	}
	for _, tt := range tests {
		if got := gini(tt.w0, tt.w1); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("gini(%v, %v) = %f, want %f", tt.w0, tt.w1, got, tt.want)
		}
	}
}

func TestFit_ImportancesWithLeafTrees(t *testing.T) {
	// with two samples many bootstraps hold one class only and stay a single leaf
	x := []sparse.Vector{{{Index: 0, Value: 1}}, {}}
	y := []int{1, 0}
	opts := DefaultOptions()
	opts.Trees = 20
	opts.Seed = 7

	f, err := Fit(context.Background(), x, y, 2, opts)
	if err != nil {
		t.Fatalf("Fit() unexpected error: %v", err)
	}

	var sum float64
	for _, v := range f.Importances() {
		sum += v
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("Importances() sum = %v, want 1: %v", sum, f.Importances())
	}
	if got := f.Importances()[0]; math.Abs(got-1) > 1e-9 {
		t.Errorf("Importances()[0] = %v, want 1", got)
	}
}
