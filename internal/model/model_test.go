package model

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/chriscorrea/civil/internal/dataset"
	"github.com/chriscorrea/civil/internal/normalize"
)

const parityComment = "You are so stupid and worthless!!!"

// corpus returns a small labeled dataset with clearly separated vocabularies.
func corpus() *dataset.Dataset {
	toxic := []string{
		parityComment,
		"you are SO stupid and worthless",
		"Stupid, worthless!",
		"so stupid and so worthless...",
		"You are stupid and worthless.",
		"stupid worthless stupid",
		"you worthless idiot",
		"what a stupid idiot",
		"Stupid and worthless, you are.",
		"worthless stupid idiot",
	}
	clean := []string{
		"Thanks for the helpful edit on the article.",
		"I appreciate the careful citations here.",
		"The gardening section reads well now.",
		"Please add a source for the population figures.",
		"Great work on the history paragraph.",
		"Thanks, the new photo looks lovely.",
		"Could you explain the revert on the talk page?",
		"The references were formatted nicely.",
		"Welcome to the project, happy editing.",
		"Interesting article about medieval bridges.",
		"I fixed a typo in the second paragraph.",
		"Maybe merge this with the river article.",
	}

	ds := &dataset.Dataset{}
	for i, text := range clean {
		ds.Examples = append(ds.Examples, dataset.Example{ID: fmt.Sprintf("c%d", i), Text: text, Label: 0})
	}
	for i, text := range toxic {
		ds.Examples = append(ds.Examples, dataset.Example{ID: fmt.Sprintf("t%d", i), Text: text, Label: 1})
	}
	return ds
}

func testConfig() TrainConfig {
	cfg := DefaultTrainConfig()
	cfg.Trees = 15
	cfg.TestFraction = 0.25
	cfg.Workers = 2
	return cfg
}

func mustNormalizer(t *testing.T, stemmer string) *normalize.Normalizer {
	t.Helper()
	n, err := normalize.New(normalize.Options{Stemmer: stemmer})
	if err != nil {
		t.Fatalf("normalize.New(%q) unexpected error: %v", stemmer, err)
	}
	return n
}

func TestTrain(t *testing.T) {
	n := mustNormalizer(t, "lancaster")

	artifact, err := Train(context.Background(), testConfig(), corpus(), n)
	if err != nil {
		t.Fatalf("Train() unexpected error: %v", err)
	}

	if artifact.Fingerprint != n.Fingerprint() {
		t.Errorf("Fingerprint = %q, want %q", artifact.Fingerprint, n.Fingerprint())
	}
	if artifact.Stemmer != "lancaster" {
		t.Errorf("Stemmer = %q, want lancaster", artifact.Stemmer)
	}
	if artifact.Forest.Size() != 15 {
		t.Errorf("Forest.Size() = %d, want 15", artifact.Forest.Size())
	}
	if artifact.Forest.Features() != artifact.Vectorizer.Features() {
		t.Errorf("forest features %d != vectorizer features %d",
			artifact.Forest.Features(), artifact.Vectorizer.Features())
	}

	// 10 toxic and 10 of the 12 clean examples survive balancing
	if artifact.Params.Examples != 20 {
		t.Errorf("Params.Examples = %d, want 20", artifact.Params.Examples)
	}
	if artifact.Metrics.Support != 5 {
		t.Errorf("Metrics.Support = %d, want 5 (ceil of 20*0.25)", artifact.Metrics.Support)
	}
	if artifact.Metrics.Accuracy < 0 || artifact.Metrics.Accuracy > 1 {
		t.Errorf("Metrics.Accuracy = %f, want value in [0, 1]", artifact.Metrics.Accuracy)
	}
	if len(artifact.TopFeatures) == 0 {
		t.Error("TopFeatures is empty")
	}

	clf, err := NewClassifier(n, artifact)
	if err != nil {
		t.Fatalf("NewClassifier() unexpected error: %v", err)
	}
	if got := clf.Predict(parityComment); got.Label != Toxic {
		t.Errorf("Predict(%q) = %v (p=%.2f), want toxic", parityComment, got.Label, got.Probability)
	}
}

func TestTrain_Errors(t *testing.T) {
	n := mustNormalizer(t, "")

	oneClass := &dataset.Dataset{Examples: []dataset.Example{
		{Text: "hello there", Label: 0},
		{Text: "good morning", Label: 0},
	}}
	onlyStopwords := &dataset.Dataset{Examples: []dataset.Example{
		{Text: "the a an", Label: 0},
		{Text: "of and or", Label: 1},
		{Text: "is was", Label: 0},
		{Text: "you are", Label: 1},
	}}

	tests := []struct {
		name string
		ds   *dataset.Dataset
	}{
		{"nil dataset", nil},
		{"empty dataset", &dataset.Dataset{}},
		{"single class", oneClass},
		{"no vocabulary", onlyStopwords},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Train(context.Background(), testConfig(), tt.ds, n); err == nil {
				t.Error("Train() expected error")
			}
		})
	}
}

func TestTrain_Deterministic(t *testing.T) {
	n := mustNormalizer(t, "lancaster")

	encode := func(workers int) []byte {
		cfg := testConfig()
		cfg.Workers = workers
		artifact, err := Train(context.Background(), cfg, corpus(), n)
		if err != nil {
			t.Fatalf("Train() unexpected error: %v", err)
		}
		data, err := json.Marshal(struct {
			V any
			F any
			M Metrics
		}{artifact.Vectorizer, artifact.Forest, artifact.Metrics})
		if err != nil {
			t.Fatalf("json.Marshal() unexpected error: %v", err)
		}
		return data
	}

	if !bytes.Equal(encode(1), encode(4)) {
		t.Error("training with the same seed produced different models")
	}
}

func TestTrain_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Train(ctx, testConfig(), corpus(), mustNormalizer(t, ""))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Train() error = %v, want context.Canceled", err)
	}
}

func TestTrainInferenceParity(t *testing.T) {
	n := mustNormalizer(t, "lancaster")

	trainDocs, err := NormalizeAll(context.Background(), n, []string{parityComment}, 1)
	if err != nil {
		t.Fatalf("NormalizeAll() unexpected error: %v", err)
	}

	artifact, err := Train(context.Background(), testConfig(), corpus(), n)
	if err != nil {
		t.Fatalf("Train() unexpected error: %v", err)
	}
	clf, err := NewClassifier(n, artifact)
	if err != nil {
		t.Fatalf("NewClassifier() unexpected error: %v", err)
	}

	served := clf.Predict(parityComment).Normalized
	if served != trainDocs[0] {
		t.Errorf("inference normalized %q, training normalized %q", served, trainDocs[0])
	}
	if served != "stupid worthless" {
		t.Errorf("normalized = %q, want %q", served, "stupid worthless")
	}

	// the same raw input always gets the same label
	first := clf.Predict(parityComment)
	for i := 0; i < 5; i++ {
		if got := clf.Predict(parityComment); got != first {
			t.Fatalf("Predict() run %d = %+v, want %+v", i, got, first)
		}
	}
}

func TestNewClassifier_FingerprintMismatch(t *testing.T) {
	artifact, err := Train(context.Background(), testConfig(), corpus(), mustNormalizer(t, "lancaster"))
	if err != nil {
		t.Fatalf("Train() unexpected error: %v", err)
	}

	_, err = NewClassifier(mustNormalizer(t, "porter2"), artifact)
	if !errors.Is(err, ErrFingerprintMismatch) {
		t.Errorf("NewClassifier() error = %v, want ErrFingerprintMismatch", err)
	}

	if _, err := NewClassifier(mustNormalizer(t, "lancaster"), &Artifact{}); err == nil {
		t.Error("NewClassifier() expected error for an incomplete artifact")
	}
}

func TestClassifier_EmptyDocument(t *testing.T) {
	n := mustNormalizer(t, "lancaster")
	artifact, err := Train(context.Background(), testConfig(), corpus(), n)
	if err != nil {
		t.Fatalf("Train() unexpected error: %v", err)
	}
	clf, err := NewClassifier(n, artifact)
	if err != nil {
		t.Fatalf("NewClassifier() unexpected error: %v", err)
	}

	for _, input := range []string{"", "   ", "the a an of", "12345 !!!"} {
		p := clf.Predict(input)
		if p.Normalized != "" {
			t.Errorf("Predict(%q).Normalized = %q, want empty", input, p.Normalized)
		}
		if p.Probability < 0 || p.Probability > 1 || math.IsNaN(p.Probability) {
			t.Errorf("Predict(%q).Probability = %f, want value in [0, 1]", input, p.Probability)
		}
	}
}

func TestArtifact_EncodeDecode(t *testing.T) {
	n := mustNormalizer(t, "lancaster")
	artifact, err := Train(context.Background(), testConfig(), corpus(), n)
	if err != nil {
		t.Fatalf("Train() unexpected error: %v", err)
	}

	data, err := artifact.Encode()
	if err != nil {
		t.Fatalf("Encode() unexpected error: %v", err)
	}
	restored, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() unexpected error: %v", err)
	}

	original, _ := NewClassifier(n, artifact)
	loaded, err := NewClassifier(n, restored)
	if err != nil {
		t.Fatalf("NewClassifier(restored) unexpected error: %v", err)
	}
	for _, text := range []string{parityComment, "Thanks for the helpful edit", "idiot"} {
		if a, b := original.Predict(text), loaded.Predict(text); a != b {
			t.Errorf("Predict(%q) original %+v, restored %+v", text, a, b)
		}
	}

	corrupt := []string{
		`not json`,
		`{}`,
		`{"fingerprint":"x"}`,
		`{"fingerprint":"x","vectorizer":{"terms":["a"],"idf":[1],"documents":1},"forest":{"features":1,"trees":[]}}`,
		`{"fingerprint":"x","vectorizer":{"terms":["a"],"idf":[1],"documents":1},"forest":{"features":2,"trees":[{"nodes":[{"leaf":true,"p":1}]}]}}`,
	}
	for _, c := range corrupt {
		if _, err := Decode([]byte(c)); !errors.Is(err, ErrCorruptArtifact) {
			t.Errorf("Decode(%s) error = %v, want ErrCorruptArtifact", c, err)
		}
	}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name      string
		predicted []int
		actual    []int
		want      Metrics
	}{
		{
			name:      "perfect",
			predicted: []int{1, 0, 1, 0},
			actual:    []int{1, 0, 1, 0},
			want: Metrics{Accuracy: 1, Precision: 1, Recall: 1, F1: 1, Support: 4,
				Confusion: Confusion{TrueNegatives: 2, TruePositives: 2}},
		},
		{
			name:      "mixed",
			predicted: []int{1, 1, 0, 0},
			actual:    []int{1, 0, 1, 0},
			want: Metrics{Accuracy: 0.5, Precision: 0.5, Recall: 0.5, F1: 0.5, Support: 4,
				Confusion: Confusion{TrueNegatives: 1, FalsePositives: 1, FalseNegatives: 1, TruePositives: 1}},
		},
		{
			name:      "no positives predicted",
			predicted: []int{0, 0},
			actual:    []int{1, 0},
			want: Metrics{Accuracy: 0.5, Support: 2,
				Confusion: Confusion{TrueNegatives: 1, FalseNegatives: 1}},
		},
		{
			name: "empty",
			want: Metrics{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Evaluate(tt.predicted, tt.actual); got != tt.want {
				t.Errorf("Evaluate() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestLabel_String(t *testing.T) {
	if Toxic.String() != "toxic" || NonToxic.String() != "non-toxic" {
		t.Errorf("Label strings = %q, %q", Toxic.String(), NonToxic.String())
	}
	data, err := json.Marshal(Prediction{Label: Toxic})
	if err != nil {
		t.Fatalf("json.Marshal() unexpected error: %v", err)
	}
	if !bytes.Contains(data, []byte(`"label":"toxic"`)) {
		t.Errorf("json.Marshal(Prediction) = %s, want label by name", data)
	}
}
