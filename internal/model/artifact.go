// Package model binds the shared normalizer to a fitted vectorizer and random
// forest. It trains new artifacts from labeled datasets and serves predictions
// from stored ones.
//
// Training and inference go through the same *normalize.Normalizer. The
// normalizer's fingerprint is written into every Artifact and checked again when
// a Classifier is built, so a model is never served with a preprocessing
// pipeline it was not trained with.
//
// Usage Example:
//
//	n, _ := normalize.New(normalize.Options{})
//	artifact, err := model.Train(ctx, model.DefaultTrainConfig(), ds, n)
//	clf, err := model.NewClassifier(n, artifact)
//	p := clf.Predict("You are so stupid and worthless!!!")
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chriscorrea/civil/internal/forest"
	"github.com/chriscorrea/civil/internal/tfidf"
)

// ErrFingerprintMismatch is returned when an artifact was trained with a
// different normalizer configuration than the one it is served with.
var ErrFingerprintMismatch = errors.New("normalizer fingerprint mismatch")

// ErrCorruptArtifact is returned by Decode for incomplete or inconsistent artifacts.
var ErrCorruptArtifact = errors.New("corrupt model artifact")

// Params records the training parameters an artifact was built with.
type Params struct {
	Seed           int64   `json:"seed"`
	TestFraction   float64 `json:"test_fraction"`
	NegativeRatio  float64 `json:"negative_ratio"`
	MinDF          int     `json:"min_df"`
	Trees          int     `json:"trees"`
	MaxDepth       int     `json:"max_depth"`
	MinSamplesLeaf int     `json:"min_samples_leaf"`
	Examples       int     `json:"examples"` // examples used after balancing
}

// Artifact is a trained model: everything needed to classify raw text.
type Artifact struct {
	Fingerprint string              `json:"fingerprint"`
	Stemmer     string              `json:"stemmer"`
	Vectorizer  *tfidf.Vectorizer   `json:"vectorizer"`
	Forest      *forest.Forest      `json:"forest"`
	Metrics     Metrics             `json:"metrics"`
	Params      Params              `json:"params"`
	TrainedAt   time.Time           `json:"trained_at"`
	TopFeatures []FeatureImportance `json:"top_features,omitempty"`
}

// FeatureImportance pairs a vocabulary term with its forest importance.
type FeatureImportance struct {
	Term       string  `json:"term"`
	Importance float64 `json:"importance"`
}

// Encode serializes the artifact as JSON.
func (a *Artifact) Encode() ([]byte, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("failed to encode artifact: %w", err)
	}
	return data, nil
}

// Decode restores an artifact and checks that its parts fit together.
func Decode(data []byte) (*Artifact, error) {
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptArtifact, err)
	}
	if a.Fingerprint == "" {
		return nil, fmt.Errorf("%w: missing normalizer fingerprint", ErrCorruptArtifact)
	}
	if a.Vectorizer == nil || a.Forest == nil {
		return nil, fmt.Errorf("%w: missing vectorizer or forest", ErrCorruptArtifact)
	}
	if a.Forest.Size() == 0 {
		return nil, fmt.Errorf("%w: forest has no trees", ErrCorruptArtifact)
	}
	if a.Forest.Features() != a.Vectorizer.Features() {
		return nil, fmt.Errorf("%w: forest expects %d features, vectorizer produces %d",
			ErrCorruptArtifact, a.Forest.Features(), a.Vectorizer.Features())
	}
	return &a, nil
}
