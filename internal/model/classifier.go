package model

import (
	"fmt"

	"github.com/chriscorrea/civil/internal/forest"
	"github.com/chriscorrea/civil/internal/normalize"
	"github.com/chriscorrea/civil/internal/tfidf"
)

// Label is the binary classification outcome.
type Label int

const (
	NonToxic Label = 0
	Toxic    Label = 1
)

func (l Label) String() string {
	if l == Toxic {
		return "toxic"
	}
	return "non-toxic"
}

// MarshalText encodes the label by name.
func (l Label) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText decodes a label name written by MarshalText.
func (l *Label) UnmarshalText(text []byte) error {
	switch string(text) {
	case "toxic":
		*l = Toxic
	case "non-toxic":
		*l = NonToxic
	default:
		return fmt.Errorf("unknown label %q", text)
	}
	return nil
}

// Prediction is the classification of one document.
type Prediction struct {
	Label       Label   `json:"label"`
	Probability float64 `json:"probability"` // mean toxic probability over all trees
	Normalized  string  `json:"normalized"`
}

// Classifier labels raw text with a trained artifact. It is immutable and
// safe for concurrent use.
type Classifier struct {
	normalizer *normalize.Normalizer
	vectorizer *tfidf.Vectorizer
	forest     *forest.Forest
}

// NewClassifier binds an artifact to the normalizer it will be served with.
// It fails with ErrFingerprintMismatch when the artifact was trained with a
// different normalizer configuration.
func NewClassifier(n *normalize.Normalizer, a *Artifact) (*Classifier, error) {
	if n == nil || a == nil || a.Vectorizer == nil || a.Forest == nil {
		return nil, fmt.Errorf("classifier needs a normalizer and a complete artifact")
	}
	if a.Fingerprint != n.Fingerprint() {
		return nil, fmt.Errorf("%w: model trained with %q, serving with %q",
			ErrFingerprintMismatch, a.Fingerprint, n.Fingerprint())
	}
	return &Classifier{normalizer: n, vectorizer: a.Vectorizer, forest: a.Forest}, nil
}

// Predict normalizes raw text and classifies it.
func (c *Classifier) Predict(raw string) Prediction {
	return c.PredictNormalized(c.normalizer.Normalize(raw))
}

// PredictNormalized classifies text that has already been normalized. An
// empty document is classified as the zero vector.
func (c *Classifier) PredictNormalized(doc string) Prediction {
	proba := c.forest.PredictProba(c.vectorizer.Transform(doc))
	label := NonToxic
	if proba > 0.5 {
		label = Toxic
	}
	return Prediction{Label: label, Probability: proba, Normalized: doc}
}
