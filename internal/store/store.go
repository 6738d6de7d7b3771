// Package store persists trained model artifacts in a registry.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no model matches a lookup.
var ErrNotFound = errors.New("model not found")

// Store is the model registry.
type Store interface {
	Close() error

	// Save assigns an ID and creation time when they are empty and stores rec.
	Save(ctx context.Context, rec *Record) error
	Get(ctx context.Context, id string) (Record, error)
	// Latest returns the most recently created model.
	Latest(ctx context.Context) (Record, error)
	// List returns model summaries newest first, without artifacts.
	List(ctx context.Context, limit int) ([]Record, error)
	Delete(ctx context.Context, id string) error
}

// Record is one stored model. Artifact holds the encoded model and is left
// empty by List.
type Record struct {
	ID          string
	Name        string
	CreatedAt   time.Time
	Fingerprint string
	Stemmer     string
	Examples    int
	Accuracy    float64
	F1          float64
	Artifact    []byte
}
