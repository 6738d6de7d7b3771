// Package app contains the core application logic for the civil CLI tool.
// It wires fetching, normalization, training, the model registry and
// prediction together, separated from CLI concerns: every entry point takes
// a config struct and returns data for the report package to render.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/chriscorrea/civil/internal/dataset"
	"github.com/chriscorrea/civil/internal/fetch"
	"github.com/chriscorrea/civil/internal/model"
	"github.com/chriscorrea/civil/internal/store"
	"github.com/chriscorrea/civil/internal/store/sqlite"
)

// datasetMaxBytes bounds training corpora, which are far larger than
// prediction inputs.
const datasetMaxBytes = 1 << 30

// Env holds what every command shares: where models live, how sources are
// fetched and where warnings go.
type Env struct {
	Database string        // model registry path
	Fetch    fetch.Options // limits for URL, file and stdin sources
	Stdin    io.Reader     // read for the "-" source; nil means os.Stdin
	Stderr   io.Writer     // warnings; nil means os.Stderr
	Quiet    bool          // suppress warnings and progress
}

func (e Env) fetcher(maxBytes int64) *fetch.Fetcher {
	opts := e.Fetch
	if maxBytes > 0 {
		opts.MaxBytes = maxBytes
	}
	f := fetch.New(opts)
	if e.Stdin != nil {
		f = f.WithStdin(e.Stdin)
	}
	return f
}

// warnf writes a warning unless the environment is quiet
func (e Env) warnf(format string, args ...any) {
	if e.Quiet {
		return
	}
	w := e.Stderr
	if w == nil {
		w = os.Stderr
	}
	fmt.Fprintf(w, "Warning: "+format+"\n", args...)
}

// progressFile is the terminal the spinner draws on, if any
func (e Env) progressFile() *os.File {
	if e.Stderr == nil {
		return os.Stderr
	}
	if f, ok := e.Stderr.(*os.File); ok {
		return f
	}
	return nil
}

func (e Env) openStore(ctx context.Context) (store.Store, error) {
	st, err := sqlite.Open(ctx, e.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open model registry: %w", err)
	}
	return st, nil
}

// loadDataset reads a labeled CSV corpus from source
func (e Env) loadDataset(ctx context.Context, source, textColumn string) (*dataset.Dataset, error) {
	rc, err := e.fetcher(datasetMaxBytes).Open(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer rc.Close()

	ds, err := dataset.Load(rc, dataset.LoadOptions{TextColumn: textColumn})
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset %q: %w", source, err)
	}
	negatives, positives := ds.Counts()
	slog.Debug("Dataset loaded", "source", source, "examples", ds.Len(), "negatives", negatives, "positives", positives)
	return ds, nil
}

// loadModel returns the model with id, or the newest model when id is empty
func loadModel(ctx context.Context, st store.Store, id string) (store.Record, *model.Artifact, error) {
	var rec store.Record
	var err error
	if id == "" {
		rec, err = st.Latest(ctx)
		if errors.Is(err, store.ErrNotFound) {
			return rec, nil, fmt.Errorf("no trained model in the registry, run 'civil train' first: %w", err)
		}
	} else {
		rec, err = st.Get(ctx, id)
	}
	if err != nil {
		return rec, nil, fmt.Errorf("failed to load model %q: %w", id, err)
	}

	artifact, err := model.Decode(rec.Artifact)
	if err != nil {
		return rec, nil, fmt.Errorf("failed to decode model %s: %w", rec.ID, err)
	}
	slog.Debug("Model loaded", "id", rec.ID, "stemmer", artifact.Stemmer, "features", artifact.Vectorizer.Features())
	return rec, artifact, nil
}
