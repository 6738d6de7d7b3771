package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/chriscorrea/civil/internal/model"
	"github.com/chriscorrea/civil/internal/normalize"
	"github.com/chriscorrea/civil/internal/spinner"
	"github.com/chriscorrea/civil/internal/stats"
	"github.com/chriscorrea/civil/internal/store"
)

// TrainConfig holds the options of a training run.
type TrainConfig struct {
	Env
	Dataset    string // CSV source: path, URL or "-"
	TextColumn string
	Name       string // optional label stored with the model
	Stemmer    string
	Training   model.TrainConfig
}

// Train fits a model on a labeled corpus and stores it in the registry.
//
// Processing Pipeline:
// 1. Load the CSV corpus and collapse its label columns
// 2. Normalize, vectorize and fit the forest (model.Train)
// 3. Encode the artifact and save it with its headline metrics
func Train(ctx context.Context, cfg TrainConfig) (store.Record, *model.Artifact, error) {
	ds, err := cfg.loadDataset(ctx, cfg.Dataset, cfg.TextColumn)
	if err != nil {
		return store.Record{}, nil, err
	}

	n, err := normalize.New(normalize.Options{Stemmer: cfg.Stemmer})
	if err != nil {
		return store.Record{}, nil, err
	}

	sp := spinner.ForTerminal(ctx, cfg.progressFile(), "Normalizing comments...", cfg.Quiet)
	sp.Start()
	training := cfg.Training
	if progress := sp.Progress("Fitting trees"); progress != nil {
		training.Progress = progress
	}
	artifact, err := model.Train(ctx, training, ds, n)
	sp.Stop()
	if err != nil {
		return store.Record{}, nil, fmt.Errorf("training failed: %w", err)
	}

	data, err := artifact.Encode()
	if err != nil {
		return store.Record{}, nil, err
	}

	st, err := cfg.openStore(ctx)
	if err != nil {
		return store.Record{}, nil, err
	}
	defer st.Close()

	rec := store.Record{
		Name:        cfg.Name,
		CreatedAt:   artifact.TrainedAt,
		Fingerprint: artifact.Fingerprint,
		Stemmer:     artifact.Stemmer,
		Examples:    artifact.Params.Examples,
		Accuracy:    artifact.Metrics.Accuracy,
		F1:          artifact.Metrics.F1,
		Artifact:    data,
	}
	if err := st.Save(ctx, &rec); err != nil {
		return store.Record{}, nil, fmt.Errorf("failed to save model: %w", err)
	}
	slog.Debug("Model saved", "id", rec.ID, "bytes", len(data), "f1", rec.F1)

	rec.Artifact = nil
	return rec, artifact, nil
}

// StatsConfig holds the options of a corpus summary.
type StatsConfig struct {
	Env
	Dataset    string
	TextColumn string
	Stemmer    string
	Unit       stats.Unit
	TopStems   int
	Workers    int
}

// Stats summarizes a labeled corpus without training on it.
func Stats(ctx context.Context, cfg StatsConfig) (*stats.Summary, error) {
	ds, err := cfg.loadDataset(ctx, cfg.Dataset, cfg.TextColumn)
	if err != nil {
		return nil, err
	}

	n, err := normalize.New(normalize.Options{Stemmer: cfg.Stemmer})
	if err != nil {
		return nil, err
	}

	counter, err := stats.NewCounter(cfg.Unit)
	if err != nil {
		return nil, err
	}

	sp := spinner.ForTerminal(ctx, cfg.progressFile(), "Summarizing corpus...", cfg.Quiet)
	sp.Start()
	defer sp.Stop()

	return stats.Compute(ctx, ds, n, counter, stats.Options{TopStems: cfg.TopStems, Workers: cfg.Workers})
}
