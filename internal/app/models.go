package app

import (
	"context"
	"fmt"

	"github.com/chriscorrea/civil/internal/model"
	"github.com/chriscorrea/civil/internal/store"
)

// Models lists registry entries newest first. A non-positive limit lists all.
func Models(ctx context.Context, env Env, limit int) ([]store.Record, error) {
	st, err := env.openStore(ctx)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	records, err := st.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	return records, nil
}

// ShowModel returns a stored model with its decoded artifact. An empty id
// selects the newest model.
func ShowModel(ctx context.Context, env Env, id string) (store.Record, *model.Artifact, error) {
	st, err := env.openStore(ctx)
	if err != nil {
		return store.Record{}, nil, err
	}
	defer st.Close()

	rec, artifact, err := loadModel(ctx, st, id)
	rec.Artifact = nil
	return rec, artifact, err
}

// DeleteModel removes a model from the registry.
func DeleteModel(ctx context.Context, env Env, id string) error {
	st, err := env.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	return st.Delete(ctx, id)
}
