package cmd

import (
	"context"
	"fmt"

	"github.com/namelens/draftprune/internal/config"
	"github.com/namelens/draftprune/internal/core/store"
	apperrors "github.com/namelens/draftprune/internal/errors"
)

// openStore opens the deletion journal and brings its schema up to date.
func openStore(ctx context.Context, cfg config.StoreConfig) (*store.Store, error) {
	db, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, apperrors.WrapDatabase(ctx, err, "open journal store")
	}

	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, apperrors.WrapDatabase(ctx, err, "migrate journal store")
	}

	return db, nil
}

func openConfiguredStore(ctx context.Context) (*store.Store, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return openStore(ctx, cfg.Store)
}
