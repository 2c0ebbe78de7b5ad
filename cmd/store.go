package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/congress-cli/internal/store"
)

// initStore opens the configured database and applies the schema.
func initStore(ctx context.Context) (store.Store, error) {
	if cfg.DatabaseURL == "" {
		return nil, eris.New("database url is required (CONGRESS_DATABASE_URL)")
	}
	st, err := store.Open(ctx, cfg.DatabaseURL, &store.PoolConfig{
		MaxConns: cfg.Store.MaxConns,
		MinConns: cfg.Store.MinConns,
	})
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}
