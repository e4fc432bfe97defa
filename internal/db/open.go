package db

import (
	"context"
	"fmt"

	"marketlife/internal/config"
	"marketlife/internal/game"
	"marketlife/internal/savefile"
)

// OpenSlots builds the save slot store selected by cfg. The returned close
// func is always non-nil.
func OpenSlots(ctx context.Context, cfg config.Storage) (game.SlotStore, func(), error) {
	noop := func() {}
	switch cfg.Backend {
	case config.BackendFile, "":
		store, err := savefile.New(cfg.SaveDir)
		if err != nil {
			return nil, noop, err
		}
		return store, noop, nil
	case config.BackendSQLite:
		store, err := OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, noop, err
		}
		return store, func() { _ = store.Close() }, nil
	case config.BackendPostgres:
		pool, err := Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, noop, err
		}
		store, err := NewPGStore(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, noop, err
		}
		return store, pool.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown save backend %q", cfg.Backend)
	}
}
