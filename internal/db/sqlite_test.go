package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"marketlife/internal/config"
	"marketlife/internal/content"
	"marketlife/internal/game"
)

func openTempStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "slots.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sessionSnapshot(t *testing.T, seed int64, ticks int, at time.Time) (game.Snapshot, game.Dashboard) {
	t.Helper()
	cat, err := content.Default()
	require.NoError(t, err)
	s, err := game.NewSession(cat, game.DefaultRules(), seed)
	require.NoError(t, err)
	for i := 0; i < ticks; i++ {
		s.Step()
	}
	return s.Snapshot(at), s.Dashboard()
}

func TestOpenSQLiteRequiresPath(t *testing.T) {
	_, err := OpenSQLite(" ")
	require.Error(t, err)
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := openTempStore(t)

	snap, dash := sessionSnapshot(t, 8, 50, time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, store.Save(ctx, "main", snap))
	// Overwrite in place.
	require.NoError(t, store.Save(ctx, "main", snap))

	loaded, err := store.Load(ctx, "main")
	require.NoError(t, err)
	cat, err := content.Default()
	require.NoError(t, err)
	restored, err := game.RestoreSession(cat, loaded)
	require.NoError(t, err)
	require.Equal(t, dash, restored.Dashboard())

	slots, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	require.Equal(t, snap.Info("main"), slots[0])
}

func TestSQLiteStoreListOrderAndDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := openTempStore(t)

	a, _ := sessionSnapshot(t, 1, 1, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	b, _ := sessionSnapshot(t, 2, 3, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, store.Save(ctx, "early", a))
	require.NoError(t, store.Save(ctx, "late", b))

	slots, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	require.Equal(t, "late", slots[0].Slot)

	require.NoError(t, store.Delete(ctx, "early"))
	require.ErrorIs(t, store.Delete(ctx, "early"), game.ErrSlotNotFound)
	_, err = store.Load(ctx, "early")
	require.ErrorIs(t, err, game.ErrSlotNotFound)

	require.ErrorIs(t, store.Save(ctx, "Not Valid", a), game.ErrInvalidSlot)
}

func TestSQLiteStoreCanceledContext(t *testing.T) {
	t.Parallel()
	store := openTempStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := store.Load(ctx, "main")
	require.ErrorIs(t, err, context.Canceled)
}

func TestSQLiteStoreNilSafe(t *testing.T) {
	var store *SQLiteStore
	require.NoError(t, store.Close())
	_, err := store.List(context.Background())
	require.Error(t, err)
}

func TestOpenSlotsBackends(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, closeFn, err := OpenSlots(ctx, config.Storage{Backend: config.BackendFile, SaveDir: filepath.Join(dir, "saves")})
	require.NoError(t, err)
	closeFn()
	slots, err := store.List(ctx)
	require.NoError(t, err)
	require.Empty(t, slots)

	store, closeFn, err = OpenSlots(ctx, config.Storage{Backend: config.BackendSQLite, SQLitePath: filepath.Join(dir, "x.db")})
	require.NoError(t, err)
	_, err = store.Load(ctx, "main")
	require.ErrorIs(t, err, game.ErrSlotNotFound)
	closeFn()

	_, closeFn, err = OpenSlots(ctx, config.Storage{Backend: "tape"})
	require.Error(t, err)
	require.NotNil(t, closeFn)
}
