package savefile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"marketlife/internal/content"
	"marketlife/internal/game"
)

func testSnapshot(t *testing.T, seed int64, ticks int, at time.Time) (game.Snapshot, game.Dashboard) {
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

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := New(filepath.Join(t.TempDir(), "saves"))
	require.NoError(t, err)

	snap, dash := testSnapshot(t, 5, 40, time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC))
	require.NoError(t, store.Save(ctx, "main", snap))

	info, err := os.Stat(filepath.Join(store.Dir(), "main.json"))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := store.Load(ctx, "main")
	require.NoError(t, err)
	require.Equal(t, snap.Info("main"), loaded.Info("main"))

	cat, err := content.Default()
	require.NoError(t, err)
	restored, err := game.RestoreSession(cat, loaded)
	require.NoError(t, err)
	require.Equal(t, dash, restored.Dashboard())
}

func TestStoreListNewestFirst(t *testing.T) {
	ctx := context.Background()
	store, err := New(t.TempDir())
	require.NoError(t, err)

	older, _ := testSnapshot(t, 1, 1, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	newer, _ := testSnapshot(t, 2, 2, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, store.Save(ctx, "old", older))
	require.NoError(t, store.Save(ctx, "new", newer))
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "junk.json"), []byte("{"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "notes.txt"), []byte("hi"), 0o600))

	slots, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	require.Equal(t, "new", slots[0].Slot)
	require.Equal(t, int64(2), slots[0].Tick)
	require.Equal(t, "old", slots[1].Slot)
}

func TestStoreMissingAndInvalid(t *testing.T) {
	ctx := context.Background()
	store, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = store.Load(ctx, "nope")
	require.ErrorIs(t, err, game.ErrSlotNotFound)
	require.ErrorIs(t, store.Delete(ctx, "nope"), game.ErrSlotNotFound)

	snap, _ := testSnapshot(t, 1, 0, time.Now())
	require.ErrorIs(t, store.Save(ctx, "../escape", snap), game.ErrInvalidSlot)

	require.NoError(t, store.Save(ctx, "tmp", snap))
	require.NoError(t, store.Delete(ctx, "tmp"))
	_, err = store.Load(ctx, "tmp")
	require.ErrorIs(t, err, game.ErrSlotNotFound)

	_, err = New("  ")
	require.Error(t, err)
}

func TestStoreHonorsCanceledContext(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.List(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
