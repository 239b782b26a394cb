package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSnapshot_PersistsAcrossRestarts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data_store.json")

	first, err := NewSnapshot(ctx, path)
	require.NoError(t, err)
	require.NoError(t, first.Append(ctx, "dev-1", record("2021-12-16 10:30:33")))
	require.NoError(t, first.Append(ctx, "dev-1", record("2021-12-16 10:35:12")))

	// A second instance over the same file sees the full history.
	second, err := NewSnapshot(ctx, path)
	require.NoError(t, err)

	history, err := second.History(ctx, "dev-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, "2021-12-16 10:35:12", history[1].ReceiveTime)
}

func TestSnapshot_ConcurrentAppendsAllSurviveReload(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data_store.json")

	s, err := NewSnapshot(ctx, path)
	require.NoError(t, err)

	// Every Append that returns nil has been persisted; a reload must see
	// all of them no matter how the writers interleaved.
	const devices = 50
	var wg sync.WaitGroup
	appendErrs := make(chan error, devices)
	for i := 0; i < devices; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			appendErrs <- s.Append(ctx, fmt.Sprintf("dev-%d", i), record("2021-12-16 10:30:33"))
		}(i)
	}
	wg.Wait()
	close(appendErrs)
	for err := range appendErrs {
		require.NoError(t, err)
	}

	reloaded, err := NewSnapshot(ctx, path)
	require.NoError(t, err)
	latest, err := reloaded.Latest(ctx)
	require.NoError(t, err)
	require.Len(t, latest, devices, "snapshot file lost acknowledged records")
	for i := 0; i < devices; i++ {
		_, err := reloaded.History(ctx, fmt.Sprintf("dev-%d", i))
		require.NoError(t, err)
	}
}

func TestSnapshot_MissingFileStartsEmpty(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, err := NewSnapshot(ctx, filepath.Join(t.TempDir(), "does-not-exist.json"))
	require.NoError(t, err)

	latest, err := s.Latest(ctx)
	require.NoError(t, err)
	require.Empty(t, latest)
}

func TestSnapshot_CorruptFileStartsEmpty(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data_store.json")
	require.NoError(t, os.WriteFile(path, []byte("{ this is not json"), 0644))

	s, err := NewSnapshot(ctx, path)
	require.NoError(t, err, "a corrupt snapshot must not prevent startup")

	latest, err := s.Latest(ctx)
	require.NoError(t, err)
	require.Empty(t, latest)

	// And the store works normally afterwards.
	require.NoError(t, s.Append(ctx, "dev-1", record("2021-12-16 10:30:33")))
	reloaded, err := NewSnapshot(ctx, path)
	require.NoError(t, err)
	history, err := reloaded.History(ctx, "dev-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
}
