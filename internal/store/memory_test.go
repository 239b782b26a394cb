package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/beacongrid/internal/beacon"
)

func record(receiveTime string) beacon.Record {
	return beacon.Record{
		Raw:         map[string]any{beacon.FieldMessageID: receiveTime},
		ReceiveTime: receiveTime,
	}
}

func TestMemory_HistoryKeepsArrivalOrder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Append(ctx, "dev-1", record("2021-12-16 10:30:33")))
	require.NoError(t, m.Append(ctx, "dev-1", record("2021-12-16 10:35:12")))

	history, err := m.History(ctx, "dev-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, "2021-12-16 10:30:33", history[0].ReceiveTime)
	require.Equal(t, "2021-12-16 10:35:12", history[1].ReceiveTime)
}

func TestMemory_HistoryUnknownDevice(t *testing.T) {
	t.Parallel()

	_, err := NewMemory().History(context.Background(), "nope")

	require.ErrorIs(t, err, ErrUnknownDevice)
}

func TestMemory_LatestNewestFirst(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Append(ctx, "dev-1", record("2021-12-16 10:30:33")))
	require.NoError(t, m.Append(ctx, "dev-1", record("2021-12-16 10:41:55")))
	require.NoError(t, m.Append(ctx, "dev-2", record("2021-12-16 10:36:02")))

	latest, err := m.Latest(ctx)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	require.Equal(t, "dev-1", latest[0].IDNumber)
	require.Equal(t, "2021-12-16 10:41:55", latest[0].Record.ReceiveTime)
	require.Equal(t, "dev-2", latest[1].IDNumber)
}

func TestMemory_HistoryReturnsACopy(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Append(ctx, "dev-1", record("2021-12-16 10:30:33")))

	history, err := m.History(ctx, "dev-1")
	require.NoError(t, err)
	history[0].ReceiveTime = "mutated"

	fresh, err := m.History(ctx, "dev-1")
	require.NoError(t, err)
	require.Equal(t, "2021-12-16 10:30:33", fresh[0].ReceiveTime)
}
