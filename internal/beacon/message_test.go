package beacon

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMissingFields_ReportsInCanonicalOrder(t *testing.T) {
	t.Parallel()

	raw := map[string]any{
		FieldIDNumber: "2019070111201",
		FieldTime:     "2021-12-16 10:30:33",
	}

	missing := MissingFields(raw)

	require.Equal(t, []string{FieldContent, FieldMessageID, FieldDeliveryCount, FieldNetworkMode}, missing)
}

func TestMissingFields_CompleteMessage(t *testing.T) {
	t.Parallel()

	raw := map[string]any{
		FieldIDNumber:      "2019070111201",
		FieldMessageID:     "1",
		FieldContent:       "A4",
		FieldTime:          "2021-12-16 10:30:33",
		FieldDeliveryCount: 1,
		FieldNetworkMode:   1,
	}

	require.Empty(t, MissingFields(raw))
}

func TestNewRecord_StampsTimeAndParsesContent(t *testing.T) {
	t.Parallel()

	raw := map[string]any{FieldContent: "zz-not-hex"}
	now := time.Date(2021, 12, 16, 10, 30, 33, 0, time.UTC)

	rec := NewRecord(raw, now)

	require.Equal(t, "2021-12-16 10:30:33", rec.ReceiveTime)
	require.NotNil(t, rec.Parsed)
	require.False(t, rec.Parsed.Valid(), "bad content still yields a record, with the error recorded")
	require.Equal(t, raw, rec.Raw)
}

func TestIDNumber_RequiresNonEmptyString(t *testing.T) {
	t.Parallel()

	id, ok := IDNumber(map[string]any{FieldIDNumber: "2019070111201"})
	require.True(t, ok)
	require.Equal(t, "2019070111201", id)

	_, ok = IDNumber(map[string]any{FieldIDNumber: ""})
	require.False(t, ok)

	_, ok = IDNumber(map[string]any{FieldIDNumber: 42})
	require.False(t, ok)

	_, ok = IDNumber(map[string]any{})
	require.False(t, ok)
}
