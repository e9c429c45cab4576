package sqlitestore_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/SscSPs/brokerage_sync_app/internal/adapters/history/sqlitestore"
	"github.com/SscSPs/brokerage_sync_app/internal/core/domain"
	"github.com/SscSPs/brokerage_sync_app/internal/core/ports/clients"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *sqlitestore.Store {
	t.Helper()
	store, err := sqlitestore.New(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSaveKeys_RoundtripWithinWindow(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	records := []clients.KeyRecord{
		{Key: "42|2024-01-15|12.5|DIV", Date: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
		{Key: "42|2024-01-16|-51|XYZ purchase", Date: time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC)},
	}
	require.NoError(t, store.SaveKeys(ctx, "42", records))

	window := domain.NewWindowEndingAt(time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), 31)
	keys, err := store.RecentKeys(ctx, "42", window)
	require.NoError(t, err)
	assert.ElementsMatch(t, []domain.DedupKey{
		"42|2024-01-15|12.5|DIV",
		"42|2024-01-16|-51|XYZ purchase",
	}, keys)
}

func TestRecentKeys_ScopedToAccountAndWindow(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveKeys(ctx, "42", []clients.KeyRecord{
		{Key: "42|2024-01-15|12.5|DIV", Date: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
		{Key: "42|2023-11-01|5|OLD", Date: time.Date(2023, 11, 1, 0, 0, 0, 0, time.UTC)},
	}))
	require.NoError(t, store.SaveKeys(ctx, "43", []clients.KeyRecord{
		{Key: "43|2024-01-15|12.5|DIV", Date: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
	}))

	window := domain.NewWindowEndingAt(time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), 31)
	keys, err := store.RecentKeys(ctx, "42", window)
	require.NoError(t, err)
	assert.Equal(t, []domain.DedupKey{"42|2024-01-15|12.5|DIV"}, keys)
}

func TestSaveKeys_DuplicateInsertIgnored(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	rec := clients.KeyRecord{Key: "42|2024-01-15|12.5|DIV", Date: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, store.SaveKeys(ctx, "42", []clients.KeyRecord{rec}))
	require.NoError(t, store.SaveKeys(ctx, "42", []clients.KeyRecord{rec}))

	window := domain.NewWindowEndingAt(time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), 31)
	keys, err := store.RecentKeys(ctx, "42", window)
	require.NoError(t, err)
	assert.Len(t, keys, 1)
}

func TestRecordRun(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	started := time.Date(2024, 1, 31, 12, 0, 0, 0, time.UTC)
	run := domain.RunResult{
		RunID:                "run-1",
		StartedAt:            started,
		FinishedAt:           started.Add(5 * time.Second),
		AccountsProcessed:    2,
		TotalNew:             3,
		TotalSkipped:         7,
		TokensRotated:        1,
		CredentialsPersisted: true,
		Status:               domain.RunSuccess,
	}
	require.NoError(t, store.RecordRun(ctx, run))

	// Same run id twice violates the primary key.
	assert.Error(t, store.RecordRun(ctx, run))
}
