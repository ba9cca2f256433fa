package catalog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rakaly/cli/internal/document"
	"github.com/rakaly/cli/internal/watch"
)

func newTestSQLiteStore(t *testing.T) Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "catalog.db")
	st, err := Open(context.Background(), "sqlite", dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	return st
}

func TestSQLite_RecordAndList(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	later := document.MustDate(1445, 1, 1)
	earlier := document.MustDate(1444, 11, 11)
	require.NoError(t, st.Record(ctx, "src", snap("/snaps/b.eu4", later)))
	require.NoError(t, st.Record(ctx, "src", snap("/snaps/a.eu4", earlier)))
	require.NoError(t, st.Record(ctx, "other", snap("/snaps/c.eu4", earlier)))

	entries, err := st.List(ctx, "src")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "/snaps/a.eu4", entries[0].Path)
	assert.Equal(t, earlier, entries[0].Date)
	assert.Equal(t, later, entries[1].Date)
	assert.NotEmpty(t, entries[0].ID)
	assert.False(t, entries[0].RecordedAt.IsZero())
}

func TestSQLite_RecordUpsertsByPath(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.Record(ctx, "src", snap("/snaps/a.hoi4", document.MustDate(1936, 1, 1))))
	require.NoError(t, st.Record(ctx, "src", snap("/snaps/a.hoi4", document.MustDate(1936, 1, 1).WithHour(6))))

	entries, err := st.List(ctx, "src")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, uint8(6), entries[0].Date.Hour)
}

func TestSQLite_Reconcile(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.Record(ctx, "src", snap("/kept", document.MustDate(1444, 11, 11))))
	require.NoError(t, st.Record(ctx, "src", snap("/gone", document.MustDate(1445, 1, 1))))

	onDisk := []watch.Snapshot{
		snap("/kept", document.MustDate(1444, 11, 11)),
		snap("/new", document.MustDate(1446, 1, 1)),
	}
	res, err := st.Reconcile(ctx, "src", onDisk)
	require.NoError(t, err)
	assert.Equal(t, ReconcileResult{Added: 1, Removed: 1}, res)

	entries, err := st.List(ctx, "src")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "/kept", entries[0].Path)
	assert.Equal(t, "/new", entries[1].Path)

	// Reconciling again is a no-op.
	res, err = st.Reconcile(ctx, "src", onDisk)
	require.NoError(t, err)
	assert.Equal(t, ReconcileResult{}, res)
}

func TestDiff(t *testing.T) {
	missing, gone := diff([]string{"/a", "/b"}, []watch.Snapshot{{Path: "/b"}, {Path: "/c"}})
	require.Len(t, missing, 1)
	assert.Equal(t, "/c", missing[0].Path)
	assert.Equal(t, []string{"/a"}, gone)
}
