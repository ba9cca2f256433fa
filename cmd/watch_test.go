package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rakaly/cli/internal/document"
	"github.com/rakaly/cli/internal/watch"
)

func resetWatchFlags(t *testing.T) {
	t.Helper()
	reset := func() {
		watchOutDir, watchFrequency, watchFormat, watchCatalog, watchVersion = "", "", "", "", ""
		watchDebounce = 0
		snapshotsOutDir, snapshotsCatalog = "", ""
	}
	reset()
	t.Cleanup(reset)
}

func TestWatchCommand_Flags(t *testing.T) {
	for _, name := range []string{"out-dir", "frequency", "format", "debounce", "catalog", "game-version"} {
		require.NotNil(t, watchCmd.Flags().Lookup(name), "watch command should have --%s flag", name)
	}
	assert.Equal(t, "o", watchCmd.Flags().Lookup("out-dir").Shorthand)
	assert.Equal(t, "0s", watchCmd.Flags().Lookup("debounce").DefValue)
}

func TestWatchOptions(t *testing.T) {
	setup(t)
	resetWatchFlags(t)

	opts, err := watchOptions("saves/autosave.hoi4")
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, opts.Debounce)
	assert.Equal(t, 3, opts.Retry.MaxAttempts)
	require.NotNil(t, opts.Extractor)
	assert.True(t, opts.Extractor.Caps.DateHours)
	assert.Equal(t, watch.Frequency(0), opts.Frequency, "left to the game default")

	watchFrequency = "quarter"
	watchDebounce = 2 * time.Second
	watchFormat = "eu4"
	opts, err = watchOptions("saves/autosave.sav")
	require.NoError(t, err)
	assert.Equal(t, watch.Quarterly, opts.Frequency)
	assert.Equal(t, 2*time.Second, opts.Debounce)
	assert.False(t, opts.Extractor.Caps.DateHours)

	watchVersion = "1.37"
	_, err = watchOptions("saves/autosave.eu4")
	require.NoError(t, err)

	watchVersion = "one.two"
	_, err = watchOptions("saves/autosave.eu4")
	assert.Error(t, err)

	watchVersion = ""
	watchFrequency = "hourly"
	_, err = watchOptions("saves/autosave.eu4")
	assert.Error(t, err)
}

func TestOpenCatalog(t *testing.T) {
	dir := setup(t)
	ctx := context.Background()

	st, err := openCatalog(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, st)

	st, err = openCatalog(ctx, filepath.Join(dir, "catalog.db"))
	require.NoError(t, err)
	require.NotNil(t, st)
	require.NoError(t, st.Close())

	cfg.Catalog.Driver = "sqlite"
	_, err = openCatalog(ctx, "")
	assert.Error(t, err, "configured driver without dsn")
}

func TestSnapshots_ListsAndReconciles(t *testing.T) {
	dir := setup(t)
	resetWatchFlags(t)

	input := filepath.Join(dir, "autosave.eu4")
	require.NoError(t, os.WriteFile(input, eu4Save(), 0o644))
	outDir := watch.DefaultOutDir(input)
	require.NoError(t, os.MkdirAll(outDir, 0o755))
	for _, d := range []document.Date{document.MustDate(1445, 1, 1), document.MustDate(1444, 11, 11)} {
		name := watch.SnapshotName("autosave", ".eu4", d)
		require.NoError(t, os.WriteFile(filepath.Join(outDir, name), eu4Save(), 0o644))
	}
	snapshotsCatalog = filepath.Join(dir, "catalog.db")

	stdout, _, err := execute(t, snapshotsCmd, nil, input)
	require.NoError(t, err)
	assert.Regexp(t, `(?s)DATE\s+PATH\n1444-11-11\s+\S+autosave_1444-11-11\.eu4\n1445-01-01\s+`, stdout)

	st, err := openCatalog(context.Background(), snapshotsCatalog)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	entries, err := st.List(context.Background(), input)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, document.MustDate(1444, 11, 11), entries[0].Date)
}

func TestWatch_StopsOnCancel(t *testing.T) {
	dir := setup(t)
	resetWatchFlags(t)

	input := filepath.Join(dir, "autosave.eu4")
	require.NoError(t, os.WriteFile(input, eu4Save(), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	watchCmd.SetContext(ctx)
	done := make(chan error, 1)
	go func() { done <- watchCmd.RunE(watchCmd, []string{input}) }()

	snap := filepath.Join(dir, "autosave", "autosave_1444-11-11.eu4")
	assert.Eventually(t, func() bool {
		_, err := os.Stat(snap)
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}
