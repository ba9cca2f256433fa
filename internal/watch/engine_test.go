package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rakaly/cli/internal/document"
	"github.com/rakaly/cli/internal/game"
	"github.com/rakaly/cli/internal/resilience"
)

type fakeRecorder struct {
	mu    sync.Mutex
	snaps []Snapshot
	err   error
}

func (r *fakeRecorder) Record(_ context.Context, _ string, snap Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.snaps = append(r.snaps, snap)
	return nil
}

func (r *fakeRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snaps)
}

func newEngine(t *testing.T, opts Options) (*Engine, string) {
	t.Helper()
	dir := t.TempDir()
	opts.Input = filepath.Join(dir, "autosave.eu4")
	if opts.Extractor == nil {
		opts.Extractor = extractor(t, game.EU4)
	}
	opts.Retry = resilience.RetryConfig{MaxAttempts: 1}
	e, err := New(opts)
	require.NoError(t, err)
	return e, opts.Input
}

func writeSave(t *testing.T, path string, d document.Date) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, eu4Save(d), 0o644))
}

func TestEngine_Defaults(t *testing.T) {
	e, input := newEngine(t, Options{})
	assert.Equal(t, filepath.Join(filepath.Dir(input), "autosave"), e.OutDir())
	assert.Equal(t, Yearly, e.opts.Frequency)
	assert.Equal(t, DefaultDebounce, e.opts.Debounce)
	assert.Equal(t, Idle, e.State())
	_, ok := e.Last()
	assert.False(t, ok)
}

func TestEngine_HandleSnapshotsNewBuckets(t *testing.T) {
	rec := &fakeRecorder{}
	var mu sync.Mutex
	var states []State
	e, input := newEngine(t, Options{
		Recorder: rec,
		OnTransition: func(_, to State) {
			mu.Lock()
			states = append(states, to)
			mu.Unlock()
		},
	})
	ctx := context.Background()

	var written []string
	for _, d := range []document.Date{
		document.MustDate(1444, 11, 11),
		document.MustDate(1444, 12, 1),
		document.MustDate(1445, 1, 1),
		document.MustDate(1445, 6, 1),
		document.MustDate(1446, 1, 1),
	} {
		writeSave(t, input, d)
		snap, err := e.Handle(ctx)
		require.NoError(t, err)
		if snap != nil {
			written = append(written, filepath.Base(snap.Path))
		}
		assert.Equal(t, Idle, e.State())
	}

	assert.Equal(t, []string{
		"autosave_1444-11-11.eu4",
		"autosave_1445-01-01.eu4",
		"autosave_1446-01-01.eu4",
	}, written)
	assert.Equal(t, 3, rec.count())

	got, err := os.ReadFile(filepath.Join(e.OutDir(), "autosave_1445-01-01.eu4"))
	require.NoError(t, err)
	assert.Equal(t, eu4Save(document.MustDate(1445, 1, 1)), got)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{ChangeDetected, DateExtracted, Snapshotted, Idle}, states[:4])
	assert.Equal(t, []State{ChangeDetected, DateExtracted, Skipped, Idle}, states[4:8])
}

func TestEngine_ResumesFromExistingSnapshots(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "autosave.eu4")
	out := filepath.Join(dir, "archive")
	require.NoError(t, os.MkdirAll(out, 0o755))
	touch(t, out, "autosave_1450-03-01.eu4")

	e, err := New(Options{Input: input, OutDir: out, Extractor: extractor(t, game.EU4), Retry: resilience.RetryConfig{MaxAttempts: 1}})
	require.NoError(t, err)
	last, ok := e.Last()
	require.True(t, ok)
	assert.Equal(t, "1450.3.1", last.String())

	writeSave(t, input, document.MustDate(1450, 12, 1))
	snap, err := e.Handle(context.Background())
	require.NoError(t, err)
	assert.Nil(t, snap)

	writeSave(t, input, document.MustDate(1451, 1, 1))
	snap, err = e.Handle(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snap)
}

func TestEngine_ExtractFailureIsIOError(t *testing.T) {
	e, input := newEngine(t, Options{})
	require.NoError(t, os.WriteFile(input, []byte("EU4bin\x00"), 0o644))

	snap, err := e.Handle(context.Background())
	assert.Nil(t, snap)
	var ioErr *IOError
	require.True(t, errors.As(err, &ioErr))
	assert.Equal(t, "extract date", ioErr.Op)
	assert.Equal(t, Idle, e.State())

	// The next change recovers.
	writeSave(t, input, document.MustDate(1444, 11, 11))
	snap, err = e.Handle(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, snap)
}

func TestEngine_MissingInputIsIOError(t *testing.T) {
	e, _ := newEngine(t, Options{})
	_, err := e.Handle(context.Background())
	var ioErr *IOError
	require.True(t, errors.As(err, &ioErr))
	assert.Equal(t, "read", ioErr.Op)
}

func TestEngine_RecorderFailureDoesNotFailCycle(t *testing.T) {
	rec := &fakeRecorder{err: errors.New("database is down")}
	br := resilience.NewBreaker(resilience.BreakerConfig{FailureThreshold: 1, Cooldown: time.Hour})
	e, input := newEngine(t, Options{Recorder: rec, Breaker: br})

	writeSave(t, input, document.MustDate(1444, 11, 11))
	snap, err := e.Handle(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, resilience.BreakerOpen, br.State())

	writeSave(t, input, document.MustDate(1445, 11, 11))
	snap, err = e.Handle(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, snap)
}

func TestEngine_RunReactsToWrites(t *testing.T) {
	e, input := newEngine(t, Options{Debounce: 20 * time.Millisecond, Frequency: Monthly})
	writeSave(t, input, document.MustDate(1444, 11, 11))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	first := filepath.Join(e.OutDir(), "autosave_1444-11-11.eu4")
	require.Eventually(t, func() bool {
		_, err := os.Stat(first)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)

	// A corrupt write is logged and skipped; the loop keeps running.
	require.NoError(t, os.WriteFile(input, []byte("EU4bin\x00"), 0o644))
	time.Sleep(100 * time.Millisecond)

	writeSave(t, input, document.MustDate(1444, 12, 1))
	second := filepath.Join(e.OutDir(), "autosave_1444-12-01.eu4")
	require.Eventually(t, func() bool {
		_, err := os.Stat(second)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
	_, err = New(Options{Input: "x.eu4"})
	assert.Error(t, err)
}
