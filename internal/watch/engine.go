package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/rakaly/cli/internal/document"
	"github.com/rakaly/cli/internal/fsutil"
	"github.com/rakaly/cli/internal/resilience"
)

// State is a step of one watch cycle.
type State uint8

// Engine states. A cycle always ends back in Idle.
const (
	Idle State = iota
	ChangeDetected
	DateExtracted
	Snapshotted
	Skipped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case ChangeDetected:
		return "change-detected"
	case DateExtracted:
		return "date-extracted"
	case Snapshotted:
		return "snapshotted"
	case Skipped:
		return "skipped"
	}
	return "unknown"
}

// IOError is a failed read, extraction or copy. It is transient: the next
// change notification tries again.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("watch: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Recorder is told about every snapshot written.
type Recorder interface {
	Record(ctx context.Context, source string, snap Snapshot) error
}

// DefaultDebounce collapses the burst of writes a game makes while saving.
const DefaultDebounce = 500 * time.Millisecond

// Options configure an Engine.
type Options struct {
	// Input is the save file to watch.
	Input string
	// OutDir receives snapshots. Default: <parent>/<stem>.
	OutDir    string
	Frequency Frequency
	Extractor *DateExtractor
	// Debounce is the quiet period after the last change before a cycle
	// runs. Default: DefaultDebounce.
	Debounce time.Duration
	Retry    resilience.RetryConfig

	// Recorder is optional. When Breaker is set, calls go through it.
	Recorder Recorder
	Breaker  *resilience.Breaker

	// OnTransition is called on every state change.
	OnTransition func(from, to State)
}

// Engine turns change notifications into snapshots.
type Engine struct {
	opts      Options
	stem, ext string

	mu    sync.Mutex
	state State
	last  *document.Date
}

// DefaultOutDir returns <parent>/<stem> for input.
func DefaultOutDir(input string) string {
	stem, ext := SplitName(input)
	if stem == "" {
		stem = ext[1:]
	}
	return filepath.Join(filepath.Dir(input), stem)
}

// New validates opts and seeds the latest snapshot date from OutDir.
func New(opts Options) (*Engine, error) {
	if opts.Input == "" {
		return nil, eris.New("watch: input is required")
	}
	if opts.Extractor == nil || opts.Extractor.Caps == nil {
		return nil, eris.New("watch: date extractor is required")
	}
	abs, err := filepath.Abs(opts.Input)
	if err != nil {
		return nil, eris.Wrapf(err, "watch: resolve %s", opts.Input)
	}
	opts.Input = abs
	if opts.OutDir == "" {
		opts.OutDir = DefaultOutDir(abs)
	}
	if opts.Frequency == 0 {
		f, err := ParseFrequency(opts.Extractor.Caps.Frequency)
		if err != nil {
			return nil, err
		}
		opts.Frequency = f
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = resilience.DefaultRetryConfig()
	}

	stem, ext := SplitName(abs)
	last, err := Scan(opts.OutDir, stem, ext)
	if err != nil {
		return nil, err
	}
	return &Engine{opts: opts, stem: stem, ext: ext, last: last}, nil
}

// OutDir returns the snapshot directory.
func (e *Engine) OutDir() string { return e.opts.OutDir }

// State returns the current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Last returns the date of the latest snapshot.
func (e *Engine) Last() (document.Date, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.last == nil {
		return document.Date{}, false
	}
	return *e.last, true
}

func (e *Engine) transition(to State) {
	e.mu.Lock()
	from := e.state
	e.state = to
	e.mu.Unlock()
	if e.opts.OnTransition != nil {
		e.opts.OnTransition(from, to)
	}
}

// Handle runs one cycle for the current contents of the input. It returns
// the snapshot written, or nil when the date did not reach a new bucket.
func (e *Engine) Handle(ctx context.Context) (*Snapshot, error) {
	e.transition(ChangeDetected)
	snap, err := e.cycle(ctx)
	e.transition(Idle)
	return snap, err
}

func (e *Engine) cycle(ctx context.Context) (*Snapshot, error) {
	log := zap.L().With(zap.String("input", e.opts.Input))

	retry := e.opts.Retry
	retry.OnRetry = resilience.RetryLogger("read save", e.opts.Input)
	data, err := resilience.DoVal(ctx, retry, func(ctx context.Context) ([]byte, error) {
		return os.ReadFile(e.opts.Input)
	})
	if err != nil {
		return nil, &IOError{Op: "read", Path: e.opts.Input, Err: err}
	}

	date, err := e.opts.Extractor.Extract(data)
	if err != nil {
		// A save caught mid-write fails to decode; the next write retries.
		return nil, &IOError{Op: "extract date", Path: e.opts.Input, Err: err}
	}
	e.transition(DateExtracted)

	e.mu.Lock()
	last := e.last
	e.mu.Unlock()
	if !e.opts.Frequency.ShouldSnapshot(date, last) {
		log.Debug("watch: skipped", zap.String("date", date.String()))
		e.transition(Skipped)
		return nil, nil
	}

	dest := filepath.Join(e.opts.OutDir, SnapshotName(e.stem, e.ext, date))
	retry.OnRetry = resilience.RetryLogger("write snapshot", dest)
	if err := resilience.Do(ctx, retry, func(context.Context) error {
		return fsutil.WriteFile(dest, data)
	}); err != nil {
		return nil, &IOError{Op: "write snapshot", Path: dest, Err: err}
	}

	e.mu.Lock()
	e.last = &date
	e.mu.Unlock()
	e.transition(Snapshotted)
	log.Info("watch: snapshot written", zap.String("date", date.String()), zap.String("path", dest))

	snap := &Snapshot{Path: dest, Date: date}
	e.record(ctx, *snap)
	return snap, nil
}

func (e *Engine) record(ctx context.Context, snap Snapshot) {
	if e.opts.Recorder == nil {
		return
	}
	call := func(ctx context.Context) error {
		return e.opts.Recorder.Record(ctx, e.opts.Input, snap)
	}
	var err error
	if e.opts.Breaker != nil {
		err = e.opts.Breaker.Execute(ctx, call)
	} else {
		err = call(ctx)
	}
	if err != nil {
		zap.L().Warn("watch: catalog record failed", zap.String("path", snap.Path), zap.Error(err))
	}
}

// Run processes the input once, then again after every burst of changes,
// until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return eris.Wrap(err, "watch: create watcher")
	}
	defer watcher.Close() //nolint:errcheck

	dir := filepath.Dir(e.opts.Input)
	if err := watcher.Add(dir); err != nil {
		return eris.Wrapf(err, "watch: watch %s", dir)
	}
	zap.L().Info("watch: started",
		zap.String("input", e.opts.Input),
		zap.String("out_dir", e.opts.OutDir),
		zap.String("frequency", e.opts.Frequency.String()),
	)

	if _, err := os.Stat(e.opts.Input); err == nil {
		if err := e.handle(ctx); err != nil {
			return err
		}
	}

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("watch: stopped", zap.String("input", e.opts.Input))
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != e.opts.Input || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(e.opts.Debounce)
			} else {
				timer.Reset(e.opts.Debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			if err := e.handle(ctx); err != nil {
				return err
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			zap.L().Warn("watch: notifier error", zap.Error(err))
		}
	}
}

// handle runs a cycle and swallows transient failures.
func (e *Engine) handle(ctx context.Context) error {
	_, err := e.Handle(ctx)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return nil
	}
	var ioErr *IOError
	if errors.As(err, &ioErr) {
		zap.L().Warn("watch: cycle failed", zap.Error(err))
		return nil
	}
	return err
}
