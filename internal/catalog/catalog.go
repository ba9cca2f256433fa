// Package catalog keeps an optional database index of watch snapshots. The
// snapshot directory is the source of truth; Reconcile brings the index in
// line with it.
package catalog

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/rakaly/cli/internal/document"
	"github.com/rakaly/cli/internal/watch"
)

// Entry is one cataloged snapshot.
type Entry struct {
	ID         string
	Source     string
	Path       string
	Date       document.Date
	RecordedAt time.Time
}

// ReconcileResult counts the rows changed by Reconcile.
type ReconcileResult struct {
	Added   int
	Removed int
}

// Store defines the persistence interface for the snapshot catalog.
type Store interface {
	// Record upserts a snapshot of source by path.
	Record(ctx context.Context, source string, snap watch.Snapshot) error
	// List returns the snapshots of source, oldest first.
	List(ctx context.Context, source string) ([]Entry, error)
	// Reconcile inserts snapshots missing from the catalog and deletes
	// rows whose file is gone.
	Reconcile(ctx context.Context, source string, onDisk []watch.Snapshot) (ReconcileResult, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open connects to driver ("sqlite" or "postgres") and migrates the schema.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	var (
		st  Store
		err error
	)
	switch driver {
	case "sqlite":
		st, err = NewSQLite(dsn)
	case "postgres":
		st, err = NewPostgres(ctx, dsn, nil)
	default:
		return nil, eris.Errorf("catalog: unknown driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

// diff splits onDisk into snapshots absent from known, and returns the
// known paths absent from onDisk.
func diff(known []string, onDisk []watch.Snapshot) (missing []watch.Snapshot, gone []string) {
	disk := make(map[string]bool, len(onDisk))
	for _, s := range onDisk {
		disk[s.Path] = true
	}
	have := make(map[string]bool, len(known))
	for _, p := range known {
		have[p] = true
		if !disk[p] {
			gone = append(gone, p)
		}
	}
	for _, s := range onDisk {
		if !have[s.Path] {
			missing = append(missing, s)
		}
	}
	return missing, gone
}
