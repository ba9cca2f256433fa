package catalog

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/rakaly/cli/internal/watch"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS snapshots (
	id          TEXT PRIMARY KEY,
	source      TEXT NOT NULL,
	path        TEXT NOT NULL UNIQUE,
	game_date   TEXT NOT NULL,
	game_days   INTEGER NOT NULL,
	game_hour   INTEGER NOT NULL DEFAULT 0,
	recorded_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snapshots_source ON snapshots(source, game_days);
`

const sqliteUpsert = `INSERT INTO snapshots (id, source, path, game_date, game_days, game_hour, recorded_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(path) DO UPDATE SET
	source = excluded.source,
	game_date = excluded.game_date,
	game_days = excluded.game_days,
	game_hour = excluded.game_hour,
	recorded_at = excluded.recorded_at`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLiteStore) upsert(ctx context.Context, x execer, source string, snap watch.Snapshot) error {
	_, err := x.ExecContext(ctx, sqliteUpsert,
		uuid.New().String(), source, snap.Path,
		snap.Date.String(), snap.Date.Days, int(snap.Date.Hour),
		s.now().UTC().Format(time.RFC3339Nano),
	)
	return eris.Wrapf(err, "sqlite: record %s", snap.Path)
}

func (s *SQLiteStore) Record(ctx context.Context, source string, snap watch.Snapshot) error {
	return s.upsert(ctx, s.db, source, snap)
}

func (s *SQLiteStore) List(ctx context.Context, source string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, path, game_days, game_hour, recorded_at FROM snapshots WHERE source = ? ORDER BY game_days, game_hour, path`,
		source)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list snapshots")
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var hour int
		var recorded string
		if err := rows.Scan(&e.ID, &e.Source, &e.Path, &e.Date.Days, &hour, &recorded); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan snapshot")
		}
		e.Date.Hour = uint8(hour)
		if e.RecordedAt, err = time.Parse(time.RFC3339Nano, recorded); err != nil {
			return nil, eris.Wrap(err, "sqlite: parse recorded_at")
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list snapshots iterate")
}

func (s *SQLiteStore) Reconcile(ctx context.Context, source string, onDisk []watch.Snapshot) (ReconcileResult, error) {
	var res ReconcileResult
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, eris.Wrap(err, "sqlite: begin reconcile")
	}
	defer tx.Rollback() //nolint:errcheck

	rows, err := tx.QueryContext(ctx, `SELECT path FROM snapshots WHERE source = ?`, source)
	if err != nil {
		return res, eris.Wrap(err, "sqlite: reconcile paths")
	}
	var known []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return res, eris.Wrap(err, "sqlite: scan path")
		}
		known = append(known, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return res, eris.Wrap(err, "sqlite: reconcile paths iterate")
	}

	missing, gone := diff(known, onDisk)
	for _, snap := range missing {
		if err := s.upsert(ctx, tx, source, snap); err != nil {
			return res, err
		}
		res.Added++
	}
	for _, p := range gone {
		if _, err := tx.ExecContext(ctx, `DELETE FROM snapshots WHERE path = ?`, p); err != nil {
			return res, eris.Wrapf(err, "sqlite: delete %s", p)
		}
		res.Removed++
	}
	if err := tx.Commit(); err != nil {
		return ReconcileResult{}, eris.Wrap(err, "sqlite: commit reconcile")
	}
	return res, nil
}

var _ Store = (*SQLiteStore)(nil)

