package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/rakaly/cli/internal/document"
	"github.com/rakaly/cli/internal/resilience"
	"github.com/rakaly/cli/internal/watch"
)

// Pool is the subset of pgxpool.Pool the catalog uses. pgxmock satisfies it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
	retry   resilience.RetryConfig
	now     func() time.Time
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	st := newPostgres(pool)
	st.closeFn = pool.Close
	return st, nil
}

func newPostgres(pool Pool) *PostgresStore {
	retry := resilience.DefaultRetryConfig()
	retry.ShouldRetry = pgconn.SafeToRetry
	return &PostgresStore{pool: pool, retry: retry, now: time.Now}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS snapshots (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	source      TEXT NOT NULL,
	path        TEXT NOT NULL UNIQUE,
	game_date   TEXT NOT NULL,
	game_days   BIGINT NOT NULL,
	game_hour   BIGINT NOT NULL DEFAULT 0,
	recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_snapshots_source ON snapshots(source, game_days);
`

const postgresUpsert = `INSERT INTO snapshots (id, source, path, game_date, game_days, game_hour, recorded_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (path) DO UPDATE SET
	source = EXCLUDED.source,
	game_date = EXCLUDED.game_date,
	game_days = EXCLUDED.game_days,
	game_hour = EXCLUDED.game_hour,
	recorded_at = EXCLUDED.recorded_at`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

type pgExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (s *PostgresStore) upsert(ctx context.Context, x pgExecer, source string, snap watch.Snapshot) error {
	_, err := x.Exec(ctx, postgresUpsert,
		uuid.New().String(), source, snap.Path,
		snap.Date.String(), snap.Date.Days, int64(snap.Date.Hour),
		s.now().UTC(),
	)
	return eris.Wrapf(err, "postgres: record %s", snap.Path)
}

func (s *PostgresStore) Record(ctx context.Context, source string, snap watch.Snapshot) error {
	return resilience.Do(ctx, s.retry, func(ctx context.Context) error {
		return s.upsert(ctx, s.pool, source, snap)
	})
}

func (s *PostgresStore) List(ctx context.Context, source string) ([]Entry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, source, path, game_days, game_hour, recorded_at FROM snapshots WHERE source = $1 ORDER BY game_days, game_hour, path`,
		source)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list snapshots")
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var days, hour int64
		if err := rows.Scan(&e.ID, &e.Source, &e.Path, &days, &hour, &e.RecordedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan snapshot")
		}
		e.Date = document.Date{Days: days, Hour: uint8(hour)}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list snapshots iterate")
}

func (s *PostgresStore) Reconcile(ctx context.Context, source string, onDisk []watch.Snapshot) (ReconcileResult, error) {
	var res ReconcileResult
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return res, eris.Wrap(err, "postgres: begin reconcile")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	rows, err := tx.Query(ctx, `SELECT path FROM snapshots WHERE source = $1`, source)
	if err != nil {
		return res, eris.Wrap(err, "postgres: reconcile paths")
	}
	known, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return res, eris.Wrap(err, "postgres: scan paths")
	}

	missing, gone := diff(known, onDisk)
	for _, snap := range missing {
		if err := s.upsert(ctx, tx, source, snap); err != nil {
			return res, err
		}
		res.Added++
	}
	if len(gone) > 0 {
		tag, err := tx.Exec(ctx, `DELETE FROM snapshots WHERE path = ANY($1)`, gone)
		if err != nil {
			return res, eris.Wrap(err, "postgres: delete stale snapshots")
		}
		res.Removed = int(tag.RowsAffected())
	}
	if err := tx.Commit(ctx); err != nil {
		return ReconcileResult{}, eris.Wrap(err, "postgres: commit reconcile")
	}
	return res, nil
}

var _ Store = (*PostgresStore)(nil)
