// Package store appends converted sweeps to a SQLite database so results
// from many machines and sweeps can be queried together.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/nballoc/allocbench/collect"
)

const schema = `
CREATE TABLE IF NOT EXISTS sweeps (
	id          TEXT PRIMARY KEY,
	created_at  INTEGER NOT NULL,
	results_dir TEXT NOT NULL,
	tuples      INTEGER NOT NULL,
	missing     INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS results (
	sweep_id  TEXT NOT NULL REFERENCES sweeps(id),
	seq       INTEGER NOT NULL,
	test      TEXT NOT NULL,
	allocator TEXT NOT NULL,
	size      TEXT NOT NULL,
	threads   TEXT NOT NULL,
	run       TEXT NOT NULL,
	clocks    TEXT,
	reason    TEXT,
	PRIMARY KEY (sweep_id, seq)
);
CREATE INDEX IF NOT EXISTS results_point
	ON results (test, allocator, size, threads);
`

var errUnknown = errors.New("no value")

// Sweep describes one stored conversion.
type Sweep struct {
	ID         string
	CreatedAt  time.Time
	ResultsDir string
	Tuples     int
	Missing    int
}

// Store is a SQLite database of sweeps.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()

		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append stores rows as a new sweep in one transaction and returns it.
// Times are stored as text exactly as extracted; sentinel times are stored
// as NULL.
func (s *Store) Append(ctx context.Context, resultsDir string, rows []collect.Row) (Sweep, error) {
	sw := Sweep{
		ID:         uuid.NewString(),
		CreatedAt:  s.now().UTC(),
		ResultsDir: resultsDir,
		Tuples:     len(rows),
	}
	for _, r := range rows {
		if r.Missing() {
			sw.Missing++
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Sweep{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sweeps (id, created_at, results_dir, tuples, missing) VALUES (?, ?, ?, ?, ?)`,
		sw.ID, sw.CreatedAt.UnixNano(), sw.ResultsDir, sw.Tuples, sw.Missing,
	); err != nil {
		return Sweep{}, fmt.Errorf("insert sweep: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO results (sweep_id, seq, test, allocator, size, threads, run, clocks, reason)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return Sweep{}, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range rows {
		var clocks, reason sql.NullString
		switch {
		case r.Missing():
			reason = sql.NullString{String: r.Err.Error(), Valid: true}
		case r.Time != collect.Sentinel:
			clocks = sql.NullString{String: r.Time, Valid: true}
		}

		if _, err := stmt.ExecContext(ctx,
			sw.ID, i, r.Test, r.Allocator, r.Size, r.Threads, r.Run, clocks, reason,
		); err != nil {
			return Sweep{}, fmt.Errorf("insert %s: %w", r.Filename(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Sweep{}, fmt.Errorf("commit: %w", err)
	}

	return sw, nil
}

// Rows returns the rows of a stored sweep in their original order.
func (s *Store) Rows(ctx context.Context, sweepID string) ([]collect.Row, error) {
	rs, err := s.db.QueryContext(ctx,
		`SELECT test, allocator, size, threads, run, clocks, reason
		 FROM results WHERE sweep_id = ? ORDER BY seq`, sweepID)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rs.Close()

	var out []collect.Row
	for rs.Next() {
		var (
			r              collect.Row
			clocks, reason sql.NullString
		)

		if err := rs.Scan(&r.Test, &r.Allocator, &r.Size, &r.Threads, &r.Run, &clocks, &reason); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}

		r.Time = collect.Sentinel
		switch {
		case clocks.Valid:
			r.Time = clocks.String
		case reason.Valid:
			r.Err = errors.New(reason.String)
		default:
			r.Err = errUnknown
		}

		out = append(out, r)
	}

	return out, rs.Err()
}

// Sweeps lists the stored sweeps, oldest first.
func (s *Store) Sweeps(ctx context.Context) ([]Sweep, error) {
	rs, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, results_dir, tuples, missing FROM sweeps ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("query sweeps: %w", err)
	}
	defer rs.Close()

	var out []Sweep
	for rs.Next() {
		var (
			sw      Sweep
			created int64
		)

		if err := rs.Scan(&sw.ID, &created, &sw.ResultsDir, &sw.Tuples, &sw.Missing); err != nil {
			return nil, fmt.Errorf("scan sweep: %w", err)
		}

		sw.CreatedAt = time.Unix(0, created).UTC()

		out = append(out, sw)
	}

	return out, rs.Err()
}
