package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	"github.com/jmoiron/sqlx"
	"github.com/viant/myvector/vector"
)

// DefaultTable is the table used when none is configured.
const DefaultTable = "myvector_values"

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Record is one stored vector.
type Record struct {
	ID     int64
	Vector vector.Vector
	Dim    int
	// Valid is false when the stored bytes no longer decode; Vector is nil
	// in that case.
	Valid bool
}

type row struct {
	ID    int64  `db:"id"`
	Dim   int    `db:"dim"`
	Value []byte `db:"value"`
}

func (r row) record() Record {
	rec := Record{ID: r.ID, Dim: r.Dim}
	if v, err := vector.DecodeValue(r.Value); err == nil && len(v) == r.Dim {
		rec.Vector = v
		rec.Valid = true
	}
	return rec
}

// SQLStore keeps records in a SQLite table through sqlx.
type SQLStore struct {
	db    *sqlx.DB
	table string
}

// Option configures a SQLStore.
type Option func(*SQLStore)

// WithTable overrides the backing table name.
func WithTable(name string) Option {
	return func(s *SQLStore) { s.table = name }
}

// New creates a SQLStore and ensures its table exists.
func New(ctx context.Context, db *sqlx.DB, opts ...Option) (*SQLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("store: db is nil")
	}
	s := &SQLStore{db: db, table: DefaultTable}
	for _, opt := range opts {
		opt(s)
	}
	if !identRe.MatchString(s.table) {
		return nil, fmt.Errorf("store: %w: table name %q", vector.ErrInvalidArgument, s.table)
	}
	ddl := `CREATE TABLE IF NOT EXISTS ` + s.table + ` (
    id INTEGER PRIMARY KEY,
    dim INTEGER NOT NULL,
    value BLOB NOT NULL
)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return nil, fmt.Errorf("store: ensure schema: %w", err)
	}
	return s, nil
}

// Table returns the backing table name.
func (s *SQLStore) Table() string { return s.table }

// Put inserts or replaces the record for id. The dimensionality of an
// existing record cannot change.
func (s *SQLStore) Put(ctx context.Context, id int64, v vector.Vector) (Record, error) {
	if err := v.Validate(); err != nil {
		return Record{}, err
	}
	blob, err := vector.EncodeValue(v)
	if err != nil {
		return Record{}, err
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return Record{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var dim int
	err = tx.GetContext(ctx, &dim, `SELECT dim FROM `+s.table+` WHERE id = ?`, id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err = tx.ExecContext(ctx, `INSERT INTO `+s.table+`(id, dim, value) VALUES(?, ?, ?)`, id, len(v), blob); err != nil {
			return Record{}, fmt.Errorf("store: insert %d: %w", id, err)
		}
	case err != nil:
		return Record{}, fmt.Errorf("store: lookup %d: %w", id, err)
	default:
		if err := vector.CheckDim(dim, len(v)); err != nil {
			return Record{}, fmt.Errorf("store: put %d: %w", id, err)
		}
		if _, err = tx.ExecContext(ctx, `UPDATE `+s.table+` SET value = ? WHERE id = ?`, blob, id); err != nil {
			return Record{}, fmt.Errorf("store: update %d: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return Record{}, err
	}
	return Record{ID: id, Vector: v.Clone(), Dim: len(v), Valid: true}, nil
}

// Get returns the record for id or an error wrapping vector.ErrNotFound.
func (s *SQLStore) Get(ctx context.Context, id int64) (Record, error) {
	var r row
	err := s.db.GetContext(ctx, &r, `SELECT id, dim, value FROM `+s.table+` WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("store: record %d: %w", id, vector.ErrNotFound)
	}
	if err != nil {
		return Record{}, err
	}
	return r.record(), nil
}

// Delete removes the record for id and reports whether it existed.
func (s *SQLStore) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM `+s.table+` WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Count returns the number of stored records.
func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM `+s.table); err != nil {
		return 0, err
	}
	return n, nil
}

// Scan calls fn for every record in id order. Returning an error from fn
// stops the scan and returns that error.
func (s *SQLStore) Scan(ctx context.Context, fn func(Record) error) error {
	rows, err := s.db.QueryxContext(ctx, `SELECT id, dim, value FROM `+s.table+` ORDER BY id`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var r row
		if err := rows.StructScan(&r); err != nil {
			return err
		}
		if err := fn(r.record()); err != nil {
			return err
		}
	}
	return rows.Err()
}
