package vecsync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/viant/myvector/collection"
	"github.com/viant/myvector/vector"
)

// Install creates the triggers of name in the given mode. Logged mode also
// creates the change-log and sync-state tables in the base table's schema.
func Install(ctx context.Context, db *sqlx.DB, name, idColumn string, mode Mode) error {
	n, err := collection.ParseName(name)
	if err != nil {
		return err
	}
	stmts, err := Triggers(n, idColumn, mode, DefaultLogTable)
	if err != nil {
		return err
	}
	if mode == Logged {
		stmts = append([]string{
			LogTableDDL(n.Schema + "." + DefaultLogTable),
			StateTableDDL(n.Schema + "." + DefaultStateTable),
		}, stmts...)
	}
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("vecsync: install %s: %w", n, err)
		}
	}
	return tx.Commit()
}

// Uninstall drops the triggers of name.
func Uninstall(ctx context.Context, db *sqlx.DB, name string) error {
	n, err := collection.ParseName(name)
	if err != nil {
		return err
	}
	for _, stmt := range DropTriggers(n) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("vecsync: uninstall %s: %w", n, err)
		}
	}
	return nil
}

// Syncer replays committed change-log entries into registry collections.
type Syncer struct {
	db       *sqlx.DB
	registry *collection.Registry
	config   Config
	logger   *slog.Logger
}

// NewSyncer creates a Syncer. A nil logger uses slog.Default().
func NewSyncer(db *sqlx.DB, reg *collection.Registry, cfg Config, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{db: db, registry: reg, config: cfg.withDefaults(), logger: logger}
}

// State returns the sync state of name; a never-synced index has LastSCN 0.
func (s *Syncer) State(ctx context.Context, name string) (SyncState, error) {
	st := SyncState{IndexName: name}
	query := fmt.Sprintf(`SELECT index_name, last_scn, updated_at FROM %s WHERE index_name = ?`, s.config.StateTable)
	err := s.db.GetContext(ctx, &st, query, name)
	if errors.Is(err, sql.ErrNoRows) {
		return SyncState{IndexName: name}, nil
	}
	return st, err
}

// Sync applies one batch per index with pending entries and returns the
// number of entries consumed. Entries for indexes not loaded in the
// registry are left in place.
func (s *Syncer) Sync(ctx context.Context) (int, error) {
	var names []string
	query := fmt.Sprintf(`SELECT DISTINCT l.index_name FROM %s l
LEFT JOIN %s s ON s.index_name = l.index_name
WHERE l.scn > COALESCE(s.last_scn, 0)
ORDER BY l.index_name`, s.config.LogTable, s.config.StateTable)
	if err := s.db.SelectContext(ctx, &names, query); err != nil {
		return 0, fmt.Errorf("vecsync: pending indexes: %w", err)
	}
	total := 0
	for _, name := range names {
		coll, err := s.registry.Get(name)
		if err != nil {
			if errors.Is(err, vector.ErrNotFound) {
				s.logger.Warn("skipping changes for unloaded index", "name", name)
				continue
			}
			return total, err
		}
		n, err := s.apply(ctx, coll)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (s *Syncer) apply(ctx context.Context, coll *collection.Collection) (int, error) {
	name := coll.Name()
	st, err := s.State(ctx, name)
	if err != nil {
		return 0, err
	}
	var entries []LogEntry
	query := fmt.Sprintf(`SELECT scn, index_name, op, row_id FROM %s WHERE index_name = ? AND scn > ? ORDER BY scn LIMIT ?`, s.config.LogTable)
	if err := s.db.SelectContext(ctx, &entries, query, name, st.LastSCN, s.config.BatchSize); err != nil {
		return 0, fmt.Errorf("vecsync: read log for %s: %w", name, err)
	}
	if len(entries) == 0 {
		return 0, nil
	}
	n, err := collection.ParseName(name)
	if err != nil {
		return 0, err
	}
	lookup := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = ?`, n.Column, n.Source(), coll.IDColumn())
	// The current row wins over the logged op, so replays are idempotent.
	seen := make(map[int64]bool, len(entries))
	for _, e := range entries {
		if seen[e.RowID] {
			continue
		}
		seen[e.RowID] = true
		var value any
		err := s.db.QueryRowxContext(ctx, lookup, e.RowID).Scan(&value)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			value = nil
		case err != nil:
			return 0, fmt.Errorf("vecsync: read row %d of %s: %w", e.RowID, name, err)
		}
		v, err := vector.FromValue(value)
		if err != nil {
			return 0, fmt.Errorf("vecsync: row %d of %s: %w", e.RowID, name, err)
		}
		if v == nil {
			coll.Remove(e.RowID)
			continue
		}
		if err := coll.Insert(e.RowID, v); err != nil {
			return 0, fmt.Errorf("vecsync: row %d of %s: %w", e.RowID, name, err)
		}
	}
	last := entries[len(entries)-1].SCN
	upsert := fmt.Sprintf(`INSERT INTO %s(index_name, last_scn, updated_at) VALUES (?, ?, ?)
ON CONFLICT(index_name) DO UPDATE SET last_scn = excluded.last_scn, updated_at = excluded.updated_at`, s.config.StateTable)
	if _, err := s.db.ExecContext(ctx, upsert, name, last, time.Now().Unix()); err != nil {
		return 0, fmt.Errorf("vecsync: save state of %s: %w", name, err)
	}
	s.logger.Debug("applied change log", "name", name, "entries", len(entries), "rows", len(seen), "scn", last)
	return len(entries), nil
}

// Prune deletes log entries already applied to every synced index.
func (s *Syncer) Prune(ctx context.Context) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %[1]s WHERE scn <= (SELECT last_scn FROM %[2]s s WHERE s.index_name = %[1]s.index_name)`,
		s.config.LogTable, s.config.StateTable)
	res, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("vecsync: prune: %w", err)
	}
	return res.RowsAffected()
}

// Run calls Sync every Config.Interval until ctx is done.
func (s *Syncer) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()
	for {
		if n, err := s.Sync(ctx); err != nil {
			s.logger.Error("sync failed", "error", err)
		} else if n > 0 {
			s.logger.Info("synced", "entries", n)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
