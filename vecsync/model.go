package vecsync

import "time"

// LogEntry mirrors a single row of the change-log table.
type LogEntry struct {
	SCN       int64  `db:"scn"`
	IndexName string `db:"index_name"`
	Op        string `db:"op"`
	RowID     int64  `db:"row_id"`
}

// SyncState describes the latest SCN applied locally for an index.
// It corresponds to rows in the sync-state table.
type SyncState struct {
	IndexName string `db:"index_name"`
	LastSCN   int64  `db:"last_scn"`
	// UpdatedAt is stored as unix seconds.
	UpdatedAt int64 `db:"updated_at"`
}

// Updated returns UpdatedAt as a time.
func (s SyncState) Updated() time.Time { return time.Unix(s.UpdatedAt, 0).UTC() }

// Config captures the settings of a Syncer.
type Config struct {
	// LogTable is the change-log table; defaults to DefaultLogTable.
	LogTable string

	// StateTable records the last applied SCN; defaults to DefaultStateTable.
	StateTable string

	// BatchSize controls how many log entries are applied per index and pass.
	BatchSize int

	// Interval is the polling period used by Run.
	Interval time.Duration
}

const (
	defaultBatchSize = 500
	defaultInterval  = time.Second
)

func (c Config) withDefaults() Config {
	if c.LogTable == "" {
		c.LogTable = DefaultLogTable
	}
	if c.StateTable == "" {
		c.StateTable = DefaultStateTable
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.Interval <= 0 {
		c.Interval = defaultInterval
	}
	return c
}
