package vecsync

import (
	"fmt"
	"strings"

	"github.com/viant/myvector/collection"
)

const (
	// DefaultLogTable captures row-level change events for logged mode.
	DefaultLogTable = "myvector_log"

	// DefaultStateTable stores the last applied SCN per index.
	DefaultStateTable = "myvector_sync_state"
)

// Mode selects how triggers propagate changes.
type Mode int

const (
	// Direct triggers update the in-memory index inside the statement.
	Direct Mode = iota
	// Logged triggers append to the change-log table for a Syncer.
	Logged
)

// LogTableDDL returns the DDL for the change-log table.
func LogTableDDL(logTable string) string {
	if logTable == "" {
		logTable = DefaultLogTable
	}
	return `CREATE TABLE IF NOT EXISTS ` + logTable + ` (
    scn        INTEGER PRIMARY KEY AUTOINCREMENT,
    index_name TEXT NOT NULL,
    op         TEXT NOT NULL,
    row_id     INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);`
}

// StateTableDDL returns the DDL for the sync-state table.
func StateTableDDL(stateTable string) string {
	if stateTable == "" {
		stateTable = DefaultStateTable
	}
	return `CREATE TABLE IF NOT EXISTS ` + stateTable + ` (
    index_name TEXT PRIMARY KEY,
    last_scn   INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);`
}

// Triggers returns AFTER INSERT/UPDATE/DELETE trigger statements keeping the
// index name over the base table in step. idColumn must be the INTEGER
// key used when the index was built. logTable is only used in Logged mode
// and must live in the same schema as the base table.
func Triggers(name collection.Name, idColumn string, mode Mode, logTable string) ([]string, error) {
	if err := collection.CheckColumn(idColumn); err != nil {
		return nil, err
	}
	if logTable == "" {
		logTable = DefaultLogTable
	}
	index := name.String()
	base := triggerBase(name)
	var ins, upd, del string
	switch mode {
	case Direct:
		ins = fmt.Sprintf(`SELECT myvector_index_insert('%s', NEW.%s, NEW.%s);`, index, idColumn, name.Column)
		upd = fmt.Sprintf(`SELECT myvector_index_remove('%[1]s', OLD.%[2]s) WHERE OLD.%[2]s IS NOT NEW.%[2]s;
    SELECT myvector_index_insert('%[1]s', NEW.%[2]s, NEW.%[3]s);`, index, idColumn, name.Column)
		del = fmt.Sprintf(`SELECT myvector_index_remove('%s', OLD.%s);`, index, idColumn)
	case Logged:
		entry := func(op, alias string) string {
			return fmt.Sprintf(`INSERT INTO %s(index_name, op, row_id) VALUES ('%s', '%s', %s.%s);`, logTable, index, op, alias, idColumn)
		}
		ins = entry("insert", "NEW")
		upd = fmt.Sprintf(`INSERT INTO %[1]s(index_name, op, row_id) SELECT '%[2]s', 'delete', OLD.%[3]s WHERE OLD.%[3]s IS NOT NEW.%[3]s;
    %[4]s`, logTable, index, idColumn, entry("update", "NEW"))
		del = entry("delete", "OLD")
	default:
		return nil, fmt.Errorf("vecsync: unknown mode %d", mode)
	}

	insertTrig := fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS %s.%s_ai AFTER INSERT ON %s
BEGIN
    %s
END;`, name.Schema, base, name.Table, ins)

	updateTrig := fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS %s.%s_au AFTER UPDATE OF %s, %s ON %s
BEGIN
    %s
END;`, name.Schema, base, idColumn, name.Column, name.Table, upd)

	deleteTrig := fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS %s.%s_ad AFTER DELETE ON %s
BEGIN
    %s
END;`, name.Schema, base, name.Table, del)

	return []string{insertTrig, updateTrig, deleteTrig}, nil
}

// DropTriggers returns the statements removing the triggers of name.
func DropTriggers(name collection.Name) []string {
	base := triggerBase(name)
	var out []string
	for _, suffix := range []string{"_ai", "_au", "_ad"} {
		out = append(out, fmt.Sprintf(`DROP TRIGGER IF EXISTS %s.%s%s;`, name.Schema, base, suffix))
	}
	return out
}

func triggerBase(name collection.Name) string {
	return sanitizeIdentifier("myvector_"+name.Table+"_"+name.Column)
}

func sanitizeIdentifier(name string) string {
	if name == "" {
		return ""
	}
	replacer := strings.NewReplacer(".", "_", "-", "_")
	return replacer.Replace(name)
}
