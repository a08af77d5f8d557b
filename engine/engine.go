package engine

import (
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // register pure-Go SQLite driver
)

// DriverName is the database/sql driver every connection uses.
const DriverName = "sqlite"

// Open opens a SQLite database using the modernc.org/sqlite driver.
//
// For file-based databases, pass a path like "./db.sqlite". For in-memory
// databases, pass ":memory:". Functions registered with RegisterFunctions
// are visible on connections opened after registration.
func Open(dsn string) (*sqlx.DB, error) { return sqlx.Open(DriverName, dsn) }
