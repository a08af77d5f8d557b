// Package vecsync keeps collection indexes in step with their base tables.
//
// Two modes are supported. Direct triggers call myvector_index_insert and
// myvector_index_remove from inside the writing statement, so changes are
// visible immediately but are not undone when the transaction rolls back.
// Logged triggers only append the changed row id to a change-log table; a
// Syncer later replays committed log entries by re-reading the current row
// and recording the last applied sequence number (SCN) per index.
package vecsync
