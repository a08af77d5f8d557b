// Package admin exposes index maintenance (build, refresh, save, load,
// drop and status) as the myvector_admin SQLite virtual table.
package admin
