// Package search provides the myvector_search virtual table, the SQL entry
// point for k nearest neighbour queries against registry collections.
// Results are ordered by ascending distance with ties broken by id, and
// rowid is the 1-based rank.
package search
