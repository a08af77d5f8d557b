// Package store persists vector values keyed by an integer record id.
//
// Values are kept in the binary layout produced by vector.EncodeValue, so a
// stored column can be read back by the SQL functions registered in the
// engine package as well as by Go callers. A record's dimensionality is fixed
// by its first Put; later updates must keep it.
package store
