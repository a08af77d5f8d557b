// Package hnsw implements an approximate similarity index on a Hierarchical
// Navigable Small World graph.
//
// Removed entries are tombstoned in a roaring bitmap. They keep routing
// queries through the graph but never appear in results, and the graph is
// rebuilt from live entries once tombstones outnumber them.
package hnsw
