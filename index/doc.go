// Package index defines the similarity index abstraction shared by every
// search strategy, together with the pieces that sit above a single
// strategy: result ordering, bounded top-k selection, the concurrency Handle
// that publishes rebuilt indexes atomically, and recall measurement against
// the exact oracle.
//
// Strategies live in sub packages: bruteforce (exact), hnsw (approximate
// graph) and cover (cover tree).
package index
