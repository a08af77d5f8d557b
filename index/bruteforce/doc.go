// Package bruteforce provides the exact vector index. Queries scan every
// stored vector and keep the k closest in a bounded heap, which makes it the
// correctness oracle for the approximate strategies. It supports a compact
// binary format for snapshots.
package bruteforce
