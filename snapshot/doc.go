// Package snapshot persists serialized indexes so that they can be reopened
// without a rebuild.
//
// A snapshot is a small JSON header describing the index (name, strategy,
// options, build id) followed by the index payload, optionally compressed
// with lz4 or zstd. Snapshots are kept in a Store: a local directory, or an
// S3-compatible bucket through the minio sub package.
package snapshot
