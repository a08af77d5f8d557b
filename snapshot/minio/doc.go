// Package minio keeps index snapshots in an S3-compatible bucket.
package minio
