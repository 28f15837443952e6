// Package blobstore provides storage abstraction for allknn's datasets
// and result files.
//
// Store is the interface for reading and writing named blobs.
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - Local: local filesystem with mmap-backed reads
//   - Memory: in-memory store for tests
//   - minio.Store: MinIO and other S3-compatible object storage
//
// Blobs that can expose their full contents without copying (such as
// memory mappings) additionally implement WholeReader; ReadAll uses it
// when present.
package blobstore
