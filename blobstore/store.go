package blobstore

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies
// errors.Is(err, ErrNotFound). The default maps to os.ErrNotExist.
var ErrNotFound = os.ErrNotExist

// Store is an abstraction for reading and writing named data blobs
// (datasets, snapshots, result files). Implementations must be safe for
// concurrent use.
type Store interface {
	// Open opens an existing blob for reading.
	Open(ctx context.Context, name string) (Blob, error)

	// Put writes a blob atomically, replacing any existing blob of the
	// same name.
	Put(ctx context.Context, name string, data []byte) error
}

// Blob is a read-only handle to a data blob.
type Blob interface {
	// ReadAt reads len(p) bytes starting at off, io.ReaderAt style.
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)

	// Size returns the size of the blob in bytes.
	Size() int64

	io.Closer
}

// WholeReader is an optional interface for Blobs that can surface their
// full contents cheaply, e.g. as a memory mapping.
type WholeReader interface {
	// Bytes returns the blob contents. The slice is valid until the Blob
	// is closed and must not be mutated.
	Bytes(ctx context.Context) ([]byte, error)
}

// ReadAll reads a blob's full contents, through WholeReader when the
// implementation offers it. The returned slice is the caller's to keep
// only for WholeReader-less blobs; copy it before closing otherwise.
func ReadAll(ctx context.Context, b Blob) ([]byte, error) {
	if w, ok := b.(WholeReader); ok {
		return w.Bytes(ctx)
	}

	data := make([]byte, b.Size())
	n, err := b.ReadAt(ctx, data, 0)
	if err != nil && err != io.EOF {
		return nil, err
	}
	return data[:n], nil
}
