package blobstore

import (
	"context"
	"io"
	"path/filepath"

	"github.com/hupe1980/allknn/internal/mmap"
	"github.com/hupe1980/allknn/persistence"
)

// Local implements Store on the local file system. Reads go through mmap,
// the most efficient path for the random access patterns of tree search;
// writes are atomic temp-file renames.
type Local struct {
	root string
}

// NewLocal creates a Local store rooted at the given directory.
func NewLocal(root string) *Local {
	return &Local{root: root}
}

// Open opens a blob for reading.
func (s *Local) Open(_ context.Context, name string) (Blob, error) {
	m, err := mmap.Open(filepath.Join(s.root, name))
	if err != nil {
		return nil, err
	}
	return &localBlob{m: m}, nil
}

// Put writes a blob atomically via a temp file and rename.
func (s *Local) Put(_ context.Context, name string, data []byte) error {
	return persistence.SaveToFile(filepath.Join(s.root, name), func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

type localBlob struct {
	m *mmap.File
}

func (b *localBlob) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	data := b.m.Bytes()
	if off < 0 || off >= int64(len(data)) {
		return 0, io.EOF
	}
	n := copy(p, data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b *localBlob) Size() int64 {
	return int64(len(b.m.Bytes()))
}

func (b *localBlob) Close() error {
	return b.m.Close()
}

// Bytes implements WholeReader with the zero-copy mapping.
func (b *localBlob) Bytes(_ context.Context) ([]byte, error) {
	return b.m.Bytes(), nil
}
