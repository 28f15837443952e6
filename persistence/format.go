package persistence

import "errors"

const (
	// MagicNumber identifies allknn binary files (ASCII: "AKNN").
	MagicNumber = 0x414B4E4E
	// Version is the current file format version (v1.0.0).
	Version = 0x00010000

	// File kinds.
	KindMatrix = 1
	KindTree   = 2
)

var (
	ErrInvalidMagic   = errors.New("invalid magic number")
	ErrInvalidVersion = errors.New("unsupported version")
	ErrInvalidKind    = errors.New("invalid file kind")
)

// FileHeader is the 32-byte header at the start of every binary file.
type FileHeader struct {
	Magic   uint32 // 0x414B4E4E ("AKNN")
	Version uint32 // File format version
	Kind    uint8  // 1=matrix, 2=tree
	_       [3]byte
	Rows    uint64 // Points (matrix) or indexed points (tree)
	Cols    uint32 // Dimensions
	Extra   uint64 // Kind-specific (tree: leaf size)
}

// HeaderSize is the encoded size of FileHeader in bytes.
const HeaderSize = 32
