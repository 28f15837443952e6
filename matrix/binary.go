package matrix

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"unsafe"

	"github.com/hupe1980/allknn/internal/conv"
	"github.com/hupe1980/allknn/internal/mmap"
	"github.com/hupe1980/allknn/persistence"
)

// WriteBinary writes x in the binary matrix format: a file header followed
// by rows*cols float64 values in row-major order.
func WriteBinary(w io.Writer, x *Dense) error {
	rows, err := conv.IntToUint64(x.Rows())
	if err != nil {
		return fmt.Errorf("matrix: %w", err)
	}
	cols, err := conv.IntToUint32(x.Cols())
	if err != nil {
		return fmt.Errorf("matrix: %w", err)
	}

	bw := persistence.NewBinaryWriter(w)
	if err := bw.WriteHeader(&persistence.FileHeader{
		Kind: persistence.KindMatrix,
		Rows: rows,
		Cols: cols,
	}); err != nil {
		return fmt.Errorf("matrix: write header: %w", err)
	}

	raw := x.Raw().RawMatrix()
	if raw.Stride == raw.Cols {
		if err := bw.WriteFloat64Slice(raw.Data[:raw.Rows*raw.Cols]); err != nil {
			return fmt.Errorf("matrix: write data: %w", err)
		}
		return nil
	}
	for i := 0; i < x.Rows(); i++ {
		if err := bw.WriteFloat64Slice(x.Row(i)); err != nil {
			return fmt.Errorf("matrix: write row %d: %w", i, err)
		}
	}
	return nil
}

// ReadBinary reads a matrix written by WriteBinary into heap memory.
func ReadBinary(r io.Reader) (*Dense, error) {
	br := persistence.NewBinaryReader(r)
	h, err := br.ReadHeader()
	if err != nil {
		return nil, fmt.Errorf("matrix: read header: %w", err)
	}

	rows, cols, err := shapeFromHeader(h)
	if err != nil {
		return nil, err
	}

	data, err := br.ReadFloat64Slice(rows * cols)
	if err != nil {
		return nil, fmt.Errorf("matrix: read data: %w", err)
	}
	return FromRaw(rows, cols, data, nil), nil
}

// SaveBinary atomically writes x to path in the binary matrix format.
func SaveBinary(path string, x *Dense) error {
	return persistence.SaveToFile(path, func(w io.Writer) error {
		return WriteBinary(w, x)
	})
}

// OpenBinary memory-maps a binary matrix file. The returned matrix reads
// straight from the mapping; Close releases it. The file must not be
// modified while the matrix is in use.
func OpenBinary(path string) (*Dense, error) {
	m, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("matrix: %w", err)
	}

	x, err := denseFromMapping(m)
	if err != nil {
		_ = m.Close()
		return nil, fmt.Errorf("matrix: %s: %w", path, err)
	}
	return x, nil
}

func denseFromMapping(m *mmap.File) (*Dense, error) {
	data := m.Bytes()
	if len(data) < persistence.HeaderSize {
		return nil, io.ErrUnexpectedEOF
	}

	br := persistence.NewBinaryReader(bytes.NewReader(data[:persistence.HeaderSize]))
	h, err := br.ReadHeader()
	if err != nil {
		return nil, err
	}

	rows, cols, err := shapeFromHeader(h)
	if err != nil {
		return nil, err
	}

	need := persistence.HeaderSize + rows*cols*8
	if len(data) < need {
		return nil, io.ErrUnexpectedEOF
	}

	payload := data[persistence.HeaderSize:need]
	// Mappings are page aligned and the header size is a multiple of 8,
	// so the payload satisfies float64 alignment.
	if uintptr(unsafe.Pointer(&payload[0]))%8 != 0 {
		return nil, fmt.Errorf("mapping is not 8 byte aligned")
	}
	vals := unsafe.Slice((*float64)(unsafe.Pointer(&payload[0])), rows*cols)

	_ = m.Advise(mmap.AccessRandom)

	return FromRaw(rows, cols, vals, m), nil
}

func shapeFromHeader(h *persistence.FileHeader) (rows, cols int, err error) {
	if h.Kind != persistence.KindMatrix {
		return 0, 0, fmt.Errorf("matrix: kind %d: %w", h.Kind, persistence.ErrInvalidKind)
	}

	rows, err = conv.Uint64ToInt(h.Rows)
	if err != nil {
		return 0, 0, fmt.Errorf("matrix: %w", err)
	}
	cols, err = conv.Uint32ToInt(h.Cols)
	if err != nil {
		return 0, 0, fmt.Errorf("matrix: %w", err)
	}
	if rows == 0 || cols == 0 {
		return 0, 0, fmt.Errorf("matrix: empty shape %dx%d", rows, cols)
	}
	if cols > math.MaxInt/rows/8 {
		return 0, 0, fmt.Errorf("matrix: shape %dx%d overflows", rows, cols)
	}
	return rows, cols, nil
}
