package matrix

import (
	"fmt"
	"io"

	"gonum.org/v1/gonum/mat"
)

// Dense is a rectangular float64 matrix backed by gonum's mat.Dense.
// Point sets store one point per row (N rows, D columns); result grids
// store one rank per row (k rows, M columns).
type Dense struct {
	m      *mat.Dense
	closer io.Closer // non-nil for mmap-backed matrices
}

// NewDense returns a zeroed rows x cols matrix.
func NewDense(rows, cols int) *Dense {
	return &Dense{m: mat.NewDense(rows, cols, nil)}
}

// FromRows builds a matrix from row slices. All rows must have the same
// length and there must be at least one row.
func FromRows(rows [][]float64) (*Dense, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("matrix: no rows")
	}
	cols := len(rows[0])
	if cols == 0 {
		return nil, fmt.Errorf("matrix: empty row")
	}
	data := make([]float64, 0, len(rows)*cols)
	for i, r := range rows {
		if len(r) != cols {
			return nil, fmt.Errorf("matrix: row %d has %d values, want %d", i, len(r), cols)
		}
		data = append(data, r...)
	}
	return &Dense{m: mat.NewDense(len(rows), cols, data)}, nil
}

// FromRaw wraps an existing row-major backing slice without copying.
// len(data) must equal rows*cols. The optional closer is invoked by Close
// (used by mmap-backed loads).
func FromRaw(rows, cols int, data []float64, closer io.Closer) *Dense {
	return &Dense{m: mat.NewDense(rows, cols, data), closer: closer}
}

// Rows returns the number of rows.
func (x *Dense) Rows() int {
	r, _ := x.m.Dims()
	return r
}

// Cols returns the number of columns.
func (x *Dense) Cols() int {
	_, c := x.m.Dims()
	return c
}

// Row returns a zero-copy view of row i. Callers must not grow the slice.
func (x *Dense) Row(i int) []float64 { return x.m.RawRowView(i) }

// At returns the value at (i, j).
func (x *Dense) At(i, j int) float64 { return x.m.At(i, j) }

// Set stores v at (i, j).
func (x *Dense) Set(i, j int, v float64) { x.m.Set(i, j, v) }

// Raw exposes the underlying gonum matrix.
func (x *Dense) Raw() *mat.Dense { return x.m }

// Close releases resources held by mmap-backed matrices. It is a no-op
// for heap-backed matrices and is safe to call multiple times.
func (x *Dense) Close() error {
	if x.closer == nil {
		return nil
	}
	c := x.closer
	x.closer = nil
	return c.Close()
}

// Ints is a rectangular int matrix with the same shape conventions as
// Dense. It carries neighbor indices (k rows, M columns).
type Ints struct {
	rows, cols int
	data       []int
}

// NewInts returns a zeroed rows x cols int matrix.
func NewInts(rows, cols int) *Ints {
	return &Ints{rows: rows, cols: cols, data: make([]int, rows*cols)}
}

// Rows returns the number of rows.
func (x *Ints) Rows() int { return x.rows }

// Cols returns the number of columns.
func (x *Ints) Cols() int { return x.cols }

// At returns the value at (i, j).
func (x *Ints) At(i, j int) int { return x.data[i*x.cols+j] }

// Set stores v at (i, j).
func (x *Ints) Set(i, j, v int) { x.data[i*x.cols+j] = v }

// Row returns a zero-copy view of row i.
func (x *Ints) Row(i int) []int { return x.data[i*x.cols : (i+1)*x.cols] }
