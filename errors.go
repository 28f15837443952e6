package allknn

import (
	"errors"
	"fmt"

	"github.com/hupe1980/allknn/kdtree"
)

var (
	// ErrInvalidK is returned when k is not positive or not smaller than
	// the number of reference points.
	ErrInvalidK = errors.New("invalid k")

	// ErrDimensionMismatch is returned when query dimensionality differs
	// from the reference set.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrInsufficientPoints is returned when an allow-list filter leaves
	// fewer eligible reference points than k.
	ErrInsufficientPoints = errors.New("not enough eligible reference points")

	// ErrLeafSize mirrors the tree construction error at the facade.
	ErrLeafSize = kdtree.ErrLeafSize

	// ErrEmptySet mirrors the tree construction error at the facade.
	ErrEmptySet = kdtree.ErrEmptySet

	// ErrSnapshotMismatch mirrors the snapshot load error at the facade.
	ErrSnapshotMismatch = kdtree.ErrSnapshotMismatch
)

// KError carries the rejected k and the exclusive upper bound it had to
// stay under.
//
// The underlying sentinel can be accessed via errors.Unwrap.
type KError struct {
	K     int
	Max   int
	cause error
}

func newKError(k, max int) *KError {
	return &KError{K: k, Max: max, cause: ErrInvalidK}
}

func (e *KError) Error() string {
	return fmt.Sprintf("invalid k: %d, must be in (0, %d)", e.K, e.Max)
}

func (e *KError) Unwrap() error { return e.cause }

// DimensionError indicates a query/reference dimensionality mismatch.
//
// The underlying sentinel can be accessed via errors.Unwrap.
type DimensionError struct {
	Expected int
	Actual   int
	cause    error
}

func newDimensionError(expected, actual int) *DimensionError {
	return &DimensionError{Expected: expected, Actual: actual, cause: ErrDimensionMismatch}
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *DimensionError) Unwrap() error { return e.cause }
