package matrix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDense(t *testing.T) {
	x := NewDense(3, 4)
	assert.Equal(t, 3, x.Rows())
	assert.Equal(t, 4, x.Cols())

	x.Set(1, 2, 7.5)
	assert.Equal(t, 7.5, x.At(1, 2))
	assert.Equal(t, 0.0, x.At(0, 0))
}

func TestFromRows(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		x, err := FromRows([][]float64{
			{1, 2},
			{3, 4},
			{5, 6},
		})
		require.NoError(t, err)
		assert.Equal(t, 3, x.Rows())
		assert.Equal(t, 2, x.Cols())
		assert.Equal(t, []float64{3, 4}, x.Row(1))
	})

	t.Run("empty", func(t *testing.T) {
		_, err := FromRows(nil)
		require.Error(t, err)
	})

	t.Run("empty row", func(t *testing.T) {
		_, err := FromRows([][]float64{{}})
		require.Error(t, err)
	})

	t.Run("ragged", func(t *testing.T) {
		_, err := FromRows([][]float64{
			{1, 2},
			{3},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "row 1")
	})
}

func TestRowIsView(t *testing.T) {
	x := NewDense(2, 2)
	row := x.Row(0)
	row[1] = 9

	assert.Equal(t, 9.0, x.At(0, 1))
}

func TestFromRaw(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5, 6}
	x := FromRaw(2, 3, data, nil)

	assert.Equal(t, 2, x.Rows())
	assert.Equal(t, 3, x.Cols())
	assert.Equal(t, []float64{4, 5, 6}, x.Row(1))

	require.NoError(t, x.Close())
	require.NoError(t, x.Close())
}

func TestInts(t *testing.T) {
	x := NewInts(2, 3)
	assert.Equal(t, 2, x.Rows())
	assert.Equal(t, 3, x.Cols())

	x.Set(1, 2, 42)
	assert.Equal(t, 42, x.At(1, 2))
	assert.Equal(t, []int{0, 0, 42}, x.Row(1))
}
