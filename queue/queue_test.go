package queue

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ascending struct{}

func (ascending) Better(a, b float64) bool { return a < b }
func (ascending) Worst() float64           { return math.Inf(1) }

type descending struct{}

func (descending) Better(a, b float64) bool { return a > b }
func (descending) Worst() float64           { return math.Inf(-1) }

func TestOfferSorted(t *testing.T) {
	c := New(3, ascending{})

	c.Offer(10, 5.0)
	c.Offer(11, 1.0)
	c.Offer(12, 3.0)

	require.Equal(t, 3, c.Len())
	assert.True(t, c.Full())

	idx, dist := c.At(0)
	assert.Equal(t, 11, idx)
	assert.Equal(t, 1.0, dist)

	idx, dist = c.At(1)
	assert.Equal(t, 12, idx)
	assert.Equal(t, 3.0, dist)

	idx, dist = c.At(2)
	assert.Equal(t, 10, idx)
	assert.Equal(t, 5.0, dist)
}

func TestOfferEvictsWorst(t *testing.T) {
	c := New(2, ascending{})

	c.Offer(1, 4.0)
	c.Offer(2, 2.0)
	c.Offer(3, 3.0)

	require.Equal(t, 2, c.Len())
	idx, dist := c.At(0)
	assert.Equal(t, 2, idx)
	assert.Equal(t, 2.0, dist)
	idx, dist = c.At(1)
	assert.Equal(t, 3, idx)
	assert.Equal(t, 3.0, dist)
}

func TestOfferRejectsWhenFull(t *testing.T) {
	c := New(2, ascending{})
	c.Offer(1, 1.0)
	c.Offer(2, 2.0)

	c.Offer(3, 9.0)

	idx, _ := c.At(1)
	assert.Equal(t, 2, idx)
}

func TestOfferStableOnTies(t *testing.T) {
	c := New(4, ascending{})

	c.Offer(1, 2.0)
	c.Offer(2, 2.0)
	c.Offer(3, 1.0)
	c.Offer(4, 2.0)

	want := []int{3, 1, 2, 4}
	for i, w := range want {
		idx, _ := c.At(i)
		assert.Equal(t, w, idx, "position %d", i)
	}
}

func TestOfferTieWithWorstDropped(t *testing.T) {
	c := New(2, ascending{})
	c.Offer(1, 1.0)
	c.Offer(2, 3.0)

	c.Offer(3, 3.0)

	idx, _ := c.At(1)
	assert.Equal(t, 2, idx)
}

func TestWorstDistance(t *testing.T) {
	c := New(2, ascending{})
	assert.True(t, math.IsInf(c.WorstDistance(), 1))

	c.Offer(1, 1.0)
	assert.True(t, math.IsInf(c.WorstDistance(), 1))
	assert.False(t, c.Full())

	c.Offer(2, 4.0)
	assert.Equal(t, 4.0, c.WorstDistance())

	c.Offer(3, 2.0)
	assert.Equal(t, 2.0, c.WorstDistance())
}

func TestDescendingOrdering(t *testing.T) {
	c := New(2, descending{})
	assert.True(t, math.IsInf(c.WorstDistance(), -1))

	c.Offer(1, 1.0)
	c.Offer(2, 5.0)
	c.Offer(3, 3.0)

	idx, dist := c.At(0)
	assert.Equal(t, 2, idx)
	assert.Equal(t, 5.0, dist)

	assert.Equal(t, 3.0, c.WorstDistance())
}

func TestZeroCapacity(t *testing.T) {
	c := New(0, ascending{})
	c.Offer(1, 1.0)
	assert.Equal(t, 0, c.Len())
}
