package queue

// Ordering ranks candidate distances. Nearest-neighbor search orders
// ascending; furthest-neighbor search reverses it.
type Ordering interface {
	// Better reports whether distance a beats distance b.
	Better(a, b float64) bool

	// Worst returns the sentinel distance that loses to every real
	// candidate (+Inf for ascending order).
	Worst() float64
}

// Candidate is one (point index, true distance) pair.
type Candidate struct {
	Index    int
	Distance float64
}

// Candidates holds the k best candidates seen so far for a single query
// point, sorted best-first. Insertion shifts the backing array; k is small
// enough that this beats a heap. A list is owned by one goroutine.
type Candidates struct {
	k        int
	ordering Ordering
	items    []Candidate
}

// New returns an empty candidate list of capacity k.
func New(k int, ordering Ordering) *Candidates {
	return &Candidates{k: k, ordering: ordering, items: make([]Candidate, 0, k)}
}

// Offer considers (index, dist) for the list. An entry that ties an
// existing distance is placed after it, so earlier offers keep precedence.
// Once full, an offer that does not beat the current worst is dropped.
func (c *Candidates) Offer(index int, dist float64) {
	if c.k == 0 {
		return
	}
	if len(c.items) == c.k {
		if !c.ordering.Better(dist, c.items[c.k-1].Distance) {
			return
		}
		c.items = c.items[:c.k-1]
	}

	i := len(c.items)
	for i > 0 && c.ordering.Better(dist, c.items[i-1].Distance) {
		i--
	}
	c.items = append(c.items, Candidate{})
	copy(c.items[i+1:], c.items[i:])
	c.items[i] = Candidate{Index: index, Distance: dist}
}

// WorstDistance returns the pruning bound: the ordering's worst sentinel
// while the list is underfull, afterwards the k-th best distance.
func (c *Candidates) WorstDistance() float64 {
	if len(c.items) < c.k {
		return c.ordering.Worst()
	}
	return c.items[c.k-1].Distance
}

// Len returns the number of entries.
func (c *Candidates) Len() int { return len(c.items) }

// Full reports whether the list holds k entries.
func (c *Candidates) Full() bool { return len(c.items) == c.k }

// At returns the i-th best entry.
func (c *Candidates) At(i int) (index int, dist float64) {
	item := c.items[i]
	return item.Index, item.Distance
}
