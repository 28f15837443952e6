package kdtree

// Permutation records the point reordering a tree build produces. Tree
// position i holds the point whose original matrix row is OldFromNew()[i];
// the mapping is a bijection on [0, Len).
type Permutation struct {
	oldFromNew []int
}

// Identity returns the permutation mapping every position to itself. The
// naive engine and raw query sets use it so that result assembly follows
// one code path.
func Identity(n int) *Permutation {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	return &Permutation{oldFromNew: p}
}

// Len returns the number of positions.
func (p *Permutation) Len() int { return len(p.oldFromNew) }

// ToOld translates a tree position to its original matrix row.
func (p *Permutation) ToOld(pos int) int { return p.oldFromNew[pos] }

// OldFromNew exposes the backing slice as a copy-free view. Callers must
// not modify it.
func (p *Permutation) OldFromNew() []int { return p.oldFromNew }
