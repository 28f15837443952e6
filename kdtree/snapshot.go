package kdtree

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"

	"github.com/hupe1980/allknn/bound"
	"github.com/hupe1980/allknn/internal/conv"
	"github.com/hupe1980/allknn/matrix"
	"github.com/hupe1980/allknn/persistence"
)

// ErrSnapshotMismatch is returned when a snapshot was built over a point
// set of a different shape than the one supplied at load time.
var ErrSnapshotMismatch = errors.New("kdtree: snapshot does not match point set")

// Snapshot payloads are LZ4 block compressed behind a small header:
// [UncompressedSize uint32][CompressedSize uint32][data...]. A
// CompressedSize of 0 marks a stored (incompressible) block.
const blockHeaderSize = 8

// Compile time check that snapshots satisfy the standard writer contract.
var _ io.WriterTo = (*Tree)(nil)

// WriteTo writes a snapshot of the tree structure: permutation, node
// arena and bounds. The point matrix itself is not included; loading
// requires the identical matrix.
func (t *Tree) WriteTo(w io.Writer) (int64, error) {
	rows, err := conv.IntToUint64(t.Len())
	if err != nil {
		return 0, fmt.Errorf("kdtree: %w", err)
	}
	cols, err := conv.IntToUint32(t.Dims())
	if err != nil {
		return 0, fmt.Errorf("kdtree: %w", err)
	}

	payload, err := t.encodePayload()
	if err != nil {
		return 0, fmt.Errorf("kdtree: encode snapshot: %w", err)
	}
	block, err := compressPayload(payload)
	if err != nil {
		return 0, fmt.Errorf("kdtree: compress snapshot: %w", err)
	}

	bw := persistence.NewBinaryWriter(w)
	if err := bw.WriteHeader(&persistence.FileHeader{
		Kind:  persistence.KindTree,
		Rows:  rows,
		Cols:  cols,
		Extra: uint64(t.leafSize),
	}); err != nil {
		return 0, fmt.Errorf("kdtree: write header: %w", err)
	}

	n, err := w.Write(block)
	if err != nil {
		return int64(persistence.HeaderSize + n), fmt.Errorf("kdtree: write snapshot: %w", err)
	}
	return int64(persistence.HeaderSize + n), nil
}

// ReadFrom reads a snapshot and binds it to data, which must be the same
// matrix (shape and order) the snapshot was built over.
func ReadFrom(r io.Reader, data *matrix.Dense) (*Tree, error) {
	if data == nil || data.Rows() == 0 {
		return nil, ErrEmptySet
	}

	br := persistence.NewBinaryReader(r)
	h, err := br.ReadHeader()
	if err != nil {
		return nil, fmt.Errorf("kdtree: read header: %w", err)
	}
	if h.Kind != persistence.KindTree {
		return nil, fmt.Errorf("kdtree: kind %d: %w", h.Kind, persistence.ErrInvalidKind)
	}

	rows, err := conv.Uint64ToInt(h.Rows)
	if err != nil {
		return nil, fmt.Errorf("kdtree: %w", err)
	}
	cols, err := conv.Uint32ToInt(h.Cols)
	if err != nil {
		return nil, fmt.Errorf("kdtree: %w", err)
	}
	leafSize, err := conv.Uint64ToInt(h.Extra)
	if err != nil {
		return nil, fmt.Errorf("kdtree: %w", err)
	}

	if rows != data.Rows() || cols != data.Cols() {
		return nil, fmt.Errorf("%w: snapshot %dx%d, points %dx%d",
			ErrSnapshotMismatch, rows, cols, data.Rows(), data.Cols())
	}
	if leafSize < 1 {
		return nil, fmt.Errorf("kdtree: snapshot corrupt: leaf size %d", leafSize)
	}

	payload, err := readPayload(r)
	if err != nil {
		return nil, fmt.Errorf("kdtree: read snapshot: %w", err)
	}
	return decodePayload(payload, data, leafSize)
}

// SaveToFile atomically writes the tree snapshot to path.
func (t *Tree) SaveToFile(path string) error {
	return persistence.SaveToFile(path, func(w io.Writer) error {
		_, err := t.WriteTo(w)
		return err
	})
}

// LoadFromFile reads a snapshot from path and binds it to data.
func LoadFromFile(path string, data *matrix.Dense) (*Tree, error) {
	var t *Tree
	err := persistence.LoadFromFile(path, func(r io.Reader) error {
		var rerr error
		t, rerr = ReadFrom(r, data)
		return rerr
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// encodePayload flattens the tree: node count, permutation, the arena as
// (left, right, begin, count) quads, then every bound as lo and hi rows.
func (t *Tree) encodePayload() ([]byte, error) {
	var buf bytes.Buffer
	bw := persistence.NewBinaryWriter(&buf)

	if err := bw.WriteUint64(uint64(len(t.nodes))); err != nil {
		return nil, err
	}

	perm := make([]uint64, t.Len())
	for i, old := range t.perm.oldFromNew {
		perm[i] = uint64(old)
	}
	if err := bw.WriteUint64Slice(perm); err != nil {
		return nil, err
	}

	links := make([]int32, 0, 4*len(t.nodes))
	for i := range t.nodes {
		n := &t.nodes[i]
		links = append(links, n.Left, n.Right, n.Begin, n.Count)
	}
	if err := bw.WriteInt32Slice(links); err != nil {
		return nil, err
	}

	rects := make([]float64, 0, 2*t.Dims()*len(t.nodes))
	for i := range t.nodes {
		rects = append(rects, t.nodes[i].Bound.Lo()...)
		rects = append(rects, t.nodes[i].Bound.Hi()...)
	}
	if err := bw.WriteFloat64Slice(rects); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func decodePayload(payload []byte, data *matrix.Dense, leafSize int) (*Tree, error) {
	br := persistence.NewBinaryReader(bytes.NewReader(payload))

	numNodes64, err := br.ReadUint64()
	if err != nil {
		return nil, fmt.Errorf("kdtree: read snapshot: %w", err)
	}
	numNodes, err := conv.Uint64ToInt(numNodes64)
	if err != nil {
		return nil, fmt.Errorf("kdtree: %w", err)
	}
	rows, cols := data.Rows(), data.Cols()
	// A binary tree with at least one point per leaf has at most 2N-1 nodes.
	if numNodes < 1 || numNodes > 2*rows-1 {
		return nil, fmt.Errorf("kdtree: snapshot corrupt: %d nodes for %d points", numNodes, rows)
	}

	rawPerm, err := br.ReadUint64Slice(rows)
	if err != nil {
		return nil, fmt.Errorf("kdtree: read snapshot: %w", err)
	}
	perm := make([]int, rows)
	seen := make([]bool, rows)
	for i, v := range rawPerm {
		old, err := conv.Uint64ToInt(v)
		if err != nil {
			return nil, fmt.Errorf("kdtree: %w", err)
		}
		if old >= rows || seen[old] {
			return nil, fmt.Errorf("kdtree: snapshot corrupt: permutation entry %d", old)
		}
		seen[old] = true
		perm[i] = old
	}

	links, err := br.ReadInt32Slice(4 * numNodes)
	if err != nil {
		return nil, fmt.Errorf("kdtree: read snapshot: %w", err)
	}
	rects, err := br.ReadFloat64Slice(2 * cols * numNodes)
	if err != nil {
		return nil, fmt.Errorf("kdtree: read snapshot: %w", err)
	}

	nodes := make([]Node, numNodes)
	for i := range nodes {
		n := &nodes[i]
		n.Left = links[4*i]
		n.Right = links[4*i+1]
		n.Begin = links[4*i+2]
		n.Count = links[4*i+3]

		if (n.Left == NoChild) != (n.Right == NoChild) {
			return nil, fmt.Errorf("kdtree: snapshot corrupt: node %d has a single child", i)
		}
		// The arena is laid out preorder, so children always follow their
		// parent. Forward-only links rule out cycles.
		if n.Left != NoChild &&
			(int(n.Left) <= i || int(n.Left) >= numNodes || int(n.Right) <= i || int(n.Right) >= numNodes) {
			return nil, fmt.Errorf("kdtree: snapshot corrupt: node %d children %d, %d", i, n.Left, n.Right)
		}
		if n.Begin < 0 || n.Count < 1 || int(n.Begin)+int(n.Count) > rows {
			return nil, fmt.Errorf("kdtree: snapshot corrupt: node %d owns [%d, %d)", i, n.Begin, n.Begin+n.Count)
		}

		b := bound.New(cols)
		b.Grow(rects[2*cols*i : 2*cols*i+cols])
		b.Grow(rects[2*cols*i+cols : 2*cols*(i+1)])
		n.Bound = b
	}

	if nodes[0].Begin != 0 || int(nodes[0].Count) != rows {
		return nil, fmt.Errorf("kdtree: snapshot corrupt: root owns [%d, %d) of %d points",
			nodes[0].Begin, nodes[0].Begin+nodes[0].Count, rows)
	}
	for i := range nodes {
		n := &nodes[i]
		if n.IsLeaf() {
			continue
		}
		// Construction only splits ranges larger than a leaf.
		if int(n.Count) <= leafSize {
			return nil, fmt.Errorf("kdtree: snapshot corrupt: node %d with %d points split under leaf size %d",
				i, n.Count, leafSize)
		}
		l, r := &nodes[n.Left], &nodes[n.Right]
		if l.Begin != n.Begin || r.Begin != n.Begin+l.Count || l.Count+r.Count != n.Count {
			return nil, fmt.Errorf("kdtree: snapshot corrupt: node %d children do not partition [%d, %d)",
				i, n.Begin, n.Begin+n.Count)
		}
	}

	return &Tree{
		data:     data,
		nodes:    nodes,
		perm:     &Permutation{oldFromNew: perm},
		leafSize: leafSize,
	}, nil
}

func compressPayload(data []byte) ([]byte, error) {
	compressed := make([]byte, lz4.CompressBlockBound(len(data)))
	n, err := lz4.CompressBlock(data, compressed, nil)
	if err != nil {
		return nil, err
	}

	// Store incompressible payloads (ratio above 0.9) as-is.
	if n == 0 || float64(n) > float64(len(data))*0.9 {
		block := make([]byte, blockHeaderSize+len(data))
		binary.LittleEndian.PutUint32(block[0:], uint32(len(data)))
		binary.LittleEndian.PutUint32(block[4:], 0)
		copy(block[blockHeaderSize:], data)
		return block, nil
	}

	block := make([]byte, blockHeaderSize+n)
	binary.LittleEndian.PutUint32(block[0:], uint32(len(data)))
	binary.LittleEndian.PutUint32(block[4:], uint32(n))
	copy(block[blockHeaderSize:], compressed[:n])
	return block, nil
}

func readPayload(r io.Reader) ([]byte, error) {
	var hdr [blockHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	uncompressedSize := binary.LittleEndian.Uint32(hdr[0:])
	compressedSize := binary.LittleEndian.Uint32(hdr[4:])

	if compressedSize == 0 {
		data := make([]byte, uncompressedSize)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, err
		}
		return data, nil
	}

	compressed := make([]byte, compressedSize)
	if _, err := io.ReadFull(r, compressed); err != nil {
		return nil, err
	}
	data := make([]byte, uncompressedSize)
	n, err := lz4.UncompressBlock(compressed, data)
	if err != nil {
		return nil, err
	}
	if uint32(n) != uncompressedSize {
		return nil, errors.New("decompressed size mismatch")
	}
	return data, nil
}
