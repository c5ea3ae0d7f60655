package tilewalk

import "fmt"

// NodeSource resolves a quadtree node pointer to its encoded bytes. This
// keeps tilewalk decoupled from the blob-store's own PageNum type — the
// store wires a small adapter closure at call time (see gol.Store's
// internal usage), matching spec.md §2's component boundary between the
// tile walker (C) and the BlobStore (A+B).
type NodeSource interface {
	ReadNode(pointer uint32) ([]byte, error)
}

// Encoded quadtree node layout (spec.md §4.C: "The index is a quadtree
// encoded as nested blobs; each node carries a bitmap of occupied children
// and, for leaves, a pointer to a feature list."):
//
//	offset 0: flags (bit 0 = isLeaf)
//	if leaf:   offset 1, 4 bytes: feature-list pointer (u32 LE)
//	if branch: offset 1, 1 byte: childMask (bit i set => child i present,
//	           in Tile.Children() order: NW, NE, SW, SE)
//	           then, for each set bit in ascending order, 4 bytes: child
//	           node pointer (u32 LE)
const (
	flagLeaf  = 0x01
	nodeFlags = 0
)

// TilePayload is what the walker yields for each matched leaf tile.
type TilePayload struct {
	Tile               Tile
	FeatureListPointer uint32
}

type frame struct {
	tile       Tile
	data       []byte
	childIdx   int // next child index to examine, 0..3
	childMask  uint8
	ptrOffsets []int // byte offset of each present child's pointer, indexed by quadrant
}

// Walker is a depth-first, stateful iterator over quadtree nodes whose
// Mercator bounding box intersects a query box. Pruning per spec.md §4.C;
// emission order is depth-first over quadrants in Tile.Children() order,
// which is deterministic for a fixed query as required by §4.C/§8.
type Walker struct {
	src   NodeSource
	query BBox
	stack []frame
	err   error
}

// NewWalker starts a walk rooted at rootPointer/rootTile, restricted to
// tiles intersecting query.
func NewWalker(src NodeSource, rootPointer uint32, rootTile Tile, query BBox) *Walker {
	w := &Walker{src: src, query: query}
	if !rootTile.MercatorBounds().Intersects(query) {
		return w
	}
	data, err := src.ReadNode(rootPointer)
	if err != nil {
		w.err = err
		return w
	}
	w.pushFrame(rootTile, data)
	return w
}

// Err returns the first error encountered while walking, if any.
func (w *Walker) Err() error { return w.err }

func (w *Walker) pushFrame(tile Tile, data []byte) {
	if len(data) < 1 {
		w.err = fmt.Errorf("tilewalk: node for %s is truncated", tile)
		return
	}
	f := frame{tile: tile, data: data}
	if data[0]&flagLeaf == 0 {
		if len(data) < 2 {
			w.err = fmt.Errorf("tilewalk: branch node for %s missing childMask", tile)
			return
		}
		f.childMask = data[1]
		off := 2
		f.ptrOffsets = make([]int, 4)
		for i := 0; i < 4; i++ {
			f.ptrOffsets[i] = -1
			if f.childMask&(1<<uint(i)) != 0 {
				f.ptrOffsets[i] = off
				off += 4
			}
		}
	}
	w.stack = append(w.stack, f)
}

// Next returns the next matching leaf tile, or ok=false when the walk is
// exhausted (or an error occurred; check Err()).
func (w *Walker) Next() (TilePayload, bool) {
	for len(w.stack) > 0 && w.err == nil {
		top := &w.stack[len(w.stack)-1]

		if top.data[nodeFlags]&flagLeaf != 0 {
			w.stack = w.stack[:len(w.stack)-1]
			ptr := readUint32LE(top.data[1:5])
			return TilePayload{Tile: top.tile, FeatureListPointer: ptr}, true
		}

		if top.childIdx >= 4 {
			w.stack = w.stack[:len(w.stack)-1]
			continue
		}
		i := top.childIdx
		top.childIdx++
		if top.ptrOffsets[i] < 0 {
			continue
		}
		children := top.tile.Children()
		childTile := children[i]
		if !childTile.MercatorBounds().Intersects(w.query) {
			continue
		}
		ptr := readUint32LE(top.data[top.ptrOffsets[i] : top.ptrOffsets[i]+4])
		data, err := w.src.ReadNode(ptr)
		if err != nil {
			w.err = err
			return TilePayload{}, false
		}
		w.pushFrame(childTile, data)
	}
	return TilePayload{}, false
}

func readUint32LE(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
