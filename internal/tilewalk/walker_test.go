package tilewalk

import "testing"

// fakeSource is an in-memory NodeSource used to test the walker without a
// real blob store.
type fakeSource struct {
	nodes map[uint32][]byte
}

func (f *fakeSource) ReadNode(pointer uint32) ([]byte, error) {
	return f.nodes[pointer], nil
}

func leafNode(featureList uint32) []byte {
	b := make([]byte, 5)
	b[0] = flagLeaf
	b[1] = byte(featureList)
	b[2] = byte(featureList >> 8)
	b[3] = byte(featureList >> 16)
	b[4] = byte(featureList >> 24)
	return b
}

func branchNode(childPtrs [4]uint32, present [4]bool) []byte {
	var mask uint8
	var ptrs []byte
	for i := 0; i < 4; i++ {
		if present[i] {
			mask |= 1 << uint(i)
			var p [4]byte
			p[0] = byte(childPtrs[i])
			p[1] = byte(childPtrs[i] >> 8)
			p[2] = byte(childPtrs[i] >> 16)
			p[3] = byte(childPtrs[i] >> 24)
			ptrs = append(ptrs, p[:]...)
		}
	}
	return append([]byte{0, mask}, ptrs...)
}

func TestWalkerSingleLeafRoot(t *testing.T) {
	src := &fakeSource{nodes: map[uint32][]byte{
		1: leafNode(42),
	}}
	root := Tile{Zoom: 0, Column: 0, Row: 0}
	w := NewWalker(src, 1, root, root.MercatorBounds())

	payload, ok := w.Next()
	if !ok {
		t.Fatal("expected one payload")
	}
	if payload.Tile != root || payload.FeatureListPointer != 42 {
		t.Errorf("got %+v", payload)
	}
	if _, ok := w.Next(); ok {
		t.Error("expected no more payloads")
	}
	if err := w.Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWalkerPrunesNonIntersecting(t *testing.T) {
	root := Tile{Zoom: 0, Column: 0, Row: 0}
	children := root.Children()

	src := &fakeSource{nodes: map[uint32][]byte{
		1: branchNode([4]uint32{2, 3, 4, 5}, [4]bool{true, true, true, true}),
		2: leafNode(100),
		3: leafNode(200),
		4: leafNode(300),
		5: leafNode(400),
	}}

	// Query box lies strictly inside the first child's quadrant: the
	// quadrant's own bounds would touch its three siblings' edges, and
	// BBox.Intersects counts touching edges as intersecting.
	nw := children[0].MercatorBounds()
	query := BBox{MinX: nw.MinX + 1, MinY: nw.MinY + 1, MaxX: nw.MaxX - 1, MaxY: nw.MaxY - 1}
	w := NewWalker(src, 1, root, query)

	var got []TilePayload
	for {
		p, ok := w.Next()
		if !ok {
			break
		}
		got = append(got, p)
	}
	if err := w.Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Tile != children[0] {
		t.Fatalf("expected exactly the first child tile, got %+v", got)
	}
}

func TestWalkerDeterministicOrder(t *testing.T) {
	root := Tile{Zoom: 0, Column: 0, Row: 0}
	src := &fakeSource{nodes: map[uint32][]byte{
		1: branchNode([4]uint32{2, 3, 4, 5}, [4]bool{true, true, true, true}),
		2: leafNode(1),
		3: leafNode(2),
		4: leafNode(3),
		5: leafNode(4),
	}}

	var runs [][]uint32
	for i := 0; i < 3; i++ {
		w := NewWalker(src, 1, root, root.MercatorBounds())
		var order []uint32
		for {
			p, ok := w.Next()
			if !ok {
				break
			}
			order = append(order, p.FeatureListPointer)
		}
		runs = append(runs, order)
	}
	for i := 1; i < len(runs); i++ {
		if len(runs[i]) != len(runs[0]) {
			t.Fatalf("run %d length differs", i)
		}
		for j := range runs[0] {
			if runs[i][j] != runs[0][j] {
				t.Fatalf("run %d order differs at %d: %v vs %v", i, j, runs[i], runs[0])
			}
		}
	}
}
