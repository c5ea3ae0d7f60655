package gol

import (
	"encoding/binary"

	"github.com/geoobj/gol/internal/blobstore"
	"github.com/geoobj/gol/internal/tilewalk"
)

// defaultRebuildDepth bounds how deep Rebuild subdivides before forcing a
// leaf, keeping a modest feature set from producing a near-empty tree down
// to tilewalk.MaxZoom.
const defaultRebuildDepth = 8

// leafThreshold is the feature count at or below which Rebuild stops
// subdividing and writes a leaf, even before defaultRebuildDepth; chosen to keep
// leaf feature lists small enough that a single-tile query decodes cheaply.
const leafThreshold = 8

// Node flag byte values mirror internal/tilewalk's documented quadtree node
// layout (see walker.go) exactly, since Rebuild is the writer for the nodes
// Walker reads.
const (
	nodeFlagLeaf = 0x01
)

// Rebuild replaces the store's quadtree index with one built from feats,
// writing every quadtree node and feature-list blob inside a single
// transaction (spec.md §9's maintenance-operation expansion: a store needs
// a way to materialize an index, not just walk an existing one). Any index
// previously pointed to by the store's header becomes unreachable garbage;
// Rebuild does not free it, since nothing else in the allocator namespace
// references it afterward by construction alone — callers wanting the
// space back reopen the store and free the old subtree pointers explicitly.
func (s *Store) Rebuild(feats []*Feature) error {
	txn := s.blobs.Begin()
	root, err := s.buildIndexNode(txn, feats, tilewalk.Tile{Zoom: 0, Column: 0, Row: 0})
	if err != nil {
		txn.Abort()
		return translateBlobstoreErr(err, s.path)
	}
	if err := txn.SetIndexPointer(root); err != nil {
		txn.Abort()
		return translateBlobstoreErr(err, s.path)
	}
	if err := txn.Commit(); err != nil {
		return translateBlobstoreErr(err, s.path)
	}
	return nil
}

func (s *Store) buildIndexNode(txn *blobstore.Txn, feats []*Feature, tile tilewalk.Tile) (blobstore.PageNum, error) {
	if tile.Zoom >= defaultRebuildDepth || len(feats) <= leafThreshold {
		return s.writeLeafNode(txn, feats)
	}

	children := tile.Children()
	var buckets [4][]*Feature
	for _, f := range feats {
		q := childQuadrant(f.bounds, children)
		buckets[q] = append(buckets[q], f)
	}

	var childPtrs [4]blobstore.PageNum
	var present [4]bool
	any := false
	for i, bucket := range buckets {
		if len(bucket) == 0 {
			continue
		}
		pn, err := s.buildIndexNode(txn, bucket, children[i])
		if err != nil {
			return 0, err
		}
		childPtrs[i] = pn
		present[i] = true
		any = true
	}
	if !any {
		return s.writeLeafNode(txn, feats)
	}
	return s.writeBranchNode(txn, childPtrs, present)
}

// childQuadrant returns which of tile's four children (in Tile.Children's
// NW/NE/SW/SE order) b's centroid falls into. A centroid on an edge shared
// by several children goes to the first of them in that order; a centroid
// outside all four children defaults to quadrant 0.
func childQuadrant(b tilewalk.BBox, children [4]tilewalk.Tile) int {
	cx, cy := (b.MinX+b.MaxX)/2, (b.MinY+b.MaxY)/2
	for i, c := range children {
		cb := c.MercatorBounds()
		if cx >= cb.MinX && cx <= cb.MaxX && cy >= cb.MinY && cy <= cb.MaxY {
			return i
		}
	}
	return 0
}

func (s *Store) writeLeafNode(txn *blobstore.Txn, feats []*Feature) (blobstore.PageNum, error) {
	listBytes := EncodeFeatureList(feats)
	listPN, err := txn.Alloc(uint32(len(listBytes)))
	if err != nil {
		return 0, err
	}
	if err := s.blobs.WritePayload(listPN, listBytes); err != nil {
		return 0, err
	}

	node := make([]byte, 5)
	node[0] = nodeFlagLeaf
	binary.LittleEndian.PutUint32(node[1:], uint32(listPN))
	nodePN, err := txn.Alloc(uint32(len(node)))
	if err != nil {
		return 0, err
	}
	if err := s.blobs.WritePayload(nodePN, node); err != nil {
		return 0, err
	}
	return nodePN, nil
}

func (s *Store) writeBranchNode(txn *blobstore.Txn, childPtrs [4]blobstore.PageNum, present [4]bool) (blobstore.PageNum, error) {
	var mask byte
	var count int
	for i, ok := range present {
		if ok {
			mask |= 1 << uint(i)
			count++
		}
	}

	node := make([]byte, 2+4*count)
	node[0] = 0
	node[1] = mask
	off := 2
	for i, ok := range present {
		if !ok {
			continue
		}
		binary.LittleEndian.PutUint32(node[off:], uint32(childPtrs[i]))
		off += 4
	}

	nodePN, err := txn.Alloc(uint32(len(node)))
	if err != nil {
		return 0, err
	}
	if err := s.blobs.WritePayload(nodePN, node); err != nil {
		return 0, err
	}
	return nodePN, nil
}
