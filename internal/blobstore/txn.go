package blobstore

import (
	"fmt"

	"github.com/geoobj/gol/internal/pagefile"
)

// Txn is a write transaction on a Store (spec.md §3.6/§4.B). At most one
// write Txn exists per Store at a time (guarded by Store.writerMu).
// Mutations journal pre-images of pages before their first write in the
// transaction, grounded on the teacher's dirtyPageTracker in txn.go, so
// Abort/a torn commit can restore the store's prior state.
type Txn struct {
	store   *Store
	journal map[PageNum][]byte // pre-image of every page dirtied this txn
	order   []PageNum          // journal insertion order, for deterministic rollback logging
	done    bool
}

// Begin starts a write transaction. Blocks (via the mutex) until any prior
// writer transaction has committed or aborted, matching spec.md §5's
// "single writer" contract.
func (s *Store) Begin() *Txn {
	s.writerMu.Lock()
	return &Txn{
		store:   s,
		journal: make(map[PageNum][]byte),
	}
}

// journalPage records a pre-image of the page at pn the first time it is
// touched in this transaction. Page 0 (the header) is always journaled at
// its full headerPageSize, regardless of the store's configured blob
// PageSize, since headerPageSize is what mapHeader/initNew actually map and
// the header struct must round-trip in full on Abort.
func (t *Txn) journalPage(pn PageNum) error {
	if _, ok := t.journal[pn]; ok {
		return nil
	}
	size := int(t.store.PageSize())
	if pn == 0 {
		size = headerPageSize
	}
	data, err := t.store.blobData(pn, size)
	if err != nil {
		return err
	}
	preimage := make([]byte, len(data))
	copy(preimage, data)
	t.journal[pn] = preimage
	t.order = append(t.order, pn)
	return nil
}

// journalHeader journals page 0's pre-image before any mutation of trunk
// free-table slots, TotalPageCount, or IndexPointer — every field of the
// header besides TrunkFreeTable contents is covered by the commit checksum
// (header.go's computeChecksum), and the allocator invariants over
// TrunkFreeTable must survive Abort just the same.
func (t *Txn) journalHeader() error {
	return t.journalPage(0)
}

// pagesFor returns ceil((payloadSize+blobHeaderSize)/pageSize), per spec.md
// §4.B's allocation algorithm.
func (t *Txn) pagesFor(payloadSize uint32) uint32 {
	pageSize := t.store.PageSize()
	need := payloadSize + blobHeaderSize
	return (need + pageSize - 1) / pageSize
}

// Alloc allocates a blob able to hold payloadSize bytes and returns its
// first page number. Implements spec.md §4.B's allocation algorithm:
// smallest-fitting free blob via the two-level free-table, else extend.
func (t *Txn) Alloc(payloadSize uint32) (PageNum, error) {
	pages := t.pagesFor(payloadSize)
	if pages == 0 {
		pages = 1
	}

	pn, foundPages, err := t.findFree(pages)
	if err != nil {
		return 0, err
	}
	if pn == 0 {
		pn, foundPages, err = t.extend(pages)
		if err != nil {
			return 0, err
		}
	} else {
		if err := t.unlinkFree(pn); err != nil {
			return 0, err
		}
	}

	if foundPages > pages {
		if err := t.splitAndReturnRemainder(pn, pages, foundPages); err != nil {
			return 0, err
		}
	}

	if err := t.journalPage(pn); err != nil {
		return 0, err
	}
	data, err := t.store.blobData(pn, int(t.store.PageSize()))
	if err != nil {
		return 0, err
	}
	bh := castBlobHeader(data)
	bh.setFree(false)
	bh.setPayloadSize(payloadSize)

	if err := t.setPrecedingFreeLen(pn+PageNum(pages), 0); err != nil {
		return 0, err
	}

	return pn, nil
}

// findFree searches the two-level free-table for the smallest free blob
// whose page count is >= pages, per spec.md §4.B/§3.4: a trailing-zero
// group scan over the trunk range bitfield, then (if the trunk slot itself
// isn't large enough) a descent into the leaf free-table rooted at the
// closest trunk entry. Returns (0, 0, nil) if nothing fits.
func (t *Txn) findFree(pages uint32) (PageNum, uint32, error) {
	wantClass := sizeClass(pages)
	trunk := t.store.h.trunkTable()

	idx, ok := trunk.FirstNonEmptyFrom(wantClass)
	if !ok {
		return 0, 0, nil
	}
	pn := trunk.Get(idx)
	if pn == 0 {
		return 0, 0, nil
	}

	data, err := t.store.blobData(pn, int(t.store.PageSize()))
	if err != nil {
		return 0, 0, err
	}
	bh := castBlobHeader(data)
	blobPages := t.pagesFor(bh.payloadSize())
	if blobPages >= pages {
		return pn, blobPages, nil
	}

	// The trunk slot's representative blob is smaller than needed (it is a
	// finer-grained entry chained under a coarser class); descend its leaf
	// free-table for a precise fit.
	fb := castFreeBlobHeader(data)
	leaf := fb.leafTable()
	lidx, ok := leaf.FirstNonEmptyFrom(0)
	if !ok {
		return 0, 0, nil
	}
	leafPn := leaf.Get(lidx)
	if leafPn == 0 {
		return 0, 0, nil
	}
	leafData, err := t.store.blobData(leafPn, int(t.store.PageSize()))
	if err != nil {
		return 0, 0, err
	}
	leafPages := t.pagesFor(castBlobHeader(leafData).payloadSize())
	return leafPn, leafPages, nil
}

// unlinkFree removes the free blob at pn from its doubly linked free-list
// and clears its trunk-table slot if it was the representative entry.
func (t *Txn) unlinkFree(pn PageNum) error {
	if err := t.journalPage(pn); err != nil {
		return err
	}
	data, err := t.store.blobData(pn, int(t.store.PageSize()))
	if err != nil {
		return err
	}
	fb := castFreeBlobHeader(data)
	prev, next := fb.PrevFreeBlob, fb.NextFreeBlob

	if prev != 0 && prev != InvalidPageNum {
		if err := t.journalPage(prev); err != nil {
			return err
		}
		prevData, err := t.store.blobData(prev, int(t.store.PageSize()))
		if err != nil {
			return err
		}
		castFreeBlobHeader(prevData).NextFreeBlob = next
	}
	if next != 0 && next != InvalidPageNum {
		if err := t.journalPage(next); err != nil {
			return err
		}
		nextData, err := t.store.blobData(next, int(t.store.PageSize()))
		if err != nil {
			return err
		}
		castFreeBlobHeader(nextData).PrevFreeBlob = prev
	}

	pages := t.pagesFor(castBlobHeader(data).payloadSize())
	class := sizeClass(pages)
	if err := t.journalHeader(); err != nil {
		return err
	}
	trunk := t.store.h.trunkTable()
	if trunk.Get(class) == pn {
		if prev != 0 && prev != InvalidPageNum {
			trunk.Set(class, prev)
		} else if next != 0 && next != InvalidPageNum {
			trunk.Set(class, next)
		} else {
			trunk.Set(class, 0)
		}
	}
	return nil
}

// insertFree inserts the free blob at pn (covering `pages` pages) into the
// free-list for its size class, LIFO at the head (spec.md §4.B tie-break:
// "most recently freed is chosen to maximize locality").
func (t *Txn) insertFree(pn PageNum, pages uint32) error {
	if err := t.journalPage(pn); err != nil {
		return err
	}
	data, err := t.store.blobData(pn, int(t.store.PageSize()))
	if err != nil {
		return err
	}
	bh := castBlobHeader(data)
	bh.setFree(true)
	bh.setPayloadSize(pages*t.store.PageSize() - blobHeaderSize)

	fb := castFreeBlobHeader(data)
	fb.PrevFreeBlob = 0
	fb.LeafFreeTableRanges = 0
	for i := range fb.LeafFreeTable {
		fb.LeafFreeTable[i] = 0
	}

	class := sizeClass(pages)
	if err := t.journalHeader(); err != nil {
		return err
	}
	trunk := t.store.h.trunkTable()
	head := trunk.Get(class)
	fb.NextFreeBlob = head
	if head != 0 && head != InvalidPageNum {
		if err := t.journalPage(head); err != nil {
			return err
		}
		headData, err := t.store.blobData(head, int(t.store.PageSize()))
		if err != nil {
			return err
		}
		castFreeBlobHeader(headData).PrevFreeBlob = pn
	}
	trunk.Set(class, pn)
	return nil
}

// splitAndReturnRemainder allocates the first `pages` pages of the blob at
// pn (which spans foundPages) and reinserts the remainder as a new free
// blob, per spec.md §4.B: "Split the chosen free blob... update the
// precedingFreeBlobPages of the next blob."
func (t *Txn) splitAndReturnRemainder(pn PageNum, pages, foundPages uint32) error {
	remainder := foundPages - pages
	remainderPn := pn + PageNum(pages)

	// The source blob never crossed a segment boundary (§3.4 invariant,
	// enforced by extend()), so neither half of the split can either.
	if err := t.insertFree(remainderPn, remainder); err != nil {
		return err
	}
	following := remainderPn + PageNum(remainder)
	precedingLen := remainder
	if t.segmentIndex(remainderPn) != t.segmentIndex(following) {
		precedingLen = 0
	}
	return t.setPrecedingFreeLen(following, precedingLen)
}

// setPrecedingFreeLen updates the precedingFreeBlobPages field of the blob
// at pn, used to maintain spec.md §3.4's invariant after any
// split/coalesce. pn may be one past the last allocated page (end of
// store), in which case this is a no-op.
func (t *Txn) setPrecedingFreeLen(pn PageNum, pages uint32) error {
	if uint32(pn) >= t.store.h.TotalPageCount {
		return nil
	}
	if err := t.journalPage(pn); err != nil {
		return err
	}
	data, err := t.store.blobData(pn, int(t.store.PageSize()))
	if err != nil {
		return err
	}
	castBlobHeader(data).PrecedingFreeBlobPages = pages
	return nil
}

// extend grows the store by `pages` pages, appended at TotalPageCount. If
// the extension would cross a 1 GiB segment boundary, the new blob is
// confined to the current segment and a fresh free blob is created to pad
// out to the boundary (spec.md §3.4: "Free blobs never cross a segment
// boundary").
func (t *Txn) extend(pages uint32) (PageNum, uint32, error) {
	pageSize := t.store.PageSize()
	pagesPerSegment := uint32(pagefile.SegmentSize) / pageSize

	start := t.store.h.TotalPageCount
	segOfStart := start / pagesPerSegment
	segRemaining := (segOfStart+1)*pagesPerSegment - start

	if pages > segRemaining {
		// Pad the rest of this segment with a free blob, then start the
		// new blob at the next segment's first page.
		if segRemaining > 0 {
			if err := t.growFile(start + segRemaining); err != nil {
				return 0, 0, err
			}
			if err := t.appendFreeBlob(start, segRemaining); err != nil {
				return 0, 0, err
			}
		}
		start = (segOfStart + 1) * pagesPerSegment
	}

	newTotal := start + pages
	maxPages := uint64(pagefile.MaxSegments) * uint64(pagesPerSegment)
	if uint64(newTotal) > maxPages {
		return 0, 0, &Error{Kind: StoreFull, Path: t.store.path, Err: fmt.Errorf("extending by %d pages would exceed the 4TiB addressable limit", pages)}
	}

	if err := t.growFile(newTotal); err != nil {
		return 0, 0, err
	}
	return PageNum(start), pages, nil
}

// segmentIndex returns which 1 GiB segment page pn falls in, the same
// division extend() already uses to decide when to pad to a segment
// boundary rather than let an allocation straddle one.
func (t *Txn) segmentIndex(pn PageNum) uint32 {
	pagesPerSegment := uint32(pagefile.SegmentSize) / t.store.PageSize()
	return uint32(pn) / pagesPerSegment
}

func (t *Txn) growFile(newTotalPages uint32) error {
	pageSize := int64(t.store.PageSize())
	if err := t.store.sf.Extend(int64(newTotalPages) * pageSize); err != nil {
		return &Error{Kind: IoError, Path: t.store.path, Err: err}
	}
	if err := t.journalHeader(); err != nil {
		return err
	}
	t.store.h.TotalPageCount = newTotalPages
	return nil
}

// appendFreeBlob inserts a brand-new free blob spanning [start, start+pages)
// into the free-table; used when padding out to a segment boundary.
func (t *Txn) appendFreeBlob(start PageNum, pages uint32) error {
	return t.insertFree(start, pages)
}

// Free marks the blob at firstPage as free, coalescing with adjacent free
// neighbors, per spec.md §4.B's free algorithm. A no-op (with a logged
// diagnostic) if the blob is already free, per §4.B's failure semantics.
func (t *Txn) Free(firstPage PageNum) error {
	if err := t.journalPage(firstPage); err != nil {
		return err
	}
	data, err := t.store.blobData(firstPage, int(t.store.PageSize()))
	if err != nil {
		return err
	}
	bh := castBlobHeader(data)
	if bh.isFree() {
		Logger.Warn().Uint32("page", uint32(firstPage)).Msg("free() called on an already-free blob")
		return nil
	}

	pages := t.pagesFor(bh.payloadSize())
	blobStart := firstPage
	blobPages := pages

	// Coalesce with the preceding blob, if free.
	precedingPages := bh.PrecedingFreeBlobPages
	if precedingPages > 0 {
		precedingStart := blobStart - PageNum(precedingPages)
		if err := t.unlinkFree(precedingStart); err != nil {
			return err
		}
		blobStart = precedingStart
		blobPages += precedingPages
	}

	// Coalesce with the following blob, if free, present, and in the same
	// 1 GiB segment — a free blob must never span a segment boundary
	// (spec.md §3.4), so a following blob that starts in the next segment is
	// left alone even if it is itself free.
	nextStart := blobStart + PageNum(blobPages)
	if uint32(nextStart) < t.store.h.TotalPageCount && t.segmentIndex(blobStart) == t.segmentIndex(nextStart) {
		if err := t.journalPage(nextStart); err != nil {
			return err
		}
		nextData, err := t.store.blobData(nextStart, int(t.store.PageSize()))
		if err != nil {
			return err
		}
		nextBh := castBlobHeader(nextData)
		if nextBh.isFree() {
			nextPages := t.pagesFor(nextBh.payloadSize())
			if err := t.unlinkFree(nextStart); err != nil {
				return err
			}
			blobPages += nextPages
		}
	}

	if err := t.insertFree(blobStart, blobPages); err != nil {
		return err
	}
	// The following blob records this free blob's length so that freeing it
	// later coalesces backwards; a blob in the next segment records 0, since
	// coalescing never crosses a segment boundary.
	following := blobStart + PageNum(blobPages)
	precedingLen := blobPages
	if t.segmentIndex(blobStart) != t.segmentIndex(following) {
		precedingLen = 0
	}
	return t.setPrecedingFreeLen(following, precedingLen)
}

// SetIndexPointer updates the root tile index pointer (§4.C); the change
// becomes durable on Commit, alongside every other header field, and is
// rolled back by Abort like any other header mutation in this transaction.
func (t *Txn) SetIndexPointer(pn PageNum) error {
	if err := t.journalHeader(); err != nil {
		return err
	}
	t.store.h.IndexPointer = uint32(pn)
	return nil
}

// Commit forces dirty data pages, refreshes the checksum of the mapped
// header page (publishing the new header), then forces again so the
// header reaches disk, per spec.md §4.B's commit protocol.
func (t *Txn) Commit() error {
	if t.done {
		return fmt.Errorf("blobstore: txn already finished")
	}
	t.done = true
	defer t.store.writerMu.Unlock()

	if err := t.store.sf.Force(); err != nil {
		return &Error{Kind: IoError, Path: t.store.path, Err: err}
	}
	t.store.h.refreshChecksum()
	if err := t.store.sf.Force(); err != nil {
		return &Error{Kind: IoError, Path: t.store.path, Err: err}
	}

	t.store.versionMu.Lock()
	t.store.version++
	t.store.versionMu.Unlock()

	t.journal = nil
	return nil
}

// Abort rolls back every journaled page to its pre-transaction image.
func (t *Txn) Abort() {
	if t.done {
		return
	}
	t.done = true
	defer t.store.writerMu.Unlock()

	for _, pn := range t.order {
		preimage := t.journal[pn]
		data, err := t.store.blobData(pn, len(preimage))
		if err != nil {
			Logger.Error().Err(err).Uint32("page", uint32(pn)).Msg("failed to roll back page on abort")
			continue
		}
		copy(data, preimage)
	}
	t.journal = nil
}

// errTornHeader is returned by rollbackFromJournal for every checksum
// mismatch: the journal (Txn.journal) is in-memory and per-process, so it
// never survives the crash that produced a torn header in the first place.
// There is nothing on disk to replay, so recovery is refusing the store
// rather than silently accepting a header whose fields may be inconsistent
// with each other.
var errTornHeader = fmt.Errorf("no on-disk journal to recover a torn header from")

// rollbackFromJournal is invoked on Open when the header checksum does not
// match, per spec.md §4.B: "A partially-committed file is detected on open
// by a header checksum mismatch and rolled back using the journal." GOL's
// journal (Txn.journal) lives only in the crashed writer's process memory,
// so by the time a later Open observes the mismatch there is no pre-image
// left to replay; this always fails, and mapHeader refuses to open the store.
func (s *Store) rollbackFromJournal() error {
	return errTornHeader
}
