package blobstore

// PagesFor exposes the page-count calculation for a given payload size
// (spec.md §4.B, boundary behaviors in §8).
func (s *Store) PagesFor(payloadSize uint32) uint32 {
	pageSize := s.PageSize()
	need := payloadSize + blobHeaderSize
	return (need + pageSize - 1) / pageSize
}

// IsFree reports whether the blob at pn is currently marked free.
func (s *Store) IsFree(pn PageNum) (bool, error) {
	data, err := s.blobData(pn, blobHeaderSize)
	if err != nil {
		return false, err
	}
	return castBlobHeader(data).isFree(), nil
}

// PayloadSize returns the logical payload size stored in the blob header
// at pn.
func (s *Store) PayloadSize(pn PageNum) (uint32, error) {
	data, err := s.blobData(pn, blobHeaderSize)
	if err != nil {
		return 0, err
	}
	return castBlobHeader(data).payloadSize(), nil
}

// Payload returns the blob's payload bytes (everything after the 8-byte
// blob header, up to its declared payloadSize).
func (s *Store) Payload(pn PageNum) ([]byte, error) {
	hdr, err := s.blobData(pn, blobHeaderSize)
	if err != nil {
		return nil, err
	}
	size := castBlobHeader(hdr).payloadSize()
	pages := s.PagesFor(size)
	full, err := s.blobData(pn, int(pages*s.PageSize()))
	if err != nil {
		return nil, err
	}
	return full[blobHeaderSize : blobHeaderSize+size], nil
}

// WritePayload copies data into the blob's payload region. The blob must
// already be allocated with payloadSize >= len(data) (callers obtain this
// via Txn.Alloc). This does not itself journal the page; callers mutate
// inside an open Txn, which already journaled the page on Alloc.
func (s *Store) WritePayload(pn PageNum, data []byte) error {
	hdr, err := s.blobData(pn, blobHeaderSize)
	if err != nil {
		return err
	}
	size := castBlobHeader(hdr).payloadSize()
	pages := s.PagesFor(size)
	full, err := s.blobData(pn, int(pages*s.PageSize()))
	if err != nil {
		return err
	}
	copy(full[blobHeaderSize:blobHeaderSize+size], data)
	return nil
}

// FreeTableSnapshot serializes the trunk free-table bytes, used by tests to
// observe round-trip idempotence (spec.md §8: "alloc(n); free(p) returns
// the store to its pre-alloc free-table state... observable by serialized
// free-table bytes").
func (s *Store) FreeTableSnapshot() []uint32 {
	out := make([]uint32, TrunkSlots+1)
	out[0] = s.h.TrunkFreeTableRanges
	for i, pn := range s.h.TrunkFreeTable {
		out[i+1] = uint32(pn)
	}
	return out
}
