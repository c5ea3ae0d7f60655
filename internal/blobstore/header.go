// Package blobstore implements the page-oriented blob allocator described
// in spec.md §3-§4.B: a persistent, memory-mapped store with a two-level
// free-table, crash-safe transactional mutation, and on-demand segment
// mapping (via internal/pagefile).
package blobstore

import (
	"encoding/binary"
	"unsafe"
)

// Magic and format version, bit-exact per spec.md §3.2/§6.
const (
	Magic          uint32 = 0x7ADA0BB1
	FormatVersion  uint32 = 1_000_000
	headerPageSize        = 4096 // the header always occupies exactly one page-0 sized region
)

// Size classes: 2048, selected by an 11-bit index; the top 9 bits select
// one of 512 trunk slots (spec.md §3.4).
const (
	NumSizeClasses = 2048
	TrunkSlots     = 512
	LeafSlots      = 512
	RangeWords     = TrunkSlots / 16 // one bit per group of 16 slots -> 32 bits
)

// header is the page-0 on-disk layout, bit-exact per spec.md §3.2.
//
// Memory layout (little-endian):
//
//	Offset  Size  Field
//	0       4     magic
//	4       4     version
//	8       8     creationTimestamp
//	16      4     totalPageCount
//	20      16    guid
//	36      1     pageSizeShift
//	37      3     reserved
//	40      4     metadataSize
//	44      4     propertiesPointer
//	48      4     indexPointer
//	52      4     trunkFreeTableRanges
//	56      64    subtypeData
//	120     4     headerChecksum
//	124     4     reserved2
//	128     2048  trunkFreeTable[512] (4 bytes each)
type header struct {
	Magic                uint32
	Version              uint32
	CreationTimestamp     uint64
	TotalPageCount       uint32
	Guid                 [16]byte
	PageSizeShift        uint8
	reserved             [3]byte
	MetadataSize         uint32
	PropertiesPointer    uint32
	IndexPointer         uint32
	TrunkFreeTableRanges uint32
	SubtypeData          [64]byte
	HeaderChecksum       uint32
	reserved2            uint32
	TrunkFreeTable       [TrunkSlots]uint32
}

const headerStructSize = int(unsafe.Sizeof(header{}))

// castHeader reinterprets the first headerStructSize bytes of page 0 as a
// *header. Mirrors the teacher's meta.go readMeta unsafe.Pointer cast over
// mapped bytes.
func castHeader(page0 []byte) *header {
	return (*header)(unsafe.Pointer(&page0[0]))
}

// magicValid reports whether magic and version match exactly, per spec.md
// §3.2's invariant.
func (h *header) magicValid() bool {
	return h.Magic == Magic && h.Version == FormatVersion
}

// computeChecksum returns a checksum over the header excluding the checksum
// field itself and the trunk free-table (which changes every commit but
// whose corruption is separately detectable by free-table invariants). This
// keeps header-checksum computation O(1) rather than O(TrunkSlots), and is
// used only to detect a torn write of the fixed fields (§4.B commit
// protocol: "A partially-committed file is detected on open by a header
// checksum mismatch").
func (h *header) computeChecksum() uint32 {
	var buf [120]byte
	binary.LittleEndian.PutUint32(buf[0:], h.Magic)
	binary.LittleEndian.PutUint32(buf[4:], h.Version)
	binary.LittleEndian.PutUint64(buf[8:], h.CreationTimestamp)
	binary.LittleEndian.PutUint32(buf[16:], h.TotalPageCount)
	copy(buf[20:36], h.Guid[:])
	buf[36] = h.PageSizeShift
	binary.LittleEndian.PutUint32(buf[40:], h.MetadataSize)
	binary.LittleEndian.PutUint32(buf[44:], h.PropertiesPointer)
	binary.LittleEndian.PutUint32(buf[48:], h.IndexPointer)
	binary.LittleEndian.PutUint32(buf[52:], h.TrunkFreeTableRanges)
	copy(buf[56:120], h.SubtypeData[:])
	return crc32Castagnoli(buf[:])
}

// refreshChecksum recomputes and stores the header checksum; callers must
// call this as the last step before a commit publishes the header.
func (h *header) refreshChecksum() {
	h.HeaderChecksum = h.computeChecksum()
}

// checksumValid reports whether the stored checksum matches the computed
// one, used to detect a torn header write on open (§4.B).
func (h *header) checksumValid() bool {
	return h.HeaderChecksum == h.computeChecksum()
}

// pageSize returns the configured page size in bytes.
func (h *header) pageSize() uint32 {
	return 1 << h.PageSizeShift
}
