// Package pagefile provides segment-indexed, on-demand memory mapping of a
// GOL store file. A store is a concatenation of fixed 1 GiB segments; a
// SegmentFile maps each segment lazily on first access and keeps it mapped
// until the file is closed.
package pagefile

import (
	"fmt"
	"os"
	"sync"

	"github.com/geoobj/gol/internal/pagefile/mmap"
)

// SegmentSize is the fixed size of one mapping unit (§3.1).
const SegmentSize = 1 << 30 // 1 GiB

// MaxSegments bounds the addressable space at 4096 segments * 1 GiB = 4 TiB (§4.B).
const MaxSegments = 1 << 42 / SegmentSize

// SegmentFile owns the underlying file and its lazily-created segment
// mappings. Mappings are never unmapped except on Close, matching §4.A:
// "Mappings are freed only on store close."
type SegmentFile struct {
	mu       sync.Mutex
	file     *os.File
	path     string
	writable bool
	segments []*mmap.Map // index i maps byte range [i*SegmentSize, (i+1)*SegmentSize)
	fileSize int64
}

// Open opens path for paged access. If the file does not exist and create
// is true, it is created empty; otherwise a FileNotFound-shaped error is
// returned by the caller (blobstore), since pagefile itself only wraps I/O.
func Open(path string, writable bool, create bool) (*SegmentFile, error) {
	flag := os.O_RDONLY
	if writable {
		flag = os.O_RDWR
		if create {
			flag |= os.O_CREATE
		}
	}
	f, err := os.OpenFile(path, flag, 0644)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &SegmentFile{
		file:     f,
		path:     path,
		writable: writable,
		fileSize: fi.Size(),
	}, nil
}

// Path returns the underlying file path.
func (sf *SegmentFile) Path() string { return sf.path }

// Size returns the current file size in bytes.
func (sf *SegmentFile) Size() int64 {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	return sf.fileSize
}

// segmentIndex returns which segment owns the given absolute byte offset.
func segmentIndex(offset int64) int {
	return int(offset / SegmentSize)
}

// Data returns a stable byte slice covering [offset, offset+length) within
// the enclosing segment, mapping that segment on demand if necessary.
func (sf *SegmentFile) Data(offset int64, length int) ([]byte, error) {
	idx := segmentIndex(offset)
	if idx >= MaxSegments {
		return nil, fmt.Errorf("pagefile: offset %d exceeds addressable range", offset)
	}
	segBase := int64(idx) * SegmentSize
	segOff := offset - segBase
	if segOff+int64(length) > SegmentSize {
		return nil, fmt.Errorf("pagefile: range [%d,%d) crosses a segment boundary", offset, offset+int64(length))
	}

	m, err := sf.ensureMapped(idx)
	if err != nil {
		return nil, err
	}
	data := m.Data()
	end := segOff + int64(length)
	if end > int64(len(data)) {
		return nil, fmt.Errorf("pagefile: range [%d,%d) beyond mapped segment %d size %d", segOff, end, idx, len(data))
	}
	return data[segOff:end], nil
}

// ensureMapped maps segment idx if it is not already mapped, checking the
// segment slot while holding sf.mu so an already-live segment is never
// remapped.
func (sf *SegmentFile) ensureMapped(idx int) (*mmap.Map, error) {
	sf.mu.Lock()
	defer sf.mu.Unlock()

	if idx < len(sf.segments) && sf.segments[idx] != nil {
		return sf.segments[idx], nil
	}

	mapLen := sf.segmentMapLen(idx)
	if mapLen <= 0 {
		return nil, fmt.Errorf("pagefile: segment %d not yet allocated in file", idx)
	}

	m, err := mmap.New(int(sf.file.Fd()), int64(idx)*SegmentSize, mapLen, sf.writable)
	if err != nil {
		return nil, err
	}
	for len(sf.segments) <= idx {
		sf.segments = append(sf.segments, nil)
	}
	sf.segments[idx] = m
	return m, nil
}

// segmentMapLen computes how many bytes of segment idx exist in the file
// today (a segment may be only partially extended, e.g. the final segment
// of a growing store).
func (sf *SegmentFile) segmentMapLen(idx int) int {
	segBase := int64(idx) * SegmentSize
	remaining := sf.fileSize - segBase
	if remaining <= 0 {
		return 0
	}
	if remaining > SegmentSize {
		return SegmentSize
	}
	return int(remaining)
}

// Extend grows the file to newSize bytes (zero-filled by the OS) and
// remaps cached mappings of segments whose mapped length changed; a
// mapping whose remap fails is dropped, so the next Data() call maps it
// fresh at its new size.
func (sf *SegmentFile) Extend(newSize int64) error {
	sf.mu.Lock()
	defer sf.mu.Unlock()

	if newSize <= sf.fileSize {
		return nil
	}
	if err := sf.file.Truncate(newSize); err != nil {
		return err
	}
	oldSize := sf.fileSize
	sf.fileSize = newSize

	firstAffected := segmentIndex(oldSize)
	for idx := firstAffected; idx < len(sf.segments); idx++ {
		if sf.segments[idx] == nil {
			continue
		}
		wantLen := sf.segmentMapLen(idx)
		if int64(sf.segments[idx].Size()) == int64(wantLen) {
			continue
		}
		if err := sf.segments[idx].Remap(int64(wantLen)); err != nil {
			// Fall back to dropping the mapping; next Data() call remaps fresh.
			sf.segments[idx].Close()
			sf.segments[idx] = nil
		}
	}
	return nil
}

// Prefetch gives the OS a sequential-read hint for the segment containing
// offset. Advisory only; failures are ignored by the caller.
func (sf *SegmentFile) Prefetch(offset int64, length int) error {
	idx := segmentIndex(offset)
	sf.mu.Lock()
	var m *mmap.Map
	if idx < len(sf.segments) {
		m = sf.segments[idx]
	}
	sf.mu.Unlock()
	if m == nil {
		return nil
	}
	return m.AdviseSequential()
}

// Force flushes all dirty mapped segments to disk.
func (sf *SegmentFile) Force() error {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	for _, m := range sf.segments {
		if m == nil {
			continue
		}
		if err := m.Sync(); err != nil {
			return err
		}
	}
	return sf.file.Sync()
}

// Close unmaps every segment and closes the underlying file.
func (sf *SegmentFile) Close() error {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	var firstErr error
	for _, m := range sf.segments {
		if m == nil {
			continue
		}
		if err := m.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	sf.segments = nil
	if err := sf.file.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
