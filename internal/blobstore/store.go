package blobstore

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/geoobj/gol/internal/pagefile"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger is the package-level structured logger, replaceable by callers
// the same way component I of SPEC_FULL.md describes. Defaults to the
// global zerolog logger (stderr), matching the teacher's convention of a
// package-default with no required setup.
var Logger zerolog.Logger = log.Logger

// SetLogger replaces the package-level logger.
func SetLogger(l zerolog.Logger) { Logger = l }

// Store is the open handle to a GOL blob store: the mapped header plus the
// free-table allocator and single-writer transaction discipline described
// in spec.md §4.B/§5.
type Store struct {
	sf   *pagefile.SegmentFile
	h    *header
	path string

	writerMu sync.Mutex // at most one writer transaction (spec.md §5)

	// versionMu guards the snapshot version counter only; the header page
	// itself is read directly by readers (multi-version via value copy of
	// the fields they need, per spec.md §9).
	versionMu sync.RWMutex
	version   uint64
}

// Options configure Open/Create. See SPEC_FULL.md component K.
type Options struct {
	PageSize uint32 // power of two in [512, 65536]; ignored when opening an existing store
}

func defaultOptions() Options { return Options{PageSize: 4096} }

// Option mutates Options.
type Option func(*Options)

// WithPageSize sets the page size used when creating a new store.
func WithPageSize(n uint32) Option {
	return func(o *Options) { o.PageSize = n }
}

// Open opens an existing store at path, or creates one if it does not
// exist and create is true.
func Open(path string, create bool, opts ...Option) (*Store, error) {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}

	sf, err := pagefile.Open(path, true, create)
	if err != nil {
		return nil, &Error{Kind: FileNotFound, Path: path, Err: err}
	}

	s := &Store{sf: sf, path: path}

	if sf.Size() == 0 {
		if !create {
			sf.Close()
			return nil, &Error{Kind: FileNotFound, Path: path}
		}
		if err := s.initNew(o.PageSize); err != nil {
			sf.Close()
			return nil, err
		}
		return s, nil
	}

	if err := s.mapHeader(); err != nil {
		sf.Close()
		return nil, err
	}
	return s, nil
}

// mapHeader maps page 0 and validates magic/version/checksum, per spec.md
// §3.2's invariant and §4.B's torn-write detection.
func (s *Store) mapHeader() error {
	data, err := s.sf.Data(0, headerPageSize)
	if err != nil {
		return &Error{Kind: IoError, Path: s.path, Err: err}
	}
	h := castHeader(data)
	if !h.magicValid() {
		return &Error{Kind: InvalidFormat, Path: s.path, Err: fmt.Errorf("magic/version mismatch: got %#x/%d", h.Magic, h.Version)}
	}
	if !h.checksumValid() {
		Logger.Warn().Str("path", s.path).Msg("header checksum mismatch, refusing to open")
		if err := s.rollbackFromJournal(); err != nil {
			return &Error{Kind: InvalidFormat, Path: s.path, Err: fmt.Errorf("torn header (checksum mismatch): %w", err)}
		}
	}
	s.h = h
	return nil
}

// initNew lays out a brand-new store: extends the file to hold page 0 and
// writes a fresh header, per spec.md §3.2.
func (s *Store) initNew(pageSize uint32) error {
	if pageSize < 512 || pageSize > 65536 || pageSize&(pageSize-1) != 0 {
		return &Error{Kind: InvalidFormat, Path: s.path, Err: fmt.Errorf("page size %d is not a power of two in [512,65536]", pageSize)}
	}
	shift := uint8(0)
	for p := pageSize; p > 1; p >>= 1 {
		shift++
	}

	if err := s.sf.Extend(int64(pageSize)); err != nil {
		return &Error{Kind: IoError, Path: s.path, Err: err}
	}
	data, err := s.sf.Data(0, headerPageSize)
	if err != nil {
		return &Error{Kind: IoError, Path: s.path, Err: err}
	}
	h := castHeader(data)
	*h = header{}
	h.Magic = Magic
	h.Version = FormatVersion
	h.CreationTimestamp = uint64(time.Now().UnixMilli())
	h.TotalPageCount = 1
	if _, err := rand.Read(h.Guid[:]); err != nil {
		return &Error{Kind: IoError, Path: s.path, Err: err}
	}
	h.PageSizeShift = shift
	h.IndexPointer = 0
	h.PropertiesPointer = 0
	for i := range h.TrunkFreeTable {
		h.TrunkFreeTable[i] = 0
	}
	h.refreshChecksum()

	if err := s.sf.Force(); err != nil {
		return &Error{Kind: IoError, Path: s.path, Err: err}
	}
	s.h = h
	Logger.Info().Str("path", s.path).Uint32("pageSize", pageSize).Msg("created new GOL store")
	return nil
}

// PageSize returns the store's fixed page size in bytes.
func (s *Store) PageSize() uint32 { return s.h.pageSize() }

// TotalPageCount returns the current number of allocated pages (including
// free ones and the header).
func (s *Store) TotalPageCount() uint32 { return s.h.TotalPageCount }

// Guid returns the store's creation GUID.
func (s *Store) Guid() [16]byte { return s.h.Guid }

// IndexPointer returns the page number of the root tile index (§4.C).
func (s *Store) IndexPointer() PageNum { return PageNum(s.h.IndexPointer) }

// SubtypeData returns the opaque 64-byte subtype payload (§3.2).
func (s *Store) SubtypeData() [64]byte { return s.h.SubtypeData }

// SetSubtypeData overwrites the opaque subtype payload; takes effect on the
// next commit (callers should do this inside a Txn in real usage, but the
// field itself carries no allocator invariants).
func (s *Store) SetSubtypeData(data [64]byte) { s.h.SubtypeData = data }

// pageOffset returns the absolute byte offset of page pn.
func (s *Store) pageOffset(pn PageNum) int64 {
	return int64(pn) << s.h.PageSizeShift
}

// blobData returns the data backing firstPage for length bytes, mapping
// the enclosing segment on demand via pagefile.
func (s *Store) blobData(firstPage PageNum, length int) ([]byte, error) {
	data, err := s.sf.Data(s.pageOffset(firstPage), length)
	if err != nil {
		return nil, &Error{Kind: IoError, Path: s.path, Err: err}
	}
	return data, nil
}

// Snapshot is an immutable, versioned view of header fields a query may
// hold across the lifetime of a single iteration, per spec.md §9's
// "multi-version: readers hold a version number and all their derived
// pointers are consistent with that version."
type Snapshot struct {
	Version        uint64
	TotalPageCount uint32
	IndexPointer   PageNum
	PageSize       uint32
}

// BeginRead captures a consistent snapshot of the header's reader-visible
// fields (SPEC_FULL.md §9 "Reader snapshot isolation").
func (s *Store) BeginRead() Snapshot {
	s.versionMu.RLock()
	defer s.versionMu.RUnlock()
	return Snapshot{
		Version:        s.version,
		TotalPageCount: s.h.TotalPageCount,
		IndexPointer:   PageNum(s.h.IndexPointer),
		PageSize:       s.h.pageSize(),
	}
}

// Close flushes and unmaps the store.
func (s *Store) Close() error {
	return s.sf.Close()
}
