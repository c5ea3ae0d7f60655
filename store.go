package gol

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/geoobj/gol/internal/blobstore"
	"github.com/geoobj/gol/internal/exec"
	"github.com/geoobj/gol/internal/strtab"
	"github.com/geoobj/gol/internal/tilewalk"
)

// Logger is the package-level structured logger (component I), grounded
// on NayanaChandrika99-DocReasoner's zerolog usage. Replace it with
// SetLogger to redirect store diagnostics.
var Logger = zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()

// SetLogger replaces the package-level logger.
func SetLogger(l zerolog.Logger) { Logger = l }

// Store is a FeatureStore handle: the BlobStore mapping, the interned
// global-key dictionary, and the open-time options. Store is safe for
// concurrent read access from multiple Features handles; only one
// writer transaction may be open at a time (spec.md §3.6/§5).
type Store struct {
	blobs *blobstore.Store
	names *strtab.Table
	opts  Options
	path  string
}

// Open opens (or creates) a GOL store at path, per spec.md §3.6: "First
// Features(path) using that path" creates the FeatureStore.
func Open(path string, create bool, opts ...Option) (*Store, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	blobs, err := blobstore.Open(path, create, blobstore.WithPageSize(o.pageSize))
	if err != nil {
		return nil, translateBlobstoreErr(err, path)
	}

	s := &Store{blobs: blobs, names: &strtab.Table{}, opts: o, path: path}
	Logger.Debug().Str("path", path).Bool("create", create).Msg("store opened")
	return s, nil
}

// Close releases the store's mappings.
func (s *Store) Close() error {
	return s.blobs.Close()
}

// InternKey returns the global-key id for name, interning it if this is
// the first use (spec.md §3.5's "global keys (short integer-indexed;
// interned strings)").
func (s *Store) InternKey(name string) uint32 {
	return s.names.Intern(name)
}

// nodeSource adapts Store's blobstore-backed payload reads to
// internal/tilewalk.NodeSource, decoupling the two packages per
// spec.md §2's component boundary.
type nodeSource struct {
	store *Store
}

func (n nodeSource) ReadNode(pointer uint32) ([]byte, error) {
	return n.store.blobs.Payload(blobstore.PageNum(pointer))
}

// indexRoot returns the store's quadtree root pointer and tile, failing
// with QueryMissingTile if the store has never had an index built.
func (s *Store) indexRoot() (uint32, tilewalk.Tile, error) {
	rootPtr := s.blobs.IndexPointer()
	if rootPtr == blobstore.InvalidPageNum || rootPtr == 0 {
		return 0, tilewalk.Tile{}, &Error{Kind: QueryMissingTile, Path: s.path, Err: fmt.Errorf("store has no index")}
	}
	return uint32(rootPtr), tilewalk.Tile{Zoom: 0, Column: 0, Row: 0}, nil
}

// decodeCandidates implements internal/exec.Decoder: it reads a feature
// list blob and adapts each decoded Feature to exec.Candidate, tagging it
// with a featureTags view so callers can recover the original *Feature
// (see candidateToFeature in features.go).
func (s *Store) decodeCandidates(payload []byte) ([]exec.Candidate, error) {
	feats, err := DecodeFeatureList(payload, s.names)
	if err != nil {
		return nil, err
	}
	out := make([]exec.Candidate, len(feats))
	for i, feat := range feats {
		out[i] = exec.Candidate{
			ID:      uint32(feat.ID),
			Type:    feat.Type,
			Tags:    featureTags{feature: feat, names: s.names},
			Box:     feat.bounds,
			Members: memberIDs(feat.Members),
		}
	}
	return out, nil
}

func memberIDs(members []FeaturePtr) []uint32 {
	if len(members) == 0 {
		return nil
	}
	ids := make([]uint32, len(members))
	for i, m := range members {
		ids[i] = uint32(m)
	}
	return ids
}

func translateBlobstoreErr(err error, path string) error {
	var be *blobstore.Error
	if ok := asBlobstoreError(err, &be); ok {
		return &Error{Kind: Kind(be.Kind), Path: path, Err: be.Err}
	}
	return &Error{Kind: IoError, Path: path, Err: err}
}

func asBlobstoreError(err error, target **blobstore.Error) bool {
	be, ok := err.(*blobstore.Error)
	if !ok {
		return false
	}
	*target = be
	return true
}
