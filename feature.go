package gol

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/geoobj/gol/internal/matcher"
	"github.com/geoobj/gol/internal/strtab"
	"github.com/geoobj/gol/internal/tilewalk"
)

// FeaturePtr is an opaque pointer to a feature record inside a blob
// (spec.md §3.5); ownership belongs to the store mapping it came from.
type FeaturePtr uint32

// Feature is one decoded geographic record: a type, a tag table, and a
// bounding box. The on-disk encoding (featureList bytes below) is this
// module's own decision — spec.md leaves the exact feature record
// layout unspecified beyond "tag table" and "FeaturePtr" (see
// DESIGN.md's Open Question resolution).
type Feature struct {
	ID      FeaturePtr
	Type    uint32
	Tags    map[string]string
	Members []FeaturePtr
	bounds  tilewalk.BBox
}

// Bounds implements internal/filter.Feature.
func (f *Feature) Bounds() tilewalk.BBox { return f.bounds }

// featureTags adapts a Feature to internal/matcher.Tags, resolving
// global keys through the store's interned-key table.
type featureTags struct {
	feature *Feature
	names   *strtab.Table
}

func (t featureTags) GlobalValue(key matcher.GlobalKey) (string, bool) {
	if t.names == nil {
		return "", false
	}
	name, ok := t.names.String(uint32(key))
	if !ok {
		return "", false
	}
	v, ok := t.feature.Tags[name]
	return v, ok
}

func (t featureTags) LocalValue(key string) (string, bool) {
	v, ok := t.feature.Tags[key]
	return v, ok
}

// Encoding of a feature-list blob (one per leaf tile):
//
//	u32 count
//	repeated `count` times:
//	  u32 id
//	  u8  typeMask
//	  f64 minX, minY, maxX, maxY
//	  u16 tagCount
//	  repeated `tagCount` times:
//	    u8  isGlobalKey
//	    if global: u32 globalKeyID
//	    if local:  u16 keyLen, key bytes
//	    u16 valueLen, value bytes
//	  u32 memberCount
//	  repeated `memberCount` times: u32 memberID
//
// memberCount is 0 for every node/way/area; relations populate it with the
// FeaturePtr of each direct member (spec.md §9's cyclic-relation note).
const featureListHeaderSize = 4
const featureFixedSize = 4 + 1 + 8*4 + 2

// DecodeFeatureList parses a feature-list blob payload into Features.
func DecodeFeatureList(data []byte, names *strtab.Table) ([]*Feature, error) {
	if len(data) < featureListHeaderSize {
		return nil, fmt.Errorf("gol: feature list truncated: %d bytes", len(data))
	}
	count := binary.LittleEndian.Uint32(data[0:4])
	off := 4
	feats := make([]*Feature, 0, count)
	for i := uint32(0); i < count; i++ {
		f, next, err := decodeFeature(data, off, names)
		if err != nil {
			return nil, err
		}
		feats = append(feats, f)
		off = next
	}
	return feats, nil
}

func decodeFeature(data []byte, off int, names *strtab.Table) (*Feature, int, error) {
	if off+featureFixedSize > len(data) {
		return nil, 0, fmt.Errorf("gol: feature record truncated at offset %d", off)
	}
	id := binary.LittleEndian.Uint32(data[off:])
	off += 4
	typ := uint32(data[off])
	off++
	minX := decodeFloat64(data[off:])
	off += 8
	minY := decodeFloat64(data[off:])
	off += 8
	maxX := decodeFloat64(data[off:])
	off += 8
	maxY := decodeFloat64(data[off:])
	off += 8
	tagCount := binary.LittleEndian.Uint16(data[off:])
	off += 2

	tags := make(map[string]string, tagCount)
	for i := uint16(0); i < tagCount; i++ {
		if off >= len(data) {
			return nil, 0, fmt.Errorf("gol: feature %d tag table truncated", id)
		}
		isGlobal := data[off] != 0
		off++
		var key string
		if isGlobal {
			if off+4 > len(data) {
				return nil, 0, fmt.Errorf("gol: feature %d global key truncated", id)
			}
			gk := binary.LittleEndian.Uint32(data[off:])
			off += 4
			if names != nil {
				if resolved, ok := names.String(gk); ok {
					key = resolved
				}
			}
			if key == "" {
				key = fmt.Sprintf("#%d", gk)
			}
		} else {
			if off+2 > len(data) {
				return nil, 0, fmt.Errorf("gol: feature %d local key length truncated", id)
			}
			klen := int(binary.LittleEndian.Uint16(data[off:]))
			off += 2
			if off+klen > len(data) {
				return nil, 0, fmt.Errorf("gol: feature %d local key truncated", id)
			}
			key = string(data[off : off+klen])
			off += klen
		}
		if off+2 > len(data) {
			return nil, 0, fmt.Errorf("gol: feature %d value length truncated", id)
		}
		vlen := int(binary.LittleEndian.Uint16(data[off:]))
		off += 2
		if off+vlen > len(data) {
			return nil, 0, fmt.Errorf("gol: feature %d value truncated", id)
		}
		tags[key] = string(data[off : off+vlen])
		off += vlen
	}

	if off+4 > len(data) {
		return nil, 0, fmt.Errorf("gol: feature %d member count truncated", id)
	}
	memberCount := binary.LittleEndian.Uint32(data[off:])
	off += 4
	var members []FeaturePtr
	if memberCount > 0 {
		members = make([]FeaturePtr, memberCount)
		for i := uint32(0); i < memberCount; i++ {
			if off+4 > len(data) {
				return nil, 0, fmt.Errorf("gol: feature %d member list truncated", id)
			}
			members[i] = FeaturePtr(binary.LittleEndian.Uint32(data[off:]))
			off += 4
		}
	}

	f := &Feature{
		ID:      FeaturePtr(id),
		Type:    typ,
		Tags:    tags,
		Members: members,
		bounds: tilewalk.BBox{
			MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY,
		},
	}
	return f, off, nil
}

// EncodeFeatureList serializes feats into the blob payload layout
// DecodeFeatureList reads back, used by maintenance/rebuild operations
// and by tests constructing fixtures.
func EncodeFeatureList(feats []*Feature) []byte {
	var buf []byte
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(feats)))
	buf = append(buf, hdr[:]...)

	for _, f := range feats {
		var rec [4]byte
		binary.LittleEndian.PutUint32(rec[:], uint32(f.ID))
		buf = append(buf, rec[:]...)
		buf = append(buf, byte(f.Type))
		buf = appendFloat64(buf, f.bounds.MinX)
		buf = appendFloat64(buf, f.bounds.MinY)
		buf = appendFloat64(buf, f.bounds.MaxX)
		buf = appendFloat64(buf, f.bounds.MaxY)

		var tagCount [2]byte
		binary.LittleEndian.PutUint16(tagCount[:], uint16(len(f.Tags)))
		buf = append(buf, tagCount[:]...)

		for k, v := range f.Tags {
			buf = append(buf, 0) // always local-key on encode; global interning is a read-time optimization
			var klen [2]byte
			binary.LittleEndian.PutUint16(klen[:], uint16(len(k)))
			buf = append(buf, klen[:]...)
			buf = append(buf, k...)
			var vlen [2]byte
			binary.LittleEndian.PutUint16(vlen[:], uint16(len(v)))
			buf = append(buf, vlen[:]...)
			buf = append(buf, v...)
		}

		var memberCount [4]byte
		binary.LittleEndian.PutUint32(memberCount[:], uint32(len(f.Members)))
		buf = append(buf, memberCount[:]...)
		for _, m := range f.Members {
			var mb [4]byte
			binary.LittleEndian.PutUint32(mb[:], uint32(m))
			buf = append(buf, mb[:]...)
		}
	}
	return buf
}

func decodeFloat64(b []byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}

func appendFloat64(buf []byte, v float64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
	return append(buf, b[:]...)
}
