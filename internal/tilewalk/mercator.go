package tilewalk

// mercatorExtent is the half-width of the full Web-Mercator square in
// meters (standard EPSG:3857 bound), used purely for tile-bbox pruning
// per spec.md §4.C; no reprojection of caller geometry is performed
// (§1 Non-goals).
const mercatorExtent = 20037508.342789244

// BBox is an axis-aligned box in the same projected units as
// MercatorBounds returns (meters, EPSG:3857).
type BBox struct {
	MinX, MinY, MaxX, MaxY float64
}

// Intersects reports whether b and o overlap (touching edges count as
// intersecting).
func (b BBox) Intersects(o BBox) bool {
	return b.MinX <= o.MaxX && o.MinX <= b.MaxX && b.MinY <= o.MaxY && o.MinY <= b.MaxY
}

// Contains reports whether b fully contains o.
func (b BBox) Contains(o BBox) bool {
	return b.MinX <= o.MinX && b.MinY <= o.MinY && b.MaxX >= o.MaxX && b.MaxY >= o.MaxY
}

// MercatorBounds computes t's Web-Mercator bounding box: the full Mercator
// square subdivided into a 2^zoom x 2^zoom grid, with row 0 at the north
// edge (standard XYZ tile convention).
func (t Tile) MercatorBounds() BBox {
	span := float64(uint32(1) << t.Zoom)
	tileSize := 2 * mercatorExtent / span

	minX := -mercatorExtent + float64(t.Column)*tileSize
	maxX := minX + tileSize
	maxY := mercatorExtent - float64(t.Row)*tileSize
	minY := maxY - tileSize

	return BBox{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY}
}
