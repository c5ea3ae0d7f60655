// Package tilewalk implements the spatial tile identifier, its Mercator
// bounding-box pruning, and the depth-first quadtree walker described in
// spec.md §3.5/§4.C.
package tilewalk

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxZoom is the highest supported zoom level (spec.md §3.5: zoom in
// [0,12]).
const MaxZoom = 12

// Tile identifies a spatial cell at one of 13 zoom levels.
type Tile struct {
	Zoom   uint8
	Column uint32
	Row    uint32
}

// Valid reports whether t is a well-formed tile: zoom in range and column/
// row within the 2^zoom grid.
func (t Tile) Valid() bool {
	if t.Zoom > MaxZoom {
		return false
	}
	span := uint32(1) << t.Zoom
	return t.Column < span && t.Row < span
}

// String renders t as "<zoom>/<column>/<row>", per spec.md §6.
func (t Tile) String() string {
	return fmt.Sprintf("%d/%d/%d", t.Zoom, t.Column, t.Row)
}

// ParseTile parses the "<zoom>/<column>/<row>" form. Per spec.md §6,
// zoom/column/row must be unsigned decimal with no whitespace and no
// trailing characters; a parsing failure returns the zero Tile and
// ok=false.
func ParseTile(s string) (Tile, bool) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return Tile{}, false
	}
	zoom, err := strconv.ParseUint(parts[0], 10, 8)
	if err != nil || zoom > MaxZoom {
		return Tile{}, false
	}
	col, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return Tile{}, false
	}
	row, err := strconv.ParseUint(parts[2], 10, 32)
	if err != nil {
		return Tile{}, false
	}
	t := Tile{Zoom: uint8(zoom), Column: uint32(col), Row: uint32(row)}
	if !t.Valid() {
		return Tile{}, false
	}
	return t, true
}

// Parent returns the tile one zoom level up that contains t, and false if
// t is already at zoom 0.
func (t Tile) Parent() (Tile, bool) {
	if t.Zoom == 0 {
		return Tile{}, false
	}
	return Tile{Zoom: t.Zoom - 1, Column: t.Column / 2, Row: t.Row / 2}, true
}

// Children returns the (up to) four child tiles one zoom level down.
func (t Tile) Children() [4]Tile {
	z := t.Zoom + 1
	return [4]Tile{
		{Zoom: z, Column: t.Column * 2, Row: t.Row * 2},
		{Zoom: z, Column: t.Column*2 + 1, Row: t.Row * 2},
		{Zoom: z, Column: t.Column * 2, Row: t.Row*2 + 1},
		{Zoom: z, Column: t.Column*2 + 1, Row: t.Row*2 + 1},
	}
}
