// Package iiif resolves IIIF Image API manifests into tiling descriptors and
// builds the per-tile request URLs a viewer needs to reassemble the full image.
//
// The flow is Locate (start URL or page text to info.json URL), then Interpret
// (info.json to Descriptor, verified by probing the first tile), then TileURL
// for every coordinate of the grid.
package iiif

import (
	"errors"
	"fmt"
	"math"
)

// Descriptor is the canonical tiling description of one image.
type Descriptor struct {
	// Origin is the base asset URL without a trailing slash.
	Origin string `json:"origin" yaml:"origin"`
	Width  int    `json:"width" yaml:"width"`
	Height int    `json:"height" yaml:"height"`
	// TileSize is the edge length of a full tile in source pixels.
	TileSize int `json:"tileSize" yaml:"tile_size"`
	// MaxZoomLevel is the smallest usable scale factor (highest resolution).
	MaxZoomLevel int    `json:"maxZoomLevel" yaml:"max_zoom_level"`
	Quality      string `json:"quality" yaml:"quality"`
	Format       string `json:"format" yaml:"format"`
}

// TileCoordinate addresses one tile of the grid.
type TileCoordinate struct {
	X    int `json:"x" yaml:"x"`
	Y    int `json:"y" yaml:"y"`
	Zoom int `json:"zoom" yaml:"zoom"`
}

// Validate checks the invariants every rendered descriptor must hold.
func (d *Descriptor) Validate() error {
	if d == nil {
		return errors.New("descriptor is nil")
	}
	switch {
	case d.Origin == "":
		return errors.New("descriptor origin is empty")
	case d.Width <= 0 || d.Height <= 0:
		return fmt.Errorf("invalid image dimensions %dx%d", d.Width, d.Height)
	case d.TileSize <= 0:
		return fmt.Errorf("invalid tile size %d", d.TileSize)
	case d.MaxZoomLevel < 1:
		return fmt.Errorf("invalid max zoom level %d", d.MaxZoomLevel)
	}
	return nil
}

// MaxPageTiles bounds how many tiles one Page or Tiles call materialises.
const MaxPageTiles = 1 << 20

// Grid returns the number of tile columns and rows at full resolution.
func (d *Descriptor) Grid() (cols, rows int) {
	if d == nil || d.TileSize <= 0 || d.Width <= 0 || d.Height <= 0 {
		return 0, 0
	}
	cols = (d.Width-1)/d.TileSize + 1
	rows = (d.Height-1)/d.TileSize + 1
	return cols, rows
}

// TileCount returns cols*rows, saturating at math.MaxInt.
func (d *Descriptor) TileCount() int {
	cols, rows := d.Grid()
	if cols == 0 || rows == 0 {
		return 0
	}
	if cols > math.MaxInt/rows {
		return math.MaxInt
	}
	return cols * rows
}

// TileAt returns the i-th tile in row-major order at MaxZoomLevel.
func (d *Descriptor) TileAt(i int) TileCoordinate {
	cols, _ := d.Grid()
	if cols == 0 {
		return TileCoordinate{}
	}
	return TileCoordinate{X: i % cols, Y: i / cols, Zoom: d.MaxZoomLevel}
}

// Tiles enumerates every tile coordinate in row-major order at MaxZoomLevel.
// It returns nil for grids larger than MaxPageTiles; use Page for those.
func (d *Descriptor) Tiles() []TileCoordinate {
	total := d.TileCount()
	if total == 0 || total > MaxPageTiles {
		return nil
	}
	coords := make([]TileCoordinate, 0, total)
	for i := 0; i < total; i++ {
		coords = append(coords, d.TileAt(i))
	}
	return coords
}
