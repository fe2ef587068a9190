package iiif

import "strconv"

// TileURL builds the IIIF image request for one tile:
//
//	{origin}/{x},{y},{w},{h}/{w},/0/{quality}.{format}
//
// The region is clamped to the image so the last row and column ask for the
// partial tile that actually exists. The requested output width equals the
// region width and the height is left to the server.
func TileURL(coord TileCoordinate, d Descriptor) string {
	size := d.TileSize
	pxX := coord.X * size
	pxY := coord.Y * size

	w := size
	if pxX+size > d.Width {
		w = d.Width - pxX
	}
	h := size
	if pxY+size > d.Height {
		h = d.Height - pxY
	}

	x := strconv.Itoa(pxX)
	y := strconv.Itoa(pxY)
	sw := strconv.Itoa(w)
	sh := strconv.Itoa(h)

	return d.Origin + "/" +
		x + "," + y + "," + sw + "," + sh + "/" +
		sw + ",/0/" +
		d.Quality + "." + d.Format
}

// AddressedTile pairs a tile coordinate with its request URL.
type AddressedTile struct {
	TileCoordinate `yaml:",inline"`
	URL            string `json:"url" yaml:"url"`
}

// TilePage is a window onto the row-major tile list of a descriptor.
type TilePage struct {
	Columns int             `json:"columns" yaml:"columns"`
	Rows    int             `json:"rows" yaml:"rows"`
	Total   int             `json:"total" yaml:"total"`
	Offset  int             `json:"offset" yaml:"offset"`
	Tiles   []AddressedTile `json:"tiles" yaml:"tiles"`
}

// Page addresses up to limit tiles starting at offset. limit <= 0 means all
// remaining tiles; either way a page holds at most MaxPageTiles. An offset
// past the end yields an empty page. Only the requested window is computed,
// so huge grids cost no more than small ones.
func (d *Descriptor) Page(offset, limit int) TilePage {
	cols, rows := d.Grid()
	total := d.TileCount()

	start := min(max(offset, 0), total)
	size := total - start
	if limit > 0 && limit < size {
		size = limit
	}
	size = min(size, MaxPageTiles)

	tiles := make([]AddressedTile, 0, size)
	for i := start; i < start+size; i++ {
		c := d.TileAt(i)
		tiles = append(tiles, AddressedTile{TileCoordinate: c, URL: TileURL(c, *d)})
	}
	return TilePage{Columns: cols, Rows: rows, Total: total, Offset: start, Tiles: tiles}
}
