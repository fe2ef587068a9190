package iiif

import (
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDescriptor() Descriptor {
	return Descriptor{
		Origin:       "https://iiif.example.org/iiif/abc",
		Width:        1000,
		Height:       600,
		TileSize:     512,
		MaxZoomLevel: 1,
		Quality:      "default",
		Format:       "jpg",
	}
}

func TestTileURLClampsLastColumn(t *testing.T) {
	d := testDescriptor()

	require.Equal(t,
		"https://iiif.example.org/iiif/abc/512,0,488,512/488,/0/default.jpg",
		TileURL(TileCoordinate{X: 1, Y: 0, Zoom: 1}, d))
	require.Equal(t,
		"https://iiif.example.org/iiif/abc/512,512,488,88/488,/0/default.jpg",
		TileURL(TileCoordinate{X: 1, Y: 1, Zoom: 1}, d))
	require.Equal(t,
		"https://iiif.example.org/iiif/abc/0,0,512,512/512,/0/default.jpg",
		TileURL(TileCoordinate{X: 0, Y: 0, Zoom: 1}, d))
}

func TestTileURLRegionNeverExceedsTileSize(t *testing.T) {
	d := Descriptor{
		Origin:       "https://iiif.example.org/img",
		Width:        2049,
		Height:       1300,
		TileSize:     256,
		MaxZoomLevel: 1,
		Quality:      "native",
		Format:       "png",
	}
	cols, rows := d.Grid()
	require.Equal(t, 9, cols)
	require.Equal(t, 6, rows)

	for _, coord := range d.Tiles() {
		w, h := regionSize(coord, d)
		assert.LessOrEqual(t, w, d.TileSize)
		assert.LessOrEqual(t, h, d.TileSize)
		assert.Positive(t, w)
		assert.Positive(t, h)

		if coord.X < cols-1 {
			assert.Equal(t, d.TileSize, w, "tile %+v", coord)
		} else {
			assert.Equal(t, 1, w)
		}
		if coord.Y < rows-1 {
			assert.Equal(t, d.TileSize, h, "tile %+v", coord)
		} else {
			assert.Equal(t, 1300-5*256, h)
		}
	}
}

func TestTileURLIsPure(t *testing.T) {
	d := testDescriptor()
	coord := TileCoordinate{X: 1, Y: 1, Zoom: 1}
	require.Equal(t, TileURL(coord, d), TileURL(coord, d))
}

func TestDescriptorTilesRowMajor(t *testing.T) {
	d := testDescriptor()
	d.MaxZoomLevel = 2

	tiles := d.Tiles()
	require.Equal(t, []TileCoordinate{
		{X: 0, Y: 0, Zoom: 2},
		{X: 1, Y: 0, Zoom: 2},
		{X: 0, Y: 1, Zoom: 2},
		{X: 1, Y: 1, Zoom: 2},
	}, tiles)
}

func TestDescriptorValidate(t *testing.T) {
	d := testDescriptor()
	require.NoError(t, d.Validate())

	d.TileSize = 0
	require.Error(t, d.Validate())

	d = testDescriptor()
	d.Height = 0
	require.Error(t, d.Validate())

	var nilDesc *Descriptor
	require.Error(t, nilDesc.Validate())
	cols, rows := nilDesc.Grid()
	require.Zero(t, cols)
	require.Zero(t, rows)
}

// regionSize reads the w,h of the region segment back out of a tile URL.
func regionSize(coord TileCoordinate, d Descriptor) (int, int) {
	path := strings.TrimPrefix(TileURL(coord, d), d.Origin+"/")
	segments := strings.Split(path, "/")
	if len(segments) != 4 {
		return -1, -1
	}
	region := strings.Split(segments[0], ",")
	if len(region) != 4 || segments[1] != region[2]+"," {
		return -1, -1
	}
	w, errW := strconv.Atoi(region[2])
	h, errH := strconv.Atoi(region[3])
	if errW != nil || errH != nil {
		return -1, -1
	}
	return w, h
}

func TestDescriptorPage(t *testing.T) {
	d := &Descriptor{
		Origin: "https://iiif.example.org/iiif/abc", Width: 1000, Height: 600,
		TileSize: 512, MaxZoomLevel: 1, Quality: "default", Format: "jpg",
	}

	page := d.Page(1, 2)
	require.Equal(t, 2, page.Columns)
	require.Equal(t, 2, page.Rows)
	require.Equal(t, 4, page.Total)
	require.Equal(t, 1, page.Offset)
	require.Len(t, page.Tiles, 2)
	require.Equal(t, TileCoordinate{X: 1, Y: 0, Zoom: 1}, page.Tiles[0].TileCoordinate)
	require.Equal(t, "https://iiif.example.org/iiif/abc/512,0,488,512/488,/0/default.jpg", page.Tiles[0].URL)
	require.Equal(t, "https://iiif.example.org/iiif/abc/0,512,512,88/512,/0/default.jpg", page.Tiles[1].URL)

	require.Len(t, d.Page(0, 0).Tiles, 4)
	past := d.Page(10, 5)
	require.Equal(t, 4, past.Offset)
	require.Empty(t, past.Tiles)
}

func TestDescriptorPageOnHugeGrid(t *testing.T) {
	d := &Descriptor{
		Origin: "https://iiif.example.org/huge", Width: 3000000000, Height: 3000000000,
		TileSize: 1, MaxZoomLevel: 1, Quality: "default", Format: "jpg",
	}

	page := d.Page(0, 10)
	require.Equal(t, 3000000000, page.Columns)
	require.Equal(t, 3000000000, page.Rows)
	require.Equal(t, 3000000000*3000000000, page.Total)
	require.Len(t, page.Tiles, 10)
	require.Equal(t, TileCoordinate{X: 9, Y: 0, Zoom: 1}, page.Tiles[9].TileCoordinate)
	require.Equal(t, "https://iiif.example.org/huge/9,0,1,1/1,/0/default.jpg", page.Tiles[9].URL)

	next := d.Page(3000000000+2, 1)
	require.Equal(t, TileCoordinate{X: 2, Y: 1, Zoom: 1}, next.Tiles[0].TileCoordinate)

	require.Nil(t, d.Tiles())
}

func TestDescriptorTileCountSaturates(t *testing.T) {
	d := &Descriptor{Width: math.MaxInt, Height: math.MaxInt, TileSize: 1, MaxZoomLevel: 1}
	cols, rows := d.Grid()
	require.Equal(t, math.MaxInt, cols)
	require.Equal(t, math.MaxInt, rows)
	require.Equal(t, math.MaxInt, d.TileCount())

	page := d.Page(math.MaxInt-1, 5)
	require.Equal(t, math.MaxInt-1, page.Offset)
	require.Len(t, page.Tiles, 1)
}
