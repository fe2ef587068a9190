package iiif

import (
	"bytes"
	"math"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
)

// Manifest holds the info.json fields the interpreter reads.
type Manifest struct {
	ID        string    `json:"@id"`
	ID3       string    `json:"id"`
	Width     Int       `json:"width"`
	Height    Int       `json:"height"`
	TileWidth Int       `json:"tile_width"`
	Tiles     []TileSet `json:"tiles"`
	Qualities []string  `json:"qualities"`
	Formats   []string  `json:"formats"`
}

// TileSet is one entry of the manifest's tiles array.
type TileSet struct {
	Width        Int   `json:"width"`
	Height       Int   `json:"height"`
	ScaleFactors []Int `json:"scaleFactors"`
}

// ParseManifest decodes info.json bytes.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := sonic.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Int decodes numbers the way a lenient integer parse does: JSON numbers are
// truncated, strings contribute their leading integer, anything else is 0.
type Int int

// UnmarshalJSON implements json.Unmarshaler.
func (n *Int) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}

	if data[0] == '"' {
		s, err := strconv.Unquote(string(data))
		if err != nil {
			*n = 0
			return nil
		}
		*n = Int(leadingInt(s))
		return nil
	}

	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		*n = 0
		return nil
	}
	*n = Int(int(f))
	return nil
}

func leadingInt(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	start := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == start {
		return 0
	}
	v, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return v
}

func (t TileSet) minScaleFactor() int {
	if len(t.ScaleFactors) == 0 {
		return 1
	}
	lowest := int(t.ScaleFactors[0])
	for _, f := range t.ScaleFactors[1:] {
		if int(f) < lowest {
			lowest = int(f)
		}
	}
	return lowest
}

// selectTileSet picks the tile set with the smallest minimum scale factor.
// On ties the later set wins. Without tile sets a single-scale synthetic set
// is built from tile_width when it is smaller than the image, else from
// defaultWidth.
func selectTileSet(m *Manifest, defaultWidth int) (size, zoom int) {
	if len(m.Tiles) > 0 {
		best := m.Tiles[0]
		for _, candidate := range m.Tiles[1:] {
			if best.minScaleFactor() < candidate.minScaleFactor() {
				continue
			}
			best = candidate
		}
		size = int(best.Width)
		if size <= 0 {
			size = syntheticTileWidth(m, defaultWidth)
		}
		return size, best.minScaleFactor()
	}
	return syntheticTileWidth(m, defaultWidth), 1
}

func syntheticTileWidth(m *Manifest, defaultWidth int) int {
	if m.TileWidth > 0 && m.TileWidth < m.Width {
		return int(m.TileWidth)
	}
	return defaultWidth
}

// pick returns search when it is listed, else the first entry, else fallback.
func pick(values []string, search, fallback string) string {
	if len(values) == 0 {
		return fallback
	}
	for _, v := range values {
		if v == search {
			return search
		}
	}
	return values[0]
}
