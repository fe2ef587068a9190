package output

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/tilerelay/tilerelay/internal/iiif"
)

// TableFormatter renders results as an ASCII table, or as a Markdown table
// when Markdown is set.
type TableFormatter struct {
	Markdown bool
}

// FormatResolution renders one row per descriptor field.
func (f *TableFormatter) FormatResolution(res *iiif.Resolution) (string, error) {
	if res == nil {
		return "", nil
	}

	t := f.newWriter()
	t.AppendHeader(table.Row{"Field", "Value"})
	t.AppendRow(table.Row{"Dezoomer", res.Dezoomer})
	t.AppendRow(table.Row{"Manifest", res.ManifestURL})
	if d := res.Descriptor; d != nil {
		cols, rows := d.Grid()
		t.AppendRow(table.Row{"Origin", d.Origin})
		t.AppendRow(table.Row{"Size", fmt.Sprintf("%d x %d", d.Width, d.Height)})
		t.AppendRow(table.Row{"Tile size", d.TileSize})
		t.AppendRow(table.Row{"Grid", fmt.Sprintf("%d x %d (%d tiles)", cols, rows, cols*rows)})
		t.AppendRow(table.Row{"Zoom level", d.MaxZoomLevel})
		t.AppendRow(table.Row{"Quality", d.Quality})
		t.AppendRow(table.Row{"Format", d.Format})
	}
	t.AppendFooter(table.Row{"ID", res.ID})

	return f.render(t) + warnings(res.Warnings), nil
}

// FormatTiles renders one row per addressed tile.
func (f *TableFormatter) FormatTiles(listing *TileListing) (string, error) {
	if listing == nil {
		return "", nil
	}

	t := f.newWriter()
	t.AppendHeader(table.Row{"X", "Y", "Zoom", "URL"})
	for _, tile := range listing.Page.Tiles {
		t.AppendRow(table.Row{tile.X, tile.Y, tile.Zoom, tile.URL})
	}
	shown := len(listing.Page.Tiles)
	t.AppendFooter(table.Row{"", "", "", fmt.Sprintf("%d of %d tiles (%d x %d grid)",
		shown, listing.Page.Total, listing.Page.Columns, listing.Page.Rows)})

	var notes []string
	if listing.Resolution != nil {
		notes = listing.Resolution.Warnings
	}
	return f.render(t) + warnings(notes), nil
}

func (f *TableFormatter) newWriter() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	// footers carry URLs and IDs, keep their case
	t.Style().Format.Footer = text.FormatDefault
	return t
}

func (f *TableFormatter) render(t table.Writer) string {
	if f.Markdown {
		return t.RenderMarkdown()
	}
	return t.Render()
}

func warnings(list []string) string {
	if len(list) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\nWarnings:\n")
	for _, w := range list {
		b.WriteString("  - ")
		b.WriteString(w)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
