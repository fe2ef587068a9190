// Package output renders resolutions and tile listings for the CLI.
package output

import (
	"fmt"
	"strings"

	"github.com/tilerelay/tilerelay/internal/iiif"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatMarkdown Format = "markdown"
)

// TileListing is a resolution plus one page of its addressed tiles.
type TileListing struct {
	Resolution *iiif.Resolution `json:"resolution" yaml:"resolution"`
	Page       iiif.TilePage    `json:"page" yaml:"page"`
}

// Formatter renders CLI results.
type Formatter interface {
	FormatResolution(res *iiif.Resolution) (string, error)
	FormatTiles(listing *TileListing) (string, error)
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	switch normalized := strings.ToLower(strings.TrimSpace(value)); normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatYAML), "yml":
		return FormatYAML, nil
	case string(FormatMarkdown), "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatYAML:
		return &YAMLFormatter{}
	case FormatMarkdown:
		return &TableFormatter{Markdown: true}
	default:
		return &TableFormatter{}
	}
}
