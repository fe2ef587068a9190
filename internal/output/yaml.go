package output

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tilerelay/tilerelay/internal/iiif"
)

// YAMLFormatter renders results as YAML.
type YAMLFormatter struct{}

// FormatResolution renders res as YAML.
func (f *YAMLFormatter) FormatResolution(res *iiif.Resolution) (string, error) {
	if res == nil {
		return "", nil
	}
	return marshalYAML(res)
}

// FormatTiles renders listing as YAML.
func (f *YAMLFormatter) FormatTiles(listing *TileListing) (string, error) {
	if listing == nil {
		return "", nil
	}
	return marshalYAML(listing)
}

func marshalYAML(v any) (string, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(data), "\n"), nil
}
