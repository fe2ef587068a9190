package output

import (
	"encoding/json"

	"github.com/tilerelay/tilerelay/internal/iiif"
)

// JSONFormatter renders results as JSON.
type JSONFormatter struct {
	Indent bool
}

// FormatResolution renders res as JSON.
func (f *JSONFormatter) FormatResolution(res *iiif.Resolution) (string, error) {
	if res == nil {
		return "", nil
	}
	return f.marshal(res)
}

// FormatTiles renders listing as JSON.
func (f *JSONFormatter) FormatTiles(listing *TileListing) (string, error) {
	if listing == nil {
		return "", nil
	}
	return f.marshal(listing)
}

func (f *JSONFormatter) marshal(v any) (string, error) {
	var (
		data []byte
		err  error
	)
	if f.Indent {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}
