package iiif

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"
)

// DefaultTileWidth is used when a manifest carries no usable tiling info.
const DefaultTileWidth = 512

// ManifestFetcher retrieves and decodes a JSON document.
type ManifestFetcher interface {
	JSON(ctx context.Context, rawURL string, v any) error
}

// Prober loads an image and reports its pixel dimensions.
type Prober interface {
	Probe(ctx context.Context, rawURL string) (width, height int, err error)
}

// Reporter receives non-fatal problems found while interpreting a manifest.
type Reporter interface {
	Warn(msg string, err error)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(msg string, err error)

// Warn implements Reporter.
func (f ReporterFunc) Warn(msg string, err error) {
	f(msg, err)
}

// Interpreter turns an info.json document into a Descriptor.
type Interpreter struct {
	Fetcher  ManifestFetcher
	Prober   Prober
	Reporter Reporter
	Logger   *logging.Logger

	DefaultTileWidth int
}

// the malformed "@id": "http, https://..." artifact seen from one provider
var idRepair = regexp.MustCompile(`^https?, (https?://)`)

var infoSuffix = regexp.MustCompile(`/info\.json(\?.*)?$`)

// Interpret fetches the manifest at manifestURL and describes its tiling.
// A failed manifest fetch is fatal. So is a fetched manifest whose declared
// width or height is not positive: it yields a ManifestFetchError wrapping
// "manifest unusable" because no tile grid can be built from it. A failed
// verification probe is only reported and the unverified descriptor is
// still returned.
func (i *Interpreter) Interpret(ctx context.Context, manifestURL string) (*Descriptor, error) {
	if i.Fetcher == nil {
		return nil, &ManifestFetchError{URL: manifestURL, Err: errors.New("no fetcher configured")}
	}

	var m Manifest
	if err := i.Fetcher.JSON(ctx, manifestURL, &m); err != nil {
		return nil, &ManifestFetchError{URL: manifestURL, Err: err}
	}

	d, err := i.Describe(manifestURL, &m)
	if err != nil {
		return nil, err
	}

	i.verify(ctx, d)
	return d, nil
}

// Describe builds the descriptor for an already decoded manifest without
// probing any tile.
func (i *Interpreter) Describe(manifestURL string, m *Manifest) (*Descriptor, error) {
	if m == nil {
		return nil, &ManifestFetchError{URL: manifestURL, Err: errors.New("empty manifest")}
	}

	size, zoom := selectTileSet(m, i.defaultTileWidth())
	if zoom < 1 {
		zoom = 1
	}

	origin, err := resolveOrigin(manifestURL, m)
	if err != nil {
		if i.Logger != nil {
			i.Logger.Info("Rewriting the @id from the manifest",
				zap.String("manifest_url", manifestURL),
				zap.Error(err))
		}
		origin = fallbackOrigin(manifestURL)
	}

	d := &Descriptor{
		Origin:       origin,
		Width:        int(m.Width),
		Height:       int(m.Height),
		TileSize:     size,
		MaxZoomLevel: zoom,
		Quality:      pick(m.Qualities, "native", "default"),
		Format:       pick(m.Formats, "png", "jpg"),
	}

	if err := d.Validate(); err != nil {
		return nil, &ManifestFetchError{URL: manifestURL, Err: fmt.Errorf("manifest unusable: %w", err)}
	}
	return d, nil
}

// verify loads tile (0,0) and trusts its real size over the declared one.
func (i *Interpreter) verify(ctx context.Context, d *Descriptor) {
	if i.Prober == nil {
		return
	}

	tileURL := TileURL(TileCoordinate{X: 0, Y: 0, Zoom: d.MaxZoomLevel}, *d)
	width, height, err := i.Prober.Probe(ctx, tileURL)
	if err != nil {
		probeErr := &TileProbeError{URL: tileURL, Err: err}
		i.logProbeFailure(tileURL, d.TileSize, err)
		if i.Reporter != nil {
			i.Reporter.Warn("Unable to load first tile: "+tileURL, probeErr)
		}
		return
	}

	if size := max(width, height); size > 0 {
		d.TileSize = size
	}
}

// logProbeFailure logs at Warn only when no Reporter will surface the
// failure; with a Reporter the log line drops to Debug.
func (i *Interpreter) logProbeFailure(tileURL string, tileSize int, err error) {
	if i.Logger == nil {
		return
	}
	log := i.Logger.Warn
	if i.Reporter != nil {
		log = i.Logger.Debug
	}
	log("Tile probe failed, rendering with declared tile size",
		zap.String("tile_url", tileURL),
		zap.Int("tile_size", tileSize),
		zap.Error(err))
}

func (i *Interpreter) defaultTileWidth() int {
	if i.DefaultTileWidth > 0 {
		return i.DefaultTileWidth
	}
	return DefaultTileWidth
}

func resolveOrigin(manifestURL string, m *Manifest) (string, error) {
	id := m.ID
	if id == "" {
		id = m.ID3
	}
	if id == "" {
		return "", &OriginParseError{Reason: "missing iiif @id"}
	}

	repaired := idRepair.ReplaceAllString(id, "$1")

	base, err := url.Parse(manifestURL)
	if err != nil {
		return "", &OriginParseError{ID: id, Reason: "invalid manifest URL", Err: err}
	}
	ref, err := url.Parse(repaired)
	if err != nil {
		return "", &OriginParseError{ID: id, Reason: "invalid @id", Err: err}
	}

	origin := base.ResolveReference(ref)
	switch strings.ToLower(origin.Hostname()) {
	case "localhost", "example.com":
		return "", &OriginParseError{ID: id, Reason: "probably a test host"}
	}

	return strings.TrimRight(origin.String(), "/"), nil
}

func fallbackOrigin(manifestURL string) string {
	return strings.TrimRight(infoSuffix.ReplaceAllString(manifestURL, ""), "/")
}
