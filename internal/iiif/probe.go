package iiif

import (
	"context"
	"errors"
	"image"
	"io"

	// decoders for every format a tile server may answer with
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Opener streams the body of a URL.
type Opener interface {
	Open(ctx context.Context, rawURL string) (io.ReadCloser, error)
}

// ImageProber reads only the image header of a tile to learn its size.
type ImageProber struct {
	Opener Opener
}

// Probe implements Prober.
func (p *ImageProber) Probe(ctx context.Context, rawURL string) (int, int, error) {
	if p == nil || p.Opener == nil {
		return 0, 0, errors.New("image prober is not configured")
	}

	body, err := p.Opener.Open(ctx, rawURL)
	if err != nil {
		return 0, 0, err
	}
	defer body.Close() // nolint:errcheck // best-effort cleanup on tile body

	cfg, _, err := image.DecodeConfig(body)
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}
