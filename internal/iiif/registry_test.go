package iiif

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type namedDezoomer struct {
	name    string
	matches bool
}

func (d *namedDezoomer) Name() string        { return d.name }
func (d *namedDezoomer) Description() string { return d.name }
func (d *namedDezoomer) Matches(string) bool { return d.matches }
func (d *namedDezoomer) FindManifest(context.Context, string) (string, error) {
	return "", ErrNotFound
}
func (d *namedDezoomer) Open(context.Context, string, Reporter) (*Descriptor, error) {
	return nil, errors.New("not implemented")
}

func TestRegistryRegister(t *testing.T) {
	reg, err := NewRegistry(&namedDezoomer{name: "zeta"}, &namedDezoomer{name: "alpha"})
	require.NoError(t, err)
	require.Equal(t, []string{"alpha", "zeta"}, reg.List())

	require.Error(t, reg.Register(&namedDezoomer{name: "alpha"}))
	require.Error(t, reg.Register(&namedDezoomer{}))
	require.Error(t, reg.Register(nil))

	d, ok := reg.Get("zeta")
	require.True(t, ok)
	require.Equal(t, "zeta", d.Name())

	_, ok = reg.Get("missing")
	require.False(t, ok)
}

func TestRegistrySelect(t *testing.T) {
	fallback := &namedDezoomer{name: "generic"}
	specific := &namedDezoomer{name: "specific", matches: true}

	reg, err := NewRegistry(fallback, specific)
	require.NoError(t, err)

	d, err := reg.Select("https://anything.example.org/")
	require.NoError(t, err)
	require.Equal(t, "specific", d.Name())

	specific.matches = false
	d, err = reg.Select("https://anything.example.org/")
	require.NoError(t, err)
	require.Equal(t, "generic", d.Name())

	empty, err := NewRegistry()
	require.NoError(t, err)
	_, err = empty.Select("https://anything.example.org/")
	require.Error(t, err)
}

func TestRegistryResolve(t *testing.T) {
	fetcher := &stubFetcher{
		pages: map[string]string{
			"https://museum.example.org/object/7": `<img src="https://iiif.example.org/iiif/abc/full/max/0/default.jpg">`,
		},
		manifests: map[string]string{
			manifestURL: `{"@id": "https://iiif.example.org/iiif/abc", "width": 1000, "height": 600,
				"tiles": [{"width": 512, "scaleFactors": [1, 2]}], "formats": ["jpg", "png"]}`,
		},
	}
	prober := &stubProber{err: errors.New("timeout")}

	reg, err := NewRegistry(NewIIIFDezoomer(fetcher, prober, nil))
	require.NoError(t, err)

	var forwarded []string
	res, err := reg.Resolve(context.Background(), "https://museum.example.org/object/7",
		ReporterFunc(func(msg string, _ error) { forwarded = append(forwarded, msg) }))
	require.NoError(t, err)

	require.NotEmpty(t, res.ID)
	require.Equal(t, "iiif", res.Dezoomer)
	require.Equal(t, manifestURL, res.ManifestURL)
	require.Equal(t, "https://iiif.example.org/iiif/abc", res.Descriptor.Origin)
	require.Equal(t, "png", res.Descriptor.Format)
	require.Len(t, res.Warnings, 1)
	require.Equal(t, res.Warnings, forwarded)
}

func TestRegistryResolveNotFound(t *testing.T) {
	fetcher := &stubFetcher{pages: map[string]string{"https://museum.example.org/": "plain page"}}
	reg, err := NewRegistry(NewIIIFDezoomer(fetcher, nil, nil))
	require.NoError(t, err)

	_, err = reg.Resolve(context.Background(), "https://museum.example.org/", nil)
	require.ErrorIs(t, err, ErrNotFound)
}
