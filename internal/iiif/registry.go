package iiif

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/google/uuid"
)

// Fetcher is the full fetch capability a dezoomer needs.
type Fetcher interface {
	PageFetcher
	ManifestFetcher
}

// Dezoomer knows how to turn a start URL into a tiling descriptor for one
// family of image servers.
type Dezoomer interface {
	Name() string
	Description() string
	// Matches reports whether startURL is recognisable without a fetch.
	Matches(startURL string) bool
	FindManifest(ctx context.Context, startURL string) (string, error)
	Open(ctx context.Context, manifestURL string, reporter Reporter) (*Descriptor, error)
}

// Resolution is the result of locating and interpreting a start URL.
type Resolution struct {
	ID          string      `json:"id" yaml:"id"`
	Dezoomer    string      `json:"dezoomer" yaml:"dezoomer"`
	StartURL    string      `json:"startUrl" yaml:"start_url"`
	ManifestURL string      `json:"manifestUrl" yaml:"manifest_url"`
	Descriptor  *Descriptor `json:"descriptor" yaml:"descriptor"`
	Warnings    []string    `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Registry holds the dezoomers available to a process. The first registered
// dezoomer is the fallback when none matches a start URL directly.
type Registry struct {
	mu    sync.RWMutex
	order []string
	byKey map[string]Dezoomer
}

// NewRegistry returns a registry populated with dezoomers, in order.
func NewRegistry(dezoomers ...Dezoomer) (*Registry, error) {
	r := &Registry{byKey: make(map[string]Dezoomer)}
	for _, d := range dezoomers {
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a dezoomer. Names are unique.
func (r *Registry) Register(d Dezoomer) error {
	if d == nil {
		return fmt.Errorf("register dezoomer: nil dezoomer")
	}
	name := d.Name()
	if name == "" {
		return fmt.Errorf("register dezoomer: empty name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byKey[name]; exists {
		return fmt.Errorf("register dezoomer: %q already registered", name)
	}
	r.byKey[name] = d
	r.order = append(r.order, name)
	return nil
}

// Get returns the dezoomer registered under name.
func (r *Registry) Get(name string) (Dezoomer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byKey[name]
	return d, ok
}

// List returns the registered dezoomer names sorted alphabetically.
func (r *Registry) List() []string {
	r.mu.RLock()
	names := append([]string(nil), r.order...)
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Select returns the first dezoomer, in registration order, that matches
// startURL, falling back to the first registered one.
func (r *Registry) Select(startURL string) (Dezoomer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.order) == 0 {
		return nil, fmt.Errorf("no dezoomers registered")
	}
	for _, name := range r.order {
		if d := r.byKey[name]; d.Matches(startURL) {
			return d, nil
		}
	}
	return r.byKey[r.order[0]], nil
}

// Resolve locates the manifest for startURL and interprets it. Warnings
// raised along the way are collected into the resolution and also forwarded
// to reporter when it is non-nil.
func (r *Registry) Resolve(ctx context.Context, startURL string, reporter Reporter) (*Resolution, error) {
	d, err := r.Select(startURL)
	if err != nil {
		return nil, err
	}

	manifestURL, err := d.FindManifest(ctx, startURL)
	if err != nil {
		return nil, err
	}

	res := &Resolution{
		ID:          uuid.NewString(),
		Dezoomer:    d.Name(),
		StartURL:    startURL,
		ManifestURL: manifestURL,
	}

	collect := ReporterFunc(func(msg string, err error) {
		res.Warnings = append(res.Warnings, msg)
		if reporter != nil {
			reporter.Warn(msg, err)
		}
	})

	desc, err := d.Open(ctx, manifestURL, collect)
	if err != nil {
		return nil, err
	}
	res.Descriptor = desc
	return res, nil
}

// IIIFDezoomer handles any server speaking the IIIF Image API.
type IIIFDezoomer struct {
	Locator     *Locator
	Interpreter *Interpreter
}

// NewIIIFDezoomer wires a locator and interpreter over the same fetcher.
// prober may be nil to skip tile verification.
func NewIIIFDezoomer(fetcher Fetcher, prober Prober, logger *logging.Logger) *IIIFDezoomer {
	locator := NewLocator(fetcher)
	locator.Logger = logger
	return &IIIFDezoomer{
		Locator: locator,
		Interpreter: &Interpreter{
			Fetcher: fetcher,
			Prober:  prober,
			Logger:  logger,
		},
	}
}

// Name implements Dezoomer.
func (d *IIIFDezoomer) Name() string { return "iiif" }

// Description implements Dezoomer.
func (d *IIIFDezoomer) Description() string {
	return "International Image Interoperability Framework"
}

// Matches implements Dezoomer.
func (d *IIIFDezoomer) Matches(startURL string) bool {
	return d.Locator.Matches(startURL)
}

// FindManifest implements Dezoomer.
func (d *IIIFDezoomer) FindManifest(ctx context.Context, startURL string) (string, error) {
	return d.Locator.Locate(ctx, startURL)
}

// Open implements Dezoomer.
func (d *IIIFDezoomer) Open(ctx context.Context, manifestURL string, reporter Reporter) (*Descriptor, error) {
	interp := *d.Interpreter
	if reporter != nil {
		interp.Reporter = chainReporters(d.Interpreter.Reporter, reporter)
	}
	return interp.Interpret(ctx, manifestURL)
}

func chainReporters(reporters ...Reporter) Reporter {
	return ReporterFunc(func(msg string, err error) {
		for _, r := range reporters {
			if r != nil {
				r.Warn(msg, err)
			}
		}
	})
}
