package iiif

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when no manifest URL can be located.
var ErrNotFound = errors.New("no IIIF URL found")

// ManifestFetchError reports a manifest that could not be fetched or used.
type ManifestFetchError struct {
	URL string
	Err error
}

func (e *ManifestFetchError) Error() string {
	return fmt.Sprintf("manifest %s: %v", e.URL, e.Err)
}

func (e *ManifestFetchError) Unwrap() error {
	return e.Err
}

// TileProbeError reports that the verification tile could not be loaded.
// It never aborts interpretation.
type TileProbeError struct {
	URL string
	Err error
}

func (e *TileProbeError) Error() string {
	return fmt.Sprintf("unable to load first tile: %s: %v", e.URL, e.Err)
}

func (e *TileProbeError) Unwrap() error {
	return e.Err
}

// OriginParseError reports that the manifest's self-declared id was unusable
// and the origin was derived from the manifest URL instead.
type OriginParseError struct {
	ID     string
	Reason string
	Err    error
}

func (e *OriginParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("rewriting the @id %q from the manifest: %s: %v", e.ID, e.Reason, e.Err)
	}
	return fmt.Sprintf("rewriting the @id %q from the manifest: %s", e.ID, e.Reason)
}

func (e *OriginParseError) Unwrap() error {
	return e.Err
}
