package handlers

import (
	"context"
	stderrors "errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/tilerelay/tilerelay/internal/errors"
	"github.com/tilerelay/tilerelay/internal/iiif"
	"github.com/tilerelay/tilerelay/internal/metrics"
	"github.com/tilerelay/tilerelay/internal/observability"
)

// DefaultTileLimit caps the tiles listed by one /api/v1/tiles call.
const DefaultTileLimit = 1000

// Resolver turns a start URL into a Resolution.
type Resolver interface {
	Resolve(ctx context.Context, startURL string, reporter iiif.Reporter) (*iiif.Resolution, error)
}

// ResolveHandler serves the manifest resolution API.
type ResolveHandler struct {
	Resolver Resolver
	// Timeout bounds one resolution; 0 leaves it to the request context.
	Timeout time.Duration
}

// TilesResponse lists tile URLs for a resolved image.
type TilesResponse struct {
	ID         string           `json:"id"`
	Descriptor *iiif.Descriptor `json:"descriptor"`
	iiif.TilePage
	Warnings []string `json:"warnings,omitempty"`
}

// Resolve handles GET /api/v1/resolve?url=.
func (h *ResolveHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	res, ok := h.resolve(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// Tiles handles GET /api/v1/tiles?url=&offset=&limit=.
func (h *ResolveHandler) Tiles(w http.ResponseWriter, r *http.Request) {
	offset, err := intParam(r, "offset", 0)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	limit, err := intParam(r, "limit", DefaultTileLimit)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	res, ok := h.resolve(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, BuildTilesResponse(res, offset, limit))
}

// BuildTilesResponse pages the row-major tile list of res.
func BuildTilesResponse(res *iiif.Resolution, offset, limit int) TilesResponse {
	return TilesResponse{
		ID:         res.ID,
		Descriptor: res.Descriptor,
		TilePage:   res.Descriptor.Page(offset, limit),
		Warnings:   res.Warnings,
	}
}

func (h *ResolveHandler) resolve(w http.ResponseWriter, r *http.Request) (*iiif.Resolution, bool) {
	startURL := r.URL.Query().Get("url")
	if startURL == "" {
		respondWithError(w, r, apperrors.NewInvalidInputError("url query parameter is required"))
		return nil, false
	}
	if h.Resolver == nil {
		respondWithError(w, r, apperrors.NewServiceUnavailableError("no dezoomers registered"))
		return nil, false
	}

	ctx := r.Context()
	if h.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Timeout)
		defer cancel()
	}

	res, err := h.Resolver.Resolve(ctx, startURL, probeFailureCounter())
	dezoomer := "unknown"
	if res != nil && res.Dezoomer != "" {
		dezoomer = res.Dezoomer
	}
	metrics.RecordManifestResolution(dezoomer, ResolutionOutcome(err))
	if err != nil {
		respondWithError(w, r, err)
		return nil, false
	}

	if logger := observability.ServerLogger; logger != nil {
		logger.Info("Resolved manifest",
			zap.String("resolution_id", res.ID),
			zap.String("start_url", res.StartURL),
			zap.String("manifest_url", res.ManifestURL),
			zap.Int("warnings", len(res.Warnings)))
	}
	return res, true
}

// ResolutionOutcome labels a resolution result for metrics.
func ResolutionOutcome(err error) string {
	var manifestErr *iiif.ManifestFetchError
	switch {
	case err == nil:
		return "success"
	case stderrors.Is(err, iiif.ErrNotFound):
		return "not_found"
	case stderrors.As(err, &manifestErr):
		return "manifest_error"
	default:
		return "error"
	}
}

// probeFailureCounter counts failed first-tile probes reported during a
// resolution.
func probeFailureCounter() iiif.Reporter {
	var once sync.Once
	return iiif.ReporterFunc(func(msg string, err error) {
		var probeErr *iiif.TileProbeError
		if stderrors.As(err, &probeErr) {
			once.Do(metrics.RecordTileProbeFailure)
		}
	})
}

func intParam(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperrors.NewInvalidInputError(name + " must be a non-negative integer")
	}
	return n, nil
}
