package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/tilerelay/tilerelay/internal/config"
	errwrap "github.com/tilerelay/tilerelay/internal/errors"
	"github.com/tilerelay/tilerelay/internal/fetch"
	"github.com/tilerelay/tilerelay/internal/iiif"
	"github.com/tilerelay/tilerelay/internal/observability"
)

// buildRegistry wires the IIIF dezoomer over a shared fetch client. probe
// turns first-tile verification on when the config allows it.
func buildRegistry(cfg *config.Config, logger *logging.Logger, probe bool) (*iiif.Registry, error) {
	if cfg == nil {
		return nil, errwrap.NewConfigInvalidError("configuration not loaded")
	}

	client := fetch.New(cfg.Fetch.Options(), logger)

	var prober iiif.Prober
	if probe && cfg.IIIF.ProbeEnabled {
		prober = &iiif.ImageProber{Opener: client}
	}

	dz := iiif.NewIIIFDezoomer(client, prober, logger)
	dz.Locator.Rewrites = append(dz.Locator.Rewrites, cfg.IIIF.HostRewrites...)
	dz.Interpreter.DefaultTileWidth = cfg.IIIF.DefaultTileWidth

	return iiif.NewRegistry(dz)
}

// cliReporter prints interpretation warnings to the CLI log as they happen.
func cliReporter(logger *logging.Logger) iiif.Reporter {
	return iiif.ReporterFunc(func(msg string, err error) {
		if logger == nil {
			return
		}
		fields := []zap.Field{}
		if err != nil {
			fields = append(fields, zap.Error(err))
		}
		logger.Warn(msg, fields...)
	})
}

// resolveURL loads config, builds the registry and resolves one start URL.
func resolveURL(ctx context.Context, startURL string, probe bool) (*iiif.Resolution, error) {
	startURL = strings.TrimSpace(startURL)
	if startURL == "" {
		return nil, errwrap.NewInvalidInputError("a start URL is required")
	}

	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := observability.CLILogger
	registry, err := buildRegistry(cfg, logger, probe)
	if err != nil {
		return nil, err
	}

	if cfg.IIIF.ResolveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.IIIF.ResolveTimeout)
		defer cancel()
	}

	res, err := registry.Resolve(ctx, startURL, cliReporter(logger))
	if err != nil {
		return nil, err
	}
	if logger != nil {
		logger.Debug("Resolved manifest",
			zap.String("resolution_id", res.ID),
			zap.String("dezoomer", res.Dezoomer),
			zap.String("manifest_url", res.ManifestURL))
	}
	return res, nil
}
