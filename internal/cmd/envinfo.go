package cmd

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tilerelay/tilerelay/internal/config"
	"github.com/tilerelay/tilerelay/internal/observability"
)

var envInfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Display environment information",
	Long:  "Display environment, configuration, and version information.",
	Run: func(cmd *cobra.Command, args []string) {
		log := observability.CLILogger
		version := crucible.GetVersion()

		log.Info("=== tilerelay Environment Information ===")
		log.Info("")

		log.Info("Application:")
		log.Info("  Name:       " + config.AppName)
		log.Info("  Version:    " + versionInfo.Version)
		log.Info("  Commit:     " + versionInfo.Commit)
		log.Info("  Built:      " + versionInfo.BuildDate)
		log.Info("")

		log.Info("SSOT:")
		log.Info("  Gofulmen:   "+version.Gofulmen, zap.String("gofulmen_version", version.Gofulmen))
		log.Info("  Crucible:   "+version.Crucible, zap.String("crucible_version", version.Crucible))
		log.Info("")

		log.Info("Runtime:")
		log.Info("  Go Version: "+runtime.Version(), zap.String("go_version", runtime.Version()))
		log.Info("  GOOS:       "+runtime.GOOS, zap.String("goos", runtime.GOOS))
		log.Info("  GOARCH:     "+runtime.GOARCH, zap.String("goarch", runtime.GOARCH))
		log.Info(fmt.Sprintf("  NumCPU:     %d", runtime.NumCPU()), zap.Int("num_cpu", runtime.NumCPU()))
		log.Info("")

		cfg, err := loadConfig()
		if err != nil {
			log.Warn("Config load failed", zap.Error(err))
			return
		}

		log.Info("Configuration:")
		log.Info("  Server Host:    "+cfg.Server.Host, zap.String("host", cfg.Server.Host))
		log.Info(fmt.Sprintf("  Server Port:    %d", cfg.Server.Port), zap.Int("port", cfg.Server.Port))
		log.Info("  Log Level:      "+cfg.Logging.Level, zap.String("log_level", cfg.Logging.Level))
		log.Info(fmt.Sprintf("  Metrics:        %t (port %d)", cfg.Metrics.Enabled, cfg.Metrics.Port), zap.Int("metrics_port", cfg.Metrics.Port))
		log.Info("  Config File:    "+config.DefaultConfigPath(), zap.String("config_file", config.DefaultConfigPath()))
		log.Info("")

		log.Info("Fetch:")
		log.Info("  Timeout:        " + cfg.Fetch.Timeout.String())
		log.Info(fmt.Sprintf("  Retries:        %d", cfg.Fetch.Retries))
		log.Info("  User Agent:     " + cfg.Fetch.UserAgent)
		log.Info(fmt.Sprintf("  Rate Limit:     %g/s", cfg.Fetch.RateLimit))
		log.Info("")

		log.Info("Relay:")
		log.Info(fmt.Sprintf("  Max Hops:       %d", cfg.Relay.MaxHops), zap.Int("max_hops", cfg.Relay.MaxHops))
		log.Info("  Timeout:        " + cfg.Relay.Timeout.String())
		log.Info(fmt.Sprintf("  Max Body:       %d bytes", cfg.Relay.MaxBodyBytes))
		log.Info("  CORS Origins:   " + strings.Join(cfg.Relay.CORSOrigins, ", "))
		log.Info("")

		log.Info("IIIF:")
		log.Info(fmt.Sprintf("  Tile Width:     %d", cfg.IIIF.DefaultTileWidth))
		log.Info(fmt.Sprintf("  Probe Enabled:  %t", cfg.IIIF.ProbeEnabled))
		log.Info("  Resolve Timeout: " + cfg.IIIF.ResolveTimeout.String())
		for _, rw := range cfg.IIIF.HostRewrites {
			log.Info(fmt.Sprintf("  Rewrite:        %s -> %s", rw.From, rw.To))
		}
		log.Info("")

		log.Info("=== End Environment Information ===")
	},
}

func init() {
	rootCmd.AddCommand(envInfoCmd)
}
