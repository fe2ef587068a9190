package cmd

import (
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	errwrap "github.com/tilerelay/tilerelay/internal/errors"
	"github.com/tilerelay/tilerelay/internal/observability"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run self-health check",
	Long:  "Run a self-health check to verify the application can start successfully.",
	Run: func(cmd *cobra.Command, args []string) {
		if observability.CLILogger == nil {
			ExitWithCodeStderr(foundry.ExitConfigInvalid, "Logger not initialized", errwrap.NewConfigInvalidError("Logger not initialized"))
			return
		}
		log := observability.CLILogger
		log.Info("Running health check...")

		if versionInfo.Version == "" {
			ExitWithCode(log, foundry.ExitConfigInvalid, "Version information missing", errwrap.NewConfigInvalidError("Version information missing"))
			return
		}
		log.Debug("Version check passed", zap.String("version", versionInfo.Version))
		log.Info("✅ Version information available")

		cfg, err := loadConfig()
		if err != nil {
			ExitWithCode(log, foundry.ExitConfigInvalid, "Configuration invalid", err)
			return
		}
		log.Info("✅ Configuration loaded")

		registry, err := buildRegistry(cfg, log, false)
		if err != nil {
			ExitWithCode(log, foundry.ExitConfigInvalid, "Dezoomer registry unavailable", err)
			return
		}
		if err := registryHealthChecker(registry)(cmd.Context()); err != nil {
			ExitWithCode(log, foundry.ExitConfigInvalid, "No dezoomers registered", err)
			return
		}
		log.Info("✅ Dezoomers registered", zap.Strings("dezoomers", registry.List()))

		log.Info("")
		log.Info("✅ All health checks passed")
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
