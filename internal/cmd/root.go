package cmd

import (
	"fmt"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/tilerelay/tilerelay/internal/config"
	"github.com/tilerelay/tilerelay/internal/observability"
)

var (
	cfgFile string
	verbose bool

	// Version info set by main package
	versionInfo = struct {
		Version   string
		Commit    string
		BuildDate string
	}{Version: "dev", Commit: "unknown", BuildDate: "unknown"}
)

// SetVersionInfo is called by main package to set version information
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   config.AppName,
	Short: "IIIF tile locator and CORS relay",
	Long: `tilerelay finds the IIIF manifest behind a page or image URL, works out
its tile grid and addresses every tile. It also runs a relay that fetches
upstream resources on behalf of browser viewers, rewriting Origin, Referer
and Cookie and following up to three redirects itself.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// gofulmen packages emit to the global system; keep it quiet until serve
	// installs the Prometheus exporter.
	observability.DisableGlobalTelemetry()

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		fmt.Sprintf("config file (default %s)", config.DefaultConfigPath()))
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig reads the config file and TILERELAY_* overrides into viper.
func initConfig() {
	if err := observability.InitCLILogger(config.AppName, verbose); err != nil {
		ExitWithCodeStderr(foundry.ExitConfigInvalid, "Failed to initialize CLI logger", err)
	}
	logger := observability.CLILogger

	v := viper.GetViper()
	config.SetDefaults(v)
	config.ConfigureSources(v, cfgFile)

	used, err := config.ReadFile(v)
	if err != nil {
		ExitWithCode(logger, foundry.ExitConfigInvalid, "Error reading config file", err)
	}
	if used != "" {
		logger.Debug("Using config file", zap.String("path", used))
	} else {
		logger.Debug("No config file found, using defaults and environment variables")
	}

	if err := config.ApplyEnvOverrides(v); err != nil {
		ExitWithCode(logger, foundry.ExitConfigInvalid, "Invalid environment override", err)
	}
}

// loadConfig decodes the current viper state.
func loadConfig() (*config.Config, error) {
	if cfg := config.GetConfig(); cfg != nil {
		return cfg, nil
	}
	return config.Load(viper.GetViper())
}
