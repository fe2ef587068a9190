package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tilerelay/tilerelay/internal/observability"
)

var locateCmd = &cobra.Command{
	Use:   "locate <url>",
	Short: "Find the IIIF manifest behind a page or image URL",
	Long: `Find the IIIF info.json behind a start URL. The URL itself is tried
against the known manifest patterns first; otherwise the page is fetched
once and its text searched.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		registry, err := buildRegistry(cfg, observability.CLILogger, false)
		if err != nil {
			return err
		}
		dz, err := registry.Select(args[0])
		if err != nil {
			return err
		}

		manifestURL, err := dz.FindManifest(cmd.Context(), args[0])
		if err != nil {
			ExitWithCode(observability.CLILogger, ExitCodeFor(err), "Manifest lookup failed", err)
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), manifestURL)
		return err
	},
}

func init() {
	rootCmd.AddCommand(locateCmd)
}
