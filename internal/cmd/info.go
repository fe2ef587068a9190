package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tilerelay/tilerelay/internal/observability"
	"github.com/tilerelay/tilerelay/internal/output"
)

var (
	outputFormat string
	noProbe      bool
)

var infoCmd = &cobra.Command{
	Use:   "info <url>",
	Short: "Describe the tile grid of a IIIF image",
	Long: `Locate and interpret the IIIF manifest behind a start URL and print the
resulting tiling descriptor: image size, tile size, zoom level, quality and
format. The first tile is fetched to check it decodes unless --no-probe is
given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(outputFormat)
		if err != nil {
			return err
		}

		res, err := resolveURL(cmd.Context(), args[0], !noProbe)
		if err != nil {
			ExitWithCode(observability.CLILogger, ExitCodeFor(err), "Resolution failed", err)
			return err
		}

		rendered, err := output.NewFormatter(format).FormatResolution(res)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
		return err
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
	addOutputFlags(infoCmd)
}

// addOutputFlags registers the flags shared by resolving commands.
func addOutputFlags(c *cobra.Command) {
	c.Flags().StringVarP(&outputFormat, "output", "o", "table", "output format: table, json, yaml, markdown")
	c.Flags().BoolVar(&noProbe, "no-probe", false, "skip fetching the first tile")
}
