package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tilerelay/tilerelay/internal/observability"
	"github.com/tilerelay/tilerelay/internal/output"
)

var (
	tilesLimit  int
	tilesOffset int
)

var tilesCmd = &cobra.Command{
	Use:   "tiles <url>",
	Short: "List the tile URLs of a IIIF image",
	Long: `Resolve a start URL and list every tile of the chosen zoom level with its
IIIF Image API URL, in row-major order. Use --offset and --limit to page
through large grids; --limit 0 lists everything up to the per-page cap.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(outputFormat)
		if err != nil {
			return err
		}
		if tilesLimit < 0 || tilesOffset < 0 {
			return fmt.Errorf("--limit and --offset must not be negative")
		}

		res, err := resolveURL(cmd.Context(), args[0], !noProbe)
		if err != nil {
			ExitWithCode(observability.CLILogger, ExitCodeFor(err), "Resolution failed", err)
			return err
		}

		listing := &output.TileListing{
			Resolution: res,
			Page:       res.Descriptor.Page(tilesOffset, tilesLimit),
		}
		rendered, err := output.NewFormatter(format).FormatTiles(listing)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
		return err
	},
}

func init() {
	rootCmd.AddCommand(tilesCmd)
	addOutputFlags(tilesCmd)
	tilesCmd.Flags().IntVar(&tilesLimit, "limit", 0, "maximum number of tiles to list (0 for all)")
	tilesCmd.Flags().IntVar(&tilesOffset, "offset", 0, "index of the first tile to list")
}
