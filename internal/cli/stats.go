package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/benreceveur/memdex/internal/rpc"
	"github.com/benreceveur/memdex/internal/ui"
)

var statsPretty bool

// statsCmd reports a read-only view of the index.
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index statistics",
	Long: `Report document count, last update time, and the active embedding
model without touching the search cache.

Reads a JSON payload with indexPath and model on stdin and writes a JSON
response on stdout. Use --pretty for human-readable output.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := dispatchStdin("stats")
		if err != nil {
			return err
		}

		if statsPretty {
			if sr, ok := resp.(rpc.StatsResponse); ok {
				renderStats(sr)
				return nil
			}
		}
		return writeResponse(resp)
	},
}

func init() {
	statsCmd.Flags().BoolVar(&statsPretty, "pretty", false, "render stats for humans instead of JSON")
}

// renderStats prints index statistics with terminal styling.
func renderStats(resp rpc.StatsResponse) {
	fmt.Println(ui.Header.Render("Index Stats"))
	fmt.Printf("  %s %s\n", ui.Dim.Render("Path:"), resp.IndexPath)
	fmt.Printf("  %s %d\n", ui.Dim.Render("Documents:"), resp.Documents)

	if resp.Model != "" {
		fmt.Printf("  %s %s\n", ui.Dim.Render("Model:"), resp.Model)
		fmt.Printf("  %s %d\n", ui.Dim.Render("Dimensions:"), resp.Dimension)
	} else {
		fmt.Printf("  %s %s\n", ui.Dim.Render("Model:"), ui.Warning.Render("none recorded"))
	}

	if resp.LastUpdated != nil {
		updated := time.Unix(0, int64(*resp.LastUpdated*float64(time.Second)))
		fmt.Printf("  %s %s\n", ui.Dim.Render("Updated:"), updated.Format("Jan 2, 2006 at 15:04"))
	} else {
		fmt.Printf("  %s %s\n", ui.Dim.Render("Updated:"), "never")
	}
}
