package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/benreceveur/memdex/internal/rpc"
	"github.com/benreceveur/memdex/internal/ui"
)

var searchPretty bool

// searchCmd ranks stored documents against a query.
var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search the index with a natural language query",
	Long: `Embed a query and rank all stored documents by cosine similarity.

Reads a JSON payload on stdin:

  {"indexPath": ".memdex", "model": "nomic-embed-text",
   "query": "...", "limit": 8, "minScore": 0}

and writes {"status": "ok", "results": [...]} on stdout, ordered by
descending score. Use --pretty for human-readable output.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := dispatchStdin("search")
		if err != nil {
			return err
		}

		if searchPretty {
			if sr, ok := resp.(rpc.SearchResponse); ok {
				renderResults(sr)
				return nil
			}
		}
		return writeResponse(resp)
	},
}

func init() {
	searchCmd.Flags().BoolVar(&searchPretty, "pretty", false, "render results for humans instead of JSON")
}

// renderResults prints search results with terminal styling.
func renderResults(resp rpc.SearchResponse) {
	if len(resp.Results) == 0 {
		fmt.Println(ui.Dim.Render("No results."))
		return
	}

	fmt.Println(ui.Header.Render(fmt.Sprintf("Found %d results", len(resp.Results))))
	for i, r := range resp.Results {
		fmt.Printf("[%d] %s %s\n", i+1, ui.ResultID.Render(r.ID), ui.FormatScore(r.Score))
		if len(r.Metadata) > 0 {
			meta, err := json.Marshal(r.Metadata)
			if err == nil {
				fmt.Println(ui.ResultMeta.Render(string(meta)))
			}
		}
	}
}
