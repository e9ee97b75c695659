package cli

import (
	"github.com/spf13/cobra"
)

// upsertCmd indexes a batch of documents.
var upsertCmd = &cobra.Command{
	Use:   "upsert",
	Short: "Index a batch of documents",
	Long: `Embed and store a batch of documents, skipping any whose content
hash is unchanged.

Reads a JSON payload on stdin:

  {"indexPath": ".memdex", "model": "nomic-embed-text",
   "documents": [{"id": "note-1", "text": "...", "metadata": {...}}],
   "batchSize": 8}

and writes {"status": "ok", "updated": N} on stdout.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := dispatchStdin("upsert")
		if err != nil {
			return err
		}
		return writeResponse(resp)
	},
}
