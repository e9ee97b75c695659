package cli

import (
	"github.com/spf13/cobra"
)

// statusCmd ensures the index exists and is initialized.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Initialize the index and report readiness",
	Long: `Ensure the index store exists and its schema is initialized.

Reads a JSON payload with indexPath and model on stdin and writes a JSON
response on stdout. Safe to call repeatedly.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := dispatchStdin("status")
		if err != nil {
			return err
		}
		return writeResponse(resp)
	},
}
