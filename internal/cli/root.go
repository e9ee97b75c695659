// Package cli implements the command-line interface for memdex.
package cli

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/benreceveur/memdex/internal/config"
	"github.com/benreceveur/memdex/internal/ui"
)

var (
	// Version information set at build time
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// Global flags
	cfgFile string
	debug   bool
)

// SetVersionInfo sets the version information from build flags.
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "memdex <command>",
	Short: "Persistent semantic memory index",
	Long: `memdex is a persistent semantic memory index. It stores text documents
as embedding vectors in a local SQLite index and answers nearest-neighbor
queries by cosine similarity.

Each command reads a JSON payload on stdin and writes a single JSON
response on stdout, so a coordinating process can drive it directly:

  echo '{"indexPath":".memdex","model":"nomic-embed-text"}' | memdex status

  echo '{"indexPath":".memdex","model":"nomic-embed-text",
         "documents":[{"id":"note-1","text":"remember this"}]}' | memdex upsert

  echo '{"indexPath":".memdex","model":"nomic-embed-text",
         "query":"what should I remember?"}' | memdex search

Use 'memdex serve' to keep one process alive across many requests; the
in-memory search cache only pays off in that mode.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if debug {
			log.SetLevel(log.DebugLevel)
			log.Debug("Debug logging enabled")
		}

		if err := config.Load(cfgFile); err != nil {
			log.Warn("Failed to load config", "error", err)
		}

		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	ui.InitLogger()

	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/memdex/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	// Add subcommands
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(upsertCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// versionCmd shows version information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("memdex %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}
