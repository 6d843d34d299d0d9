// captionsync keeps image training captions and their translations in step.
package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var configFile string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "captionsync",
		Short: "Caption editor backend with sentence-level translation sync",
		Long: `captionsync serves the caption editing API.

A caption is edited through its translation: every translated sentence is
aligned with one source sentence, and edits to the translation are synced
back into the source caption one sentence at a time.

Commands:
  serve     Start the HTTP API
  sync      Replace a caption's translation and sync it back to the source
  segment   Split caption text into sentences
  version   Print version information`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file (default <DATA_PATH>/captionsync.yaml)")

	root.AddCommand(
		newServeCmd(),
		newSyncCmd(),
		newSegmentCmd(),
		newVersionCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}
