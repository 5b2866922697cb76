// Package cli implements the ragpipe command-line interface.
package cli

import (
	"github.com/spf13/cobra"
)

var version = "dev"

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "ragpipe",
	Short: "Document question answering service",
	Long: `ragpipe ingests documents, indexes their content as embeddings
and answers questions about them over a streaming chat API.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.toml", "path to the configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
