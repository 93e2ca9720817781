// Command docsift runs the multimodal document search service and its
// maintenance commands.
package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "docsift",
	Short:         "Multimodal document ingestion and search",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func newLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, nil))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		newLogger(os.Stderr).Error("command failed", "error", err)
		os.Exit(1)
	}
}
