package main

import (
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/docsift/docsift/internal/config"
)

var showConfigCmd = &cobra.Command{
	Use:   "show-config",
	Short: "Print the effective configuration",
	Long: `Prints the merged configuration as TOML: built-in defaults, the
settings file, and environment variables, in rising precedence.
Secrets are redacted.`,
	RunE: runShowConfig,
}

var updateConfigCmd = &cobra.Command{
	Use:   "update-config <key> <value>",
	Short: "Persist one settings value",
	Long: `Writes a dot-notation key (for example chunk.size or blob.bucket)
to the settings file. Environment variables still override stored
values at load time.`,
	Args: cobra.ExactArgs(2),
	RunE: runUpdateConfig,
}

func init() {
	rootCmd.AddCommand(showConfigCmd)
	rootCmd.AddCommand(updateConfigCmd)
}

func runShowConfig(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()

	out, err := toml.Marshal(cfg.Display())
	if err != nil {
		return fmt.Errorf("marshal configuration: %w", err)
	}
	cmd.Print(string(out))
	return nil
}

func runUpdateConfig(cmd *cobra.Command, args []string) error {
	settings, err := config.OpenSettings(config.DefaultSettingsPath())
	if err != nil {
		return err
	}
	if err := settings.Set(args[0], args[1]); err != nil {
		return err
	}
	cmd.Printf("%s = %s (%s)\n", args[0], args[1], settings.Path())
	return nil
}
