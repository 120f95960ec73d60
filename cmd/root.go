package cmd

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	configPath string
	debug      bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: search parley.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Emit debug logs")
}

var rootCmd = &cobra.Command{
	Use:   "parley",
	Short: "Self-hosted streaming chat server",
	Long: `parley is a self-hosted web chat server for OpenAI-compatible
providers, with streaming responses, tool calling over MCP, and
SQLite-backed dialog history.

Examples:
  parley serve --config parley.yaml
  parley token --user 1
  parley models`,
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := zerolog.InfoLevel
		if debug {
			level = zerolog.DebugLevel
		}
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
