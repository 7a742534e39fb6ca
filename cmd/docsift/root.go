package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docsift/internal/config"
)

var (
	envFile  string
	logLevel string

	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:   "docsift",
	Short: "Document outline extraction and persona-driven section ranking",
	Long: `docsift recovers the heading structure of PDF, Markdown, HTML, DOCX and
text documents from their typography, and ranks the sections of a document
collection against a persona and a job to be done.

Commands:
  outline   print the TITLE/H1/H2/H3 outline of documents
  analyze   rank a collection described by a JSON or YAML descriptor
  serve     run the HTTP API`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(envFile); err != nil {
			return err
		}
		cfg = config.Load()
		if logLevel != "" {
			var l slog.Level
			if err := l.UnmarshalText([]byte(logLevel)); err != nil {
				return fmt.Errorf("invalid --log-level %q", logLevel)
			}
			cfg.LogLevel = l
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error (default from LOG_LEVEL)")

	rootCmd.AddCommand(outlineCmd, analyzeCmd, serveCmd)
}
