package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docsift/internal/pipeline"
)

var (
	analyzeOut      string
	analyzePretty   bool
	analyzeTopK     int
	analyzeCap      int
	analyzeEmbedder string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <descriptor>",
	Short: "Rank the sections of a document collection for a persona and task",
	Long: `Rank the sections of the documents listed in a JSON or YAML descriptor
against its persona and job to be done, and write the answer report.

Descriptor:
  documents:       filenames, or {filename, title} objects
  persona:         string, or {role: ...}
  job_to_be_done:  string, or {task: ...}
  data_path:       optional directory holding the documents

Unreadable documents are skipped and listed under omitted_documents. The
command fails when the embedding backend is unavailable.

Examples:
  docsift analyze challenge1b_input.json -o challenge1b_output.json
  docsift analyze run.yaml --embedder openai --top-k 10`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger(os.Stderr, cfg.LogLevel)

		if cmd.Flags().Changed("top-k") {
			cfg.TopK = analyzeTopK
		}
		if cmd.Flags().Changed("per-doc-cap") {
			cfg.MaxSectionsPerDoc = analyzeCap
		}
		if analyzeEmbedder != "" {
			cfg.Embedder = analyzeEmbedder
		}

		desc, err := pipeline.LoadDescriptor(args[0])
		if err != nil {
			return err
		}
		svc, err := newServices(cfg, log)
		if err != nil {
			return err
		}
		defer svc.Close()

		rep, err := svc.runner.Run(cmd.Context(), pipeline.Collection{
			Documents: desc.Documents,
			Query:     desc.Query(),
			Loader:    pipeline.DirLoader{Root: desc.DataDir(), MaxBytes: cfg.MaxUploadBytes},
		})
		if err != nil {
			return err
		}
		return writeJSON(analyzeOut, rep, analyzePretty, cmd)
	},
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeOut, "output", "o", "", "report file (default: stdout)")
	analyzeCmd.Flags().BoolVar(&analyzePretty, "pretty", true, "indent JSON output")
	analyzeCmd.Flags().IntVar(&analyzeTopK, "top-k", 5, "number of sections in the report")
	analyzeCmd.Flags().IntVar(&analyzeCap, "per-doc-cap", 2, "maximum sections per document, 0 for no cap")
	analyzeCmd.Flags().StringVar(&analyzeEmbedder, "embedder", "", "embedding backend: hash, openai or http (default from EMBEDDER)")
}
