package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docsift/internal/parser"
	"github.com/dgallion1/docsift/internal/pipeline"
	"github.com/dgallion1/docsift/internal/report"
)

var (
	outlineOut    string
	outlinePretty bool
)

var outlineCmd = &cobra.Command{
	Use:   "outline <file|dir>",
	Short: "Print the heading outline of a document or a directory of documents",
	Long: `Extract the TITLE/H1/H2/H3 outline of a document from its typography.

For a single file the outline is written to stdout, or to --output.
For a directory every supported file is processed and <name>.json is
written into --output (default: the input directory). Unreadable files are
logged and skipped; the command then exits non-zero.

Examples:
  docsift outline report.pdf --pretty
  docsift outline ./pdfs -o ./outlines`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger(os.Stderr, cfg.LogLevel)
		ex := newExtractor(cfg, log)

		info, err := os.Stat(args[0])
		if err != nil {
			return err
		}
		if !info.IsDir() {
			rep, err := outlineFile(ex, args[0])
			if err != nil {
				return err
			}
			return writeJSON(outlineOut, rep, outlinePretty, cmd)
		}

		outDir := outlineOut
		if outDir == "" {
			outDir = args[0]
		}
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return err
		}
		files, err := supportedFiles(args[0])
		if err != nil {
			return err
		}

		failed := 0
		for _, path := range files {
			rep, err := outlineFile(ex, path)
			if err != nil {
				log.Warn("document skipped", "document", filepath.Base(path), "error", err)
				failed++
				continue
			}
			stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			dest := filepath.Join(outDir, stem+".json")
			if err := writeJSON(dest, rep, outlinePretty, cmd); err != nil {
				return err
			}
			log.Info("outline written", "document", filepath.Base(path), "output", dest, "headings", len(rep.Outline))
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d documents unreadable", failed, len(files))
		}
		return nil
	},
}

func init() {
	outlineCmd.Flags().StringVarP(&outlineOut, "output", "o", "", "output file (single document) or directory")
	outlineCmd.Flags().BoolVar(&outlinePretty, "pretty", false, "indent JSON output")
}

func outlineFile(ex *pipeline.Extractor, path string) (*report.OutlineReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	_, ol, err := ex.Extract(filepath.Base(path), data)
	if err != nil {
		return nil, err
	}
	return report.BuildOutline(ol), nil
}

func supportedFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() && parser.IsSupportedExtension(e.Name()) {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	if len(files) == 0 {
		return nil, errors.New("no supported documents in " + dir)
	}
	return files, nil
}

// writeJSON writes v to path, or to the command's stdout when path is empty.
func writeJSON(path string, v any, pretty bool, cmd *cobra.Command) error {
	if path == "" || path == "-" {
		return report.Write(cmd.OutOrStdout(), v, pretty)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := report.Write(f, v, pretty); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
