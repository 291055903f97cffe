// Package main provides the scanvault CLI entrypoint.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/scanvault/scanvault/internal/config"
	"github.com/scanvault/scanvault/internal/convert"
	"github.com/scanvault/scanvault/internal/index"
	"github.com/scanvault/scanvault/internal/observability"
	"github.com/scanvault/scanvault/internal/ocr"
	"github.com/scanvault/scanvault/internal/pipeline"
	"github.com/scanvault/scanvault/internal/store"
)

var (
	cfgFile    string
	outputJSON bool
	verbose    bool

	cfg    *config.Config
	logger *observability.Logger
)

var rootCmd = &cobra.Command{
	Use:   "scanvault",
	Short: "Document ingestion and indexing pipeline",
	Long: `scanvault ingests a directory of documents (PDF, DOC/DOCX, XLS/XLSX,
JPG/PNG), normalizes each into a compressed PDF, extracts per-page text and
word-level layout via OCR, stores a searchable sqlite index, and uploads the
final artifact to an S3-compatible object store.

Re-running over the same corpus is safe: fully indexed files are skipped.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		level := cfg.Observability.LogLevel
		if verbose {
			level = "debug"
		}
		format := cfg.Observability.LogFormat
		if outputJSON {
			format = "json"
		}

		logger = observability.NewLogger(observability.LogConfig{
			Level:       level,
			Format:      format,
			ServiceName: "scanvault",
		})
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Scan the corpus root and process every new file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if _, err := os.Stat(cfg.Scan.Root); os.IsNotExist(err) {
			if err := os.MkdirAll(cfg.Scan.Root, 0o755); err != nil {
				return fmt.Errorf("create scan root: %w", err)
			}
			fmt.Printf("Created empty scan root %q. Put files there and run again.\n", cfg.Scan.Root)
			return nil
		}

		idx, err := index.Open(cfg.Index.Path, cfg.Index.BusyTimeoutMS)
		if err != nil {
			return err
		}
		defer idx.Close()

		remote, err := store.New(cfg.Store, logger)
		if err != nil {
			return err
		}

		tasks, err := pipeline.Scan(cfg.Scan.Root)
		if err != nil {
			return err
		}
		if len(tasks) == 0 {
			fmt.Println("No files to process.")
			return nil
		}

		runner := convert.NewExecRunner(logger)
		processor := pipeline.NewProcessor(
			cfg.Processing.ScratchDir,
			idx,
			remote,
			convert.NewNormalizer(runner, logger),
			convert.NewCompressor(runner, logger),
			ocr.NewRecognizer(ocr.NewTesseract(cfg.OCR.Languages), logger),
			logger,
		)

		pool := pipeline.NewPool(cfg.Processing.Workers, processor, logger, !outputJSON)
		summary := pool.Run(ctx, tasks)

		fmt.Printf("Done: %d processed (%d degraded), %d skipped, %d failed of %d files.\n",
			summary.Processed, summary.Degraded, summary.Skipped, summary.Failed, summary.Total)

		// Per-file failures are best-effort batch semantics, not a run
		// failure.
		return nil
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Provision the index schema and the artifact bucket",
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := index.Open(cfg.Index.Path, cfg.Index.BusyTimeoutMS)
		if err != nil {
			return err
		}
		defer idx.Close()

		remote, err := store.New(cfg.Store, logger)
		if err != nil {
			return err
		}
		if err := remote.EnsureBucket(cmd.Context()); err != nil {
			return err
		}

		stats, err := idx.Stats(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Index ready at %s (%d files, %d pages). Bucket %q ready.\n",
			cfg.Index.Path, stats.Files, stats.Pages, cfg.Store.Bucket)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: env vars only)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "log in JSON format, no progress bar")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(initCmd)
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
