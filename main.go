// Command scan-normalizer normalizes the geometry of scanned page rasters:
// deskew, content bounds, shadow-aware cropping, and physical-size metadata.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"scan-normalizer/internal/config"
	"scan-normalizer/internal/runner"
	"scan-normalizer/internal/version"
)

var (
	configPath string
	verbose    bool
)

func main() {
	root := &cobra.Command{
		Use:     "scan-normalizer",
		Short:   "Page geometry normalization for scanned book rasters",
		Version: version.Version,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: ./normalizer.yaml)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(runCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runCommand() *cobra.Command {
	var (
		inputDir        string
		outputDir       string
		estimatesPath   string
		sizeTablePath   string
		workers         int
		assumeFullFrame bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Normalize every page raster in a directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			// Flags override the config file.
			if inputDir != "" {
				cfg.InputDir = inputDir
			}
			if outputDir != "" {
				cfg.OutputDir = outputDir
			}
			if estimatesPath != "" {
				cfg.EstimatesPath = estimatesPath
			}
			if sizeTablePath != "" {
				cfg.SizeTablePath = sizeTablePath
			}
			if cmd.Flags().Changed("workers") {
				cfg.Workers = workers
			}
			if cmd.Flags().Changed("assume-full-frame") {
				cfg.AssumeFullFrame = assumeFullFrame
			}
			if cfg.InputDir == "" {
				return fmt.Errorf("no input directory (set --input or input_dir)")
			}

			log := logrus.New()
			if verbose {
				log.SetLevel(logrus.DebugLevel)
			}

			summary, err := runner.New(cfg, log).Run()
			if err != nil {
				return err
			}

			fmt.Printf("\n%d pages, %d normalized, %d failed (run %s)\n",
				summary.Pages, summary.Results.Len(), len(summary.Failures), summary.RunID)
			if len(summary.Failures) > 0 {
				for _, f := range summary.Failures {
					fmt.Printf("  %s [%s] %s\n", f.PageID, f.Phase, f.Message)
				}
				return fmt.Errorf("%d pages failed", len(summary.Failures))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&inputDir, "input", "i", "", "directory of source rasters")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "directory for normalized output")
	cmd.Flags().StringVar(&estimatesPath, "estimates", "", "rough-bounds estimate file (JSON)")
	cmd.Flags().StringVar(&sizeTablePath, "size-table", "", "extra standard page sizes (JSON)")
	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent pages (0 = GOMAXPROCS)")
	cmd.Flags().BoolVar(&assumeFullFrame, "assume-full-frame", false, "synthesize full-frame estimates for pages without one")
	return cmd
}
