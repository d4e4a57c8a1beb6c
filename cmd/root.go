// Package cmd defines the harvester command tree.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sciencewire/article-harvester/internal/app"
	"github.com/sciencewire/article-harvester/internal/config"
	"github.com/sciencewire/article-harvester/internal/logging"
)

var (
	cfgFile string

	harvester *app.App
)

var rootCmd = &cobra.Command{
	Use:   "harvester",
	Short: "Fetch article URLs, extract their text, and prepare batch summarization inputs",
	Long: `harvester drives a bounded-concurrency pipeline over a JSONL set of
article links: each link is fetched with retry-aware error handling, its
readable text is extracted, and the aggregated results are written as a
content set plus chunked batch request files for bulk summarization.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		logger, err := logging.New(cfg.Logging.Development)
		if err != nil {
			return err
		}
		harvester, err = app.New(cfg, logger)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, _ []string) {
		if harvester != nil {
			harvester.Close()
		}
	},
}

// ExecuteContext runs the command tree under ctx and reports the
// failure, if any. Cancellation of ctx stops in-flight work cleanly.
func ExecuteContext(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file (defaults + env otherwise)")
}
