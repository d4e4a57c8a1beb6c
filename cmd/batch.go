package cmd

import (
	"github.com/spf13/cobra"
)

var batchContent string

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Split an existing content set into batch request files without refetching",
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, err := harvester.SplitContentSet(batchContent)
		return err
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchContent, "content", "data/content.jsonl", "path to a previously written content set")
	rootCmd.AddCommand(batchCmd)
}
