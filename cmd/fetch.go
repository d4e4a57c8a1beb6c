package cmd

import (
	"github.com/spf13/cobra"
)

var fetchInput string

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Run the full pipeline over a JSONL set of article links",
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, err := harvester.Harvest(cmd.Context(), fetchInput)
		return err
	},
}

func init() {
	fetchCmd.Flags().StringVar(&fetchInput, "input", "", "path to the input links JSONL file")
	_ = fetchCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(fetchCmd)
}
