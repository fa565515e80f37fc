package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Ingest the case corpora into the semantic index",
	Long: `Embed the case's flattened event and registry text corpora and store
them in the semantic index. Every run generates fresh document ids, so
reindexing never collides with earlier ingests.`,
	Example: `  radtriage index --case c-2026-014`,
	RunE: func(cmd *cobra.Command, args []string) error {
		caseID, st, err := requireCase(cmd)
		if err != nil {
			return err
		}

		p, err := buildPipeline()
		if err != nil {
			return err
		}

		count, err := p.IndexCase(cmd.Context(), st, caseID)
		if err != nil {
			return err
		}
		fmt.Printf("Indexed %d documents for case %s\n", count, caseID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)
}
