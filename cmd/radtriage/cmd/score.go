package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Run triage scoring over the case store",
	Long: `Regenerate the findings document, the ranked Top-N document and the
playbook from the case's frozen event and registry stores. Scoring is
deterministic: re-running over unchanged stores reproduces identical
output.`,
	Example: `  radtriage score --case c-2026-014`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, st, err := requireCase(cmd)
		if err != nil {
			return err
		}

		p, err := buildPipeline()
		if err != nil {
			return err
		}

		findings, topN, err := p.Score(st)
		if err != nil {
			return err
		}

		fmt.Printf("Findings: %d, ranked items: %d\n", len(findings.Findings), len(topN.Items))
		for i, item := range topN.Items {
			fmt.Printf("%2d. [%s/%s] score %d: %s\n", i+1, item.Source, item.Kind, item.Score, item.Text)
		}
		fmt.Printf("Documents written to %s\n", st.Dir())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scoreCmd)
}
