package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Semantic search over a case's indexed corpora",
	Long: `Embed the query and return the nearest indexed documents within the
configured distance threshold.`,
	Example: `  radtriage search --case c-2026-014 "powershell download"
  radtriage search --case c-2026-014 --top-k 10 --output json "autorun temp"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		caseID, err := requireCaseID(cmd)
		if err != nil {
			return err
		}

		svc, err := buildSemantic()
		if err != nil {
			return err
		}

		topK, _ := cmd.Flags().GetInt("top-k")
		results, err := svc.Query(cmd.Context(), caseID, args[0], topK)
		if err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("output")
		if format == "json" {
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			return encoder.Encode(map[string]interface{}{"results": results})
		}

		if len(results) == 0 {
			fmt.Println("No results within the distance threshold.")
			return nil
		}
		for i, hit := range results {
			fmt.Printf("%2d. distance %.3f [%s]\n    %s\n", i+1, hit.Distance, hit.Metadata["type"], hit.Text)
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().Int("top-k", 0, "number of nearest neighbors to consider (default from config)")
	searchCmd.Flags().String("output", "text", "output format: text, json")
	rootCmd.AddCommand(searchCmd)
}
