package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Ramdan0505/radlab-preinvest/internal/playbook"
)

var playbookCmd = &cobra.Command{
	Use:   "playbook",
	Short: "Re-render the playbook from the stored ranking",
	Long: `Render the pre-investigation playbook from the case's stored Top-N
document without re-running scoring, and print it.`,
	Example: `  radtriage playbook --case c-2026-014`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, st, err := requireCase(cmd)
		if err != nil {
			return err
		}

		doc, err := st.ReadTopN()
		if err != nil {
			return fmt.Errorf("no ranking stored for this case, run score first: %w", err)
		}

		text := playbook.New().Render(doc)
		if err := st.WritePlaybook(text); err != nil {
			return err
		}
		fmt.Print(text)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(playbookCmd)
}
