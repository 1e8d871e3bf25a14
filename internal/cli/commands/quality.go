package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// NewQualityCommand creates the quality command.
func NewQualityCommand() *cobra.Command {
	var runID string

	cmd := &cobra.Command{
		Use:   "quality",
		Short: "Show quality check results for a run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if runID == "" {
				return fmt.Errorf("--run is required")
			}

			cc, cleanup, err := NewStoreContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if _, err := cc.Store.GetRun(runID); err != nil {
				return err
			}
			results, err := cc.Store.QualityResultsForRun(runID)
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Table", "Column", "Type", "Status", "Blocking", "Expected", "Actual"})
			for _, res := range results {
				t.AppendRow(table.Row{
					res.TableName,
					res.ColumnName,
					res.CheckType,
					res.Status,
					res.Blocking,
					res.Expected,
					res.Actual,
				})
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&runID, "run", "", "Run id to show quality results for")
	return cmd
}
