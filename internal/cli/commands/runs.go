package commands

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/dakota-labs/glpipe/pkg/core"
)

// NewRunsCommand creates the runs command.
func NewRunsCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent pipeline runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewStoreContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			runs, err := cc.Store.ListRuns(limit)
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Run ID", "Pipeline", "Status", "Started", "Completed", "Rows", "Error"})
			for _, run := range runs {
				completed := ""
				if run.CompletedAt != nil {
					completed = run.CompletedAt.Format("2006-01-02 15:04:05")
				}
				t.AppendRow(table.Row{
					run.ID,
					run.Pipeline,
					statusGlyph(run.Status),
					run.StartedAt.Format("2006-01-02 15:04:05"),
					completed,
					run.RowsProcessed,
					truncate(run.Error, 48),
				})
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum runs to list")
	return cmd
}

func statusGlyph(status core.RunStatus) string {
	switch status {
	case core.RunStatusSuccess:
		return "SUCCESS"
	case core.RunStatusFailed:
		return "FAILED"
	default:
		return "RUNNING"
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
