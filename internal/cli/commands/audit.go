package commands

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// NewAuditCommand creates the audit command.
func NewAuditCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show the access audit trail",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewStoreContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			entries, err := cc.Store.ListAccess(limit)
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"When", "Conn", "User", "Op", "Table", "OK", "Error"})
			for _, e := range entries {
				t.AppendRow(table.Row{
					e.OccurredAt.Format("2006-01-02 15:04:05"),
					e.ConnectionType,
					e.User,
					e.Operation,
					e.TableName,
					e.Success,
					truncate(e.Error, 40),
				})
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum entries to list")
	return cmd
}
