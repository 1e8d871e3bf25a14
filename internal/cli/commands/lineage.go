package commands

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/dakota-labs/glpipe/pkg/core"
)

// NewLineageCommand creates the lineage command.
func NewLineageCommand() *cobra.Command {
	var (
		tableFlag string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "lineage",
		Short: "Show recorded lineage edges",
		Long: `Show source-to-target lineage edges recorded by pipeline runs.
Use --table to restrict to edges producing one target table.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewStoreContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			var edges []*core.LineageEdge
			if tableFlag != "" {
				edges, err = cc.Store.LineageForTable(tableFlag)
			} else {
				edges, err = cc.Store.ListLineage(limit)
			}
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Source", "Target", "Kind", "Run ID", "Recorded"})
			for _, e := range edges {
				t.AppendRow(table.Row{
					e.SourceTable,
					e.TargetTable,
					e.TransformKind,
					e.RunID,
					e.CreatedAt.Format("2006-01-02 15:04:05"),
				})
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&tableFlag, "table", "", "Only edges producing this target table")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum edges to list")
	return cmd
}
