package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewInitDBCommand creates the initdb command.
func NewInitDBCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "initdb",
		Short: "Create warehouse schemas and migrate the metadata store",
		Long: `Create the raw, staging and marts schemas in the warehouse, the raw
GL tables and ingestion watermark, and apply metadata store migrations.
Safe to run repeatedly.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := commandContext(cmd)
			if err := cc.Raw.EnsureSchema(ctx); err != nil {
				return err
			}
			if err := cc.Engine.EnsureSchemas(ctx); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Warehouse schemas created and metadata store migrated.")
			return nil
		},
	}
}
