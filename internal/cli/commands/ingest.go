package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dakota-labs/glpipe/internal/ingest"
)

// NewIngestCommand creates the ingest command.
func NewIngestCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Fetch a batch of GL records from the producer into the raw layer",
		Long: `Fetch up to --limit GL records created after the current ingestion
watermark, upsert them into raw.gl_records keyed by gl_entry_id, and
advance the watermark. A failed cycle leaves the watermark unchanged so
the next ingest retries the same batch.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if limit <= 0 {
				limit = cc.Cfg.Producer.BatchSize
			}

			client := ingest.NewClient(cc.Cfg.Producer.URL, cc.Logger)
			ingestor := ingest.NewIngestor(client, cc.Raw, "producer-api", cc.Logger)

			res, err := ingestor.Ingest(commandContext(cmd), limit)
			if err != nil {
				return fmt.Errorf("ingestion failed: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Fetched %d records: %d accepted, %d rejected (watermark %s)\n",
				res.Fetched, res.Accepted, res.Rejected, res.Watermark.Format("2006-01-02 15:04:05"))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum records to fetch (default: producer.batch_size)")
	return cmd
}
