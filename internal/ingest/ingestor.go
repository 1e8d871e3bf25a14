package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/dakota-labs/glpipe/internal/raw"
	"github.com/dakota-labs/glpipe/pkg/core"
)

// Fetcher is the producer-facing side of an ingestion. *Client satisfies it.
type Fetcher interface {
	FetchBatch(ctx context.Context, limit int, since time.Time) ([]*core.GLRecord, error)
}

// Result summarizes one ingestion cycle.
type Result struct {
	Fetched   int64
	Accepted  int64
	Rejected  int64
	Watermark time.Time
}

// Ingestor drives the fetch-upsert-advance cycle for the raw GL table.
type Ingestor struct {
	fetcher   Fetcher
	store     *raw.Store
	logger    *slog.Logger
	clock     clockwork.Clock
	sourceTag string
}

// NewIngestor wires a fetcher to the raw store. sourceTag labels the rows
// this ingestor lands.
func NewIngestor(fetcher Fetcher, store *raw.Store, sourceTag string, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Ingestor{
		fetcher:   fetcher,
		store:     store,
		logger:    logger,
		clock:     clockwork.NewRealClock(),
		sourceTag: sourceTag,
	}
}

// SetClock replaces the wall clock, for tests.
func (i *Ingestor) SetClock(c clockwork.Clock) { i.clock = c }

// Ingest runs one cycle: read the watermark, fetch the next batch, upsert it
// into raw.gl_records, and advance the watermark. A missing watermark means
// first ingestion and fetches from the beginning. The watermark only
// advances after the upsert commits, so a failed cycle re-fetches the same
// batch next time.
func (i *Ingestor) Ingest(ctx context.Context, limit int) (*Result, error) {
	var since time.Time
	wm, err := i.store.Watermark(ctx, raw.GLRecordsTable)
	switch {
	case err == nil:
		since = wm.LastIngestedAt
	case errors.Is(err, raw.ErrWatermarkNotFound):
		i.logger.Info("no watermark found, ingesting from the beginning")
	default:
		return nil, err
	}

	records, err := i.fetcher.FetchBatch(ctx, limit, since)
	if err != nil {
		i.markFailed(ctx, since)
		return nil, err
	}
	if len(records) == 0 {
		i.logger.Info("no new records", slog.Time("since", since))
		return &Result{Watermark: since}, nil
	}

	now := i.clock.Now().UTC()
	for _, r := range records {
		r.IngestedAt = now
	}

	accepted, rejected, err := i.store.Upsert(ctx, records, i.sourceTag)
	if err != nil {
		i.markFailed(ctx, since)
		return nil, err
	}

	next := &core.Watermark{
		TableName:      raw.GLRecordsTable,
		LastIngestedAt: now,
		RowsProcessed:  accepted,
		Status:         core.WatermarkStatusSuccess,
		UpdatedAt:      now,
	}
	if err := i.store.SetWatermark(ctx, next); err != nil {
		return nil, fmt.Errorf("ingested %d records but failed to advance watermark: %w", accepted, err)
	}

	i.logger.Info("ingestion complete",
		slog.Int("fetched", len(records)),
		slog.Int64("accepted", accepted),
		slog.Int64("rejected", rejected),
		slog.Time("watermark", now))

	return &Result{
		Fetched:   int64(len(records)),
		Accepted:  accepted,
		Rejected:  rejected,
		Watermark: now,
	}, nil
}

// markFailed records a FAILED watermark without moving last_ingested_at, so
// the next cycle retries from the same point. Best effort.
func (i *Ingestor) markFailed(ctx context.Context, since time.Time) {
	wm := &core.Watermark{
		TableName:      raw.GLRecordsTable,
		LastIngestedAt: since,
		Status:         core.WatermarkStatusFailed,
		UpdatedAt:      i.clock.Now().UTC(),
	}
	if err := i.store.SetWatermark(ctx, wm); err != nil {
		i.logger.Error("failed to record failed watermark", slog.Any("error", err))
	}
}
