package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dakota-labs/glpipe/internal/raw"
	"github.com/dakota-labs/glpipe/internal/warehouse"
	"github.com/dakota-labs/glpipe/pkg/core"
)

type fakeFetcher struct {
	batches [][]*core.GLRecord
	err     error
	calls   int
	since   []time.Time
}

func (f *fakeFetcher) FetchBatch(_ context.Context, _ int, since time.Time) ([]*core.GLRecord, error) {
	f.since = append(f.since, since)
	if f.err != nil {
		return nil, f.err
	}
	if f.calls >= len(f.batches) {
		return nil, nil
	}
	batch := f.batches[f.calls]
	f.calls++
	return batch, nil
}

func setupRawStore(t *testing.T) *raw.Store {
	t.Helper()
	ctx := context.Background()
	wh := warehouse.NewDuckDB()
	require.NoError(t, wh.Connect(ctx, warehouse.Config{Type: "duckdb", Path: ":memory:"}))
	t.Cleanup(func() { _ = wh.Close() })

	store := raw.NewStore(wh, nil, nil)
	require.NoError(t, store.EnsureSchema(ctx))
	return store
}

func record(id int64) *core.GLRecord {
	date := "2024-01-15"
	code := "4010"
	return &core.GLRecord{
		GLEntryID:       id,
		TransactionDate: &date,
		AccountCode:     &code,
		AccountType:     core.AccountTypeRevenue,
		CreditAmount:    500,
		NetAmount:       -500,
	}
}

func TestIngestFirstCycle(t *testing.T) {
	store := setupRawStore(t)
	ctx := context.Background()

	fetcher := &fakeFetcher{batches: [][]*core.GLRecord{{record(1), record(2)}}}
	ing := NewIngestor(fetcher, store, "test", nil)
	now := time.Date(2024, 1, 20, 12, 0, 0, 0, time.UTC)
	ing.SetClock(clockwork.NewFakeClockAt(now))

	res, err := ing.Ingest(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Fetched)
	assert.Equal(t, int64(2), res.Accepted)
	assert.Equal(t, int64(0), res.Rejected)
	assert.True(t, res.Watermark.Equal(now))

	// First cycle passes a zero since.
	require.Len(t, fetcher.since, 1)
	assert.True(t, fetcher.since[0].IsZero())

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	wm, err := store.Watermark(ctx, raw.GLRecordsTable)
	require.NoError(t, err)
	assert.Equal(t, core.WatermarkStatusSuccess, wm.Status)
	assert.True(t, wm.LastIngestedAt.Equal(now))
	assert.Equal(t, int64(2), wm.RowsProcessed)
}

func TestIngestResumesFromWatermark(t *testing.T) {
	store := setupRawStore(t)
	ctx := context.Background()

	fetcher := &fakeFetcher{batches: [][]*core.GLRecord{{record(1)}, {record(2)}}}
	ing := NewIngestor(fetcher, store, "test", nil)
	clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 20, 12, 0, 0, 0, time.UTC))
	ing.SetClock(clock)

	_, err := ing.Ingest(ctx, 100)
	require.NoError(t, err)
	firstMark := clock.Now().UTC()

	clock.Advance(time.Hour)
	_, err = ing.Ingest(ctx, 100)
	require.NoError(t, err)

	require.Len(t, fetcher.since, 2)
	assert.True(t, fetcher.since[1].Equal(firstMark), "second cycle must resume from the first watermark")
}

func TestIngestEmptyBatch(t *testing.T) {
	store := setupRawStore(t)
	fetcher := &fakeFetcher{}
	ing := NewIngestor(fetcher, store, "test", nil)

	res, err := ing.Ingest(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Fetched)

	// No rows means the watermark is not created.
	_, err = store.Watermark(context.Background(), raw.GLRecordsTable)
	assert.ErrorIs(t, err, raw.ErrWatermarkNotFound)
}

func TestIngestFetchFailureKeepsWatermark(t *testing.T) {
	store := setupRawStore(t)
	ctx := context.Background()

	ok := &fakeFetcher{batches: [][]*core.GLRecord{{record(1)}}}
	ing := NewIngestor(ok, store, "test", nil)
	clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 20, 12, 0, 0, 0, time.UTC))
	ing.SetClock(clock)
	_, err := ing.Ingest(ctx, 100)
	require.NoError(t, err)
	mark := clock.Now().UTC()

	failing := &fakeFetcher{err: errors.New("producer unreachable")}
	ing2 := NewIngestor(failing, store, "test", nil)
	clock.Advance(time.Hour)
	ing2.SetClock(clock)
	_, err = ing2.Ingest(ctx, 100)
	require.Error(t, err)

	// The failed cycle is recorded but last_ingested_at does not move.
	wm, err := store.Watermark(ctx, raw.GLRecordsTable)
	require.NoError(t, err)
	assert.Equal(t, core.WatermarkStatusFailed, wm.Status)
	assert.True(t, wm.LastIngestedAt.Equal(mark))
}

func TestIngestReplayReplacesRows(t *testing.T) {
	store := setupRawStore(t)
	ctx := context.Background()

	first := record(1)
	first.NetAmount = -500
	updated := record(1)
	updated.NetAmount = -750

	fetcher := &fakeFetcher{batches: [][]*core.GLRecord{{first}, {updated}}}
	ing := NewIngestor(fetcher, store, "test", nil)

	_, err := ing.Ingest(ctx, 100)
	require.NoError(t, err)
	res, err := ing.Ingest(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Accepted)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "replayed entry must replace, not duplicate")
}
