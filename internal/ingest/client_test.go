package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchBatch(t *testing.T) {
	var gotQuery atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery.Store(r.URL.Query())
		assert.Equal(t, batchPath, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data": [
			{"gl_entry_id": 1, "account_type": "REVENUE", "net_amount": -500.0},
			{"gl_entry_id": 2, "account_type": "EXPENSE", "net_amount": 120.5}
		]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	since := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	records, err := c.FetchBatch(context.Background(), 100, since)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, int64(1), records[0].GLEntryID)
	assert.Equal(t, -500.0, records[0].NetAmount)

	q := gotQuery.Load().(url.Values)
	assert.Equal(t, []string{"100"}, q["limit"])
	assert.Equal(t, []string{"2024-01-10T00:00:00Z"}, q["since"])
}

func TestFetchBatchZeroSinceOmitsParam(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.False(t, r.URL.Query().Has("since"))
		_, _ = w.Write([]byte(`{"data": []}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	records, err := c.FetchBatch(context.Background(), 10, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestFetchBatchRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "temporarily unavailable", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"data": [{"gl_entry_id": 7}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, WithMaxRetries(5))
	records, err := c.FetchBatch(context.Background(), 10, time.Time{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchBatchClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "no such endpoint", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, WithMaxRetries(5))
	_, err := c.FetchBatch(context.Background(), 10, time.Time{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Equal(t, int32(1), calls.Load(), "4xx must not be retried")
}

func TestFetchBatchMalformedBodyIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"data": [`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, WithMaxRetries(5))
	_, err := c.FetchBatch(context.Background(), 10, time.Time{})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}
