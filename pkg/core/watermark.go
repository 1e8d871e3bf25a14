package core

import "time"

// Watermark ingestion status values.
const (
	WatermarkStatusSuccess = "SUCCESS"
	WatermarkStatusFailed  = "FAILED"
)

// Watermark holds the incremental-ingestion high-water mark for one raw
// table. It is read before each ingestion to bound the fetch and is
// overwritten, not appended, on success.
type Watermark struct {
	TableName      string
	LastIngestedAt time.Time
	RowsProcessed  int64
	Status         string
	UpdatedAt      time.Time
}
