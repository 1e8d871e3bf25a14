// Package audit implements the access auditor. Every physical read/write
// against the warehouse is recorded for forensics; a failure to write an
// audit entry is logged to a fallback channel and never propagated to the
// operation being audited.
package audit

import (
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/dakota-labs/glpipe/pkg/core"
)

// Sink is the subset of the metadata store the recorder writes to.
type Sink interface {
	RecordAccess(entry *core.AccessEntry) error
}

// Recorder writes access audit entries. The zero value is not usable; use
// NewRecorder.
type Recorder struct {
	sink   Sink
	logger *slog.Logger
	clock  clockwork.Clock

	// ConnectionType tags every entry (e.g. "pipeline", "server").
	connectionType string
	user           string
}

// NewRecorder creates a recorder writing to sink. The logger is the fallback
// channel for sink failures; if nil, a discard logger is used.
func NewRecorder(sink Sink, connectionType, user string, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Recorder{
		sink:           sink,
		logger:         logger,
		clock:          clockwork.NewRealClock(),
		connectionType: connectionType,
		user:           user,
	}
}

// SetClock overrides the recorder clock. Used by tests.
func (r *Recorder) SetClock(clock clockwork.Clock) {
	r.clock = clock
}

// Record logs one store operation. It never returns an error: audit failures
// go to the fallback logger and the triggering operation proceeds.
func (r *Recorder) Record(operation, table string, success bool, opErr error) {
	if r == nil || r.sink == nil {
		return
	}

	entry := &core.AccessEntry{
		ConnectionType: r.connectionType,
		User:           r.user,
		Operation:      operation,
		TableName:      table,
		Success:        success,
		OccurredAt:     r.clock.Now().UTC(),
	}
	if opErr != nil {
		entry.Error = opErr.Error()
	}

	if err := r.sink.RecordAccess(entry); err != nil {
		r.logger.Error("audit write failed",
			slog.String("operation", operation),
			slog.String("table", table),
			slog.String("error", err.Error()))
	}
}
