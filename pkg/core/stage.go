package core

import (
	"fmt"
	"time"
)

// Stage identifies one layer boundary of the medallion pipeline.
type Stage string

// Pipeline stages in execution order.
const (
	StageRawToStaging  Stage = "raw_to_staging"
	StageStagingToFact Stage = "staging_to_fact"
	StageFactToMarts   Stage = "fact_to_marts"
)

// Stages returns all stages in execution order.
func Stages() []Stage {
	return []Stage{StageRawToStaging, StageStagingToFact, StageFactToMarts}
}

// ParseStage converts a CLI-friendly stage name ("raw-to-staging") or the
// canonical form ("raw_to_staging") into a Stage.
func ParseStage(s string) (Stage, error) {
	switch s {
	case "raw_to_staging", "raw-to-staging":
		return StageRawToStaging, nil
	case "staging_to_fact", "staging-to-fact":
		return StageStagingToFact, nil
	case "fact_to_marts", "fact-to-marts":
		return StageFactToMarts, nil
	}
	return "", fmt.Errorf("unknown stage %q (expected raw-to-staging, staging-to-fact or fact-to-marts)", s)
}

// StageResult summarizes one engine stage invocation. A non-zero Rejected
// count and any blocking quality failure are surfaced here, never hidden.
type StageResult struct {
	RunID          string
	Stage          Stage
	RowsIn         int64
	RowsOut        int64
	Rejected       int64
	QualityResults []*QualityCheckResult
	LineageEdges   []*LineageEdge
	StartedAt      time.Time
	CompletedAt    time.Time
}

// BlockingFailures returns the ids of blocking quality checks that failed.
func (r *StageResult) BlockingFailures() []string {
	var ids []string
	for _, qr := range r.QualityResults {
		if qr.Blocking && qr.Status == CheckStatusFail {
			ids = append(ids, qr.ID)
		}
	}
	return ids
}
