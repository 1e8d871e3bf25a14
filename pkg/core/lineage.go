package core

import "time"

// TransformKind classifies how a target table was derived from its source.
type TransformKind string

// Transformation kinds recorded on lineage edges.
const (
	TransformDirect      TransformKind = "DIRECT"
	TransformAggregation TransformKind = "AGGREGATION"
	TransformJoin        TransformKind = "JOIN"
	TransformFilter      TransformKind = "FILTER"
)

// LineageEdge records that TargetTable was derived from SourceTable by a
// given transformation within a run. Edges are append-only and used for
// audit and impact analysis.
type LineageEdge struct {
	ID             string
	RunID          string
	SourceTable    string
	TargetTable    string
	TransformKind  TransformKind
	TransformLogic string
	CreatedAt      time.Time
}
