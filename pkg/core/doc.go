// Package core defines the shared domain types for the glpipe ETL engine:
// GL records, pipeline runs, quality check results, lineage edges, ingestion
// watermarks and the metadata Store interface. It has no dependencies on the
// engine or storage packages so every layer can import it.
package core
