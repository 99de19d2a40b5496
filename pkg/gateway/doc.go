/*
Package gateway is the Ingestion Gateway external collaborator (spec §1,
§6): the only writer of the data/ staging namespace. Put and PutBatch
validate against the current schema (pkg/schema) and write a single JSON
document or a newline-delimited batch respectively, keyed by a UUID so
staging keys are never reused (a property pkg/compactor's Cleanup relies
on for idempotent orphan deletion).
*/
package gateway
