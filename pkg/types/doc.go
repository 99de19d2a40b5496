/*
Package types holds the data model shared across Lakeside's compaction
subsystem: transaction log entries and file actions (§3 Transaction Entry,
FileAction), the coordinator's durable lock state (§3 Coordinator State),
and the schema/record shapes the orchestrator passes to the external
schema manager and columnar encoder.

These types carry no behavior. Validation, persistence, and state
transitions live in the packages that own each type: txlog owns
TransactionEntry, coordinator owns CoordinatorState, schema owns Schema.
*/
package types
