/*
Package compactor implements the Compaction Orchestrator (C4, spec §4.4),
wiring pkg/schema, pkg/coordinator, pkg/partition, pkg/encoder, and
pkg/txlog into the seven-step compaction sequence: schema fetch, snapshot,
acquire, per-partition encode (fanned out with golang.org/x/sync/errgroup),
commit, publish, reclaim.

Run returns failure only for pre-commit problems. Once the transaction
log has been appended (the linearization point, spec §4.4 step 5), the
lake has already advanced; publish and reclaim failures are recorded in
Result.PublishDeferred and Result.ReclaimDeferred and logged, never
returned through Run's error return (spec §7 propagation policy). A
failed reclaim also shows up later as an orphan in Reconcile. Reconcile
does not check whether the artifacts the log references exist, so a
failed publish is visible only in the Result and the log line.

Reconcile and Cleanup implement the orphan detection and repair
described in spec §4.4 "Reconciliation": Reconcile is pure relative to
its two inputs (replay of the log, current staging listing); Cleanup
deletes what Reconcile finds and is safe to call at any time.
*/
package compactor
