// Package reconciler wraps compactor.Reconcile in a ticker loop so
// operators get orphan visibility without polling GET /reconcile.
//
// The sweep is advisory only: it logs what it finds and updates
// metrics.OrphanCount, but never deletes. Deletion stays an explicit
// operator action (DELETE /cleanup, or the cleanup CLI subcommand)
// because an orphan is only safe to remove once its removal is durably
// recorded in the transaction log (spec §4.4), and a background loop
// racing its own Cleanup call against a fresh compaction would do
// unnecessary repeated reconcile-replay work for no benefit.
package reconciler
