/*
Package metrics exposes Lakeside's Prometheus metrics: compaction cycle
duration and outcome counts, coordinator contention and stale-lock
recovery counts, transaction log CAS retries and version gaps, and the
post-commit anomaly counters (PublishDeferred, ReclaimDeferred, orphan
count) that back the §6 GET /reconcile surface.

Handler() returns the standard promhttp handler for mounting at /metrics.
Timer is a small helper for observing histogram durations around a
compaction step.
*/
package metrics
