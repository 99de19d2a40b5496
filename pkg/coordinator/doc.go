/*
Package coordinator implements the Compaction Coordinator (spec §4.3): a
singleton durable mutex with two states, IDLE and HELD, backed by a JSON
object at _lock/<name>.json.

Spec §5 enumerates schema/, data/, parquet/, and _log/ as the object-store
namespaces but is silent on where CoordinatorState lives; this package
resolves that by introducing _lock/ as an implicit fifth namespace
(documented in DESIGN.md), used exclusively for durable lock state.

Every operation (TryAcquire, Release, ForceRelease, Status) is served by a
single goroutine reading a shared request channel, so state transitions
are serialized by construction rather than by a store-level lock. The
only automatic transition out of HELD is the stale-lock recovery
performed once in loadInitial when an instance starts up and finds a
lock held past staleAfter.
*/
package coordinator
