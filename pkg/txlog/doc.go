/*
Package txlog implements the Transaction Log (spec §4.2, §8 invariants 1-2
and 6). Entries are immutable once written: NextVersion is an advisory
read only, never a source of exclusivity; Append is the actual
compare-and-swap linearization point, writing _log/<version:08d>.json with
a does-not-exist precondition and retrying with a freshly recomputed
version on contention.

ReadAll tolerates and reports version gaps without failing. Replay folds
the log into the set of live artifacts and removed staging keys,
ignoring schema_change/cleanup entries (reserved, spec §9) for liveness
purposes.

The CAS retry here is a safety net, not the primary exclusion mechanism —
pkg/coordinator's singleton lock is expected to serialize the one writer
that matters (spec §4.2 "why two exclusion mechanisms").
*/
package txlog
