/*
Package objectstore implements the object-store capability spec §6
requires: get/put/delete/list, with a conditional-put-on-absence
precondition that pkg/txlog uses as its compare-and-swap linearization
point.

Two Store implementations are provided: MemStore, an in-memory map guarded
by a mutex (the default, used for local development and all of this
repo's tests), and S3Store, backed by an AWS S3 (or S3-compatible) bucket
using the PutObject IfNoneMatch precondition added to the AWS SDK for
exactly this conditional-write pattern. Every key the core touches falls
into one of the namespaces schema/, data/, parquet/, _log/ (spec §5) or
_lock/ (pkg/coordinator's durable state); Store itself is
namespace-agnostic.

WithRetry wraps the exponential-backoff helper spec §9 describes around
whichever idempotent calls need it — gets, non-CAS puts, deletes. It must
never wrap the transaction log's append, whose own retry loop recomputes
nextVersion() between attempts.
*/
package objectstore
