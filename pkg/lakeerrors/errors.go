// Package lakeerrors defines the compaction error taxonomy from spec §7,
// shared by pkg/compactor, pkg/txlog, and pkg/api so that HTTP handlers can
// map failures to status codes with errors.Is instead of string matching.
package lakeerrors

import "errors"

var (
	// ErrSchemaUnavailable: schema missing or malformed. Fail fast, no lock
	// taken.
	ErrSchemaUnavailable = errors.New("schema unavailable")

	// ErrBusy: the coordinator is HELD. Callers should report 409 with the
	// coordinator's batch-size and age diagnostics.
	ErrBusy = errors.New("compaction coordinator busy")

	// ErrPartitionReadFailed: one or more staging objects in a partition's
	// group were unreadable. The lock is released; the log is untouched.
	ErrPartitionReadFailed = errors.New("partition read failed")

	// ErrEncodeFailed: the columnar encoder rejected a partition's records.
	// The lock is released; the log is untouched.
	ErrEncodeFailed = errors.New("encode failed")

	// ErrLogContention: the transaction log's CAS append exhausted its
	// retry budget. The lock is released; the log is untouched; the next
	// run will retry.
	ErrLogContention = errors.New("log contention: CAS append retries exhausted")
)
