/*
Package api implements the HTTP surfaces from spec §6 on top of
github.com/go-chi/chi/v5: the compaction service (POST/GET /, GET
/transactions, GET /reconcile, DELETE /cleanup) and, for completeness,
the ingestion gateway (PUT /, POST /batch, rate-limited via
golang.org/x/time/rate).

Errors from pkg/lakeerrors are mapped to status codes with errors.Is
(never string matching): Busy maps to 409 with the coordinator's
diagnostic message; every other pre-commit failure maps to 500. An empty
compaction is a 200 with a "No files to compact" message, not an error —
see spec §6's HTTP surface table.
*/
package api
