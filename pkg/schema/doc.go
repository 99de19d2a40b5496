/*
Package schema is the Schema Manager external collaborator (spec §1):
read/write of the single document at schema/schema.json, cached per
process as {etag, value, loadedAt} behind a read-write lock (spec §9
"global mutable state"). The orchestrator calls Get before taking any
lock, failing fast with lakeerrors.ErrSchemaUnavailable on a missing or
malformed document.
*/
package schema
