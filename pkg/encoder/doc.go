/*
Package encoder implements the Columnar Encoder external collaborator
(spec §1, §4.4): Encode(records, schema) -> bytes is a pure function with
no I/O; Decode is its inverse, used by tests to verify round-trip
fidelity (spec §8).

The wire format is column-major and self-describing (the schema used to
encode travels with the buffer), but it is Lakeside-specific — not
Parquet, not Arrow IPC. See DESIGN.md for why no pack-grounded
third-party columnar library was wired here instead.
*/
package encoder
