/*
Package partition implements spec §4.1's Partition Grouper: a pure,
infallible function from an ordered sequence of staging keys to a mapping
of partition to the keys in that partition. It makes no semantic claim
about the partition string beyond equality — the Hive field name is
opaque to the core.
*/
package partition
