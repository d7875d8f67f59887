/*
Package kv implements the L0 key-value engine (spec §2): an ordered
key->bytes store over go.etcd.io/bbolt, with one column family per
collection, atomic WriteBatch writes, and Snapshot reads. Every higher
layer (WAL replay, document store, indexes, transaction commit) is
built exclusively on Engine's Get/Put/Delete/WriteBatch/Scan/Snapshot
surface.
*/
package kv
