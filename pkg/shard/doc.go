/*
Package shard implements SoliDB's shard coordinator (spec §4.6):
hash-modulo key routing to a fixed shard count, primary/replica
assignment per shard, and HTTP-based scatter-gather dispatch across
every shard of a collection for cluster-wide scans.
*/
package shard
