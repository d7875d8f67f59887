/*
Package wal implements the L1 write-ahead log (spec §4.5): newline-
delimited JSON records (Begin, Operation, Commit, Abort, Checkpoint)
on an append-only file, fsynced on every Append. Replay reconstructs
only transactions that reached a Commit record; Truncate drops
everything before the most recent Checkpoint.
*/
package wal
