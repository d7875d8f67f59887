/*
Package txn implements SoliDB's transaction manager (spec §4.5):
Begin/Stage/Commit/Abort against a document.Catalog, durable via
wal.WAL, with conflict validation, timeout sweeping, and crash
recovery through wal.Replay.
*/
package txn
