/*
Package document implements SoliDB's L2 document store (spec §3, §4.4):
Catalog owns Databases, each Database owns Collections, and each
Collection owns its document rows plus the index maintainers bound to
it. Every mutation path (Insert, InsertBatch, Update, Delete,
DeleteBatch) keeps bound indexes consistent via the IndexMaintainer
hook and publishes a changefeed.Event.
*/
package document
