/*
Package index implements SoliDB's index subsystem (spec §3, §4.4):
persistent (field/range/unique), full-text (BM25), geo, TTL, and
vector (HNSW) indexes. Every concrete index type implements
document.IndexMaintainer so a document.Collection can keep it
consistent without this package importing document.
*/
package index
