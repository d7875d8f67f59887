/*
Package log provides structured logging for SoliDB using zerolog.

All layers (kv, wal, txn, document, index, shard, query, ttl, httpapi,
driver) log through a child logger scoped to their component name via
WithComponent, plus WithDatabase/WithCollection/WithTx/WithShard for
request-scoped context fields. The global Logger is initialized once
via Init during startup (see cmd/solidb) and is safe for concurrent
use from every goroutine thereafter.

Example:

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})
	l := log.WithComponent("txn")
	l.Info().Uint64("tx_id", id).Msg("transaction committed")
*/
package log
