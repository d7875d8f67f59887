/*
Package ttl implements the background sweep worker that expires
documents covered by a TTL index (spec §4.4 TTL indexes, §6.4
ttl_sweep_interval_s). The index itself only tracks deadlines; this
worker is what actually deletes expired documents, routed through the
owning collection so index maintenance and change-feed events fire
normally.
*/
package ttl

import (
	"time"

	"github.com/solidb/solidb/pkg/document"
	"github.com/solidb/solidb/pkg/index"
	"github.com/solidb/solidb/pkg/log"
	"github.com/solidb/solidb/pkg/metrics"
)

// DefaultInterval is the default sweep cadence (spec §6.4 default 60s).
const DefaultInterval = 60 * time.Second

// Worker periodically scans every collection of a catalog for
// bound TTL indexes and deletes whatever they report as expired.
type Worker struct {
	catalog  *document.Catalog
	interval time.Duration
	stop     chan struct{}
}

// NewWorker creates a Worker over catalog with the given sweep interval
// (DefaultInterval if zero).
func NewWorker(catalog *document.Catalog, interval time.Duration) *Worker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Worker{catalog: catalog, interval: interval, stop: make(chan struct{})}
}

// Start runs the sweep loop until Stop is called.
func (w *Worker) Start() {
	go w.loop()
}

// Stop ends the sweep loop.
func (w *Worker) Stop() { close(w.stop) }

func (w *Worker) loop() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			w.sweepOnce()
		}
	}
}

func (w *Worker) sweepOnce() {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.TTLSweepDuration)

	l := log.WithComponent("ttl")
	now := time.Now()
	for _, dbName := range w.catalog.Databases() {
		db, err := w.catalog.Database(dbName)
		if err != nil {
			continue
		}
		for _, collName := range db.Collections() {
			coll, err := db.Collection(collName)
			if err != nil {
				continue
			}
			for _, ix := range coll.Indexes() {
				ttlIx, ok := ix.(*index.TTL)
				if !ok {
					continue
				}
				expired := ttlIx.Expired(now)
				for _, key := range expired {
					if err := coll.Delete(dbName, key); err != nil {
						l.Warn().Err(err).Str("db", dbName).Str("collection", collName).Str("key", key).Msg("ttl delete failed")
						continue
					}
					metrics.TTLExpiredTotal.Inc()
				}
				if len(expired) > 0 {
					l.Info().Str("db", dbName).Str("collection", collName).Int("count", len(expired)).Msg("ttl sweep expired documents")
				}
			}
		}
	}
}
