package httpapi

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/solidb/solidb/pkg/query/exec"
	"github.com/solidb/solidb/pkg/value"
)

// cursorTTL bounds how long a paged query result stays addressable
// before the cursor store reaps it (spec §6.2 cursor batching).
const cursorTTL = 5 * time.Minute

type cursor struct {
	id        string
	values    []value.Value
	pos       int
	batchSize int
	stats     exec.Stats
	expiresAt time.Time
}

// cursorStore holds in-flight paged query results, the way a document
// database's HTTP cursor endpoint keeps server-side state across
// PUT .../cursor/{id} batch requests.
type cursorStore struct {
	mu      sync.Mutex
	cursors map[string]*cursor
	stop    chan struct{}
}

func newCursorStore() *cursorStore {
	s := &cursorStore{cursors: map[string]*cursor{}, stop: make(chan struct{})}
	go s.reapLoop()
	return s
}

func (s *cursorStore) close() { close(s.stop) }

func (s *cursorStore) create(values []value.Value, batchSize int, stats exec.Stats) *cursor {
	if batchSize <= 0 {
		batchSize = len(values)
	}
	c := &cursor{
		id:        uuid.NewString(),
		values:    values,
		batchSize: batchSize,
		stats:     stats,
		expiresAt: time.Now().Add(cursorTTL),
	}
	s.mu.Lock()
	s.cursors[c.id] = c
	s.mu.Unlock()
	return c
}

func (s *cursorStore) get(id string) (*cursor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cursors[id]
	if !ok {
		return nil, false
	}
	c.expiresAt = time.Now().Add(cursorTTL)
	return c, true
}

func (s *cursorStore) remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.cursors[id]
	delete(s.cursors, id)
	return ok
}

// nextBatch returns the cursor's next page and whether more remain.
func (c *cursor) nextBatch() ([]value.Value, bool) {
	if c.pos >= len(c.values) {
		return nil, false
	}
	end := c.pos + c.batchSize
	if end > len(c.values) {
		end = len(c.values)
	}
	batch := c.values[c.pos:end]
	c.pos = end
	return batch, c.pos < len(c.values)
}

func (s *cursorStore) reapLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			now := time.Now()
			s.mu.Lock()
			for id, c := range s.cursors {
				if now.After(c.expiresAt) {
					delete(s.cursors, id)
				}
			}
			s.mu.Unlock()
		}
	}
}
