package shard

import (
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
)

// Assignment is the primary and replica node set owning one shard
// (spec §4.6: "single primary per shard, eventually-consistent replica
// reads").
type Assignment struct {
	ShardID  int
	Primary  string
	Replicas []string
}

func (a Assignment) clone() Assignment {
	return Assignment{ShardID: a.ShardID, Primary: a.Primary, Replicas: append([]string(nil), a.Replicas...)}
}

// Registry maps shard IDs to node assignments and routes keys to
// shards by FNV-1a hash modulo the shard count.
type Registry struct {
	mu          sync.RWMutex
	numShards   int
	assignments map[int]Assignment
}

// NewRegistry creates a registry with a fixed shard count.
func NewRegistry(numShards int) *Registry {
	return &Registry{numShards: numShards, assignments: make(map[int]Assignment)}
}

func (r *Registry) NumShards() int { return r.numShards }

// ShardForKey deterministically maps a key to a shard ID using FNV-1a.
func (r *Registry) ShardForKey(key string) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32()) % r.numShards
}

// Assign sets the primary and replica nodes for a shard, overwriting
// any previous assignment.
func (r *Registry) Assign(shardID int, primary string, replicas []string) error {
	if shardID < 0 || shardID >= r.numShards {
		return fmt.Errorf("shard: invalid shard id %d (numShards=%d)", shardID, r.numShards)
	}
	if primary == "" {
		return errors.New("shard: primary node id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assignments[shardID] = Assignment{ShardID: shardID, Primary: primary, Replicas: append([]string(nil), replicas...)}
	return nil
}

// Assignment returns a copy of a shard's assignment, or false if unassigned.
func (r *Registry) Assignment(shardID int) (Assignment, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.assignments[shardID]
	if !ok {
		return Assignment{}, false
	}
	return a.clone(), true
}

// AssignmentForKey resolves the shard owning key and returns its assignment.
func (r *Registry) AssignmentForKey(key string) (Assignment, bool) {
	return r.Assignment(r.ShardForKey(key))
}

// AllAssignments returns every currently assigned shard.
func (r *Registry) AllAssignments() []Assignment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Assignment, 0, len(r.assignments))
	for _, a := range r.assignments {
		out = append(out, a.clone())
	}
	return out
}

// Rebalance distributes every shard round-robin across nodes, each
// assignment's primary rotated one node ahead of the next shard's so
// replicas land on distinct nodes from their primary.
func (r *Registry) Rebalance(nodes []string) error {
	if len(nodes) == 0 {
		return errors.New("shard: cannot rebalance with no nodes")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	replicaCount := 0
	if len(nodes) > 1 {
		replicaCount = 1
	}
	for shardID := 0; shardID < r.numShards; shardID++ {
		primary := nodes[shardID%len(nodes)]
		var replicas []string
		for i := 1; i <= replicaCount && i < len(nodes); i++ {
			replicas = append(replicas, nodes[(shardID+i)%len(nodes)])
		}
		r.assignments[shardID] = Assignment{ShardID: shardID, Primary: primary, Replicas: replicas}
	}
	return nil
}
