package shard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/solidb/solidb/pkg/log"
	"github.com/solidb/solidb/pkg/metrics"
	"github.com/solidb/solidb/pkg/value"
)

// ScatterGatherHeader marks an inbound request as cluster-internal
// fan-out traffic rather than a client-originated request (spec §4.6).
const ScatterGatherHeader = "X-Scatter-Gather"

// SecretHeader carries the shared cluster secret that authenticates
// scatter-gather traffic between nodes.
const SecretHeader = "X-Cluster-Secret"

// Coordinator dispatches scatter-gather requests to every shard of a
// collection and merges the results, falling back from a shard's
// primary to its replicas when the primary is unreachable.
type Coordinator struct {
	registry *Registry
	client   *http.Client
	secret   string
	scheme   string
}

// NewCoordinator builds a Coordinator that dispatches over scheme
// ("http" or "https") using secret to authenticate cluster-internal calls.
func NewCoordinator(registry *Registry, secret, scheme string, timeout time.Duration) *Coordinator {
	if scheme == "" {
		scheme = "http"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Coordinator{
		registry: registry,
		client:   &http.Client{Timeout: timeout},
		secret:   secret,
		scheme:   scheme,
	}
}

func (c *Coordinator) dispatch(ctx context.Context, node, path string, body []byte) ([]byte, error) {
	start := time.Now()
	data, err := c.doDispatch(ctx, node, path, body)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.ShardRequestDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	return data, err
}

func (c *Coordinator) doDispatch(ctx context.Context, node, path string, body []byte) ([]byte, error) {
	url := fmt.Sprintf("%s://%s%s", c.scheme, node, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(ScatterGatherHeader, "true")
	req.Header.Set(SecretHeader, c.secret)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("shard: node %s returned status %d: %s", node, resp.StatusCode, string(data))
	}
	return data, nil
}

// dispatchWithFallback tries the shard's primary first, then each
// replica in order, returning the first successful response.
func (c *Coordinator) dispatchWithFallback(ctx context.Context, a Assignment, path string, body []byte) ([]byte, error) {
	candidates := append([]string{a.Primary}, a.Replicas...)
	var lastErr error
	for _, node := range candidates {
		data, err := c.dispatch(ctx, node, path, body)
		if err == nil {
			return data, nil
		}
		lastErr = err
		log.WithComponent("shard").Warn().Err(err).Str("node", node).Int("shard_id", a.ShardID).Msg("scatter-gather dispatch failed, trying next candidate")
	}
	return nil, fmt.Errorf("shard %d: all candidates failed: %w", a.ShardID, lastErr)
}

// ShardResult is one shard's scatter-gather outcome.
type ShardResult struct {
	ShardID int
	Data    []byte
	Err     error
}

// ScanAllShards fans path+body out to every assigned shard concurrently
// and returns one ShardResult per shard (spec §4.6 scan_all_shards).
func (c *Coordinator) ScanAllShards(ctx context.Context, path string, body []byte) []ShardResult {
	assignments := c.registry.AllAssignments()
	metrics.ScatterGatherFanout.Observe(float64(len(assignments)))
	results := make([]ShardResult, len(assignments))

	var wg sync.WaitGroup
	for i, a := range assignments {
		wg.Add(1)
		go func(i int, a Assignment) {
			defer wg.Done()
			data, err := c.dispatchWithFallback(ctx, a, path, body)
			results[i] = ShardResult{ShardID: a.ShardID, Data: data, Err: err}
		}(i, a)
	}
	wg.Wait()
	return results
}

// RouteAndDispatch sends path+body to the single shard owning key.
func (c *Coordinator) RouteAndDispatch(ctx context.Context, key, path string, body []byte) ([]byte, error) {
	a, ok := c.registry.AssignmentForKey(key)
	if !ok {
		return nil, fmt.Errorf("shard: no assignment for key %q", key)
	}
	return c.dispatchWithFallback(ctx, a, path, body)
}

// MergeDocuments flattens per-shard JSON document arrays and
// deduplicates by "_key", keeping the first occurrence (spec §4.6:
// "dedup by _key on scan merge"). Shard results carrying an error are
// skipped rather than failing the whole merge.
func MergeDocuments(results []ShardResult) ([]value.Value, []error) {
	seen := make(map[string]bool)
	var merged []value.Value
	var errs []error

	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
			continue
		}
		var docs []value.Value
		if err := json.Unmarshal(r.Data, &docs); err != nil {
			errs = append(errs, err)
			continue
		}
		for _, d := range docs {
			keyField, ok := d.Field("_key")
			key := keyField.AsString()
			if ok && seen[key] {
				continue
			}
			if ok {
				seen[key] = true
			}
			merged = append(merged, d)
		}
	}
	return merged, errs
}
