package shard_test

import (
	"testing"

	"github.com/solidb/solidb/pkg/shard"
	"github.com/stretchr/testify/require"
)

func TestShardForKeyIsDeterministic(t *testing.T) {
	r := shard.NewRegistry(16)
	a := r.ShardForKey("widgets/abc")
	b := r.ShardForKey("widgets/abc")
	require.Equal(t, a, b)
	require.GreaterOrEqual(t, a, 0)
	require.Less(t, a, 16)
}

func TestRebalanceAssignsEveryShard(t *testing.T) {
	r := shard.NewRegistry(8)
	require.NoError(t, r.Rebalance([]string{"node-1:9000", "node-2:9000", "node-3:9000"}))

	for i := 0; i < 8; i++ {
		a, ok := r.Assignment(i)
		require.True(t, ok)
		require.NotEmpty(t, a.Primary)
	}
}

func TestAssignRejectsInvalidShardID(t *testing.T) {
	r := shard.NewRegistry(4)
	require.Error(t, r.Assign(10, "node-1", nil))
}
