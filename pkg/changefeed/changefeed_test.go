package changefeed_test

import (
	"testing"
	"time"

	"github.com/solidb/solidb/pkg/changefeed"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToSubscriber(t *testing.T) {
	topic := changefeed.NewTopic()
	sub := topic.Subscribe()
	defer sub.Close()

	topic.Publish(&changefeed.Event{Type: changefeed.EventInsert, Key: "a"})

	select {
	case ev := <-sub.C():
		require.Equal(t, "a", ev.Key)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestPublishDropsOldestWhenFull(t *testing.T) {
	topic := changefeed.NewTopic()
	sub := topic.Subscribe()
	defer sub.Close()

	for i := 0; i < 200; i++ {
		topic.Publish(&changefeed.Event{Type: changefeed.EventInsert, Key: "k"})
	}
	// Should not deadlock or block; buffer caps at subscriberBuffer size.
	require.LessOrEqual(t, len(sub.C()), 64)
}
