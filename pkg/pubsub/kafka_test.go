package pubsub

import (
	"context"
	"testing"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKafkaBus(t *testing.T) *KafkaPubSub {
	t.Helper()
	mc, err := kafka.NewMockCluster(1)
	require.NoError(t, err)
	t.Cleanup(mc.Close)
	require.NoError(t, mc.CreateTopic("meeting-signals-test", 2, 1))

	bus, err := NewKafkaPubSub(KafkaConfig{
		Brokers:    mc.BootstrapServers(),
		GroupID:    "meeting-relay-test",
		Topic:      "meeting-signals-test",
		Partitions: 2,
	})
	require.NoError(t, err)
	t.Cleanup(func() { bus.Close() })
	return bus
}

func TestKafkaPubSub(t *testing.T) {
	busContract(t, newKafkaBus(t))
}

func TestKafkaPublishRightAfterSubscribe(t *testing.T) {
	bus := newKafkaBus(t)
	ctx := context.Background()

	sub, err := bus.PSubscribe(ctx, DirectedPattern("c1", "bob"))
	require.NoError(t, err)
	defer sub.Close()

	offer, err := NewEvent(EventOffer, "c1", SignalPayload{SenderID: "alice", Payload: []byte(`{}`)})
	require.NoError(t, err)
	require.NoError(t, bus.Publish(ctx, DirectedChannel("c1", "bob"), offer))

	answer, err := NewEvent(EventAnswer, "c1", SignalPayload{SenderID: "alice", Payload: []byte(`{}`)})
	require.NoError(t, err)
	require.NoError(t, bus.Publish(ctx, DirectedChannel("c1", "bob"), answer))

	assert.Equal(t, EventOffer, receive(t, sub).Type)
	assert.Equal(t, EventAnswer, receive(t, sub).Type)
}

func TestKafkaExactSubscribe(t *testing.T) {
	bus := newKafkaBus(t)
	ctx := context.Background()

	sub, err := bus.Subscribe(ctx, BroadcastChannel("c1"))
	require.NoError(t, err)
	defer sub.Close()

	directed, err := NewEvent(EventOffer, "c1", nil)
	require.NoError(t, err)
	require.NoError(t, bus.Publish(ctx, DirectedChannel("c1", "bob"), directed))

	started, err := NewEvent(EventMeetingStarted, "c1", nil)
	require.NoError(t, err)
	require.NoError(t, bus.Publish(ctx, BroadcastChannel("c1"), started))

	// Same partition key, so the directed event would have arrived first.
	ev := receive(t, sub)
	assert.Equal(t, EventMeetingStarted, ev.Type)
	assert.Equal(t, BroadcastChannel("c1"), ev.Channel)
	assert.Empty(t, ev.Pattern)
}

func TestKafkaSubscriptionCloseIsClean(t *testing.T) {
	bus := newKafkaBus(t)

	sub, err := bus.PSubscribe(context.Background(), BroadcastPattern("c1"))
	require.NoError(t, err)
	require.NoError(t, sub.Close())

	_, ok := <-sub.Events()
	assert.False(t, ok)
	assert.NoError(t, sub.Err())
}

func TestChannelKey(t *testing.T) {
	assert.Equal(t, "c1", channelKey(BroadcastChannel("c1")))
	assert.Equal(t, "c1", channelKey(DirectedChannel("c1", "bob")))
}
