package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisBus(t *testing.T) (*RedisPubSub, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	bus := NewRedisPubSubFromClient(client)
	t.Cleanup(func() { bus.Close() })
	return bus, mr
}

func receive(t *testing.T, sub Subscription) *Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		require.True(t, ok, "subscription closed")
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func assertNothing(t *testing.T, sub Subscription) {
	t.Helper()
	select {
	case ev := <-sub.Events():
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

// busContract runs the behaviour every driver must share.
func busContract(t *testing.T, bus PubSub) {
	ctx := context.Background()

	bobSub, err := bus.PSubscribe(ctx, BroadcastPattern("c1"), DirectedPattern("c1", "bob"))
	require.NoError(t, err)
	defer bobSub.Close()

	carolSub, err := bus.PSubscribe(ctx, BroadcastPattern("c1"), DirectedPattern("c1", "carol"))
	require.NoError(t, err)
	defer carolSub.Close()

	joined, err := NewEvent(EventUserJoined, "c1", UserPayload{UserID: "alice"})
	require.NoError(t, err)
	require.NoError(t, bus.Publish(ctx, BroadcastChannel("c1"), joined))

	for _, sub := range []Subscription{bobSub, carolSub} {
		ev := receive(t, sub)
		assert.Equal(t, EventUserJoined, ev.Type)
		assert.Equal(t, "c1", ev.ClassID)
		assert.Equal(t, BroadcastChannel("c1"), ev.Channel)
		assert.Equal(t, BroadcastPattern("c1"), ev.Pattern)

		var p UserPayload
		require.NoError(t, ev.UnmarshalPayload(&p))
		assert.Equal(t, "alice", p.UserID)
	}

	offer, err := NewEvent(EventOffer, "c1", SignalPayload{SenderID: "alice", Payload: []byte(`{"sdp":"v=0"}`)})
	require.NoError(t, err)
	require.NoError(t, bus.Publish(ctx, DirectedChannel("c1", "bob"), offer))

	ev := receive(t, bobSub)
	assert.Equal(t, EventOffer, ev.Type)
	assert.Equal(t, DirectedPattern("c1", "bob"), ev.Pattern)
	var sp SignalPayload
	require.NoError(t, ev.UnmarshalPayload(&sp))
	assert.Equal(t, "alice", sp.SenderID)
	assert.JSONEq(t, `{"sdp":"v=0"}`, string(sp.Payload))

	assertNothing(t, carolSub)

	// Other classes never leak in.
	other, err := NewEvent(EventMeetingStarted, "c2", nil)
	require.NoError(t, err)
	require.NoError(t, bus.Publish(ctx, BroadcastChannel("c2"), other))
	assertNothing(t, bobSub)
}

func TestRedisPubSub(t *testing.T) {
	bus, _ := newRedisBus(t)
	busContract(t, bus)
}

func TestMemoryPubSub(t *testing.T) {
	bus := NewMemoryPubSub()
	defer bus.Close()
	busContract(t, bus)
}

func TestRedisExactSubscribeHasNoPattern(t *testing.T) {
	bus, _ := newRedisBus(t)
	ctx := context.Background()

	sub, err := bus.Subscribe(ctx, BroadcastChannel("c1"))
	require.NoError(t, err)
	defer sub.Close()

	ev, err := NewEvent(EventMeetingStarted, "c1", nil)
	require.NoError(t, err)
	require.NoError(t, bus.Publish(ctx, BroadcastChannel("c1"), ev))

	got := receive(t, sub)
	assert.Equal(t, EventMeetingStarted, got.Type)
	assert.Empty(t, got.Pattern)
	assert.Empty(t, got.Payload)
}

func TestRedisSubscriptionCloseIsClean(t *testing.T) {
	bus, _ := newRedisBus(t)

	sub, err := bus.PSubscribe(context.Background(), BroadcastPattern("c1"))
	require.NoError(t, err)
	require.NoError(t, sub.Close())

	_, ok := <-sub.Events()
	assert.False(t, ok)
	assert.NoError(t, sub.Err())
}

func TestRedisSubscriptionEndsWithContext(t *testing.T) {
	bus, _ := newRedisBus(t)
	ctx, cancel := context.WithCancel(context.Background())

	sub, err := bus.PSubscribe(ctx, BroadcastPattern("c1"))
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-sub.Events():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not end")
	}
	assert.NoError(t, sub.Err())
}

func TestRedisSubscriptionReportsConnectionLoss(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	bus := NewRedisPubSubFromClient(client)

	sub, err := bus.PSubscribe(context.Background(), BroadcastPattern("c1"))
	require.NoError(t, err)
	defer sub.Close()

	mr.Close()

	select {
	case _, ok := <-sub.Events():
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("subscription did not end after redis went away")
	}
	assert.Error(t, sub.Err())
}

func TestMemoryPubSubEscapedIDs(t *testing.T) {
	bus := NewMemoryPubSub()
	defer bus.Close()
	ctx := context.Background()

	sub, err := bus.PSubscribe(ctx, BroadcastPattern("*"))
	require.NoError(t, err)
	defer sub.Close()

	ev, err := NewEvent(EventMeetingStarted, "c1", nil)
	require.NoError(t, err)
	require.NoError(t, bus.Publish(ctx, BroadcastChannel("c1"), ev))
	assertNothing(t, sub)

	ev.ClassID = "*"
	require.NoError(t, bus.Publish(ctx, BroadcastChannel("*"), ev))
	assert.Equal(t, "*", receive(t, sub).ClassID)
}

func TestMemoryPubSubClosed(t *testing.T) {
	bus := NewMemoryPubSub()
	sub, err := bus.PSubscribe(context.Background(), "meeting:*")
	require.NoError(t, err)
	require.NoError(t, bus.Close())

	_, ok := <-sub.Events()
	assert.False(t, ok)

	ev, err := NewEvent(EventMeetingStarted, "c1", nil)
	require.NoError(t, err)
	assert.ErrorIs(t, bus.Publish(context.Background(), BroadcastChannel("c1"), ev), ErrClosed)

	_, err = bus.Subscribe(context.Background(), "x")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestNewPubSubRejectsUnknownDriver(t *testing.T) {
	_, err := NewPubSub(Config{Driver: "carrier-pigeon"})
	assert.Error(t, err)

	ps, err := NewPubSub(Config{Driver: "memory"})
	require.NoError(t, err)
	assert.NoError(t, ps.Close())
}
