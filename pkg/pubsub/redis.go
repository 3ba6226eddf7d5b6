package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/HichuYamichu/goelearn-sub000/pkg/log"
)

// RedisPubSub implements PubSub using Redis PUBLISH / SUBSCRIBE / PSUBSCRIBE.
type RedisPubSub struct {
	client   *redis.Client
	ownsConn bool

	mu   sync.Mutex
	subs map[*redisSubscription]struct{}
}

// NewRedisPubSub creates a new Redis-based PubSub instance.
func NewRedisPubSub(cfg RedisConfig) (*RedisPubSub, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	ps := NewRedisPubSubFromClient(client)
	ps.ownsConn = true
	return ps, nil
}

// NewRedisPubSubFromClient wraps an existing client. Close does not close
// the client.
func NewRedisPubSubFromClient(client *redis.Client) *RedisPubSub {
	return &RedisPubSub{
		client: client,
		subs:   make(map[*redisSubscription]struct{}),
	}
}

// Publish publishes an event to the specified channel.
func (r *RedisPubSub) Publish(ctx context.Context, channel string, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := r.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe subscribes to exact channel names.
func (r *RedisPubSub) Subscribe(ctx context.Context, channels ...string) (Subscription, error) {
	return r.subscribe(ctx, r.client.Subscribe(ctx, channels...), len(channels))
}

// PSubscribe subscribes to glob patterns. Delivered events carry the
// pattern they matched.
func (r *RedisPubSub) PSubscribe(ctx context.Context, patterns ...string) (Subscription, error) {
	return r.subscribe(ctx, r.client.PSubscribe(ctx, patterns...), len(patterns))
}

func (r *RedisPubSub) subscribe(ctx context.Context, ps *redis.PubSub, want int) (Subscription, error) {
	// Wait for the server to confirm every channel so that events published
	// after we return are not missed.
	var early []*redis.Message
	for confirmed := 0; confirmed < want; {
		msg, err := ps.Receive(ctx)
		if err != nil {
			ps.Close()
			return nil, fmt.Errorf("subscribe: %w", err)
		}
		switch m := msg.(type) {
		case *redis.Subscription:
			confirmed++
		case *redis.Message:
			early = append(early, m)
		}
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &redisSubscription{
		ps:     ps,
		events: make(chan *Event, subscriptionBuffer),
		cancel: cancel,
		done:   make(chan struct{}),
		parent: r,
	}

	r.mu.Lock()
	r.subs[sub] = struct{}{}
	r.mu.Unlock()

	go func() {
		<-subCtx.Done()
		ps.Close()
	}()
	go sub.run(subCtx, early)

	return sub, nil
}

// Close closes all subscriptions and, if it created it, the Redis client.
func (r *RedisPubSub) Close() error {
	r.mu.Lock()
	subs := make([]*redisSubscription, 0, len(r.subs))
	for s := range r.subs {
		subs = append(subs, s)
	}
	r.mu.Unlock()

	for _, s := range subs {
		s.Close()
	}

	if r.ownsConn {
		return r.client.Close()
	}
	return nil
}

// Client returns the underlying Redis client.
func (r *RedisPubSub) Client() *redis.Client {
	return r.client
}

func (r *RedisPubSub) forget(s *redisSubscription) {
	r.mu.Lock()
	delete(r.subs, s)
	r.mu.Unlock()
}

type redisSubscription struct {
	ps     *redis.PubSub
	events chan *Event
	cancel context.CancelFunc
	done   chan struct{}
	parent *RedisPubSub

	mu  sync.Mutex
	err error
}

func (s *redisSubscription) Events() <-chan *Event { return s.events }

func (s *redisSubscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *redisSubscription) Close() error {
	s.cancel()
	<-s.done
	return nil
}

// run reads messages until the connection fails or the subscription is
// cancelled. A connection failure is reported through Err.
func (s *redisSubscription) run(ctx context.Context, early []*redis.Message) {
	defer close(s.done)
	defer close(s.events)
	defer s.parent.forget(s)

	for _, m := range early {
		if !s.deliver(ctx, m) {
			return
		}
	}

	for {
		msg, err := s.ps.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() == nil {
				s.mu.Lock()
				s.err = err
				s.mu.Unlock()
				s.cancel()
			}
			return
		}
		if !s.deliver(ctx, msg) {
			return
		}
	}
}

func (s *redisSubscription) deliver(ctx context.Context, msg *redis.Message) bool {
	var event Event
	if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
		l := log.L()
		l.Warn().Err(err).Str(log.FieldChannel, msg.Channel).Msg("dropping undecodable bus message")
		return true
	}
	event.Channel = msg.Channel
	event.Pattern = msg.Pattern

	select {
	case s.events <- &event:
		return true
	case <-ctx.Done():
		return false
	}
}
