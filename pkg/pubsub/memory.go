package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// ErrClosed is returned by operations on a closed bus.
var ErrClosed = errors.New("pubsub: closed")

// MemoryPubSub is a process-local bus with the same exact/pattern semantics
// as the Redis driver. Events are round-tripped through JSON so subscribers
// never share memory with the publisher.
type MemoryPubSub struct {
	mu     sync.RWMutex
	subs   map[*memorySubscription]struct{}
	closed bool
}

// NewMemoryPubSub creates an empty in-memory bus.
func NewMemoryPubSub() *MemoryPubSub {
	return &MemoryPubSub{subs: make(map[*memorySubscription]struct{})}
}

// Publish delivers event to every matching subscription. It blocks while a
// matching subscriber's buffer is full.
func (m *MemoryPubSub) Publish(ctx context.Context, channel string, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return ErrClosed
	}
	targets := make([]*memorySubscription, 0, len(m.subs))
	for s := range m.subs {
		targets = append(targets, s)
	}
	m.mu.RUnlock()

	for _, s := range targets {
		pattern, ok := s.match(channel)
		if !ok {
			continue
		}
		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			return err
		}
		ev.Channel = channel
		ev.Pattern = pattern

		select {
		case s.inbox <- &ev:
		case <-s.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Subscribe subscribes to exact channel names.
func (m *MemoryPubSub) Subscribe(ctx context.Context, channels ...string) (Subscription, error) {
	return m.add(ctx, channels, false)
}

// PSubscribe subscribes to glob patterns.
func (m *MemoryPubSub) PSubscribe(ctx context.Context, patterns ...string) (Subscription, error) {
	return m.add(ctx, patterns, true)
}

func (m *MemoryPubSub) add(ctx context.Context, names []string, glob bool) (Subscription, error) {
	s := &memorySubscription{
		names:  names,
		glob:   glob,
		inbox:  make(chan *Event, subscriptionBuffer),
		events: make(chan *Event),
		done:   make(chan struct{}),
		parent: m,
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	m.subs[s] = struct{}{}
	m.mu.Unlock()

	go s.pump(ctx)
	return s, nil
}

// Close ends every subscription.
func (m *MemoryPubSub) Close() error {
	m.mu.Lock()
	m.closed = true
	subs := m.subs
	m.subs = make(map[*memorySubscription]struct{})
	m.mu.Unlock()

	for s := range subs {
		s.stop()
	}
	return nil
}

func (m *MemoryPubSub) remove(s *memorySubscription) {
	m.mu.Lock()
	delete(m.subs, s)
	m.mu.Unlock()
}

type memorySubscription struct {
	names []string
	glob  bool

	inbox  chan *Event
	events chan *Event
	done   chan struct{}
	once   sync.Once
	parent *MemoryPubSub
}

func (s *memorySubscription) match(channel string) (string, bool) {
	for _, n := range s.names {
		if s.glob {
			if MatchPattern(n, channel) {
				return n, true
			}
		} else if n == channel {
			return "", true
		}
	}
	return "", false
}

func (s *memorySubscription) pump(ctx context.Context) {
	defer close(s.events)
	defer s.parent.remove(s)
	defer s.stop()
	for {
		select {
		case ev := <-s.inbox:
			select {
			case s.events <- ev:
			case <-s.done:
				return
			case <-ctx.Done():
				return
			}
		case <-s.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *memorySubscription) stop() {
	s.once.Do(func() { close(s.done) })
}

func (s *memorySubscription) Events() <-chan *Event { return s.events }

// Err is always nil; the in-memory bus has no transport to fail.
func (s *memorySubscription) Err() error { return nil }

func (s *memorySubscription) Close() error {
	s.stop()
	return nil
}
