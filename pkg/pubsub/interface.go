package pubsub

import (
	"context"
	"encoding/json"
	"time"
)

// Event represents a message published to the event bus.
type Event struct {
	Type      string          `json:"type"`
	ClassID   string          `json:"class_id"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`

	// Channel and Pattern are filled in by the receiving side: the channel
	// the event was published on and the subscription pattern it matched
	// (empty for exact-channel subscriptions).
	Channel string `json:"-"`
	Pattern string `json:"-"`
}

// NewEvent creates a new event with the current timestamp. A nil payload
// produces an event without a payload.
func NewEvent(eventType, classID string, payload interface{}) (*Event, error) {
	ev := &Event{
		Type:      eventType,
		ClassID:   classID,
		Timestamp: time.Now(),
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		ev.Payload = data
	}
	return ev, nil
}

// UnmarshalPayload unmarshals the event payload into the given struct.
func (e *Event) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// Publisher publishes events to the event bus.
type Publisher interface {
	Publish(ctx context.Context, channel string, event *Event) error
}

// Subscription is a live subscription. Events is closed when the
// subscription ends; Err then reports why (nil after Close or context
// cancellation).
type Subscription interface {
	Events() <-chan *Event
	Err() error
	Close() error
}

// Subscriber subscribes to events from the event bus.
type Subscriber interface {
	Subscribe(ctx context.Context, channels ...string) (Subscription, error)
	PSubscribe(ctx context.Context, patterns ...string) (Subscription, error)
}

// PubSub combines Publisher and Subscriber interfaces.
type PubSub interface {
	Publisher
	Subscriber
	Close() error
}

const subscriptionBuffer = 100
