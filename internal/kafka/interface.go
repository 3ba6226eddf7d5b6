package kafka

import "context"

// MeetingEvent represents a meeting lifecycle change.
type MeetingEvent struct {
	Type      string `json:"type"` // "meeting_started" | "meeting_stopped"
	ClassID   string `json:"class_id"`
	UserID    string `json:"user_id"`
	Reason    string `json:"reason,omitempty"` // "explicit" | "disconnect"
	Timestamp int64  `json:"timestamp"`
}

// Event types
const (
	EventMeetingStarted = "meeting_started"
	EventMeetingStopped = "meeting_stopped"
)

// Stop reasons
const (
	ReasonExplicit   = "explicit"
	ReasonDisconnect = "disconnect"
)

// MeetingEventProducer publishes meeting lifecycle events for downstream
// consumers such as attendance tracking.
type MeetingEventProducer interface {
	ProduceMeetingStarted(ctx context.Context, classID, userID string) error
	ProduceMeetingStopped(ctx context.Context, classID, userID, reason string) error
	Close() error
}
