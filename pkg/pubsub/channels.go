package pubsub

import (
	"encoding/json"
	"strings"
)

// Channel naming for class meetings. Both names are consumed by external
// tooling and must not change:
//
//	meeting:{class_id}            broadcast to everyone in the class
//	meeting:{class_id}.{user_id}  directed to a single user
const (
	ChannelPrefix     = "meeting:"
	DirectedSeparator = "."
)

// Dispatch envelope types.
const (
	EventMeetingStarted = "BroadcastMeetingStarted"
	EventMeetingStopped = "BroadcastMeetingStopped"
	EventUserJoined     = "BroadcastUserJoined"
	EventUserLeft       = "BroadcastUserLeft"
	EventOffer          = "SendOffer"
	EventAnswer         = "SendAnswer"
	EventIceCandidate   = "SendIceCandidate"
)

// BroadcastChannel returns the class-wide channel name.
func BroadcastChannel(classID string) string {
	return ChannelPrefix + classID
}

// DirectedChannel returns the channel that reaches only userID.
func DirectedChannel(classID, userID string) string {
	return ChannelPrefix + classID + DirectedSeparator + userID
}

// BroadcastPattern is BroadcastChannel with glob metacharacters in the id
// escaped, for use with PSubscribe.
func BroadcastPattern(classID string) string {
	return ChannelPrefix + EscapeGlob(classID)
}

// DirectedPattern is DirectedChannel escaped for PSubscribe.
func DirectedPattern(classID, userID string) string {
	return ChannelPrefix + EscapeGlob(classID) + DirectedSeparator + EscapeGlob(userID)
}

// EscapeGlob backslash-escapes the characters Redis treats as glob syntax.
func EscapeGlob(s string) string {
	if !strings.ContainsAny(s, `*?[]\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// Event payloads.

// UserPayload identifies the user a join/leave envelope is about.
type UserPayload struct {
	UserID string `json:"user_id"`
}

// SignalPayload carries an opaque WebRTC blob (SDP offer/answer or ICE
// candidate) from SenderID.
type SignalPayload struct {
	SenderID string          `json:"sender_id"`
	Payload  json.RawMessage `json:"payload"`
}
