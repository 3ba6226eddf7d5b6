package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeEvent(t *testing.T) {
	key, value, err := encodeEvent(&MeetingEvent{
		Type:      EventMeetingStopped,
		ClassID:   "c1",
		UserID:    "alice",
		Reason:    ReasonDisconnect,
		Timestamp: 1700000000,
	})
	require.NoError(t, err)

	assert.Equal(t, "c1", string(key))
	assert.JSONEq(t, `{
		"type": "meeting_stopped",
		"class_id": "c1",
		"user_id": "alice",
		"reason": "disconnect",
		"timestamp": 1700000000
	}`, string(value))
}

func TestEncodeStartedOmitsReason(t *testing.T) {
	_, value, err := encodeEvent(&MeetingEvent{Type: EventMeetingStarted, ClassID: "c1", UserID: "alice"})
	require.NoError(t, err)
	assert.NotContains(t, string(value), "reason")
}
