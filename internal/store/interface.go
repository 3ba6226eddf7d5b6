package store

import "context"

// PresenceStore records who is in each class meeting. Every method is a
// single atomic operation on the meeting's hash.
type PresenceStore interface {
	// SetJoined upserts the user's joined flag.
	SetJoined(ctx context.Context, classID, userID string, joined bool) error

	// MarkConnected adds the user as connected but not joined. An existing
	// entry is left untouched.
	MarkConnected(ctx context.Context, classID, userID string) error

	// GetAll returns every user in the meeting hash with their flag.
	GetAll(ctx context.Context, classID string) (map[string]bool, error)

	// IsJoined reports the user's flag. A missing entry is not joined.
	IsJoined(ctx context.Context, classID, userID string) (bool, error)

	// RemoveUser deletes the user's entry.
	RemoveUser(ctx context.Context, classID, userID string) error

	// Clear deletes the whole meeting hash.
	Clear(ctx context.Context, classID string) error
}
