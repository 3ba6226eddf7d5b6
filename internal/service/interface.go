package service

import (
	"context"

	"github.com/HichuYamichu/goelearn-sub000/internal/domain"
	"github.com/HichuYamichu/goelearn-sub000/pkg/pubsub"
)

// MeetingService implements the meeting relay for one class at a time.
// Every method takes the session identity by value.
type MeetingService interface {
	// OnAuthenticated records a freshly authenticated connection.
	OnAuthenticated(ctx context.Context, id domain.Identity) error

	// Subscribe opens the broadcast and directed subscriptions for id.
	Subscribe(ctx context.Context, id domain.Identity) (pubsub.Subscription, error)

	// HandleCommand applies a client command. A *domain.DecodeError means
	// the command was rejected and the session may continue; any other
	// error is fatal to the session.
	HandleCommand(ctx context.Context, id domain.Identity, cmd domain.Command) error

	// HandleEvent translates a bus event for delivery to id's client.
	// deliver is false when the event must be dropped.
	HandleEvent(ctx context.Context, id domain.Identity, ev *pubsub.Event) (msg interface{}, deliver bool, err error)

	// Teardown releases the session's presence. It runs once per session.
	Teardown(ctx context.Context, id domain.Identity)

	// CurrentParticipants lists the joined users of classID, minus requesterID.
	CurrentParticipants(ctx context.Context, classID, requesterID string) ([]string, error)
}
