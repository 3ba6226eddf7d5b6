package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/HichuYamichu/goelearn-sub000/internal/domain"
	"github.com/HichuYamichu/goelearn-sub000/internal/kafka"
	"github.com/HichuYamichu/goelearn-sub000/internal/metrics"
	"github.com/HichuYamichu/goelearn-sub000/internal/store"
	"github.com/HichuYamichu/goelearn-sub000/pkg/log"
	"github.com/HichuYamichu/goelearn-sub000/pkg/pubsub"
)

// ErrAlreadyAuthenticated rejects an Auth frame after the handshake.
var ErrAlreadyAuthenticated = errors.New("already authenticated")

type meetingService struct {
	store    store.PresenceStore
	bus      pubsub.PubSub
	producer kafka.MeetingEventProducer // optional
}

// NewMeetingService creates a new MeetingService. producer may be nil.
func NewMeetingService(s store.PresenceStore, bus pubsub.PubSub, producer kafka.MeetingEventProducer) MeetingService {
	return &meetingService{
		store:    s,
		bus:      bus,
		producer: producer,
	}
}

// OnAuthenticated marks a participant as connected but not joined. An entry
// left by another live connection of the same user keeps its flag. The
// owner gets no entry until StartMeeting.
func (s *meetingService) OnAuthenticated(ctx context.Context, id domain.Identity) error {
	if id.IsOwner {
		return nil
	}
	return s.store.MarkConnected(ctx, id.ClassID, id.UserID)
}

func (s *meetingService) Subscribe(ctx context.Context, id domain.Identity) (pubsub.Subscription, error) {
	return s.bus.PSubscribe(ctx,
		pubsub.BroadcastPattern(id.ClassID),
		pubsub.DirectedPattern(id.ClassID, id.UserID),
	)
}

func (s *meetingService) HandleCommand(ctx context.Context, id domain.Identity, cmd domain.Command) error {
	l := log.Ctx(ctx)
	metrics.Commands.WithLabelValues(cmd.CommandType()).Inc()

	switch c := cmd.(type) {
	case *domain.AuthCommand:
		return &domain.DecodeError{Type: domain.MsgTypeAuth, Err: ErrAlreadyAuthenticated}

	case *domain.MeetingCommand:
		switch c.Type {
		case domain.MsgTypeStartMeeting:
			return s.startMeeting(ctx, id)
		case domain.MsgTypeStopMeeting:
			return s.stopMeeting(ctx, id)
		case domain.MsgTypeJoinMeeting:
			if err := s.store.SetJoined(ctx, id.ClassID, id.UserID, true); err != nil {
				return err
			}
			return s.publish(ctx, pubsub.BroadcastChannel(id.ClassID), pubsub.EventUserJoined, id.ClassID,
				pubsub.UserPayload{UserID: id.UserID})
		case domain.MsgTypeLeaveMeeting:
			if err := s.store.SetJoined(ctx, id.ClassID, id.UserID, false); err != nil {
				return err
			}
			return s.publish(ctx, pubsub.BroadcastChannel(id.ClassID), pubsub.EventUserLeft, id.ClassID,
				pubsub.UserPayload{UserID: id.UserID})
		}

	case *domain.SignalCommand:
		evType, ok := signalEventTypes[c.Type]
		if !ok {
			break
		}
		return s.publish(ctx, pubsub.DirectedChannel(id.ClassID, c.TargetUserID), evType, id.ClassID,
			pubsub.SignalPayload{SenderID: id.UserID, Payload: c.Payload})
	}

	l.Warn().Str(log.FieldMsgType, cmd.CommandType()).Msg("unhandled command")
	return nil
}

var signalEventTypes = map[string]string{
	domain.MsgTypeSendOffer:        pubsub.EventOffer,
	domain.MsgTypeSendAnswer:       pubsub.EventAnswer,
	domain.MsgTypeSendIceCandidate: pubsub.EventIceCandidate,
}

var signalMessageTypes = map[string]string{
	pubsub.EventOffer:        domain.MsgTypeOffer,
	pubsub.EventAnswer:       domain.MsgTypeAnswer,
	pubsub.EventIceCandidate: domain.MsgTypeIceCandidate,
}

// knownEventTypes are the gated bus events HandleEvent can render.
var knownEventTypes = map[string]bool{
	pubsub.EventUserJoined:   true,
	pubsub.EventUserLeft:     true,
	pubsub.EventOffer:        true,
	pubsub.EventAnswer:       true,
	pubsub.EventIceCandidate: true,
}

func (s *meetingService) startMeeting(ctx context.Context, id domain.Identity) error {
	if !id.IsOwner {
		l := log.Ctx(ctx)
		l.Debug().Msg("ignoring StartMeeting from non-owner")
		return nil
	}

	if err := s.store.SetJoined(ctx, id.ClassID, id.UserID, true); err != nil {
		return err
	}
	if err := s.publish(ctx, pubsub.BroadcastChannel(id.ClassID), pubsub.EventMeetingStarted, id.ClassID, nil); err != nil {
		return err
	}

	if s.producer != nil {
		if err := s.producer.ProduceMeetingStarted(ctx, id.ClassID, id.UserID); err != nil {
			l := log.Ctx(ctx)
			l.Warn().Err(err).Msg("failed to produce meeting started event")
		}
	}
	return nil
}

// stopMeeting is open to every connected user, not only the owner.
func (s *meetingService) stopMeeting(ctx context.Context, id domain.Identity) error {
	if err := s.store.Clear(ctx, id.ClassID); err != nil {
		return err
	}
	if err := s.publish(ctx, pubsub.BroadcastChannel(id.ClassID), pubsub.EventMeetingStopped, id.ClassID, nil); err != nil {
		return err
	}

	if s.producer != nil {
		if err := s.producer.ProduceMeetingStopped(ctx, id.ClassID, id.UserID, kafka.ReasonExplicit); err != nil {
			l := log.Ctx(ctx)
			l.Warn().Err(err).Msg("failed to produce meeting stopped event")
		}
	}
	return nil
}

func (s *meetingService) publish(ctx context.Context, channel, eventType, classID string, payload interface{}) error {
	ev, err := pubsub.NewEvent(eventType, classID, payload)
	if err != nil {
		return fmt.Errorf("build %s event: %w", eventType, err)
	}
	return s.bus.Publish(ctx, channel, ev)
}

// directed reports whether ev reached id through its directed subscription.
func directed(id domain.Identity, ev *pubsub.Event) bool {
	if ev.Pattern != "" {
		return ev.Pattern == pubsub.DirectedPattern(id.ClassID, id.UserID)
	}
	return ev.Channel == pubsub.DirectedChannel(id.ClassID, id.UserID)
}

// HandleEvent applies the delivery gate. Directed events are always
// delivered. Broadcast events other than MeetingStarted/MeetingStopped are
// delivered only while the receiver's own presence flag is set, and
// MeetingStopped clears that flag before it is delivered.
func (s *meetingService) HandleEvent(ctx context.Context, id domain.Identity, ev *pubsub.Event) (interface{}, bool, error) {
	l := log.Ctx(ctx)
	isDirected := directed(id, ev)

	switch ev.Type {
	case pubsub.EventMeetingStarted:
		metrics.Delivered.WithLabelValues(ev.Type).Inc()
		return &domain.MeetingStateMessage{Type: domain.MsgTypeMeetingStarted}, true, nil

	case pubsub.EventMeetingStopped:
		if !isDirected {
			if err := s.store.SetJoined(ctx, id.ClassID, id.UserID, false); err != nil {
				return nil, false, err
			}
		}
		metrics.Delivered.WithLabelValues(ev.Type).Inc()
		return &domain.MeetingStateMessage{Type: domain.MsgTypeMeetingStopped}, true, nil
	}

	if !knownEventTypes[ev.Type] {
		l.Warn().Str(log.FieldMsgType, ev.Type).Str(log.FieldChannel, ev.Channel).Msg("dropping unknown bus event")
		return nil, false, nil
	}

	if !isDirected {
		joined, err := s.store.IsJoined(ctx, id.ClassID, id.UserID)
		if err != nil {
			return nil, false, err
		}
		if !joined {
			metrics.Gated.WithLabelValues(ev.Type).Inc()
			return nil, false, nil
		}
	}

	var msg interface{}
	switch ev.Type {
	case pubsub.EventUserJoined, pubsub.EventUserLeft:
		var p pubsub.UserPayload
		if err := ev.UnmarshalPayload(&p); err != nil {
			l.Warn().Err(err).Str(log.FieldMsgType, ev.Type).Msg("dropping malformed bus event")
			return nil, false, nil
		}
		msgType := domain.MsgTypeUserJoined
		if ev.Type == pubsub.EventUserLeft {
			msgType = domain.MsgTypeUserLeft
		}
		msg = &domain.UserMessage{Type: msgType, UserID: p.UserID}

	case pubsub.EventOffer, pubsub.EventAnswer, pubsub.EventIceCandidate:
		var p pubsub.SignalPayload
		if err := ev.UnmarshalPayload(&p); err != nil {
			l.Warn().Err(err).Str(log.FieldMsgType, ev.Type).Msg("dropping malformed bus event")
			return nil, false, nil
		}
		m, err := domain.NewSignalMessage(signalMessageTypes[ev.Type], p.SenderID, p.Payload)
		if err != nil {
			return nil, false, err
		}
		msg = m
	}

	metrics.Delivered.WithLabelValues(ev.Type).Inc()
	return msg, true, nil
}

// Teardown announces the end of the meeting when the owner leaves, and
// otherwise removes the participant's presence entry. Failures are logged.
func (s *meetingService) Teardown(ctx context.Context, id domain.Identity) {
	l := log.Ctx(ctx)
	metrics.Teardowns.WithLabelValues(id.Role()).Inc()

	if id.IsOwner {
		if err := s.publish(ctx, pubsub.BroadcastChannel(id.ClassID), pubsub.EventMeetingStopped, id.ClassID, nil); err != nil {
			l.Warn().Err(err).Msg("failed to announce meeting stop on owner disconnect")
		}
		if s.producer != nil {
			if err := s.producer.ProduceMeetingStopped(ctx, id.ClassID, id.UserID, kafka.ReasonDisconnect); err != nil {
				l.Warn().Err(err).Msg("failed to produce meeting stopped event")
			}
		}
		// The owner's own entry stays as it is. Receivers of MeetingStopped
		// reset their own flags, and the next StartMeeting overwrites it.
		return
	}

	if err := s.store.RemoveUser(ctx, id.ClassID, id.UserID); err != nil {
		l.Warn().Err(err).Msg("failed to remove presence on disconnect")
	}
}

func (s *meetingService) CurrentParticipants(ctx context.Context, classID, requesterID string) ([]string, error) {
	all, err := s.store.GetAll(ctx, classID)
	if err != nil {
		return nil, err
	}

	peers := make([]string, 0, len(all))
	for userID, joined := range all {
		if joined && userID != requesterID {
			peers = append(peers, userID)
		}
	}
	sort.Strings(peers)
	return peers, nil
}
