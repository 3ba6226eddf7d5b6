package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// WebSocket message types from client.
const (
	MsgTypeAuth             = "Auth"
	MsgTypeStartMeeting     = "StartMeeting"
	MsgTypeStopMeeting      = "StopMeeting"
	MsgTypeJoinMeeting      = "JoinMeeting"
	MsgTypeLeaveMeeting     = "LeaveMeeting"
	MsgTypeSendOffer        = "SendOffer"
	MsgTypeSendAnswer       = "SendAnswer"
	MsgTypeSendIceCandidate = "SendIceCandidate"
)

// WebSocket message types to client.
const (
	MsgTypeMeetingStarted = "MeetingStarted"
	MsgTypeMeetingStopped = "MeetingStopped"
	MsgTypeUserJoined     = "UserJoined"
	MsgTypeUserLeft       = "UserLeft"
	MsgTypeOffer          = "Offer"
	MsgTypeAnswer         = "Answer"
	MsgTypeIceCandidate   = "IceCandidate"
)

// ErrorFrame is written to the client, as a bare JSON string, when the
// relay fails to deliver an event.
var ErrorFrame = json.RawMessage(`"Error"`)

// BaseMessage is the base structure for all WebSocket messages.
type BaseMessage struct {
	Type string `json:"type"`
}

// DecodeError reports a client frame that could not be understood.
type DecodeError struct {
	Type string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("decode command: %v", e.Err)
	}
	return fmt.Sprintf("decode %s command: %v", e.Type, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

var (
	ErrUnknownType  = errors.New("unknown message type")
	ErrMissingField = errors.New("missing required field")
	ErrNotAnObject  = errors.New("frame is not a JSON object")
)

// Client -> Server messages

// Command is a decoded client frame.
type Command interface {
	CommandType() string
}

// AuthCommand must be the first frame on every connection.
type AuthCommand struct {
	Type    string `json:"type"`
	Token   string `json:"token"`
	ClassID string `json:"class_id"`
}

// MeetingCommand is one of the payload-less meeting commands
// (StartMeeting, StopMeeting, JoinMeeting, LeaveMeeting).
type MeetingCommand struct {
	Type string `json:"type"`
}

// SignalCommand relays a WebRTC blob to TargetUserID. The blob arrives in
// the "offer", "answer" or "candidate" field depending on Type and is kept
// as raw JSON.
type SignalCommand struct {
	Type         string
	TargetUserID string
	Payload      json.RawMessage
}

func (c *AuthCommand) CommandType() string    { return MsgTypeAuth }
func (c *MeetingCommand) CommandType() string { return c.Type }
func (c *SignalCommand) CommandType() string  { return c.Type }

type signalFrame struct {
	Type         string          `json:"type"`
	TargetUserID string          `json:"target_user_id"`
	Offer        json.RawMessage `json:"offer"`
	Answer       json.RawMessage `json:"answer"`
	Candidate    json.RawMessage `json:"candidate"`
}

// DecodeCommand decodes a client frame. Failures are *DecodeError.
func DecodeCommand(data []byte) (Command, error) {
	var base BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		return nil, &DecodeError{Err: ErrNotAnObject}
	}

	switch base.Type {
	case MsgTypeAuth:
		var cmd AuthCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			return nil, &DecodeError{Type: base.Type, Err: err}
		}
		if cmd.Token == "" || cmd.ClassID == "" {
			return nil, &DecodeError{Type: base.Type, Err: ErrMissingField}
		}
		return &cmd, nil

	case MsgTypeStartMeeting, MsgTypeStopMeeting, MsgTypeJoinMeeting, MsgTypeLeaveMeeting:
		return &MeetingCommand{Type: base.Type}, nil

	case MsgTypeSendOffer, MsgTypeSendAnswer, MsgTypeSendIceCandidate:
		var f signalFrame
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, &DecodeError{Type: base.Type, Err: err}
		}
		var payload json.RawMessage
		switch base.Type {
		case MsgTypeSendOffer:
			payload = f.Offer
		case MsgTypeSendAnswer:
			payload = f.Answer
		default:
			payload = f.Candidate
		}
		if f.TargetUserID == "" || len(payload) == 0 {
			return nil, &DecodeError{Type: base.Type, Err: ErrMissingField}
		}
		return &SignalCommand{Type: base.Type, TargetUserID: f.TargetUserID, Payload: payload}, nil

	default:
		return nil, &DecodeError{Type: base.Type, Err: ErrUnknownType}
	}
}

// Server -> Client messages

// MeetingStateMessage is MeetingStarted or MeetingStopped.
type MeetingStateMessage struct {
	Type string `json:"type"`
}

// UserMessage is UserJoined or UserLeft.
type UserMessage struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
}

// OfferMessage delivers an SDP offer from SenderID.
type OfferMessage struct {
	Type     string          `json:"type"`
	SenderID string          `json:"sender_id"`
	Offer    json.RawMessage `json:"offer"`
}

// AnswerMessage delivers an SDP answer from SenderID.
type AnswerMessage struct {
	Type     string          `json:"type"`
	SenderID string          `json:"sender_id"`
	Answer   json.RawMessage `json:"answer"`
}

// IceCandidateMessage delivers an ICE candidate from SenderID.
type IceCandidateMessage struct {
	Type      string          `json:"type"`
	SenderID  string          `json:"sender_id"`
	Candidate json.RawMessage `json:"candidate"`
}

// NewSignalMessage builds the outbound message for a relayed WebRTC blob.
// kind is the outbound type (Offer, Answer or IceCandidate).
func NewSignalMessage(kind, senderID string, payload json.RawMessage) (interface{}, error) {
	switch kind {
	case MsgTypeOffer:
		return &OfferMessage{Type: kind, SenderID: senderID, Offer: payload}, nil
	case MsgTypeAnswer:
		return &AnswerMessage{Type: kind, SenderID: senderID, Answer: payload}, nil
	case MsgTypeIceCandidate:
		return &IceCandidateMessage{Type: kind, SenderID: senderID, Candidate: payload}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, kind)
	}
}
