package domain

import (
	"errors"
	"fmt"

	"github.com/pion/webrtc/v3"
)

// EventType discriminates relay events. Every frame crossing the relay is an
// Event with exactly the fields its type requires; Validate enforces that at
// the boundary so handlers never see half-formed payloads.
type EventType string

const (
	// 1:1 consultation call lifecycle.
	EventCallRequest  EventType = "call-request"
	EventCallAnswer   EventType = "call-answer"
	EventCallEnd      EventType = "call-end"
	EventICECandidate EventType = "ice-candidate"

	// Live session (one host, N viewers).
	EventLiveJoin     EventType = "live-join"
	EventViewerJoined EventType = "viewer-joined"
	EventViewerLeft   EventType = "viewer-left"
	EventLiveOffer    EventType = "live-offer"
	EventLiveAnswer   EventType = "live-answer"
	EventViewerCount  EventType = "viewer-count"
	EventChat         EventType = "chat"
	EventLiveEnded    EventType = "live-ended"

	// Sent by the relay once a participant is attached. Clients gate their
	// first join on this, not on the socket dial.
	EventAttached EventType = "attached"
)

type CallKind string

const (
	CallKindVoice CallKind = "voice"
	CallKindVideo CallKind = "video"
)

type LiveRole string

const (
	LiveRoleHost   LiveRole = "host"
	LiveRoleViewer LiveRole = "viewer"
)

var (
	ErrUnknownEventType = errors.New("unknown event type")
	ErrInvalidEvent     = errors.New("invalid event")
)

type ChatPayload struct {
	ID     string `json:"id"`
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

type Event struct {
	Type      EventType                  `json:"type"`
	From      string                     `json:"from,omitempty"`
	To        string                     `json:"to,omitempty"`
	Room      string                     `json:"room,omitempty"`
	Kind      CallKind                   `json:"kind,omitempty"`
	Role      LiveRole                   `json:"role,omitempty"`
	SDP       *webrtc.SessionDescription `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
	Chat      *ChatPayload               `json:"chat,omitempty"`
	Count     int                        `json:"count,omitempty"`
}

// Validate checks the per-type required fields. From is stamped by the relay,
// so it is not required on outbound events.
func (e Event) Validate() error {
	switch e.Type {
	case EventCallRequest:
		if e.To == "" || e.SDP == nil {
			return fmt.Errorf("%w: %s requires to and sdp", ErrInvalidEvent, e.Type)
		}
		if e.Kind != CallKindVoice && e.Kind != CallKindVideo {
			return fmt.Errorf("%w: %s requires kind voice or video", ErrInvalidEvent, e.Type)
		}
	case EventCallAnswer, EventLiveOffer, EventLiveAnswer:
		if e.To == "" || e.SDP == nil {
			return fmt.Errorf("%w: %s requires to and sdp", ErrInvalidEvent, e.Type)
		}
	case EventICECandidate:
		if e.To == "" || e.Candidate == nil {
			return fmt.Errorf("%w: %s requires to and candidate", ErrInvalidEvent, e.Type)
		}
	case EventCallEnd:
		if e.To == "" {
			return fmt.Errorf("%w: %s requires to", ErrInvalidEvent, e.Type)
		}
	case EventLiveJoin:
		if e.Room == "" {
			return fmt.Errorf("%w: %s requires room", ErrInvalidEvent, e.Type)
		}
		if e.Role != LiveRoleHost && e.Role != LiveRoleViewer {
			return fmt.Errorf("%w: %s requires role host or viewer", ErrInvalidEvent, e.Type)
		}
	case EventViewerJoined, EventViewerLeft:
		if e.From == "" {
			return fmt.Errorf("%w: %s requires from", ErrInvalidEvent, e.Type)
		}
	case EventChat:
		if e.Room == "" || e.Chat == nil {
			return fmt.Errorf("%w: %s requires room and chat payload", ErrInvalidEvent, e.Type)
		}
		if e.Chat.ID == "" || e.Chat.Text == "" {
			return fmt.Errorf("%w: chat payload requires id and text", ErrInvalidEvent)
		}
	case EventViewerCount:
		if e.Count < 0 {
			return fmt.Errorf("%w: %s requires non-negative count", ErrInvalidEvent, e.Type)
		}
	case EventLiveEnded, EventAttached:
		// No required fields beyond the type.
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEventType, e.Type)
	}

	return nil
}
