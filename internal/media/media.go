// Package media abstracts the platform capabilities the controllers need:
// local capture and peer connections. Controllers depend on these interfaces
// only, so they can be driven by the pion-backed Engine or by fakes.
package media

import (
	"context"

	"github.com/pion/webrtc/v3"

	"github.com/astrolink/consult-rtc/internal/domain"
)

// Stream is one local capture: audio always, video when the kind asked for
// it. Track references are shared by every connection the stream is attached
// to, so toggling a track is visible on all of them at once.
type Stream interface {
	Tracks() []webrtc.TrackLocal
	SetAudioEnabled(bool)
	SetVideoEnabled(bool)
	AudioEnabled() bool
	VideoEnabled() bool
	// Stop releases the capture. Safe to call more than once.
	Stop()
}

// Provider acquires local media. An error means the device or permission is
// unavailable; callers decide whether that is fatal.
type Provider interface {
	Capture(ctx context.Context, kind domain.CallKind) (Stream, error)
}

// PeerConnection is the negotiation surface of one peer link.
type PeerConnection interface {
	AddTrack(webrtc.TrackLocal) error
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(webrtc.SessionDescription) error
	SetRemoteDescription(webrtc.SessionDescription) error
	AddICECandidate(webrtc.ICECandidateInit) error
	OnICECandidate(func(webrtc.ICECandidateInit))
	OnTrack(func(*webrtc.TrackRemote))
	Close() error
}

// Factory produces fresh peer connections. The broadcast host calls it once
// per viewer.
type Factory func() (PeerConnection, error)
