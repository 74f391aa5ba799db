// Package call runs one 1:1 consultation call per controller: it mediates the
// offer/answer/candidate exchange over the relay and owns the local media and
// the single peer connection for the session.
package call

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/pion/webrtc/v3"

	"github.com/astrolink/consult-rtc/internal/domain"
	"github.com/astrolink/consult-rtc/internal/media"
	"github.com/astrolink/consult-rtc/internal/relay"
	"github.com/astrolink/consult-rtc/lib/logger/sl"
)

type State string

const (
	StateIdle       State = "idle"
	StateRingingOut State = "ringing-out"
	StateRingingIn  State = "ringing-in"
	StateActive     State = "active"
)

var (
	ErrCallInProgress = errors.New("call already in progress")
	ErrNoIncomingCall = errors.New("no incoming call")
)

const defaultRingTimeout = 45 * time.Second

// Snapshot is the externally visible call state. MediaUnavailable marks the
// degraded mode where the call proceeds without a local stream; the UI layer
// must surface it instead of pretending media flows.
type Snapshot struct {
	State            State
	RemoteID         string
	Kind             domain.CallKind
	MediaUnavailable bool
}

type Config struct {
	RingTimeout time.Duration
}

// Controller holds at most one active peer connection and drives the call
// state machine from relay events. All termination paths funnel through one
// idempotent teardown.
type Controller struct {
	bus      relay.Bus
	provider media.Provider
	connect  media.Factory
	log      *slog.Logger

	ringTimeout time.Duration

	mu        sync.Mutex
	state     State
	kind      domain.CallKind
	remoteID  string
	offer     *webrtc.SessionDescription
	pc        media.PeerConnection
	stream    media.Stream
	dummy     bool
	gen       uint64
	ringTimer *time.Timer

	onTrack func(*webrtc.TrackRemote)

	done      chan struct{}
	closeOnce sync.Once
}

func NewController(bus relay.Bus, provider media.Provider, connect media.Factory, log *slog.Logger, cfg Config) *Controller {
	if log == nil {
		log = slog.Default()
	}
	if cfg.RingTimeout <= 0 {
		cfg.RingTimeout = defaultRingTimeout
	}

	c := &Controller{
		bus:         bus,
		provider:    provider,
		connect:     connect,
		log:         log,
		ringTimeout: cfg.RingTimeout,
		state:       StateIdle,
		done:        make(chan struct{}),
	}
	go c.run()
	return c
}

// OnRemoteTrack registers the handler for the remote party's media. Must be
// set before Start or Accept.
func (c *Controller) OnRemoteTrack(fn func(*webrtc.TrackRemote)) {
	c.mu.Lock()
	c.onTrack = fn
	c.mu.Unlock()
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		State:            c.state,
		RemoteID:         c.remoteID,
		Kind:             c.kind,
		MediaUnavailable: c.dummy,
	}
}

// Start initiates an outbound call to remoteID. Capture failure degrades to a
// call without local media rather than failing the call; the snapshot carries
// the flag.
func (c *Controller) Start(ctx context.Context, remoteID string, kind domain.CallKind) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrCallInProgress
	}
	c.state = StateRingingOut
	c.remoteID = remoteID
	c.kind = kind
	gen := c.gen
	c.mu.Unlock()

	stream, dummy := c.capture(ctx, kind)

	c.mu.Lock()
	if c.gen != gen || c.state != StateRingingOut {
		// The call was torn down while capture was pending; a stream granted
		// after hangup must be released, not attached.
		c.mu.Unlock()
		if stream != nil {
			stream.Stop()
		}
		return nil
	}
	c.stream = stream
	c.dummy = dummy
	c.mu.Unlock()

	offer, err := c.negotiateLocal(gen, stream, nil)
	if err != nil {
		c.teardown()
		return err
	}
	if offer == nil {
		return nil
	}

	if err := c.bus.Publish(domain.Event{
		Type: domain.EventCallRequest,
		To:   remoteID,
		Kind: kind,
		SDP:  offer,
	}); err != nil {
		c.teardown()
		return err
	}

	c.armRingTimer(gen)
	return nil
}

// Accept answers the pending incoming call.
func (c *Controller) Accept(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateRingingIn || c.offer == nil {
		c.mu.Unlock()
		return ErrNoIncomingCall
	}
	gen := c.gen
	kind := c.kind
	remoteID := c.remoteID
	remoteOffer := c.offer
	c.mu.Unlock()

	stream, dummy := c.capture(ctx, kind)

	c.mu.Lock()
	if c.gen != gen || c.state != StateRingingIn {
		c.mu.Unlock()
		if stream != nil {
			stream.Stop()
		}
		return nil
	}
	c.stream = stream
	c.dummy = dummy
	c.mu.Unlock()

	answer, err := c.negotiateLocal(gen, stream, remoteOffer)
	if err != nil {
		c.teardown()
		return err
	}
	if answer == nil {
		return nil
	}

	if err := c.bus.Publish(domain.Event{
		Type: domain.EventCallAnswer,
		To:   remoteID,
		SDP:  answer,
	}); err != nil {
		c.teardown()
		return err
	}

	c.mu.Lock()
	if c.gen == gen && c.state == StateRingingIn {
		c.stopRingTimerLocked()
		c.state = StateActive
	}
	c.mu.Unlock()
	return nil
}

// Reject declines the pending incoming call without acquiring any media.
func (c *Controller) Reject() {
	c.mu.Lock()
	if c.state != StateRingingIn {
		c.mu.Unlock()
		return
	}
	remoteID := c.remoteID
	c.mu.Unlock()

	_ = c.bus.Publish(domain.Event{Type: domain.EventCallEnd, To: remoteID})
	c.teardown()
}

// Hangup ends the current call, if any. Idempotent.
func (c *Controller) Hangup() {
	c.mu.Lock()
	if c.state == StateIdle {
		c.mu.Unlock()
		return
	}
	remoteID := c.remoteID
	c.mu.Unlock()

	if remoteID != "" {
		_ = c.bus.Publish(domain.Event{Type: domain.EventCallEnd, To: remoteID})
	}
	c.teardown()
}

// Close stops the event loop and drops any active call.
func (c *Controller) Close() {
	c.closeOnce.Do(func() { close(c.done) })
	c.teardown()
}

func (c *Controller) run() {
	for {
		select {
		case <-c.done:
			return
		case ev, ok := <-c.bus.Events():
			if !ok {
				return
			}
			c.handle(ev)
		}
	}
}

func (c *Controller) handle(ev domain.Event) {
	switch ev.Type {
	case domain.EventCallRequest:
		c.handleIncoming(ev)
	case domain.EventCallAnswer:
		c.handleAnswer(ev)
	case domain.EventICECandidate:
		c.handleCandidate(ev)
	case domain.EventCallEnd:
		c.teardown()
	}
}

func (c *Controller) handleIncoming(ev domain.Event) {
	if ev.SDP == nil || ev.From == "" {
		return
	}

	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		// Busy: decline so the caller does not ring forever.
		_ = c.bus.Publish(domain.Event{Type: domain.EventCallEnd, To: ev.From})
		return
	}
	c.state = StateRingingIn
	c.remoteID = ev.From
	c.kind = ev.Kind
	c.offer = ev.SDP
	gen := c.gen
	c.mu.Unlock()

	c.armRingTimer(gen)
}

func (c *Controller) handleAnswer(ev domain.Event) {
	if ev.SDP == nil {
		return
	}

	c.mu.Lock()
	if c.state != StateRingingOut || c.pc == nil {
		c.mu.Unlock()
		c.log.Debug("answer dropped", slog.String("state", string(c.state)))
		return
	}
	pc := c.pc
	c.stopRingTimerLocked()
	c.mu.Unlock()

	if err := pc.SetRemoteDescription(*ev.SDP); err != nil {
		c.log.Error("failed to apply answer", sl.Err(err))
		c.Hangup()
		return
	}

	c.mu.Lock()
	if c.state == StateRingingOut {
		c.state = StateActive
	}
	c.mu.Unlock()
}

func (c *Controller) handleCandidate(ev domain.Event) {
	if ev.Candidate == nil {
		return
	}

	c.mu.Lock()
	pc := c.pc
	c.mu.Unlock()
	if pc == nil {
		// Late candidate for a closed session, expected and not actionable.
		return
	}

	if err := pc.AddICECandidate(*ev.Candidate); err != nil {
		c.log.Debug("candidate discarded", sl.Err(err))
	}
}

func (c *Controller) capture(ctx context.Context, kind domain.CallKind) (media.Stream, bool) {
	stream, err := c.provider.Capture(ctx, kind)
	if err != nil {
		c.log.Warn("local media unavailable, continuing without it", sl.Err(err))
		return nil, true
	}
	return stream, false
}

// negotiateLocal builds the peer connection, attaches local tracks and
// produces the local description: an offer when remoteOffer is nil, an
// answer otherwise. Returns nil without error when the session ended
// mid-setup.
func (c *Controller) negotiateLocal(gen uint64, stream media.Stream, remoteOffer *webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	pc, err := c.connect()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.gen != gen || (c.state != StateRingingOut && c.state != StateRingingIn) {
		c.mu.Unlock()
		pc.Close()
		return nil, nil
	}
	c.pc = pc
	remoteID := c.remoteID
	onTrack := c.onTrack
	c.mu.Unlock()

	pc.OnICECandidate(func(candidate webrtc.ICECandidateInit) {
		_ = c.bus.Publish(domain.Event{
			Type:      domain.EventICECandidate,
			To:        remoteID,
			Candidate: &candidate,
		})
	})
	if onTrack != nil {
		pc.OnTrack(onTrack)
	}

	if stream != nil {
		for _, track := range stream.Tracks() {
			if err := pc.AddTrack(track); err != nil {
				return nil, err
			}
		}
	}

	if remoteOffer != nil {
		if err := pc.SetRemoteDescription(*remoteOffer); err != nil {
			return nil, err
		}
		answer, err := pc.CreateAnswer()
		if err != nil {
			return nil, err
		}
		if err := pc.SetLocalDescription(answer); err != nil {
			return nil, err
		}
		return &answer, nil
	}

	offer, err := pc.CreateOffer()
	if err != nil {
		return nil, err
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		return nil, err
	}
	return &offer, nil
}

func (c *Controller) armRingTimer(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen || (c.state != StateRingingOut && c.state != StateRingingIn) {
		return
	}
	c.stopRingTimerLocked()
	c.ringTimer = time.AfterFunc(c.ringTimeout, func() { c.abandonRing(gen) })
}

// abandonRing fires when nobody answered within the ring timeout; the remote
// side is notified so it stops ringing too.
func (c *Controller) abandonRing(gen uint64) {
	c.mu.Lock()
	if c.gen != gen || (c.state != StateRingingOut && c.state != StateRingingIn) {
		c.mu.Unlock()
		return
	}
	remoteID := c.remoteID
	c.mu.Unlock()

	c.log.Info("ring timeout", slog.String("remote_id", remoteID))
	if remoteID != "" {
		_ = c.bus.Publish(domain.Event{Type: domain.EventCallEnd, To: remoteID})
	}
	c.teardown()
}

func (c *Controller) stopRingTimerLocked() {
	if c.ringTimer != nil {
		c.ringTimer.Stop()
		c.ringTimer = nil
	}
}

// teardown releases every session resource and resets to idle. Invoked from
// local hangup, remote hangup, reject, ring timeout and error paths; safe to
// call any number of times.
func (c *Controller) teardown() {
	c.mu.Lock()
	c.gen++
	c.stopRingTimerLocked()
	stream := c.stream
	pc := c.pc
	c.stream = nil
	c.pc = nil
	c.offer = nil
	c.remoteID = ""
	c.kind = ""
	c.dummy = false
	c.state = StateIdle
	c.mu.Unlock()

	if stream != nil {
		stream.Stop()
	}
	if pc != nil {
		pc.Close()
	}
}
