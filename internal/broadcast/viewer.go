package broadcast

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"

	"github.com/astrolink/consult-rtc/internal/domain"
	"github.com/astrolink/consult-rtc/internal/media"
	"github.com/astrolink/consult-rtc/internal/relay"
	"github.com/astrolink/consult-rtc/lib/logger/sl"
)

type ViewerStatus string

const (
	ViewerStatusJoining ViewerStatus = "joining"
	ViewerStatusLive    ViewerStatus = "live"
	ViewerStatusEnded   ViewerStatus = "ended"
)

// Viewer consumes one host's live session: a single inbound connection plus
// an optional outbound chat channel. Chat is optimistic: a sent message
// renders immediately and the relay echo is deduplicated by its id.
type Viewer struct {
	bus         relay.Bus
	connect     media.Factory
	log         *slog.Logger
	hostID      string
	displayName string

	mu          sync.Mutex
	status      ViewerStatus
	pc          media.PeerConnection
	seen        map[string]struct{}
	messages    []domain.ChatPayload
	viewerCount int

	onTrack func(*webrtc.TrackRemote)
	onEnded func()

	done      chan struct{}
	closeOnce sync.Once
}

func NewViewer(bus relay.Bus, connect media.Factory, hostID, displayName string, log *slog.Logger) *Viewer {
	if log == nil {
		log = slog.Default()
	}
	return &Viewer{
		bus:         bus,
		connect:     connect,
		log:         log,
		hostID:      hostID,
		displayName: displayName,
		status:      ViewerStatusJoining,
		seen:        make(map[string]struct{}),
		done:        make(chan struct{}),
	}
}

// OnRemoteTrack registers the handler that receives the host's stream.
func (v *Viewer) OnRemoteTrack(fn func(*webrtc.TrackRemote)) {
	v.mu.Lock()
	v.onTrack = fn
	v.mu.Unlock()
}

// OnEnded registers the handler fired when the host ends the stream.
func (v *Viewer) OnEnded(fn func()) {
	v.mu.Lock()
	v.onEnded = fn
	v.mu.Unlock()
}

// Start creates the connection, then joins the host's room once the relay
// confirms the attachment. Joining before that confirmation would be a lost
// message, so the join is gated on Ready, not fire-and-forget.
func (v *Viewer) Start(ctx context.Context) error {
	pc, err := v.connect()
	if err != nil {
		return err
	}

	pc.OnICECandidate(func(candidate webrtc.ICECandidateInit) {
		_ = v.bus.Publish(domain.Event{
			Type:      domain.EventICECandidate,
			To:        v.hostID,
			Candidate: &candidate,
		})
	})
	pc.OnTrack(func(track *webrtc.TrackRemote) {
		v.mu.Lock()
		if v.status == ViewerStatusJoining {
			v.status = ViewerStatusLive
		}
		fn := v.onTrack
		v.mu.Unlock()
		if fn != nil {
			fn(track)
		}
	})

	v.mu.Lock()
	v.pc = pc
	v.mu.Unlock()

	go v.run()

	select {
	case <-v.bus.Ready():
	case <-ctx.Done():
		v.teardown()
		return ctx.Err()
	}

	return v.bus.Publish(domain.Event{
		Type: domain.EventLiveJoin,
		Room: v.hostID,
		Role: domain.LiveRoleViewer,
	})
}

// SendChat publishes a message and renders it locally right away. The echo
// coming back from the relay is suppressed by the locally generated id.
func (v *Viewer) SendChat(text string) domain.ChatPayload {
	payload := domain.ChatPayload{
		ID:     uuid.New().String(),
		Sender: v.displayName,
		Text:   text,
	}

	v.mu.Lock()
	v.seen[payload.ID] = struct{}{}
	v.messages = append(v.messages, payload)
	v.mu.Unlock()

	_ = v.bus.Publish(domain.Event{
		Type: domain.EventChat,
		Room: v.hostID,
		Chat: &payload,
	})
	return payload
}

func (v *Viewer) Messages() []domain.ChatPayload {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]domain.ChatPayload, len(v.messages))
	copy(out, v.messages)
	return out
}

func (v *Viewer) Status() ViewerStatus {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.status
}

func (v *Viewer) ViewerCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.viewerCount
}

func (v *Viewer) Close() {
	v.closeOnce.Do(func() { close(v.done) })
	v.teardown()
}

func (v *Viewer) run() {
	for {
		select {
		case <-v.done:
			return
		case ev, ok := <-v.bus.Events():
			if !ok {
				return
			}
			v.handle(ev)
		}
	}
}

func (v *Viewer) handle(ev domain.Event) {
	switch ev.Type {
	case domain.EventLiveOffer:
		v.answerOffer(ev)
	case domain.EventICECandidate:
		v.applyCandidate(ev)
	case domain.EventLiveEnded:
		v.handleEnded()
	case domain.EventChat:
		v.appendChat(ev)
	case domain.EventViewerCount:
		v.mu.Lock()
		v.viewerCount = ev.Count
		v.mu.Unlock()
	}
}

func (v *Viewer) answerOffer(ev domain.Event) {
	if ev.SDP == nil {
		return
	}

	v.mu.Lock()
	pc := v.pc
	v.mu.Unlock()
	if pc == nil {
		return
	}

	if err := pc.SetRemoteDescription(*ev.SDP); err != nil {
		v.log.Error("failed to apply host offer", sl.Err(err))
		return
	}
	answer, err := pc.CreateAnswer()
	if err != nil {
		v.log.Error("answer failed", sl.Err(err))
		return
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		v.log.Error("set local description failed", sl.Err(err))
		return
	}

	_ = v.bus.Publish(domain.Event{
		Type: domain.EventLiveAnswer,
		To:   v.hostID,
		SDP:  &answer,
	})
}

func (v *Viewer) applyCandidate(ev domain.Event) {
	if ev.Candidate == nil {
		return
	}

	v.mu.Lock()
	pc := v.pc
	v.mu.Unlock()
	if pc == nil {
		return
	}

	if err := pc.AddICECandidate(*ev.Candidate); err != nil {
		v.log.Debug("candidate discarded", sl.Err(err))
	}
}

// handleEnded is terminal: the viewer does not attempt reconnection.
func (v *Viewer) handleEnded() {
	v.mu.Lock()
	if v.status == ViewerStatusEnded {
		v.mu.Unlock()
		return
	}
	v.status = ViewerStatusEnded
	fn := v.onEnded
	v.mu.Unlock()

	v.teardown()
	if fn != nil {
		fn()
	}
}

func (v *Viewer) appendChat(ev domain.Event) {
	if ev.Chat == nil || ev.Chat.ID == "" {
		return
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if _, dup := v.seen[ev.Chat.ID]; dup {
		return
	}
	v.seen[ev.Chat.ID] = struct{}{}
	v.messages = append(v.messages, *ev.Chat)
}

func (v *Viewer) teardown() {
	v.mu.Lock()
	pc := v.pc
	v.pc = nil
	v.mu.Unlock()

	if pc != nil {
		pc.Close()
	}
}
