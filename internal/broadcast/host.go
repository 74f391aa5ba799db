// Package broadcast implements the live-session roles: a host fanning one
// local capture out to independently negotiated viewer connections, and a
// viewer consuming a host's stream with an optional chat channel.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v3"

	"github.com/astrolink/consult-rtc/internal/domain"
	"github.com/astrolink/consult-rtc/internal/media"
	"github.com/astrolink/consult-rtc/internal/relay"
	"github.com/astrolink/consult-rtc/lib/logger/sl"
)

var ErrAlreadyLive = errors.New("live session already running")

// Host runs one outbound stream to a dynamically changing set of viewers.
// Every viewer gets its own peer connection; all of them share the same local
// track references, so muting a track mutes it for everyone at once.
type Host struct {
	bus      relay.Bus
	provider media.Provider
	connect  media.Factory
	log      *slog.Logger
	hostID   string

	mu          sync.Mutex
	live        bool
	stream      media.Stream
	viewers     map[string]media.PeerConnection
	viewerCount int

	onChat func(domain.ChatPayload)

	done      chan struct{}
	closeOnce sync.Once
}

func NewHost(bus relay.Bus, provider media.Provider, connect media.Factory, hostID string, log *slog.Logger) *Host {
	if log == nil {
		log = slog.Default()
	}
	h := &Host{
		bus:      bus,
		provider: provider,
		connect:  connect,
		log:      log,
		hostID:   hostID,
		viewers:  make(map[string]media.PeerConnection),
		done:     make(chan struct{}),
	}
	go h.run()
	return h
}

// OnChat registers the handler for incoming live comments. Display state
// only; nothing is validated or persisted host-side.
func (h *Host) OnChat(fn func(domain.ChatPayload)) {
	h.mu.Lock()
	h.onChat = fn
	h.mu.Unlock()
}

// GoLive acquires local audio+video and announces host presence. Unlike a
// 1:1 call there is no degraded mode: hosting without media is refused.
func (h *Host) GoLive(ctx context.Context) error {
	h.mu.Lock()
	if h.live {
		h.mu.Unlock()
		return ErrAlreadyLive
	}
	h.mu.Unlock()

	stream, err := h.provider.Capture(ctx, domain.CallKindVideo)
	if err != nil {
		return fmt.Errorf("acquire local media: %w", err)
	}

	h.mu.Lock()
	if h.live {
		h.mu.Unlock()
		stream.Stop()
		return ErrAlreadyLive
	}
	h.live = true
	h.stream = stream
	h.mu.Unlock()

	if err := h.bus.Publish(domain.Event{
		Type: domain.EventLiveJoin,
		Room: h.hostID,
		Role: domain.LiveRoleHost,
	}); err != nil {
		h.EndLive()
		return err
	}

	h.log.Info("live session started", slog.String("host_id", h.hostID))
	return nil
}

// EndLive stops the local capture, closes every viewer connection and
// announces the end of the stream. Idempotent.
func (h *Host) EndLive() {
	h.mu.Lock()
	if !h.live {
		h.mu.Unlock()
		return
	}
	h.live = false
	stream := h.stream
	viewers := h.viewers
	h.stream = nil
	h.viewers = make(map[string]media.PeerConnection)
	h.viewerCount = 0
	h.mu.Unlock()

	_ = h.bus.Publish(domain.Event{Type: domain.EventLiveEnded, Room: h.hostID})

	for id, pc := range viewers {
		if err := pc.Close(); err != nil {
			h.log.Debug("viewer connection close failed", slog.String("viewer_id", id), sl.Err(err))
		}
	}
	if stream != nil {
		stream.Stop()
	}

	h.log.Info("live session ended", slog.String("host_id", h.hostID))
}

func (h *Host) SetMicEnabled(on bool) {
	h.mu.Lock()
	stream := h.stream
	h.mu.Unlock()
	if stream != nil {
		stream.SetAudioEnabled(on)
	}
}

func (h *Host) SetCameraEnabled(on bool) {
	h.mu.Lock()
	stream := h.stream
	h.mu.Unlock()
	if stream != nil {
		stream.SetVideoEnabled(on)
	}
}

func (h *Host) ViewerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.viewerCount
}

// ViewerIDs reports the identities with a registered connection.
func (h *Host) ViewerIDs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]string, 0, len(h.viewers))
	for id := range h.viewers {
		ids = append(ids, id)
	}
	return ids
}

func (h *Host) Live() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.live
}

func (h *Host) Close() {
	h.closeOnce.Do(func() { close(h.done) })
	h.EndLive()
}

func (h *Host) run() {
	for {
		select {
		case <-h.done:
			return
		case ev, ok := <-h.bus.Events():
			if !ok {
				return
			}
			h.handle(ev)
		}
	}
}

func (h *Host) handle(ev domain.Event) {
	switch ev.Type {
	case domain.EventViewerJoined:
		h.addViewer(ev.From)
	case domain.EventViewerLeft:
		h.removeViewer(ev.From)
	case domain.EventLiveAnswer:
		h.applyViewerAnswer(ev)
	case domain.EventICECandidate:
		h.applyViewerCandidate(ev)
	case domain.EventViewerCount:
		h.mu.Lock()
		h.viewerCount = ev.Count
		h.mu.Unlock()
	case domain.EventChat:
		h.mu.Lock()
		fn := h.onChat
		h.mu.Unlock()
		if fn != nil && ev.Chat != nil {
			fn(*ev.Chat)
		}
	}
}

// addViewer negotiates a fresh connection for one viewer. A second join for
// the same identity replaces the prior entry; a failure here affects only
// this viewer.
func (h *Host) addViewer(viewerID string) {
	if viewerID == "" {
		return
	}

	h.mu.Lock()
	if !h.live {
		h.mu.Unlock()
		return
	}
	if prior, ok := h.viewers[viewerID]; ok {
		delete(h.viewers, viewerID)
		prior.Close()
	}
	stream := h.stream
	h.mu.Unlock()

	pc, err := h.connect()
	if err != nil {
		h.log.Error("viewer connection failed", slog.String("viewer_id", viewerID), sl.Err(err))
		return
	}

	pc.OnICECandidate(func(candidate webrtc.ICECandidateInit) {
		_ = h.bus.Publish(domain.Event{
			Type:      domain.EventICECandidate,
			To:        viewerID,
			Candidate: &candidate,
		})
	})

	if stream != nil {
		for _, track := range stream.Tracks() {
			if err := pc.AddTrack(track); err != nil {
				h.log.Error("attach track failed", slog.String("viewer_id", viewerID), sl.Err(err))
				pc.Close()
				return
			}
		}
	}

	offer, err := pc.CreateOffer()
	if err != nil {
		h.log.Error("offer failed", slog.String("viewer_id", viewerID), sl.Err(err))
		pc.Close()
		return
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		h.log.Error("set local description failed", slog.String("viewer_id", viewerID), sl.Err(err))
		pc.Close()
		return
	}

	h.mu.Lock()
	if !h.live {
		h.mu.Unlock()
		pc.Close()
		return
	}
	if prior, ok := h.viewers[viewerID]; ok {
		prior.Close()
	}
	h.viewers[viewerID] = pc
	h.mu.Unlock()

	_ = h.bus.Publish(domain.Event{
		Type: domain.EventLiveOffer,
		To:   viewerID,
		SDP:  &offer,
	})
}

func (h *Host) removeViewer(viewerID string) {
	h.mu.Lock()
	pc, ok := h.viewers[viewerID]
	delete(h.viewers, viewerID)
	h.mu.Unlock()

	if ok {
		pc.Close()
		h.log.Debug("viewer left", slog.String("viewer_id", viewerID))
	}
}

func (h *Host) applyViewerAnswer(ev domain.Event) {
	if ev.SDP == nil {
		return
	}

	h.mu.Lock()
	pc, ok := h.viewers[ev.From]
	h.mu.Unlock()
	if !ok {
		// Viewer already left; late answers are expected, not errors.
		return
	}

	if err := pc.SetRemoteDescription(*ev.SDP); err != nil {
		h.log.Debug("viewer answer discarded", slog.String("viewer_id", ev.From), sl.Err(err))
	}
}

func (h *Host) applyViewerCandidate(ev domain.Event) {
	if ev.Candidate == nil {
		return
	}

	h.mu.Lock()
	pc, ok := h.viewers[ev.From]
	h.mu.Unlock()
	if !ok {
		return
	}

	if err := pc.AddICECandidate(*ev.Candidate); err != nil {
		h.log.Debug("viewer candidate discarded", slog.String("viewer_id", ev.From), sl.Err(err))
	}
}
