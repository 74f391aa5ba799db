package broadcast

import (
	"context"
	"errors"
	"sync"

	"github.com/pion/webrtc/v3"

	"github.com/astrolink/consult-rtc/internal/domain"
	"github.com/astrolink/consult-rtc/internal/media"
)

type fakeBus struct {
	mu        sync.Mutex
	published []domain.Event
	events    chan domain.Event
	ready     chan struct{}
	closed    bool
}

func newFakeBus() *fakeBus {
	b := &fakeBus{
		events: make(chan domain.Event, 32),
		ready:  make(chan struct{}),
	}
	close(b.ready)
	return b
}

// newUnreadyBus keeps Ready pending so tests can control when the relay
// acknowledges the attachment.
func newUnreadyBus() *fakeBus {
	return &fakeBus{
		events: make(chan domain.Event, 32),
		ready:  make(chan struct{}),
	}
}

func (b *fakeBus) Publish(ev domain.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errors.New("bus closed")
	}
	b.published = append(b.published, ev)
	return nil
}

func (b *fakeBus) deliver(ev domain.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	select {
	case b.events <- ev:
	default:
	}
}

func (b *fakeBus) Events() <-chan domain.Event { return b.events }
func (b *fakeBus) Ready() <-chan struct{}      { return b.ready }

func (b *fakeBus) markReady() {
	close(b.ready)
}

func (b *fakeBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.events)
	}
	return nil
}

func (b *fakeBus) sent(t domain.EventType) []domain.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []domain.Event
	for _, ev := range b.published {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

type fakeStream struct {
	mu      sync.Mutex
	tracks  []webrtc.TrackLocal
	audio   bool
	video   bool
	stopped int
}

func newFakeStream() *fakeStream {
	audio, _ := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", "capture",
	)
	video, _ := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", "capture",
	)
	return &fakeStream{tracks: []webrtc.TrackLocal{audio, video}, audio: true, video: true}
}

func (s *fakeStream) Tracks() []webrtc.TrackLocal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracks
}

func (s *fakeStream) SetAudioEnabled(on bool) { s.mu.Lock(); s.audio = on; s.mu.Unlock() }
func (s *fakeStream) SetVideoEnabled(on bool) { s.mu.Lock(); s.video = on; s.mu.Unlock() }

func (s *fakeStream) AudioEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.audio
}

func (s *fakeStream) VideoEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.video
}

func (s *fakeStream) Stop() {
	s.mu.Lock()
	s.stopped++
	s.mu.Unlock()
}

func (s *fakeStream) stopCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

type fakeProvider struct {
	mu      sync.Mutex
	err     error
	streams []*fakeStream
}

func (p *fakeProvider) Capture(ctx context.Context, kind domain.CallKind) (media.Stream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	stream := newFakeStream()
	p.streams = append(p.streams, stream)
	return stream, nil
}

func (p *fakeProvider) lastStream() *fakeStream {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.streams) == 0 {
		return nil
	}
	return p.streams[len(p.streams)-1]
}

type fakePC struct {
	mu          sync.Mutex
	tracks      []webrtc.TrackLocal
	local       *webrtc.SessionDescription
	remote      *webrtc.SessionDescription
	candidates  []webrtc.ICECandidateInit
	onCandidate func(webrtc.ICECandidateInit)
	onTrack     func(*webrtc.TrackRemote)
	closed      bool
}

func (pc *fakePC) AddTrack(track webrtc.TrackLocal) error {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.tracks = append(pc.tracks, track)
	return nil
}

func (pc *fakePC) CreateOffer() (webrtc.SessionDescription, error) {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0 offer"}, nil
}

func (pc *fakePC) CreateAnswer() (webrtc.SessionDescription, error) {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0 answer"}, nil
}

func (pc *fakePC) SetLocalDescription(sdp webrtc.SessionDescription) error {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.local = &sdp
	return nil
}

func (pc *fakePC) SetRemoteDescription(sdp webrtc.SessionDescription) error {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.remote = &sdp
	return nil
}

func (pc *fakePC) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.candidates = append(pc.candidates, candidate)
	return nil
}

func (pc *fakePC) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	pc.mu.Lock()
	pc.onCandidate = fn
	pc.mu.Unlock()
}

func (pc *fakePC) OnTrack(fn func(*webrtc.TrackRemote)) {
	pc.mu.Lock()
	pc.onTrack = fn
	pc.mu.Unlock()
}

func (pc *fakePC) fireTrack(track *webrtc.TrackRemote) {
	pc.mu.Lock()
	fn := pc.onTrack
	pc.mu.Unlock()
	if fn != nil {
		fn(track)
	}
}

func (pc *fakePC) Close() error {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.closed = true
	return nil
}

func (pc *fakePC) isClosed() bool {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.closed
}

func (pc *fakePC) remoteSDP() *webrtc.SessionDescription {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.remote
}

func (pc *fakePC) candidateCount() int {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return len(pc.candidates)
}

type fakeConnector struct {
	mu    sync.Mutex
	err   error
	conns []*fakePC
}

func (f *fakeConnector) connect() (media.PeerConnection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	pc := &fakePC{}
	f.conns = append(f.conns, pc)
	return pc, nil
}

func (f *fakeConnector) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.conns)
}

func (f *fakeConnector) conn(i int) *fakePC {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conns[i]
}
