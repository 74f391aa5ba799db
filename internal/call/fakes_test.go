package call

import (
	"context"
	"errors"
	"sync"

	"github.com/pion/webrtc/v3"

	"github.com/astrolink/consult-rtc/internal/domain"
	"github.com/astrolink/consult-rtc/internal/media"
)

// fakeBus records published events and can be cross-linked with a peer bus so
// two controllers signal each other the way they would through the relay.
type fakeBus struct {
	id    string
	ready chan struct{}

	mu        sync.Mutex
	published []domain.Event
	events    chan domain.Event
	peer      *fakeBus
	closed    bool
}

func newFakeBus(id string) *fakeBus {
	b := &fakeBus{
		id:     id,
		ready:  make(chan struct{}),
		events: make(chan domain.Event, 32),
	}
	close(b.ready)
	return b
}

// link wires two buses back to back: an event published on one arrives on the
// other, stamped with the sender identity.
func link(a, b *fakeBus) {
	a.peer = b
	b.peer = a
}

func (b *fakeBus) Publish(ev domain.Event) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return errors.New("bus closed")
	}
	b.published = append(b.published, ev)
	peer := b.peer
	b.mu.Unlock()

	if peer != nil {
		ev.From = b.id
		peer.deliver(ev)
	}
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

func newFakeStream(kind domain.CallKind) *fakeStream {
	audio, _ := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", "capture",
	)
	s := &fakeStream{tracks: []webrtc.TrackLocal{audio}, audio: true}
	if kind == domain.CallKindVideo {
		video, _ := webrtc.NewTrackLocalStaticSample(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", "capture",
		)
		s.tracks = append(s.tracks, video)
		s.video = true
	}
	return s
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

// fakeProvider hands out fresh streams, or a fixed error, and can block until
// released to simulate a slow permission prompt.
type fakeProvider struct {
	mu       sync.Mutex
	err      error
	gate     chan struct{}
	captures int
	streams  []*fakeStream
}

func (p *fakeProvider) Capture(ctx context.Context, kind domain.CallKind) (media.Stream, error) {
	p.mu.Lock()
	gate := p.gate
	p.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.captures++
	if p.err != nil {
		return nil, p.err
	}
	stream := newFakeStream(kind)
	p.streams = append(p.streams, stream)
	return stream, nil
}

func (p *fakeProvider) captureCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.captures
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

func (pc *fakePC) trackCount() int {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return len(pc.tracks)
}

// fakeConnector is a media.Factory that remembers every connection it built.
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

func (f *fakeConnector) last() *fakePC {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.conns) == 0 {
		return nil
	}
	return f.conns[len(f.conns)-1]
}

func (f *fakeConnector) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.conns)
}
