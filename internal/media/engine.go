package media

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"
	pionmedia "github.com/pion/webrtc/v3/pkg/media"

	"github.com/astrolink/consult-rtc/internal/domain"
)

// Engine builds pion peer connections from the configured ICE servers.
type Engine struct {
	config webrtc.Configuration
}

func NewEngine(stunServers []string) *Engine {
	cfg := webrtc.Configuration{}
	if len(stunServers) > 0 {
		cfg.ICEServers = []webrtc.ICEServer{{URLs: stunServers}}
	}
	return &Engine{config: cfg}
}

func (e *Engine) NewPeerConnection() (PeerConnection, error) {
	pc, err := webrtc.NewPeerConnection(e.config)
	if err != nil {
		return nil, err
	}
	return &pionConn{pc: pc}, nil
}

type pionConn struct {
	pc *webrtc.PeerConnection
}

func (c *pionConn) AddTrack(track webrtc.TrackLocal) error {
	_, err := c.pc.AddTrack(track)
	return err
}

func (c *pionConn) CreateOffer() (webrtc.SessionDescription, error) {
	return c.pc.CreateOffer(nil)
}

func (c *pionConn) CreateAnswer() (webrtc.SessionDescription, error) {
	return c.pc.CreateAnswer(nil)
}

func (c *pionConn) SetLocalDescription(desc webrtc.SessionDescription) error {
	return c.pc.SetLocalDescription(desc)
}

func (c *pionConn) SetRemoteDescription(desc webrtc.SessionDescription) error {
	return c.pc.SetRemoteDescription(desc)
}

func (c *pionConn) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	return c.pc.AddICECandidate(candidate)
}

func (c *pionConn) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	c.pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate == nil {
			return
		}
		fn(candidate.ToJSON())
	})
}

func (c *pionConn) OnTrack(fn func(*webrtc.TrackRemote)) {
	c.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		fn(track)
	})
}

func (c *pionConn) Close() error {
	return c.pc.Close()
}

const (
	audioFrameInterval = 20 * time.Millisecond
	videoFrameInterval = 100 * time.Millisecond
)

// opusSilence is a minimal silent opus frame.
var opusSilence = []byte{0xf8, 0xff, 0xfe}

// SampleProvider captures into static sample tracks fed by a generator
// goroutine. It backs headless deployments (the live host agent) where no
// browser provides the capture.
type SampleProvider struct{}

func NewSampleProvider() *SampleProvider { return &SampleProvider{} }

func (p *SampleProvider) Capture(ctx context.Context, kind domain.CallKind) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	streamID := uuid.New().String()

	audio, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio", streamID,
	)
	if err != nil {
		return nil, err
	}

	s := &sampleStream{audio: audio, audioOn: true, videoOn: true, done: make(chan struct{})}

	if kind == domain.CallKindVideo {
		video, err := webrtc.NewTrackLocalStaticSample(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8},
			"video", streamID,
		)
		if err != nil {
			return nil, err
		}
		s.video = video
	}

	go s.pump()
	return s, nil
}

type sampleStream struct {
	audio *webrtc.TrackLocalStaticSample
	video *webrtc.TrackLocalStaticSample

	mu      sync.Mutex
	audioOn bool
	videoOn bool

	done     chan struct{}
	stopOnce sync.Once
}

// pump feeds placeholder samples so negotiated connections actually carry
// RTP. A muted track receives no samples, which is how the toggles take
// effect on every attached connection at once.
func (s *sampleStream) pump() {
	audioTick := time.NewTicker(audioFrameInterval)
	defer audioTick.Stop()

	var videoC <-chan time.Time
	if s.video != nil {
		videoTick := time.NewTicker(videoFrameInterval)
		defer videoTick.Stop()
		videoC = videoTick.C
	}

	videoFrame := make([]byte, 256)

	for {
		select {
		case <-s.done:
			return
		case <-audioTick.C:
			if s.AudioEnabled() {
				_ = s.audio.WriteSample(pionmedia.Sample{Data: opusSilence, Duration: audioFrameInterval})
			}
		case <-videoC:
			if s.VideoEnabled() {
				_ = s.video.WriteSample(pionmedia.Sample{Data: videoFrame, Duration: videoFrameInterval})
			}
		}
	}
}

func (s *sampleStream) Tracks() []webrtc.TrackLocal {
	tracks := []webrtc.TrackLocal{s.audio}
	if s.video != nil {
		tracks = append(tracks, s.video)
	}
	return tracks
}

func (s *sampleStream) SetAudioEnabled(on bool) {
	s.mu.Lock()
	s.audioOn = on
	s.mu.Unlock()
}

func (s *sampleStream) SetVideoEnabled(on bool) {
	s.mu.Lock()
	s.videoOn = on
	s.mu.Unlock()
}

func (s *sampleStream) AudioEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.audioOn
}

func (s *sampleStream) VideoEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.videoOn
}

func (s *sampleStream) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
}
