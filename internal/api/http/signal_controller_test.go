package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astrolink/consult-rtc/internal/domain"
	"github.com/astrolink/consult-rtc/internal/relay"
	"github.com/astrolink/consult-rtc/internal/repository"
	"github.com/astrolink/consult-rtc/internal/service"
)

const testSecret = "test-secret"

func newTestServer(t *testing.T) (*httptest.Server, *service.RelayService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	consultations := repository.NewInMemoryConsultationRepository()
	sessions := repository.NewInMemoryLiveSessionRepository()
	chats := repository.NewInMemoryChatRepository()
	presence := repository.NewInMemoryPresenceStore()
	users := repository.NewInMemoryUserRepository()

	userService := service.NewUserService(users, nil)
	sessionService := service.NewSessionService(consultations, sessions, chats, presence, nil)
	relayService := service.NewRelayService(consultations, sessions, chats, presence, nil)

	router := SetupRouter(
		[]string{"http://localhost:3000"},
		testSecret,
		NewAuthController(userService, testSecret, time.Hour, testLogger()),
		NewUserController(userService, testLogger()),
		NewSessionController(sessionService, testLogger()),
		NewSignalController(relayService, testLogger()),
	)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server, relayService
}

func signToken(t *testing.T, userID, name string) string {
	t.Helper()
	claims := JWTClaims{
		UserID: userID,
		Name:   name,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/signal"
}

func dialSignal(t *testing.T, server *httptest.Server, userID string) *relay.Client {
	t.Helper()

	client, err := relay.Dial(context.Background(), wsURL(server), signToken(t, userID, userID), nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	select {
	case <-client.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("relay never acknowledged the attachment")
	}
	return client
}

func TestSignal_AuthRequired(t *testing.T) {
	server, _ := newTestServer(t)

	_, err := relay.Dial(context.Background(), wsURL(server), "", nil)
	assert.Error(t, err, "dial without a token must be refused before the upgrade")

	_, err = relay.Dial(context.Background(), wsURL(server), "not-a-jwt", nil)
	assert.Error(t, err)
}

func TestSignal_TokenInQuery(t *testing.T) {
	server, _ := newTestServer(t)

	url := wsURL(server) + "?token=" + signToken(t, "alice", "alice")
	client, err := relay.Dial(context.Background(), url, "", nil)
	require.NoError(t, err, "browsers cannot set headers on websocket dials")
	defer client.Close()

	select {
	case <-client.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("relay never acknowledged the attachment")
	}
}

func TestSignal_CallOverWebsocket(t *testing.T) {
	server, _ := newTestServer(t)

	alice := dialSignal(t, server, "alice")
	bob := dialSignal(t, server, "bob")

	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0 offer"}
	require.NoError(t, alice.Publish(domain.Event{
		Type: domain.EventCallRequest,
		To:   "bob",
		Kind: domain.CallKindVideo,
		SDP:  &offer,
	}))

	select {
	case ev := <-bob.Events():
		assert.Equal(t, domain.EventCallRequest, ev.Type)
		assert.Equal(t, "alice", ev.From)
		assert.Equal(t, domain.CallKindVideo, ev.Kind)
		require.NotNil(t, ev.SDP)
		assert.Equal(t, "v=0 offer", ev.SDP.SDP)
	case <-time.After(2 * time.Second):
		t.Fatal("call request never reached the callee")
	}

	answer := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0 answer"}
	require.NoError(t, bob.Publish(domain.Event{Type: domain.EventCallAnswer, To: "alice", SDP: &answer}))

	select {
	case ev := <-alice.Events():
		assert.Equal(t, domain.EventCallAnswer, ev.Type)
		assert.Equal(t, "bob", ev.From)
	case <-time.After(2 * time.Second):
		t.Fatal("answer never reached the caller")
	}
}

// Error replies are written from the read loop while delivered events are
// written from the write loop; both paths share one socket and must be
// serialized. This floods the two paths at once and checks every frame
// arrives intact.
func TestSignal_ErrorRepliesInterleaveWithDeliveries(t *testing.T) {
	server, _ := newTestServer(t)

	alice := dialSignal(t, server, "alice")

	bobConn, resp, err := websocket.DefaultDialer.Dial(wsURL(server)+"?token="+signToken(t, "bob", "bob"), nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	defer bobConn.Close()

	bobConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ack domain.Event
	require.NoError(t, bobConn.ReadJSON(&ack))
	require.Equal(t, domain.EventAttached, ack.Type)

	const frames = 50

	go func() {
		for i := 0; i < frames; i++ {
			_ = bobConn.WriteJSON(domain.Event{Type: "bogus"})
		}
	}()
	go func() {
		candidate := webrtc.ICECandidateInit{Candidate: "candidate:1 1 udp 2130706431 10.0.0.1 54321 typ host"}
		for i := 0; i < frames; i++ {
			_ = alice.Publish(domain.Event{
				Type:      domain.EventICECandidate,
				To:        "bob",
				Candidate: &candidate,
			})
		}
	}()

	candidates, errorReplies := 0, 0
	bobConn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for candidates < frames || errorReplies < frames {
		var frame map[string]json.RawMessage
		require.NoError(t, bobConn.ReadJSON(&frame), "every frame must decode cleanly")

		switch {
		case string(frame["type"]) == `"ice-candidate"`:
			candidates++
		case frame["error"] != nil:
			errorReplies++
		}
	}

	assert.Equal(t, frames, candidates)
	assert.Equal(t, frames, errorReplies)
}

func TestSignal_DisconnectDetaches(t *testing.T) {
	server, _ := newTestServer(t)

	alice := dialSignal(t, server, "alice")
	bob := dialSignal(t, server, "bob")

	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0 offer"}
	require.NoError(t, alice.Publish(domain.Event{
		Type: domain.EventCallRequest,
		To:   "bob",
		Kind: domain.CallKindVoice,
		SDP:  &offer,
	}))

	select {
	case ev := <-bob.Events():
		require.Equal(t, domain.EventCallRequest, ev.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("call request never arrived")
	}

	alice.Close()

	select {
	case ev := <-bob.Events():
		assert.Equal(t, domain.EventCallEnd, ev.Type)
		assert.Equal(t, "alice", ev.From, "a dropped socket must end its calls")
	case <-time.After(2 * time.Second):
		t.Fatal("peer was never told about the disconnect")
	}
}
