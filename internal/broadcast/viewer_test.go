package broadcast

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astrolink/consult-rtc/internal/domain"
)

func TestViewer_JoinGatedOnReady(t *testing.T) {
	t.Parallel()

	bus := newUnreadyBus()
	connector := &fakeConnector{}
	viewer := NewViewer(bus, connector.connect, "astrologer-1", "stargazer", nil)
	defer viewer.Close()

	started := make(chan error, 1)
	go func() {
		started <- viewer.Start(context.Background())
	}()

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, bus.sent(domain.EventLiveJoin), "join must wait for the relay acknowledgement")

	bus.markReady()
	require.NoError(t, <-started)

	joins := bus.sent(domain.EventLiveJoin)
	require.Len(t, joins, 1)
	assert.Equal(t, "astrologer-1", joins[0].Room)
	assert.Equal(t, domain.LiveRoleViewer, joins[0].Role)
}

func TestViewer_JoinCancelled(t *testing.T) {
	t.Parallel()

	bus := newUnreadyBus()
	connector := &fakeConnector{}
	viewer := NewViewer(bus, connector.connect, "astrologer-1", "stargazer", nil)
	defer viewer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan error, 1)
	go func() {
		started <- viewer.Start(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	assert.ErrorIs(t, <-started, context.Canceled)
	assert.True(t, connector.conn(0).isClosed(), "an abandoned join must release its connection")
	assert.Empty(t, bus.sent(domain.EventLiveJoin))
}

func TestViewer_AnswersHostOffer(t *testing.T) {
	t.Parallel()

	bus := newFakeBus()
	connector := &fakeConnector{}
	viewer := NewViewer(bus, connector.connect, "astrologer-1", "stargazer", nil)
	defer viewer.Close()

	require.NoError(t, viewer.Start(context.Background()))

	var src fakePC
	offer, err := src.CreateOffer()
	require.NoError(t, err)

	bus.deliver(domain.Event{Type: domain.EventLiveOffer, From: "astrologer-1", SDP: &offer})

	require.Eventually(t, func() bool {
		return len(bus.sent(domain.EventLiveAnswer)) == 1
	}, eventually, 10*time.Millisecond)

	answers := bus.sent(domain.EventLiveAnswer)
	assert.Equal(t, "astrologer-1", answers[0].To)
	require.NotNil(t, connector.conn(0).remoteSDP())
}

func TestViewer_GoesLiveOnFirstTrack(t *testing.T) {
	t.Parallel()

	bus := newFakeBus()
	connector := &fakeConnector{}
	viewer := NewViewer(bus, connector.connect, "astrologer-1", "stargazer", nil)
	defer viewer.Close()

	require.NoError(t, viewer.Start(context.Background()))
	assert.Equal(t, ViewerStatusJoining, viewer.Status())

	connector.conn(0).fireTrack(nil)
	assert.Equal(t, ViewerStatusLive, viewer.Status())
}

func TestViewer_ChatEchoDeduplicated(t *testing.T) {
	t.Parallel()

	bus := newFakeBus()
	connector := &fakeConnector{}
	viewer := NewViewer(bus, connector.connect, "astrologer-1", "stargazer", nil)
	defer viewer.Close()

	require.NoError(t, viewer.Start(context.Background()))

	sent := viewer.SendChat("hello from the void")
	require.Len(t, viewer.Messages(), 1, "own message renders immediately")

	// The relay echoes the message back to everyone, sender included.
	bus.deliver(domain.Event{Type: domain.EventChat, Room: "astrologer-1", Chat: &sent})
	bus.deliver(domain.Event{
		Type: domain.EventChat,
		Room: "astrologer-1",
		Chat: &domain.ChatPayload{ID: "other-1", Sender: "moonchild", Text: "welcome"},
	})

	require.Eventually(t, func() bool {
		return len(viewer.Messages()) == 2
	}, eventually, 10*time.Millisecond)

	messages := viewer.Messages()
	assert.Equal(t, sent.ID, messages[0].ID, "echo of an own message must not duplicate it")
	assert.Equal(t, "moonchild", messages[1].Sender)
}

func TestViewer_LiveEndedIsTerminal(t *testing.T) {
	t.Parallel()

	bus := newFakeBus()
	connector := &fakeConnector{}
	viewer := NewViewer(bus, connector.connect, "astrologer-1", "stargazer", nil)
	defer viewer.Close()

	require.NoError(t, viewer.Start(context.Background()))

	ended := make(chan struct{}, 1)
	viewer.OnEnded(func() { ended <- struct{}{} })

	bus.deliver(domain.Event{Type: domain.EventLiveEnded, Room: "astrologer-1"})

	select {
	case <-ended:
	case <-time.After(eventually):
		t.Fatal("ended handler never fired")
	}

	assert.Equal(t, ViewerStatusEnded, viewer.Status())
	assert.True(t, connector.conn(0).isClosed())

	// A stray offer after the end must not resurrect the session.
	var src fakePC
	offer, err := src.CreateOffer()
	require.NoError(t, err)
	bus.deliver(domain.Event{Type: domain.EventLiveOffer, From: "astrologer-1", SDP: &offer})

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, ViewerStatusEnded, viewer.Status())
	assert.Empty(t, bus.sent(domain.EventLiveAnswer))
}

func TestViewer_TracksViewerCount(t *testing.T) {
	t.Parallel()

	bus := newFakeBus()
	viewer := NewViewer(bus, (&fakeConnector{}).connect, "astrologer-1", "stargazer", nil)
	defer viewer.Close()

	require.NoError(t, viewer.Start(context.Background()))

	bus.deliver(domain.Event{Type: domain.EventViewerCount, Room: "astrologer-1", Count: 3})
	require.Eventually(t, func() bool {
		return viewer.ViewerCount() == 3
	}, eventually, 10*time.Millisecond)
}
