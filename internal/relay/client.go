package relay

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/astrolink/consult-rtc/internal/domain"
	"github.com/astrolink/consult-rtc/lib/logger/sl"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 256
)

// Client is a websocket Bus attached to a remote relay. Ready closes once the
// relay sends its attached acknowledgement.
type Client struct {
	conn *websocket.Conn
	log  *slog.Logger

	send   chan domain.Event
	events chan domain.Event
	ready  chan struct{}
	done   chan struct{}

	readyOnce sync.Once
	closeOnce sync.Once
}

// Dial connects to the relay signal endpoint. A non-empty token is sent as a
// bearer Authorization header.
func Dial(ctx context.Context, url, token string, log *slog.Logger) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, err
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	c := &Client{
		conn:   conn,
		log:    log,
		send:   make(chan domain.Event, sendBuffer),
		events: make(chan domain.Event, endpointBuffer),
		ready:  make(chan struct{}),
		done:   make(chan struct{}),
	}

	go c.readPump()
	go c.writePump()

	return c, nil
}

func (c *Client) Publish(ev domain.Event) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	select {
	case c.send <- ev:
		return nil
	case <-c.done:
		return ErrClosed
	default:
		return ErrBufferFull
	}
}

func (c *Client) Events() <-chan domain.Event { return c.events }

func (c *Client) Ready() <-chan struct{} { return c.ready }

func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
	return nil
}

func (c *Client) readPump() {
	defer func() {
		c.Close()
		close(c.events)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var ev domain.Event
		if err := c.conn.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("relay read failed", sl.Err(err))
			}
			return
		}

		if ev.Type == domain.EventAttached {
			c.readyOnce.Do(func() { close(c.ready) })
			continue
		}

		select {
		case c.events <- ev:
		case <-c.done:
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case ev := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				c.log.Debug("relay write failed", sl.Err(err))
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
