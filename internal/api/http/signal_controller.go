package http

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/astrolink/consult-rtc/internal/domain"
	"github.com/astrolink/consult-rtc/internal/service"
	"github.com/astrolink/consult-rtc/lib/logger/sl"
)

// SignalController bridges websocket connections onto the relay: each socket
// becomes one attached endpoint, JSON frames in both directions.
type SignalController struct {
	relay    *service.RelayService
	upgrader websocket.Upgrader
	log      *slog.Logger
}

func NewSignalController(relay *service.RelayService, log *slog.Logger) *SignalController {
	return &SignalController{
		relay: relay,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		log: log,
	}
}

// wsConn serializes writes. gorilla/websocket supports one concurrent writer
// only, and both the read loop (error replies) and the write loop (delivered
// events) write to the socket.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *wsConn) writeClose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (ctrl *SignalController) Connect(c *gin.Context) {
	const op = "SignalController.Connect"
	userID := c.GetString("user_id")
	log := ctrl.log.With(slog.String("op", op), slog.String("user_id", userID))

	conn, err := ctrl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("websocket upgrade failed", sl.Err(err))
		return
	}
	defer conn.Close()

	ws := &wsConn{conn: conn}

	endpoint, err := ctrl.relay.Attach(c.Request.Context(), userID)
	if err != nil {
		log.Error("relay attach failed", sl.Err(err))
		ws.writeJSON(gin.H{"error": "failed to attach"})
		return
	}
	defer endpoint.Close()

	go ctrl.writeLoop(ws, endpoint, log)
	ctrl.readLoop(ws, endpoint, log)
}

func (ctrl *SignalController) readLoop(ws *wsConn, endpoint relaySink, log *slog.Logger) {
	for {
		var ev domain.Event
		if err := ws.conn.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("websocket read error", sl.Err(err))
			}
			return
		}

		if err := endpoint.Publish(ev); err != nil {
			ws.writeJSON(gin.H{"error": err.Error()})
		}
	}
}

func (ctrl *SignalController) writeLoop(ws *wsConn, endpoint relaySource, log *slog.Logger) {
	for ev := range endpoint.Events() {
		if err := ws.writeJSON(ev); err != nil {
			log.Debug("websocket write error", sl.Err(err))
			endpoint.Close()
			return
		}
	}
	ws.writeClose()
}

type relaySink interface {
	Publish(ev domain.Event) error
}

type relaySource interface {
	Events() <-chan domain.Event
	Close() error
}
