// Package notify owns the realtime fan-out channel and the transactional
// email sender. The Hub is an explicit connection registry created at process
// start and injected where needed; nothing in this package is ambient state.
package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"renthub/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Heartbeat: a session that misses a pong before the next ping cycle is
	// forcibly disconnected.
	pingPeriod = 25 * time.Second
	pongWait   = 30 * time.Second
	writeWait  = 10 * time.Second

	sendBuffer = 64
)

// Message is the server-to-client payload. A non-empty UserID targets only
// that user's sessions; empty fans out to every connected session.
type Message struct {
	UserID  string `json:"userId,omitempty"`
	Content string `json:"content"`
	OrderID string `json:"orderId,omitempty"`
	Status  string `json:"status,omitempty"`
}

// clientMessage is what connected clients send. Association with a user
// happens through an explicit init message, not the connection handshake.
type clientMessage struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

type session struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan Message
	userID string
}

type association struct {
	sess   *session
	userID string
}

// Hub maintains the set of connected sessions and delivers broadcasts. All
// session-map access happens on the Run loop.
type Hub struct {
	register   chan *session
	unregister chan *session
	broadcast  chan Message
	associate  chan association
	sessions   map[*session]bool
	done       chan struct{}
	upgrader   websocket.Upgrader
	logger     *zap.Logger
}

// NewHub creates the connection registry. Call Run to start delivery.
func NewHub() *Hub {
	return &Hub{
		register:   make(chan *session),
		unregister: make(chan *session),
		broadcast:  make(chan Message, sendBuffer),
		associate:  make(chan association),
		sessions:   make(map[*session]bool),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: util.GetLogger(),
	}
}

// Run owns the session registry until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			// Closing done releases session goroutines still trying to
			// register or unregister after the loop exits.
			close(h.done)
			for sess := range h.sessions {
				close(sess.send)
				delete(h.sessions, sess)
			}
			return

		case sess := <-h.register:
			h.sessions[sess] = true
			util.WSConnections.Inc()

		case sess := <-h.unregister:
			if _, ok := h.sessions[sess]; ok {
				delete(h.sessions, sess)
				close(sess.send)
				util.WSConnections.Dec()
			}

		case a := <-h.associate:
			if _, ok := h.sessions[a.sess]; ok {
				a.sess.userID = a.userID
			}

		case msg := <-h.broadcast:
			for sess := range h.sessions {
				if msg.UserID != "" && sess.userID != msg.UserID {
					continue
				}
				select {
				case sess.send <- msg:
				default:
					// Slow consumer; drop the session.
					delete(h.sessions, sess)
					close(sess.send)
					util.WSConnections.Dec()
				}
			}
		}
	}
}

// Broadcast queues a message for delivery to the targeted user's sessions, or
// to every session when no target is set. After shutdown the message is
// dropped.
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	case <-h.done:
	}
}

// HandleWS upgrades the request and runs the session pumps.
func (h *Hub) HandleWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	sess := &session{
		hub:  h,
		conn: conn,
		send: make(chan Message, sendBuffer),
	}
	select {
	case h.register <- sess:
	case <-h.done:
		conn.Close()
		return
	}

	go sess.writePump()
	go sess.readPump()
}

func (s *session) readPump() {
	defer func() {
		select {
		case s.hub.unregister <- s:
		case <-s.hub.done:
		}
		s.conn.Close()
	}()

	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.hub.logger.Debug("websocket read error", zap.Error(err))
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		if msg.Type == "init" && msg.UserID != "" {
			s.hub.associate <- association{sess: s, userID: msg.UserID}
		}
	}
}

func (s *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
