package ws

import (
	"context"
	"encoding/json"
	nethttp "net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"street-sprint/engine/internal/telemetry"
	"street-sprint/engine/logging"
)

// Hub fans engine events out to websocket observers. Observers are read-only:
// inbound frames are drained and discarded, control goes through the HTTP
// endpoints instead.
type Hub struct {
	logger   telemetry.Logger
	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[string]*session
	closed   bool
}

type session struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

const sessionSendBuffer = 64

func NewHub(logger telemetry.Logger) *Hub {
	if logger == nil {
		logger = telemetry.NopLogger()
	}
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *nethttp.Request) bool {
				return true
			},
		},
		sessions: make(map[string]*session),
	}
}

// Handle upgrades the request and streams events until the peer disconnects.
func (h *Hub) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("ws: upgrade failed: %v", err)
		return
	}

	sess := &session{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sessionSendBuffer),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.sessions[sess.id] = sess
	count := len(h.sessions)
	h.mu.Unlock()
	h.logger.Printf("ws: observer %s connected (%d total)", sess.id, count)

	go h.writeLoop(sess)

	// Drain inbound frames so pings and close frames are processed.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.drop(sess)
}

func (h *Hub) writeLoop(sess *session) {
	defer sess.conn.Close()
	for data := range sess.send {
		if err := sess.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.drop(sess)
			return
		}
	}
	sess.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (h *Hub) drop(sess *session) {
	h.mu.Lock()
	_, present := h.sessions[sess.id]
	delete(h.sessions, sess.id)
	count := len(h.sessions)
	h.mu.Unlock()

	sess.once.Do(func() { close(sess.send) })
	if present {
		h.logger.Printf("ws: observer %s disconnected (%d total)", sess.id, count)
	}
}

// Broadcast queues data for every connected observer. Slow observers shed
// load rather than stall the caller.
func (h *Hub) Broadcast(data []byte) {
	h.mu.Lock()
	sessions := make([]*session, 0, len(h.sessions))
	for _, sess := range h.sessions {
		sessions = append(sessions, sess)
	}
	h.mu.Unlock()

	for _, sess := range sessions {
		select {
		case sess.send <- data:
		default:
		}
	}
}

// Count reports the number of connected observers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Close disconnects every observer and rejects new connections.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	sessions := make([]*session, 0, len(h.sessions))
	for _, sess := range h.sessions {
		sessions = append(sessions, sess)
	}
	h.sessions = make(map[string]*session)
	h.mu.Unlock()

	for _, sess := range sessions {
		sess.once.Do(func() { close(sess.send) })
	}
}

// Sink adapts the hub into a logging sink so routed events stream to
// observers as newline-free JSON documents.
type Sink struct {
	hub *Hub
}

func NewSink(hub *Hub) *Sink {
	return &Sink{hub: hub}
}

func (s *Sink) Write(event logging.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	s.hub.Broadcast(data)
	return nil
}

func (s *Sink) Close(context.Context) error {
	s.hub.Close()
	return nil
}

var _ logging.Sink = (*Sink)(nil)
