package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

type clientMessage struct {
	Ver    int    `json:"ver,omitempty"`
	Type   string `json:"type"`
	SentAt int64  `json:"sentAt"`
}

type telemetryMessage struct {
	Ver        int    `json:"ver"`
	Type       string `json:"type"`
	Seq        uint64 `json:"seq"`
	ServerTime int64  `json:"serverTime"`
	Data       any    `json:"data"`
}

type heartbeatMessage struct {
	Ver        int    `json:"ver"`
	Type       string `json:"type"`
	ServerTime int64  `json:"serverTime"`
	ClientTime int64  `json:"clientTime"`
	RTTMillis  int64  `json:"rtt"`
}

// session owns one subscriber connection. Only serve writes to conn; the
// reader goroutine hands requests over through channels.
type session struct {
	conn    *websocket.Conn
	handler *Handler
	seq     uint64

	refresh    chan struct{}
	heartbeats chan int64
	closed     chan struct{}
}

func newSession(conn *websocket.Conn, h *Handler) *session {
	return &session{
		conn:       conn,
		handler:    h,
		refresh:    make(chan struct{}, 1),
		heartbeats: make(chan int64, 8),
		closed:     make(chan struct{}),
	}
}

func (s *session) serve(ctx context.Context) {
	defer s.conn.Close()
	go s.read()

	ticker := time.NewTicker(s.handler.interval)
	defer ticker.Stop()

	if !s.push() {
		return
	}
	for {
		select {
		case <-ctx.Done():
			message := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
			_ = s.conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(writeWait))
			return
		case <-s.closed:
			return
		case <-ticker.C:
			if !s.push() {
				return
			}
		case <-s.refresh:
			if !s.push() {
				return
			}
		case sentAt := <-s.heartbeats:
			now := s.handler.clock.Now()
			ack := heartbeatMessage{
				Ver:        ProtocolVersion,
				Type:       "heartbeat",
				ServerTime: now.UnixMilli(),
				ClientTime: sentAt,
				RTTMillis:  max(0, now.UnixMilli()-sentAt),
			}
			if !s.write(ack) {
				return
			}
		}
	}
}

func (s *session) read() {
	defer close(s.closed)
	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			s.handler.logger.Printf("discarding malformed telemetry message from %s: %v", s.conn.RemoteAddr(), err)
			continue
		}

		switch msg.Type {
		case "refresh":
			select {
			case s.refresh <- struct{}{}:
			default:
			}
		case "heartbeat":
			select {
			case s.heartbeats <- msg.SentAt:
			default:
			}
		}
	}
}

func (s *session) push() bool {
	s.seq++
	return s.write(telemetryMessage{
		Ver:        ProtocolVersion,
		Type:       "telemetry",
		Seq:        s.seq,
		ServerTime: s.handler.clock.Now().UnixMilli(),
		Data:       s.handler.snapshot(),
	})
}

func (s *session) write(payload any) bool {
	data, err := json.Marshal(payload)
	if err != nil {
		s.handler.logger.Printf("failed to marshal telemetry frame: %v", err)
		return true
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return false
	}
	return true
}
