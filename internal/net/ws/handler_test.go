package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"auravfx/server/logging"
)

type frame struct {
	Ver        int            `json:"ver"`
	Type       string         `json:"type"`
	Seq        uint64         `json:"seq"`
	ServerTime int64          `json:"serverTime"`
	ClientTime int64          `json:"clientTime"`
	Data       map[string]any `json:"data"`
}

func dial(t *testing.T, handler *Handler) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(handler.Handle))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		t.Fatalf("failed to open websocket connection: %v", err)
	}
	t.Cleanup(func() {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
		if resp != nil {
			resp.Body.Close()
		}
	})
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read frame: %v", err)
	}
	var f frame
	if err := json.Unmarshal(payload, &f); err != nil {
		t.Fatalf("failed to decode frame %s: %v", payload, err)
	}
	return f
}

func TestHandlePushesSnapshotOnConnect(t *testing.T) {
	var calls atomic.Int64
	handler := NewHandler(func() any {
		calls.Add(1)
		return map[string]any{"rigs": 3}
	}, HandlerConfig{Interval: time.Hour})

	conn := dial(t, handler)
	f := readFrame(t, conn)

	if f.Type != "telemetry" || f.Ver != ProtocolVersion {
		t.Fatalf("unexpected frame header: %+v", f)
	}
	if f.Seq != 1 {
		t.Fatalf("expected first frame seq 1, got %d", f.Seq)
	}
	if rigs, ok := f.Data["rigs"].(float64); !ok || rigs != 3 {
		t.Fatalf("expected rigs=3 in payload, got %v", f.Data["rigs"])
	}
	if calls.Load() != 1 {
		t.Fatalf("expected one snapshot, got %d", calls.Load())
	}
}

func TestHandleRefreshAndHeartbeat(t *testing.T) {
	now := time.UnixMilli(5_000)
	handler := NewHandler(func() any { return map[string]any{} }, HandlerConfig{
		Interval: time.Hour,
		Clock:    logging.ClockFunc(func() time.Time { return now }),
	})

	conn := dial(t, handler)
	readFrame(t, conn)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"refresh"}`)); err != nil {
		t.Fatalf("failed to send refresh: %v", err)
	}
	if f := readFrame(t, conn); f.Type != "telemetry" || f.Seq != 2 {
		t.Fatalf("expected refreshed frame seq 2, got %+v", f)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"heartbeat","sentAt":4000}`)); err != nil {
		t.Fatalf("failed to send heartbeat: %v", err)
	}
	f := readFrame(t, conn)
	if f.Type != "heartbeat" || f.ClientTime != 4000 || f.ServerTime != 5000 {
		t.Fatalf("unexpected heartbeat ack: %+v", f)
	}
}

func TestHandleIgnoresMalformedMessages(t *testing.T) {
	handler := NewHandler(func() any { return map[string]any{} }, HandlerConfig{Interval: time.Hour})
	conn := dial(t, handler)
	readFrame(t, conn)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`not json`)); err != nil {
		t.Fatalf("failed to send message: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"refresh"}`)); err != nil {
		t.Fatalf("failed to send refresh: %v", err)
	}
	if f := readFrame(t, conn); f.Seq != 2 {
		t.Fatalf("expected session to survive malformed input, got %+v", f)
	}
}

func TestHandleWithoutSourceIsUnavailable(t *testing.T) {
	handler := NewHandler(nil, HandlerConfig{})
	rec := httptest.NewRecorder()
	handler.Handle(rec, httptest.NewRequest(http.MethodGet, "/ws/telemetry", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}
