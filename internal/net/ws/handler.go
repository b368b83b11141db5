package ws

import (
	nethttp "net/http"
	"time"

	"github.com/gorilla/websocket"

	"auravfx/server/internal/telemetry"
	"auravfx/server/logging"
)

// ProtocolVersion tags every telemetry frame.
const ProtocolVersion = 1

const defaultInterval = time.Second

// SnapshotFunc captures the state pushed to subscribers.
type SnapshotFunc func() any

type HandlerConfig struct {
	Logger   telemetry.Logger
	Interval time.Duration
	Clock    logging.Clock
}

// Handler upgrades operator dashboards to a websocket and streams
// telemetry snapshots to them.
type Handler struct {
	snapshot SnapshotFunc
	logger   telemetry.Logger
	interval time.Duration
	clock    logging.Clock
	upgrader websocket.Upgrader
}

func NewHandler(snapshot SnapshotFunc, cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.NopLogger()
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	clock := cfg.Clock
	if clock == nil {
		clock = logging.SystemClock{}
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *nethttp.Request) bool {
			return true
		},
	}

	return &Handler{
		snapshot: snapshot,
		logger:   logger,
		interval: interval,
		clock:    clock,
		upgrader: upgrader,
	}
}

func (h *Handler) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	if h.snapshot == nil {
		nethttp.Error(w, "telemetry unavailable", nethttp.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("telemetry upgrade failed for %s: %v", r.RemoteAddr, err)
		return
	}

	s := newSession(conn, h)
	s.serve(r.Context())
}
