// Package ws streams session events to websocket clients.
package ws

import (
	"net/http"
	"time"

	"github.com/GriffinCanCode/Moonlit/backend/internal/events"
	"github.com/GriffinCanCode/Moonlit/backend/internal/infrastructure/monitoring"
	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS middleware decides who may call us
	},
}

// Message is a frame sent to clients
type Message struct {
	Type      string        `json:"type"`
	Event     *events.Event `json:"event,omitempty"`
	Message   string        `json:"message,omitempty"`
	Dropped   uint64        `json:"dropped,omitempty"`
	Timestamp int64         `json:"timestamp"`
}

// Handler manages websocket connections
type Handler struct {
	bus     *events.Bus
	metrics *monitoring.Metrics
	logger  *zap.Logger
	buffer  int
}

// NewHandler creates a websocket handler fed by bus
func NewHandler(bus *events.Bus, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{bus: bus, logger: logger.Named("ws"), buffer: 64}
}

// WithMetrics adds connection and message metrics
func (h *Handler) WithMetrics(metrics *monitoring.Metrics) *Handler {
	h.metrics = metrics
	return h
}

// HandleConnection upgrades the request and forwards bus events until the
// client goes away or the bus closes.
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	if h.metrics != nil {
		h.metrics.IncWSConnections()
		defer h.metrics.DecWSConnections()
	}

	sub := h.bus.Subscribe(h.buffer)
	defer sub.Close()

	log := h.logger.With(zap.String("remote", c.ClientIP()))
	log.Info("Event stream opened")
	defer log.Info("Event stream closed")

	// the reader only services control frames and notices disconnects
	gone := make(chan struct{})
	go h.readLoop(conn, gone)

	if err := h.send(conn, Message{Type: "system", Message: "connected"}); err != nil {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	var reported uint64
	for {
		select {
		case ev, ok := <-sub.C():
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(writeWait))
				return
			}
			if dropped := sub.Dropped(); dropped != reported {
				reported = dropped
				if err := h.send(conn, Message{Type: "overflow", Dropped: dropped}); err != nil {
					return
				}
			}
			if err := h.send(conn, Message{Type: "event", Event: &ev}); err != nil {
				log.Debug("WebSocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-gone:
			return
		}
	}
}

func (h *Handler) readLoop(conn *websocket.Conn, gone chan<- struct{}) {
	defer close(gone)
	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		if h.metrics != nil {
			h.metrics.RecordWSMessage("in", "client")
		}
	}
}

func (h *Handler) send(conn *websocket.Conn, msg Message) error {
	msg.Timestamp = time.Now().Unix()
	data, err := sonic.Marshal(msg)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	if h.metrics != nil {
		h.metrics.RecordWSMessage("out", msg.Type)
	}
	return nil
}
