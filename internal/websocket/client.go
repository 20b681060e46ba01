package websocket

import (
	"bytes"
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"dailyanalytics/internal/infrastructure"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4096
	sendBufferSize = 256
)

var heartbeatMessage = []byte(`{"type":"` + TypeHeartbeat + `"}`)

// Connection is the subset of *websocket.Conn used by Client.
type Connection interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(string) error)
}

var _ Connection = (*websocket.Conn)(nil)

// Client is one websocket peer registered with a Hub. The hub writes to
// send; WritePump drains it onto the connection.
type Client struct {
	hub    *Hub
	conn   Connection
	send   chan []byte
	logger *slog.Logger

	id          string
	traceID     string
	remoteAddr  string
	connectedAt time.Time
}

// NewClient wraps conn for hub.
func NewClient(hub *Hub, conn Connection, remoteAddr, traceID string) *Client {
	id := uuid.NewString()
	logger := hub.logger.With(
		slog.String("component", "websocket.client"),
		slog.String("client_id", id),
	)
	return &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, sendBufferSize),
		id:          id,
		traceID:     traceID,
		remoteAddr:  remoteAddr,
		connectedAt: time.Now(),
		logger:      logger,
	}
}

// ID returns the client identifier.
func (c *Client) ID() string { return c.id }

func (c *Client) context() context.Context {
	ctx := context.Background()
	if c.traceID != "" {
		ctx = infrastructure.WithTraceID(ctx, c.traceID)
	}
	return ctx
}

func (c *Client) countInbound(ctx context.Context) {
	if c.hub.metrics == nil {
		return
	}
	c.hub.metrics.WebSocketMessages.Add(ctx, 1, metric.WithAttributes(attribute.String("direction", "inbound")))
}

func (c *Client) extendReadDeadline(string) error {
	return c.conn.SetReadDeadline(time.Now().Add(pongWait))
}

// ReadPump consumes inbound frames until the peer goes away, then
// unregisters the client. The only message clients are expected to send is
// {"type":"heartbeat"}; anything else is dropped.
func (c *Client) ReadPump() {
	ctx := c.context()
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
		c.logger.InfoContext(ctx, "WebSocket client disconnected",
			slog.Duration("connection_duration", time.Since(c.connectedAt)))
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.extendReadDeadline("")
	c.conn.SetPongHandler(c.extendReadDeadline)

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.ErrorContext(ctx, "Unexpected WebSocket close error", slog.String("error", err.Error()))
			}
			return
		}
		_ = c.extendReadDeadline("")
		c.countInbound(ctx)

		if bytes.Equal(bytes.TrimSpace(message), heartbeatMessage) {
			c.logger.DebugContext(ctx, "Heartbeat received")
			continue
		}
		c.logger.DebugContext(ctx, "Client message ignored", slog.Int("size", len(message)))
	}
}

func (c *Client) write(messageType int, data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}

// WritePump sends queued messages and keepalive pings. It returns when the
// hub closes send or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer c.conn.Close()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				_ = c.write(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.write(websocket.TextMessage, message); err != nil {
				c.logger.ErrorContext(c.context(), "Error writing message to WebSocket", slog.String("error", err.Error()))
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.logger.DebugContext(c.context(), "Failed to send ping message", slog.String("error", err.Error()))
				return
			}
		}
	}
}
