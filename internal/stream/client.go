// Package stream is a reconnecting client for the analytics websocket
// stream. Events are delivered to listeners registered with On.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"dailyanalytics/internal/infrastructure"
)

// Event names passed to On.
const (
	EventConnected                   = "connected"
	EventData                        = "data"
	EventError                       = "error"
	EventDisconnected                = "disconnected"
	EventMaxReconnectAttemptsReached = "maxReconnectAttemptsReached"
)

const (
	DefaultMaxReconnectAttempts = 5
	DefaultReconnectDelay       = time.Second
)

var (
	ErrNotConnected     = errors.New("websocket is not connected")
	ErrAlreadyConnected = errors.New("stream client already started")
	ErrClosed           = errors.New("stream client closed")
)

// Listener receives the event payload: the decoded JSON value for "data",
// an error for "error", nil otherwise.
type Listener func(data any)

// Client connects to a websocket URL and reconnects with linear backoff.
type Client struct {
	url    string
	dialer *websocket.Dialer
	header http.Header
	logger *slog.Logger

	maxReconnectAttempts int
	reconnectDelay       time.Duration

	lmu       sync.RWMutex
	listeners map[string][]Listener

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	started   bool
	closed    bool
	stop      chan struct{}
	done      chan struct{}

	// serialises writes on conn
	wmu sync.Mutex
}

// Option configures a Client.
type Option func(*Client)

func WithMaxReconnectAttempts(n int) Option {
	return func(c *Client) { c.maxReconnectAttempts = n }
}

// WithReconnectDelay sets the base delay; attempt n waits n*d.
func WithReconnectDelay(d time.Duration) Option {
	return func(c *Client) { c.reconnectDelay = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func WithHeader(h http.Header) Option {
	return func(c *Client) { c.header = h }
}

func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// NewClient creates a client for url. Nothing is dialled until Connect.
func NewClient(url string, opts ...Option) *Client {
	c := &Client{
		url:                  url,
		dialer:               websocket.DefaultDialer,
		maxReconnectAttempts: DefaultMaxReconnectAttempts,
		reconnectDelay:       DefaultReconnectDelay,
		listeners:            make(map[string][]Listener),
		stop:                 make(chan struct{}),
		done:                 make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	if c.logger == nil {
		c.logger = infrastructure.GetLogger()
	}
	c.logger = c.logger.With(slog.String("component", "stream.client"), slog.String("url", url))
	return c
}

// On registers fn for event.
func (c *Client) On(event string, fn Listener) {
	c.lmu.Lock()
	defer c.lmu.Unlock()
	c.listeners[event] = append(c.listeners[event], fn)
}

// Connect starts the connection loop in the background and returns. The
// loop ends when ctx is done, Disconnect is called, or reconnect attempts
// are exhausted.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.started {
		return ErrAlreadyConnected
	}
	c.started = true

	go c.run(ctx)
	return nil
}

// Done is closed when the connection loop has exited.
func (c *Client) Done() <-chan struct{} { return c.done }

// IsConnected reports whether a connection is currently open.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Send writes v as JSON.
func (c *Client) Send(v any) error {
	c.mu.Lock()
	conn, connected := c.conn, c.connected
	c.mu.Unlock()

	if !connected || conn == nil {
		c.logger.Warn("WebSocket is not connected")
		return ErrNotConnected
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := conn.WriteJSON(v); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

// Disconnect closes the connection and stops reconnecting.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.stop)
	conn := c.conn
	started := c.started
	c.mu.Unlock()

	if conn != nil {
		c.wmu.Lock()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.wmu.Unlock()
		conn.Close()
	}
	if !started {
		close(c.done)
	}
}

func (c *Client) stopped(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-c.stop:
		return true
	default:
		return false
	}
}

func (c *Client) run(ctx context.Context) {
	defer close(c.done)

	attempts := 0
	for {
		conn, _, err := c.dialer.DialContext(ctx, c.url, c.header)
		if err != nil {
			c.logger.Error("WebSocket error", slog.String("error", err.Error()))
			c.emit(EventError, err)
		} else if c.attach(conn) {
			attempts = 0
			c.logger.Info("WebSocket connected")
			c.emit(EventConnected, nil)

			c.readLoop(conn)

			c.detach()
			c.logger.Info("WebSocket disconnected")
			c.emit(EventDisconnected, nil)
		} else {
			conn.Close()
		}

		if c.stopped(ctx) {
			return
		}

		if attempts >= c.maxReconnectAttempts {
			c.logger.Error("Max reconnection attempts reached",
				slog.Int("attempts", attempts))
			c.emit(EventMaxReconnectAttemptsReached, nil)
			return
		}
		attempts++
		c.logger.Info("Attempting to reconnect",
			slog.Int("attempt", attempts),
			slog.Int("max_attempts", c.maxReconnectAttempts))

		timer := time.NewTimer(c.reconnectDelay * time.Duration(attempts))
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return
		case <-c.stop:
			timer.Stop()
			return
		}
	}
}

// attach publishes conn unless Disconnect already ran.
func (c *Client) attach(conn *websocket.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.conn = conn
	c.connected = true
	return true
}

func (c *Client) detach() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.connected = false
	c.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && !c.isClosed() {
				c.emit(EventError, err)
			}
			return
		}

		var data any
		if err := json.Unmarshal(payload, &data); err != nil {
			c.logger.Error("Error parsing WebSocket data", slog.String("error", err.Error()))
			c.emit(EventError, fmt.Errorf("parse message: %w", err))
			continue
		}
		c.emit(EventData, data)
	}
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Client) emit(event string, data any) {
	c.lmu.RLock()
	listeners := append([]Listener(nil), c.listeners[event]...)
	c.lmu.RUnlock()

	for _, fn := range listeners {
		c.call(event, fn, data)
	}
}

func (c *Client) call(event string, fn Listener, data any) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Error in event callback",
				slog.String("event", event),
				slog.Any("panic", r))
		}
	}()
	fn(data)
}
