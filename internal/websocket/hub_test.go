package websocket

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dailyanalytics/internal/config"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	var buf bytes.Buffer
	hub := NewHub(slog.New(slog.NewJSONHandler(&buf, nil)), nil)
	hub.Start()
	t.Cleanup(hub.Stop)
	return hub
}

func newTestServer(t *testing.T, hub *Hub, origins []string) *httptest.Server {
	t.Helper()
	cfg := config.Default().WebSocket
	srv := httptest.NewServer(NewHandler(hub, cfg, origins, hub.logger))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, header http.Header) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestHub_ConnectAndBroadcast(t *testing.T) {
	hub := newTestHub(t)
	srv := newTestServer(t, hub, nil)

	a := dial(t, srv, nil)
	b := dial(t, srv, nil)

	welcome := readMessage(t, a)
	assert.Equal(t, TypeConnection, welcome.Type)
	readMessage(t, b)

	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, hub.BroadcastJSON(TypeMetric, map[string]any{"metric_name": "Revenue", "metric_value": 10.5}))

	for _, conn := range []*websocket.Conn{a, b} {
		msg := readMessage(t, conn)
		assert.Equal(t, TypeMetric, msg.Type)
		_, err := time.Parse(time.RFC3339, msg.Timestamp)
		assert.NoError(t, err)
		data, ok := msg.Data.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "Revenue", data["metric_name"])
	}

	assert.GreaterOrEqual(t, hub.Stats()["messages_sent"], int64(2))
}

func TestHub_ClientDisconnectUnregisters(t *testing.T) {
	hub := newTestHub(t)
	srv := newTestServer(t, hub, nil)

	conn := dial(t, srv, nil)
	readMessage(t, conn)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"heartbeat"}`))
	conn.Close()

	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestHub_StopClosesClients(t *testing.T) {
	hub := NewHub(slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil)), nil)
	hub.Start()
	srv := newTestServer(t, hub, nil)

	conn := dial(t, srv, nil)
	readMessage(t, conn)

	hub.Stop()
	hub.Stop()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)

	assert.ErrorIs(t, hub.BroadcastJSON(TypeMetric, nil), ErrHubStopped)
	assert.Equal(t, 0, hub.ClientCount())
}

func TestHub_SlowClientIsDropped(t *testing.T) {
	hub := newTestHub(t)

	// no pumps run, so the send buffer is never drained
	client := NewClient(hub, nil, "test", "")
	require.NoError(t, hub.Register(client))
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	for i := 0; i < sendBufferSize+1; i++ {
		require.NoError(t, hub.BroadcastJSON(TypeMetric, i))
	}

	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(1), hub.Stats()["dropped_clients"])
}

func TestHandler_OriginCheck(t *testing.T) {
	hub := newTestHub(t)
	srv := newTestServer(t, hub, []string{"http://allowed.example"})
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"http://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn := dial(t, srv, http.Header{"Origin": {"http://allowed.example"}})
	assert.Equal(t, TypeConnection, readMessage(t, conn).Type)
}
