package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"twabWinners/db"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type received struct {
	Type    string          `json:"type"`
	Channel string          `json:"channel"`
	Error   string          `json:"error"`
	Runs    []interface{}   `json:"runs"`
	Data    json.RawMessage `json:"data"`
}

func dial(t *testing.T) *websocket.Conn {
	t.Helper()
	StartEventHub()

	srv := httptest.NewServer(http.HandlerFunc(HandleWS))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) received {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg received
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestRunsChannel(t *testing.T) {
	conn := dial(t)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "subscribe", Data: map[string]interface{}{"channel": "runs"}}))

	msg := readMessage(t, conn)
	assert.Equal(t, "recent_runs", msg.Type)
	assert.Empty(t, msg.Runs)

	msg = readMessage(t, conn)
	assert.Equal(t, "subscribed", msg.Type)
	assert.Equal(t, "runs", msg.Channel)

	BroadcastRun(&db.RunSummary{RunID: "run-1", DrawID: 19, Winners: 2, Prizes: 5})

	msg = readMessage(t, conn)
	require.Equal(t, "run_completed", msg.Type)
	var summary db.RunSummary
	require.NoError(t, json.Unmarshal(msg.Data, &summary))
	assert.Equal(t, "run-1", summary.RunID)
	assert.Equal(t, int64(19), summary.DrawID)
	assert.Equal(t, 5, summary.Prizes)
}

func TestUnknownChannel(t *testing.T) {
	conn := dial(t)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "subscribe", Data: map[string]interface{}{"channel": "crash"}}))
	msg := readMessage(t, conn)
	assert.Equal(t, "error", msg.Type)
	assert.Contains(t, msg.Error, "crash")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	msg = readMessage(t, conn)
	assert.Equal(t, "error", msg.Type)
}
