package transport

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/DoBuiThao/hoxchess/internal/connection"
	"github.com/DoBuiThao/hoxchess/internal/hub"
	"github.com/DoBuiThao/hoxchess/internal/server"
	"github.com/DoBuiThao/hoxchess/pkg/protocol"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*httptest.Server, *Sessions) {
	t.Helper()
	sessions := NewSessions()
	ts := httptest.NewServer(NewMux(server.New(hub.NewHub(nil)), sessions))
	t.Cleanup(func() {
		_ = sessions.Close()
		ts.Close()
	})
	return ts, sessions
}

func get(t *testing.T, base string, q url.Values) string {
	t.Helper()
	resp, err := http.Get(base + protocol.RequestPath(q))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestHTTPEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	assert.Equal(t, "0 t1", get(t, ts.URL, url.Values{"op": {"NEW"}, "tid": {"t1"}}))
	assert.Equal(t, "0 Red", get(t, ts.URL, url.Values{"op": {"JOIN"}, "pid": {"alice"}, "tid": {"t1"}}))
	assert.Equal(t, "0 Black", get(t, ts.URL, url.Values{"op": {"JOIN"}, "pid": {"bob"}, "tid": {"t1"}}))

	events, err := protocol.ParseNetworkEvents(get(t, ts.URL, url.Values{"op": {"POLL"}, "pid": {"alice"}}))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, protocol.EJoin, events[0].Type)

	body := get(t, ts.URL, url.Values{"op": {"MOVE"}, "pid": {"bob"}, "tid": {"t1"}, "move": {"6656"}})
	code, _, err := protocol.ParseSimpleResponse(body)
	require.NoError(t, err)
	assert.Equal(t, protocol.CodeError, code)
}

func TestHTTPMethod(t *testing.T) {
	ts, _ := newTestServer(t)
	req, err := http.NewRequest(http.MethodDelete, ts.URL+protocol.RequestPathPrefix, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + WebSocketPath
}

func TestWebSocketEndpoint(t *testing.T) {
	ts, sessions := newTestServer(t)

	ws, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.NoError(t, err)
	defer ws.Close()
	assert.Eventually(t, func() bool { return sessions.Len() == 1 }, time.Second, 10*time.Millisecond)

	req := protocol.NewRequest(protocol.New, url.Values{"tid": {"t9"}})
	require.NoError(t, ws.WriteJSON(req))
	var resp protocol.Response
	require.NoError(t, ws.ReadJSON(&resp))
	assert.Equal(t, protocol.New, resp.Type)
	assert.Equal(t, "0 t9", resp.Content)

	require.NoError(t, ws.WriteJSON(protocol.Request{Type: protocol.Poll, Content: "%zz"}))
	require.NoError(t, ws.ReadJSON(&resp))
	assert.Equal(t, protocol.Poll, resp.Type)
	assert.Equal(t, "1 bad request", resp.Content)

	ws.Close()
	assert.Eventually(t, func() bool { return sessions.Len() == 0 }, time.Second, 10*time.Millisecond)
}

func TestWebSocketWithConnection(t *testing.T) {
	ts, _ := newTestServer(t)

	conn, err := connection.DialWebSocket(wsURL(ts), time.Second)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.AddRequest(protocol.NewRequest(protocol.Login, url.Values{"pid": {"alice"}})))
	require.NoError(t, conn.AddRequest(protocol.NewRequest(protocol.Poll, url.Values{"pid": {"alice"}})))

	first := <-conn.Responses()
	require.NoError(t, first.Err)
	assert.Equal(t, protocol.Login, first.Type)
	assert.Equal(t, "0 OK", first.Content)

	second := <-conn.Responses()
	require.NoError(t, second.Err)
	assert.Equal(t, protocol.Poll, second.Type)
	assert.Equal(t, "", second.Content)
}

func TestSessionsClose(t *testing.T) {
	ts, sessions := newTestServer(t)

	ws, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.NoError(t, err)
	defer ws.Close()
	require.Eventually(t, func() bool { return sessions.Len() == 1 }, time.Second, 10*time.Millisecond)

	assert.NoError(t, sessions.Close())

	_ = ws.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err = ws.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), err.Error())
	assert.Eventually(t, func() bool { return sessions.Len() == 0 }, time.Second, 10*time.Millisecond)
}
