package connection

import (
	"context"
	"sync"
	"time"

	"github.com/DoBuiThao/hoxchess/pkg/protocol"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// wsTripper owns at most one socket. A socket that failed a round trip is dropped
// and the next request dials a fresh one.
type wsTripper struct {
	url    string
	dialer websocket.Dialer

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// DialWebSocket opens a WebSocket to url (ws://host:8080/ws). Each request is one
// JSON frame answered by one JSON frame.
func DialWebSocket(url string, timeout time.Duration) (Connection, error) {
	dialer := *websocket.DefaultDialer
	if timeout > 0 {
		dialer.HandshakeTimeout = timeout
	}
	ws, _, err := dialer.Dial(url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", url)
	}
	return newConn(&wsTripper{url: url, dialer: dialer, conn: ws}, timeout), nil
}

func (w *wsTripper) socket(ctx context.Context) (*websocket.Conn, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, ErrClosed
	}
	if w.conn == nil {
		ws, _, err := w.dialer.DialContext(ctx, w.url, nil)
		if err != nil {
			return nil, errors.Wrapf(err, "redial %s", w.url)
		}
		w.conn = ws
	}
	return w.conn, nil
}

func (w *wsTripper) drop(ws *websocket.Conn) {
	w.mu.Lock()
	if w.conn == ws {
		w.conn = nil
	}
	w.mu.Unlock()
	_ = ws.Close()
}

func (w *wsTripper) roundTrip(ctx context.Context, req protocol.Request) (string, error) {
	ws, err := w.socket(ctx)
	if err != nil {
		return "", err
	}
	content, err := exchange(ctx, ws, req)
	if err != nil {
		// A deadline or protocol error leaves the socket unusable.
		w.drop(ws)
		return "", err
	}
	return content, nil
}

func exchange(ctx context.Context, ws *websocket.Conn, req protocol.Request) (string, error) {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(DefaultTimeout)
	}
	_ = ws.SetWriteDeadline(deadline)
	if err := ws.WriteJSON(req); err != nil {
		return "", errors.Wrap(err, "write frame")
	}
	_ = ws.SetReadDeadline(deadline)
	var resp protocol.Response
	if err := ws.ReadJSON(&resp); err != nil {
		return "", errors.Wrap(err, "read frame")
	}
	if resp.Type != req.Type {
		return "", errors.Errorf("reply type %s does not match request %s", resp.Type, req.Type)
	}
	return resp.Content, nil
}

func (w *wsTripper) close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	if w.conn == nil {
		return nil
	}
	ws := w.conn
	w.conn = nil
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return ws.Close()
}
