package transport

import (
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/DoBuiThao/hoxchess/pkg/protocol"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// Handler answers one table request.
type Handler interface {
	Handle(query url.Values) protocol.Response
}

// Session is one WebSocket peer. Every inbound frame is a protocol.Request answered
// by exactly one protocol.Response frame.
type Session struct {
	ID       string
	conn     *websocket.Conn
	handler  Handler
	sessions *Sessions
	send     chan protocol.Response
}

func newSession(conn *websocket.Conn, h Handler, sessions *Sessions) *Session {
	return &Session{
		ID:       uuid.NewString(),
		conn:     conn,
		handler:  h,
		sessions: sessions,
		send:     make(chan protocol.Response, 16),
	}
}

func (s *Session) readPump() {
	defer func() {
		s.sessions.remove(s)
		close(s.send)
		s.conn.Close()
	}()

	for {
		var req protocol.Request
		err := s.conn.ReadJSON(&req)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("Session %s: read error: %v", s.ID, err)
			}
			break
		}
		s.send <- s.answer(req)
	}
}

func (s *Session) answer(req protocol.Request) protocol.Response {
	u, err := url.Parse(req.Content)
	if err != nil {
		log.Printf("Session %s: bad request %q: %v", s.ID, req.Content, err)
		return protocol.Response{
			Type:    req.Type,
			Content: protocol.FormatSimpleResponse(protocol.CodeError, "bad request"),
		}
	}
	resp := s.handler.Handle(u.Query())
	// The frame type echoes the request so the peer can match replies.
	resp.Type = req.Type
	return resp
}

func (s *Session) writePump() {
	defer s.conn.Close()
	for resp := range s.send {
		err := s.conn.WriteJSON(resp)
		if err != nil {
			log.Printf("Session %s: error writing json: %v", s.ID, err)
			break
		}
	}
	// Unblock readPump if the writer gave up first.
	for range s.send {
	}
}

// Sessions tracks the open WebSocket sessions so they can be closed together.
type Sessions struct {
	mu   sync.Mutex
	byID map[string]*Session
}

func NewSessions() *Sessions {
	return &Sessions{byID: make(map[string]*Session)}
}

func (ss *Sessions) add(s *Session) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.byID[s.ID] = s
	log.Printf("Session %s opened from %s", s.ID, s.conn.RemoteAddr())
}

func (ss *Sessions) remove(s *Session) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if _, ok := ss.byID[s.ID]; ok {
		delete(ss.byID, s.ID)
		log.Printf("Session %s closed", s.ID)
	}
}

// Len returns the number of open sessions.
func (ss *Sessions) Len() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return len(ss.byID)
}

// Close sends a going-away frame to every session and closes it.
func (ss *Sessions) Close() error {
	ss.mu.Lock()
	open := make([]*Session, 0, len(ss.byID))
	for _, s := range ss.byID {
		open = append(open, s)
	}
	ss.mu.Unlock()

	var result *multierror.Error
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	for _, s := range open {
		if err := s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "session %s", s.ID))
		}
		if err := s.conn.Close(); err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "session %s", s.ID))
		}
	}
	return result.ErrorOrNil()
}
