package server

import (
	"log"
	"net/url"
	"sync"

	"github.com/DoBuiThao/hoxchess/internal/game"
	"github.com/DoBuiThao/hoxchess/internal/hub"
	"github.com/DoBuiThao/hoxchess/pkg/protocol"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	ErrBadPlayer   = errors.New("missing or invalid player id")
	ErrNoSuchTable = errors.New("table not found")
	ErrBadColor    = errors.New("unknown color")
	ErrUnsupported = errors.New("unsupported request")
)

// Server hosts tables for remote players. Every operation runs under one lock,
// so operations are applied in the order they arrive.
type Server struct {
	hub *hub.Hub

	mu      sync.Mutex
	players map[string]*mailbox
}

func New(h *hub.Hub) *Server {
	return &Server{
		hub:     h,
		players: make(map[string]*mailbox),
	}
}

// Handle runs the command in query and returns the body sent back to the player.
func (s *Server) Handle(query url.Values) protocol.Response {
	op := protocol.ParseRequestType(query.Get("op"))
	s.mu.Lock()
	content, err := s.handle(op, query)
	s.mu.Unlock()
	if err != nil {
		log.Printf("Request %s from %q failed: %v", op, query.Get("pid"), err)
		content = protocol.FormatSimpleResponse(protocol.CodeError, errors.Cause(err).Error())
	}
	return protocol.Response{Type: op, Content: content}
}

func (s *Server) handle(op protocol.RequestType, q url.Values) (string, error) {
	switch op {
	case protocol.List:
		return s.list(), nil
	case protocol.New:
		return s.newTable(q.Get("tid"))
	}

	pid := q.Get("pid")
	if !protocol.ValidID(pid) {
		return "", errors.Wrapf(ErrBadPlayer, "%q", pid)
	}
	switch op {
	case protocol.Login:
		s.player(pid)
		return ok("OK"), nil
	case protocol.Logout:
		return ok("OK"), s.logout(pid)
	case protocol.Poll:
		m, found := s.players[pid]
		if !found {
			return "", errors.Wrapf(ErrBadPlayer, "%s is not logged in", pid)
		}
		return protocol.FormatNetworkEvents(m.drain()), nil
	case protocol.Join:
		return s.join(pid, q.Get("tid"), q.Get("color"))
	}

	m, t, err := s.seat(pid, q.Get("tid"))
	if err != nil {
		return "", err
	}
	switch op {
	case protocol.Leave:
		err = t.Leave(m)
	case protocol.Move:
		var mv game.Move
		mv, err = game.ParseMove(q.Get("move"))
		if err != nil {
			return "", errors.Wrap(hub.ErrIllegalMove, err.Error())
		}
		err = t.MakeMove(m, mv)
	case protocol.Resign:
		err = t.Resign(m)
	case protocol.Draw:
		err = t.OfferDraw(m)
	case protocol.Reset:
		err = t.Reset(m)
	case protocol.Msg:
		err = t.Message(m, protocol.SanitizeContent(q.Get("msg")))
	default:
		return "", errors.Wrapf(ErrUnsupported, "%s", op)
	}
	if err != nil {
		return "", err
	}
	return ok("OK"), nil
}

func ok(msg string) string {
	return protocol.FormatSimpleResponse(protocol.CodeOK, msg)
}

func (s *Server) player(pid string) *mailbox {
	m, found := s.players[pid]
	if !found {
		m = newMailbox(pid)
		s.players[pid] = m
		log.Printf("Player %s logged in", pid)
	}
	return m
}

func (s *Server) seat(pid, tid string) (*mailbox, *hub.Table, error) {
	m, found := s.players[pid]
	if !found {
		return nil, nil, errors.Wrapf(ErrBadPlayer, "%s is not logged in", pid)
	}
	t, found := s.hub.FindTable(tid)
	if !found {
		return nil, nil, errors.Wrapf(ErrNoSuchTable, "%q", tid)
	}
	return m, t, nil
}

func (s *Server) newTable(tid string) (string, error) {
	if tid == "" {
		tid = uuid.NewString()[:8]
	}
	if !protocol.ValidID(tid) {
		return "", errors.Wrapf(ErrNoSuchTable, "invalid id %q", tid)
	}
	if _, err := s.hub.CreateTable(tid); err != nil {
		return "", err
	}
	return ok(tid), nil
}

func (s *Server) join(pid, tid, colorStr string) (string, error) {
	t, found := s.hub.FindTable(tid)
	if !found {
		return "", errors.Wrapf(ErrNoSuchTable, "%q", tid)
	}
	var color game.Color
	if colorStr != "" {
		c, known := game.ParseColor(colorStr)
		if !known {
			return "", errors.Wrapf(ErrBadColor, "%q", colorStr)
		}
		color = c
	} else {
		color = t.FreeSeat()
	}
	got, err := t.Join(s.player(pid), color)
	if err != nil {
		return "", err
	}
	return ok(got.String()), nil
}

func (s *Server) logout(pid string) error {
	m, found := s.players[pid]
	if !found {
		return nil
	}
	for _, t := range s.hub.Tables() {
		if t.HasMember(pid) {
			if err := t.Leave(m); err != nil {
				return err
			}
		}
	}
	delete(s.players, pid)
	log.Printf("Player %s logged out", pid)
	return nil
}

func (s *Server) list() string {
	tables := s.hub.Tables()
	infos := make([]protocol.TableInfo, 0, len(tables))
	for _, t := range tables {
		st := t.State()
		infos = append(infos, protocol.TableInfo{ID: st.ID, Status: st.Status.String(), Red: st.Red, Black: st.Black})
	}
	return protocol.FormatTableList(infos)
}
