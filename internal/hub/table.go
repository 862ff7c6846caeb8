package hub

import (
	"log"
	"strings"
	"sync"

	"github.com/DoBuiThao/hoxchess/internal/game"
	"github.com/DoBuiThao/hoxchess/pkg/protocol"
	"github.com/pkg/errors"
)

var (
	ErrSeatTaken   = errors.New("seat is taken")
	ErrNotMember   = errors.New("not a member of the table")
	ErrNotSeated   = errors.New("player has no seat")
	ErrNotYourTurn = errors.New("not your turn")
	ErrIllegalMove = errors.New("invalid move")
	ErrGameOver    = errors.New("game is over")
	ErrInProgress  = errors.New("game is in progress")
	ErrNotReady    = errors.New("waiting for an opponent")
	ErrNotLastMove = errors.New("not the last move")
)

// Member is anything that can sit at a table and hear its events.
// OnTableEvent is called with the table locked and must not call back into it.
type Member interface {
	ID() string
	OnTableEvent(t *Table, event protocol.NetworkEvent)
}

// Snapshot is a read-only view of a table.
type Snapshot struct {
	ID     string
	Pieces []game.PieceInfo
	Next   game.Color
	Status game.GameStatus
	Red    string
	Black  string
}

type Table struct {
	ID string

	mu         sync.Mutex
	referee    *game.Referee
	members    []Member
	seats      map[game.Color]string
	drawOffers map[game.Color]bool
	status     game.GameStatus
	history    []game.Move
}

func newTable(id string, rule game.Rule) *Table {
	return &Table{
		ID:         id,
		referee:    game.NewReferee(rule),
		seats:      make(map[game.Color]string),
		drawOffers: make(map[game.Color]bool),
		status:     game.StatusOpen,
	}
}

// NewTable builds a table that is not registered with any hub.
func NewTable(id string, rule game.Rule) *Table {
	return newTable(id, rule)
}

// Join adds m to the table. color Red or Black asks for that seat, NoColor observes.
// Joining again keeps the existing seat.
func (t *Table) Join(m Member, color game.Color) (game.Color, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.indexOf(m.ID()) >= 0 {
		return t.colorOf(m.ID()), nil
	}
	if color == game.Red || color == game.Black {
		if holder, ok := t.seats[color]; ok && holder != m.ID() {
			return game.NoColor, errors.Wrapf(ErrSeatTaken, "table %s %s", t.ID, color)
		}
		t.seats[color] = m.ID()
	} else {
		color = t.colorOf(m.ID())
	}
	t.members = append(t.members, m)
	t.updateOpenStatus()
	log.Printf("Table %s: %s joined as %s", t.ID, m.ID(), color)
	t.notify(m, protocol.EJoin, m.ID()+" "+color.String())
	return color, nil
}

// FreeSeat returns the first empty seat, Red first, or NoColor if both are taken.
func (t *Table) FreeSeat() game.Color {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, c := range []game.Color{game.Red, game.Black} {
		if _, ok := t.seats[c]; !ok {
			return c
		}
	}
	return game.NoColor
}

// Leave removes m. A seated player leaving a game in progress forfeits it.
func (t *Table) Leave(m Member) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	i := t.indexOf(m.ID())
	if i < 0 {
		return errors.Wrapf(ErrNotMember, "table %s player %s", t.ID, m.ID())
	}
	t.members = append(t.members[:i], t.members[i+1:]...)
	color := t.colorOf(m.ID())
	if color != game.NoColor {
		delete(t.seats, color)
		delete(t.drawOffers, color)
	}
	log.Printf("Table %s: %s left", t.ID, m.ID())
	t.notify(m, protocol.Leave, m.ID())
	if color != game.NoColor && t.status == game.StatusInProgress {
		t.finish(game.WinFor(color.Opponent()))
	} else {
		t.updateOpenStatus()
	}
	return nil
}

// MakeMove validates a move from a local source and tells everyone else about it.
// A nil source is the board itself and skips the seat check.
func (t *Table) MakeMove(source Member, move game.Move) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status.Finished() {
		return ErrGameOver
	}
	if source != nil {
		if err := t.checkTurn(source.ID()); err != nil {
			return err
		}
	}
	if err := t.applyMove(move); err != nil {
		return err
	}
	t.notify(source, protocol.Move, move.String())
	t.checkResult()
	return nil
}

// MakeMoveFor plays move for the seated member id with the same checks as MakeMove,
// but tells every member, id included. A poller seated as id forwards it to the server.
func (t *Table) MakeMoveFor(id string, move game.Move) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status.Finished() {
		return ErrGameOver
	}
	if err := t.checkTurn(id); err != nil {
		return err
	}
	if err := t.applyMove(move); err != nil {
		return err
	}
	t.notify(nil, protocol.Move, move.String())
	t.checkResult()
	return nil
}

func (t *Table) checkTurn(id string) error {
	color := t.colorOf(id)
	if color == game.NoColor {
		return errors.Wrapf(ErrNotSeated, "table %s player %s", t.ID, id)
	}
	if t.status == game.StatusOpen {
		return ErrNotReady
	}
	if color != t.referee.NextColor() {
		return ErrNotYourTurn
	}
	return nil
}

// TakeBack undoes move if it is the last one played, for moves the server refused.
// Members are not notified.
func (t *Table) TakeBack(move game.Move) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := len(t.history)
	if n == 0 || t.history[n-1] != move {
		return errors.Wrapf(ErrNotLastMove, "table %s move %s", t.ID, move)
	}
	t.history = t.history[:n-1]
	t.referee.Reset()
	for _, m := range t.history {
		t.referee.ValidateMove(m)
	}
	if len(t.history) > 0 {
		t.status = game.StatusInProgress
	} else {
		t.status = game.StatusOpen
		t.updateOpenStatus()
	}
	log.Printf("Table %s: move %s taken back, %s to play", t.ID, move, t.referee.NextColor())
	return nil
}

func (t *Table) applyMove(move game.Move) error {
	if !t.referee.ValidateMove(move) {
		return errors.Wrapf(ErrIllegalMove, "table %s move %s", t.ID, move)
	}
	t.status = game.StatusInProgress
	t.history = append(t.history, move)
	for c := range t.drawOffers {
		delete(t.drawOffers, c)
	}
	log.Printf("Table %s: move %s, %s to play", t.ID, move, t.referee.NextColor())
	return nil
}

func (t *Table) checkResult() {
	if st := t.referee.Status(); st.Finished() {
		t.finish(st)
	}
}

// Resign ends the game in favour of m's opponent.
func (t *Table) Resign(m Member) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	color := t.colorOf(m.ID())
	if color == game.NoColor {
		return errors.Wrapf(ErrNotSeated, "table %s player %s", t.ID, m.ID())
	}
	if t.status.Finished() {
		return ErrGameOver
	}
	t.notify(m, protocol.Resign, m.ID())
	t.finish(game.WinFor(color.Opponent()))
	return nil
}

// OfferDraw records m's offer; the game is drawn once both seats have offered.
func (t *Table) OfferDraw(m Member) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	color := t.colorOf(m.ID())
	if color == game.NoColor {
		return errors.Wrapf(ErrNotSeated, "table %s player %s", t.ID, m.ID())
	}
	if t.status.Finished() {
		return ErrGameOver
	}
	t.drawOffers[color] = true
	t.notify(m, protocol.Draw, m.ID())
	if t.drawOffers[color.Opponent()] {
		t.finish(game.StatusDrawn)
	}
	return nil
}

// Reset starts a new game. A source of nil bypasses the seat check.
func (t *Table) Reset(source Member) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if source != nil && t.colorOf(source.ID()) == game.NoColor {
		return errors.Wrapf(ErrNotSeated, "table %s player %s", t.ID, source.ID())
	}
	if t.status == game.StatusInProgress {
		return ErrInProgress
	}
	t.reset()
	t.notify(source, protocol.Reset, "")
	return nil
}

func (t *Table) reset() {
	t.referee.Reset()
	t.status = game.StatusOpen
	t.history = nil
	for c := range t.drawOffers {
		delete(t.drawOffers, c)
	}
	t.updateOpenStatus()
	log.Printf("Table %s: game reset", t.ID)
}

// Message relays a chat line from m to the other members.
func (t *Table) Message(m Member, text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.indexOf(m.ID()) < 0 {
		return errors.Wrapf(ErrNotMember, "table %s player %s", t.ID, m.ID())
	}
	t.notify(m, protocol.Msg, m.ID()+" "+text)
	return nil
}

// OnNetworkEvent applies an event reported by the server, then forwards it to the
// local members other than source. Moves go through the referee without a seat check
// since the server already decided whose turn it was.
func (t *Table) OnNetworkEvent(source Member, event protocol.NetworkEvent) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch event.Type {
	case protocol.Move:
		move, err := game.ParseMove(event.Content)
		if err != nil {
			return errors.Wrapf(ErrIllegalMove, "table %s: %v", t.ID, err)
		}
		if err := t.applyMove(move); err != nil {
			return err
		}
		t.notify(source, event.Type, event.Content)
		t.checkResult()
		return nil
	case protocol.EJoin, protocol.Join:
		fields := strings.Fields(event.Content)
		if len(fields) == 2 {
			if c, ok := game.ParseColor(fields[1]); ok && c != game.NoColor {
				t.seats[c] = fields[0]
			}
		}
		t.updateOpenStatus()
	case protocol.Leave:
		if c := t.colorOf(strings.TrimSpace(event.Content)); c != game.NoColor {
			delete(t.seats, c)
		}
		if t.status != game.StatusInProgress {
			t.updateOpenStatus()
		}
	case protocol.EEnd:
		if st := game.ParseGameStatus(strings.TrimSpace(event.Content)); st.Finished() {
			t.status = st
		}
	case protocol.Reset:
		t.reset()
	}
	t.notify(source, event.Type, event.Content)
	return nil
}

// State returns a snapshot of the table.
func (t *Table) State() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	pieces, next := t.referee.GetGameState()
	return Snapshot{
		ID:     t.ID,
		Pieces: pieces,
		Next:   next,
		Status: t.status,
		Red:    t.seats[game.Red],
		Black:  t.seats[game.Black],
	}
}

// HasMember reports whether a member with the given id sits or watches here.
func (t *Table) HasMember(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.indexOf(id) >= 0
}

func (t *Table) finish(st game.GameStatus) {
	t.status = st
	log.Printf("Table %s: game ended, %s", t.ID, st)
	t.notify(nil, protocol.EEnd, st.String())
}

func (t *Table) updateOpenStatus() {
	if t.status == game.StatusInProgress || t.status.Finished() {
		return
	}
	if _, red := t.seats[game.Red]; red {
		if _, black := t.seats[game.Black]; black {
			t.status = game.StatusReady
			return
		}
	}
	t.status = game.StatusOpen
}

// notify sends an event to every member except skip, in join order.
func (t *Table) notify(skip Member, typ protocol.RequestType, content string) {
	event := protocol.NetworkEvent{TableID: t.ID, Type: typ, Content: content}
	for _, m := range t.members {
		if skip != nil && m.ID() == skip.ID() {
			continue
		}
		m.OnTableEvent(t, event)
	}
}

func (t *Table) indexOf(id string) int {
	for i, m := range t.members {
		if m.ID() == id {
			return i
		}
	}
	return -1
}

func (t *Table) colorOf(id string) game.Color {
	for c, holder := range t.seats {
		if holder == id {
			return c
		}
	}
	return game.NoColor
}
