package player

import (
	"log"
	"sort"
	"sync"

	"github.com/DoBuiThao/hoxchess/internal/game"
	"github.com/DoBuiThao/hoxchess/internal/hub"
	"github.com/DoBuiThao/hoxchess/pkg/protocol"
)

// Behavior is what distinguishes one kind of player from another.
type Behavior interface {
	ReceiveEvent(p *Player, t *hub.Table, event protocol.NetworkEvent)
	Joined(p *Player, t *hub.Table)
	Left(p *Player, t *hub.Table)
}

type Player struct {
	id       string
	behavior Behavior

	mu     sync.Mutex
	tables map[string]*hub.Table
}

func New(id string, b Behavior) *Player {
	if b == nil {
		b = Local{}
	}
	return &Player{
		id:       id,
		behavior: b,
		tables:   make(map[string]*hub.Table),
	}
}

func (p *Player) ID() string {
	return p.id
}

func (p *Player) OnTableEvent(t *hub.Table, event protocol.NetworkEvent) {
	p.behavior.ReceiveEvent(p, t, event)
}

// JoinTable sits the player at t. The behavior only hears about successful joins.
func (p *Player) JoinTable(t *hub.Table, color game.Color) (game.Color, error) {
	got, err := t.Join(p, color)
	if err != nil {
		return got, err
	}
	p.mu.Lock()
	p.tables[t.ID] = t
	p.mu.Unlock()
	p.behavior.Joined(p, t)
	return got, nil
}

// LeaveTable removes the player from t. A failed leave is not reported to the behavior.
func (p *Player) LeaveTable(t *hub.Table) error {
	if err := t.Leave(p); err != nil {
		return err
	}
	p.mu.Lock()
	delete(p.tables, t.ID)
	p.mu.Unlock()
	p.behavior.Left(p, t)
	return nil
}

// Tables lists the ids of the tables the player sits at.
func (p *Player) Tables() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, len(p.tables))
	for id := range p.tables {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Local hands every event to OnEvent, typically the board UI.
type Local struct {
	OnEvent func(t *hub.Table, event protocol.NetworkEvent)
}

func (l Local) ReceiveEvent(p *Player, t *hub.Table, event protocol.NetworkEvent) {
	if l.OnEvent != nil {
		l.OnEvent(t, event)
	}
}

func (Local) Joined(*Player, *hub.Table) {}
func (Local) Left(*Player, *hub.Table)   {}

// Host owns the tables on this system. Moves are already applied by the table,
// so the host ignores them.
type Host struct {
	Local
}

func (h Host) ReceiveEvent(p *Player, t *hub.Table, event protocol.NetworkEvent) {
	if event.Type == protocol.Move {
		log.Printf("Player %s: ignore move %s on table %s since this is a host player", p.ID(), event.Content, t.ID)
		return
	}
	h.Local.ReceiveEvent(p, t, event)
}
