package server

import (
	"sync"

	"github.com/DoBuiThao/hoxchess/internal/hub"
	"github.com/DoBuiThao/hoxchess/pkg/protocol"
	"github.com/google/uuid"
)

// mailbox stands in for a remote player. Table events pile up until the
// player polls for them.
type mailbox struct {
	id string

	mu     sync.Mutex
	events []protocol.NetworkEvent
}

func newMailbox(id string) *mailbox {
	return &mailbox{id: id}
}

func (m *mailbox) ID() string {
	return m.id
}

func (m *mailbox) OnTableEvent(_ *hub.Table, ev protocol.NetworkEvent) {
	ev.ID = uuid.NewString()
	ev.PlayerID = m.id
	m.mu.Lock()
	m.events = append(m.events, ev)
	m.mu.Unlock()
}

// drain hands over every pending event in arrival order.
func (m *mailbox) drain() []protocol.NetworkEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.events
	m.events = nil
	return out
}
