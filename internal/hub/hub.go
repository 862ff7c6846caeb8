package hub

import (
	"log"
	"sort"
	"sync"

	"github.com/DoBuiThao/hoxchess/internal/game"
	"github.com/DoBuiThao/hoxchess/pkg/protocol"
	"github.com/pkg/errors"
)

var (
	ErrTableExists   = errors.New("table already exists")
	ErrTableNotFound = errors.New("table not found")
)

// TableFinder resolves a table id to the table hosted on this side.
type TableFinder interface {
	FindTable(id string) (*Table, bool)
}

type Hub struct {
	rule   game.Rule
	tables map[string]*Table
	mu     sync.RWMutex
}

func NewHub(rule game.Rule) *Hub {
	if rule == nil {
		rule = game.XiangqiRule{}
	}
	return &Hub{
		rule:   rule,
		tables: make(map[string]*Table),
	}
}

func (h *Hub) CreateTable(id string) (*Table, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.tables[id]; exists {
		return nil, errors.Wrapf(ErrTableExists, "table %s", id)
	}
	log.Printf("Creating new table: %s", id)
	t := newTable(id, h.rule)
	h.tables[id] = t
	return t, nil
}

func (h *Hub) FindTable(id string) (*Table, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	t, ok := h.tables[id]
	return t, ok
}

func (h *Hub) RemoveTable(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.tables, id)
}

// Tables lists the hosted tables ordered by id.
func (h *Hub) Tables() []*Table {
	h.mu.RLock()
	out := make([]*Table, 0, len(h.tables))
	for _, t := range h.tables {
		out = append(out, t)
	}
	h.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Dispatch hands a batch of events to their tables one at a time, in order.
// The first event whose table cannot be found abandons the rest of the batch.
// Errors from a table handling an event are logged and do not stop the batch.
func Dispatch(finder TableFinder, source Member, events []protocol.NetworkEvent) error {
	for i, ev := range events {
		t, ok := finder.FindTable(ev.TableID)
		if !ok {
			return errors.Wrapf(ErrTableNotFound, "event %s (%d of %d): table %s", ev.ID, i+1, len(events), ev.TableID)
		}
		if err := t.OnNetworkEvent(source, ev); err != nil {
			log.Printf("Table %s rejected event [%s]: %v", ev.TableID, ev, err)
		}
	}
	return nil
}
