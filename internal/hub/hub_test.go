package hub

import (
	"testing"

	"github.com/DoBuiThao/hoxchess/pkg/protocol"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubTables(t *testing.T) {
	h := NewHub(nil)
	t2, err := h.CreateTable("t2")
	require.NoError(t, err)
	_, err = h.CreateTable("t1")
	require.NoError(t, err)

	_, err = h.CreateTable("t2")
	assert.True(t, errors.Is(err, ErrTableExists))

	found, ok := h.FindTable("t2")
	require.True(t, ok)
	assert.Same(t, t2, found)

	tables := h.Tables()
	require.Len(t, tables, 2)
	assert.Equal(t, "t1", tables[0].ID)

	h.RemoveTable("t1")
	_, ok = h.FindTable("t1")
	assert.False(t, ok)
}

func TestDispatchInOrder(t *testing.T) {
	h := NewHub(nil)
	tbl, err := h.CreateTable("t1")
	require.NoError(t, err)
	src, board := &recorder{id: "alice"}, &recorder{id: "board"}
	_, err = tbl.Join(src, 0)
	require.NoError(t, err)
	_, err = tbl.Join(board, 0)
	require.NoError(t, err)
	board.events = nil

	events := []protocol.NetworkEvent{
		{ID: "1", TableID: "t1", Type: protocol.EJoin, Content: "bob Black"},
		{ID: "2", TableID: "t1", Type: protocol.Move, Content: "2124"},
		{ID: "3", TableID: "t1", Type: protocol.Move, Content: "9999"},
		{ID: "4", TableID: "t1", Type: protocol.Move, Content: "6656"},
	}
	require.NoError(t, Dispatch(h, src, events))
	assert.Equal(t, []string{"bob Black", "2124", "6656"}, []string{
		board.events[0].Content, board.events[1].Content, board.events[2].Content,
	}, "a rejected event does not stop the batch")
	assert.Equal(t, "bob", tbl.State().Black)
}

func TestDispatchStopsOnUnknownTable(t *testing.T) {
	h := NewHub(nil)
	tbl, err := h.CreateTable("t1")
	require.NoError(t, err)
	board := &recorder{id: "board"}
	_, err = tbl.Join(board, 0)
	require.NoError(t, err)

	events := []protocol.NetworkEvent{
		{ID: "1", TableID: "t1", Type: protocol.Msg, Content: "a"},
		{ID: "2", TableID: "missing", Type: protocol.Msg, Content: "b"},
		{ID: "3", TableID: "t1", Type: protocol.Msg, Content: "c"},
	}
	err = Dispatch(h, nil, events)
	assert.True(t, errors.Is(err, ErrTableNotFound))
	require.Len(t, board.events, 1)
	assert.Equal(t, "a", board.events[0].Content)

	assert.NoError(t, Dispatch(h, nil, nil))
}
