package player

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/DoBuiThao/hoxchess/internal/connection"
	"github.com/DoBuiThao/hoxchess/internal/game"
	"github.com/DoBuiThao/hoxchess/internal/hub"
	"github.com/DoBuiThao/hoxchess/pkg/protocol"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	requests  chan protocol.Request
	responses chan protocol.Response
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		requests:  make(chan protocol.Request, 32),
		responses: make(chan protocol.Response, 32),
	}
}

func (f *fakeConn) AddRequest(req protocol.Request) error {
	f.requests <- req
	return nil
}

func (f *fakeConn) Responses() <-chan protocol.Response { return f.responses }

func (f *fakeConn) Close() error {
	f.closeOnce.Do(func() { close(f.responses) })
	return nil
}

const quiet = 100 * time.Millisecond

func (f *fakeConn) expect(t *testing.T, typ protocol.RequestType) protocol.Request {
	t.Helper()
	select {
	case req := <-f.requests:
		require.Equal(t, typ, req.Type, req.Content)
		return req
	case <-time.After(2 * time.Second):
		t.Fatalf("no %s request", typ)
	}
	return protocol.Request{}
}

func (f *fakeConn) expectNone(t *testing.T) {
	t.Helper()
	select {
	case req := <-f.requests:
		t.Fatalf("unexpected request %s %s", req.Type, req.Content)
	case <-time.After(quiet):
	}
}

type fixture struct {
	hub    *hub.Hub
	table  *hub.Table
	conn   *fakeConn
	poller *Poller
	alice  *Player

	mu     sync.Mutex
	events []protocol.NetworkEvent
}

func newFixture(t *testing.T, interval time.Duration) *fixture {
	t.Helper()
	f := &fixture{hub: hub.NewHub(nil), conn: newFakeConn()}
	var err error
	f.table, err = f.hub.CreateTable("t1")
	require.NoError(t, err)

	f.poller, err = NewPoller("alice", Config{
		ServerURL: "http://example.invalid",
		Interval:  interval,
		Tables:    f.hub,
		Dial: func(string, time.Duration) (connection.Connection, error) {
			return f.conn, nil
		},
	})
	require.NoError(t, err)
	f.alice = f.poller.Player()

	board := New("board", Local{OnEvent: func(_ *hub.Table, ev protocol.NetworkEvent) {
		f.mu.Lock()
		f.events = append(f.events, ev)
		f.mu.Unlock()
	}})
	_, err = board.JoinTable(f.table, game.NoColor)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = f.poller.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return f
}

func (f *fixture) boardEvents() []protocol.NetworkEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]protocol.NetworkEvent(nil), f.events...)
}

func (f *fixture) respond(typ protocol.RequestType, content string) {
	f.conn.responses <- protocol.Response{Type: typ, Content: content}
}

func TestJoinStartsSinglePoll(t *testing.T) {
	f := newFixture(t, 50*time.Millisecond)

	_, err := f.alice.JoinTable(f.table, game.NoColor)
	require.NoError(t, err)
	req := f.conn.expect(t, protocol.Poll)
	u, err := url.Parse(req.Content)
	require.NoError(t, err)
	assert.Equal(t, protocol.RequestPathPrefix, u.Path)
	assert.Equal(t, "alice", u.Query().Get("pid"))
	assert.Equal(t, "POLL", u.Query().Get("op"))

	_, err = f.alice.JoinTable(f.table, game.NoColor)
	require.NoError(t, err)
	f.conn.expectNone(t)

	f.respond(protocol.Poll, "")
	f.conn.expect(t, protocol.Poll)
}

func TestPollDispatchesInOrder(t *testing.T) {
	f := newFixture(t, time.Hour)
	_, err := f.alice.JoinTable(f.table, game.NoColor)
	require.NoError(t, err)
	f.conn.expect(t, protocol.Poll)

	f.respond(protocol.Poll, "e1;alice;t1;E_JOIN;bob Black\ne2;alice;t1;MOVE;2124\ne3;alice;t1;MOVE;6656\n")

	// The first board event is alice's own join.
	require.Eventually(t, func() bool { return len(f.boardEvents()) == 4 }, 2*time.Second, 5*time.Millisecond)
	events := f.boardEvents()
	assert.Equal(t, "alice None", events[0].Content)
	assert.Equal(t, "bob Black", events[1].Content)
	assert.Equal(t, "2124", events[2].Content)
	assert.Equal(t, "6656", events[3].Content)

	st := f.table.State()
	assert.Equal(t, "bob", st.Black)
	assert.Equal(t, game.Red, st.Next)
	assert.Equal(t, game.StatusInProgress, st.Status)

	// Events applied from the network are never echoed back as MOVE requests.
	f.conn.expectNone(t)
}

func TestPollContinuesAfterFailures(t *testing.T) {
	f := newFixture(t, 20*time.Millisecond)
	_, err := f.alice.JoinTable(f.table, game.NoColor)
	require.NoError(t, err)

	f.conn.expect(t, protocol.Poll)
	f.respond(protocol.Poll, "not an event")
	f.conn.expect(t, protocol.Poll)
	f.conn.responses <- protocol.Response{Type: protocol.Poll, Err: errors.New("connection refused")}
	f.conn.expect(t, protocol.Poll)
	f.respond(protocol.Poll, "e1;alice;nowhere;MSG;hi\ne2;alice;t1;MSG;lost")
	f.conn.expect(t, protocol.Poll)

	assert.Len(t, f.boardEvents(), 1, "a lookup failure abandons the batch")
}

func TestLeaveDiscardsInFlightResponse(t *testing.T) {
	f := newFixture(t, 20*time.Millisecond)
	_, err := f.alice.JoinTable(f.table, game.NoColor)
	require.NoError(t, err)
	f.conn.expect(t, protocol.Poll)

	require.NoError(t, f.alice.LeaveTable(f.table))
	f.respond(protocol.Poll, "e1;alice;t1;MSG;late")
	f.conn.expectNone(t)
	events := f.boardEvents()
	require.Len(t, events, 2, "the late event is not dispatched")
	assert.Equal(t, protocol.EJoin, events[0].Type)
	assert.Equal(t, protocol.Leave, events[1].Type)
}

func TestLeaveStopsTimer(t *testing.T) {
	f := newFixture(t, 50*time.Millisecond)
	_, err := f.alice.JoinTable(f.table, game.NoColor)
	require.NoError(t, err)
	f.conn.expect(t, protocol.Poll)
	f.respond(protocol.Poll, "")

	require.NoError(t, f.alice.LeaveTable(f.table))
	f.conn.expectNone(t)

	_, err = f.alice.JoinTable(f.table, game.NoColor)
	require.NoError(t, err)
	f.conn.expect(t, protocol.Poll)
}

func TestFailedJoinDoesNotPoll(t *testing.T) {
	f := newFixture(t, 20*time.Millisecond)
	_, err := New("bob", nil).JoinTable(f.table, game.Red)
	require.NoError(t, err)

	_, err = f.alice.JoinTable(f.table, game.Red)
	assert.True(t, errors.Is(err, hub.ErrSeatTaken))
	f.conn.expectNone(t)
	assert.Empty(t, f.alice.Tables())
}

func TestFailedLeaveKeepsPolling(t *testing.T) {
	f := newFixture(t, 20*time.Millisecond)
	other, err := f.hub.CreateTable("t2")
	require.NoError(t, err)

	_, err = f.alice.JoinTable(f.table, game.NoColor)
	require.NoError(t, err)
	f.conn.expect(t, protocol.Poll)

	err = f.alice.LeaveTable(other)
	assert.True(t, errors.Is(err, hub.ErrNotMember))

	f.respond(protocol.Poll, "")
	f.conn.expect(t, protocol.Poll)
	assert.Equal(t, []string{"t1"}, f.alice.Tables())
}

func TestLocalMoveIsSentToServer(t *testing.T) {
	f := newFixture(t, time.Hour)
	_, err := f.alice.JoinTable(f.table, game.NoColor)
	require.NoError(t, err)
	f.conn.expect(t, protocol.Poll)

	require.NoError(t, f.table.MakeMove(nil, game.Move{From: game.Position{Row: 2, Col: 1}, To: game.Position{Row: 2, Col: 4}}))
	req := f.conn.expect(t, protocol.Move)
	u, err := url.Parse(req.Content)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "2124", q.Get("move"))
	assert.Equal(t, "t1", q.Get("tid"))
	assert.Equal(t, "alice", q.Get("pid"))

	// A rejected move ack is logged; the poll cycle is unaffected.
	f.respond(protocol.Move, "1 Invalid move")
	f.respond(protocol.Poll, "")
	f.conn.expectNone(t)
}

func TestUnexpectedPollResponse(t *testing.T) {
	f := newFixture(t, 20*time.Millisecond)
	f.respond(protocol.Poll, "e1;alice;t1;MSG;stray")
	f.conn.expectNone(t)
	assert.Empty(t, f.boardEvents())
}

func TestNewPollerErrors(t *testing.T) {
	_, err := NewPoller("alice", Config{})
	assert.Error(t, err)

	_, err = NewPoller("alice", Config{
		Tables: hub.NewHub(nil),
		Dial: func(string, time.Duration) (connection.Connection, error) {
			return nil, errors.New("refused")
		},
	})
	assert.Error(t, err)

	pl, err := NewPoller("alice", Config{
		Tables: hub.NewHub(nil),
		Dial:   func(string, time.Duration) (connection.Connection, error) { return newFakeConn(), nil },
	})
	require.NoError(t, err)
	assert.Equal(t, DefaultPollInterval, pl.Interval())

	done := make(chan error, 1)
	go func() { done <- pl.Run(context.Background()) }()
	require.NoError(t, pl.Close())
	select {
	case err := <-done:
		assert.True(t, err == nil || errors.Is(err, connection.ErrClosed))
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func (f *fixture) ack(typ protocol.RequestType, query url.Values, content string) {
	f.conn.responses <- protocol.Response{Type: typ, Content: content, Query: protocol.NewRequest(typ, query).Content}
}

func TestJoinAckSeatsPlayer(t *testing.T) {
	f := newFixture(t, time.Hour)
	_, err := f.alice.JoinTable(f.table, game.NoColor)
	require.NoError(t, err)
	f.conn.expect(t, protocol.Poll)

	f.ack(protocol.Join, url.Values{"pid": {"alice"}, "tid": {"t1"}}, "0 Red")
	require.Eventually(t, func() bool { return f.table.State().Red == "alice" }, 2*time.Second, 5*time.Millisecond)

	events := f.boardEvents()
	require.Len(t, events, 2)
	assert.Equal(t, "alice Red", events[1].Content)

	// A later ack for an already seated player changes nothing.
	f.ack(protocol.Join, url.Values{"pid": {"alice"}, "tid": {"t1"}}, "0 Black")
	f.conn.expectNone(t)
	st := f.table.State()
	assert.Equal(t, "alice", st.Red)
	assert.Empty(t, st.Black)
}

func TestRefusedMoveIsTakenBack(t *testing.T) {
	f := newFixture(t, time.Hour)
	_, err := New("bob", nil).JoinTable(f.table, game.Black)
	require.NoError(t, err)
	_, err = f.alice.JoinTable(f.table, game.Red)
	require.NoError(t, err)
	f.conn.expect(t, protocol.Poll)

	require.NoError(t, f.table.MakeMoveFor("alice", game.Move{From: game.Position{Row: 2, Col: 1}, To: game.Position{Row: 2, Col: 4}}))
	req := f.conn.expect(t, protocol.Move)
	assert.Equal(t, game.Black, f.table.State().Next)

	f.conn.responses <- protocol.Response{Type: protocol.Move, Content: "1 waiting for an opponent", Query: req.Content}
	require.Eventually(t, func() bool { return f.table.State().Next == game.Red }, 2*time.Second, 5*time.Millisecond)
	st := f.table.State()
	assert.Equal(t, game.StatusReady, st.Status)
	assert.Equal(t, game.StartingBoard().Pieces(), st.Pieces)
}

func TestLeavingOneOfTwoTablesKeepsPolling(t *testing.T) {
	f := newFixture(t, 20*time.Millisecond)
	other, err := f.hub.CreateTable("t2")
	require.NoError(t, err)

	_, err = f.alice.JoinTable(f.table, game.NoColor)
	require.NoError(t, err)
	_, err = f.alice.JoinTable(other, game.NoColor)
	require.NoError(t, err)
	f.conn.expect(t, protocol.Poll)

	require.NoError(t, f.alice.LeaveTable(other))
	f.respond(protocol.Poll, "e1;alice;t1;MSG;bob hi")
	f.conn.expect(t, protocol.Poll)

	events := f.boardEvents()
	require.Len(t, events, 2, "the response is still dispatched for t1")
	assert.Equal(t, "bob hi", events[1].Content)
}
