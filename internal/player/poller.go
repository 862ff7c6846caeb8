package player

import (
	"context"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/DoBuiThao/hoxchess/internal/connection"
	"github.com/DoBuiThao/hoxchess/internal/game"
	"github.com/DoBuiThao/hoxchess/internal/hub"
	"github.com/DoBuiThao/hoxchess/pkg/protocol"
	"github.com/pkg/errors"
)

const DefaultPollInterval = 5 * time.Second

// DialFunc creates the connection a poller talks through.
type DialFunc func(serverURL string, timeout time.Duration) (connection.Connection, error)

type Config struct {
	ServerURL string
	Interval  time.Duration
	Timeout   time.Duration
	Tables    hub.TableFinder
	Dial      DialFunc
	// OnEvent, if set, sees events produced by local tables, as Local does.
	OnEvent func(t *hub.Table, event protocol.NetworkEvent)
}

type pollState int

const (
	stateIdle pollState = iota
	stateAwaiting
)

type signal int

const (
	signalJoin signal = iota
	signalLeave
)

// Poller is the behavior of a player that learns about the game by polling a
// server. Run owns all poll state; JoinTable and LeaveTable reach it through signals.
type Poller struct {
	player   *Player
	tables   hub.TableFinder
	interval time.Duration
	onEvent  func(t *hub.Table, event protocol.NetworkEvent)
	conn     connection.Connection

	signals   chan signal
	done      chan struct{}
	closeOnce sync.Once

	// Owned by Run.
	state  pollState
	active bool
	stale  bool
	timer  *time.Timer
	timerC <-chan time.Time
}

// NewPoller creates the player and dials its connection.
func NewPoller(id string, cfg Config) (*Poller, error) {
	if cfg.Tables == nil {
		return nil, errors.New("poller needs a table finder")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.Dial == nil {
		cfg.Dial = connection.DialHTTP
	}
	conn, err := cfg.Dial(cfg.ServerURL, cfg.Timeout)
	if err != nil {
		return nil, errors.WithMessage(err, "create connection")
	}
	pl := &Poller{
		tables:   cfg.Tables,
		interval: cfg.Interval,
		onEvent:  cfg.OnEvent,
		conn:     conn,
		signals:  make(chan signal, 16),
		done:     make(chan struct{}),
	}
	pl.player = New(id, pl)
	return pl, nil
}

func (pl *Poller) Player() *Player {
	return pl.player
}

func (pl *Poller) Interval() time.Duration {
	return pl.interval
}

// Send queues a command for the server on behalf of the player.
func (pl *Poller) Send(t protocol.RequestType, params url.Values) error {
	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("pid", pl.player.ID())
	return pl.conn.AddRequest(protocol.NewRequest(t, q))
}

// ReceiveEvent forwards moves made on local tables to the server.
func (pl *Poller) ReceiveEvent(p *Player, t *hub.Table, event protocol.NetworkEvent) {
	if event.Type == protocol.Move {
		err := pl.Send(protocol.Move, url.Values{"tid": {t.ID}, "move": {event.Content}})
		if err != nil {
			log.Printf("Player %s: failed to send move %s: %v", p.ID(), event.Content, err)
		}
	}
	if pl.onEvent != nil {
		pl.onEvent(t, event)
	}
}

func (pl *Poller) Joined(p *Player, t *hub.Table) {
	log.Printf("Player %s: start polling for events of table %s", p.ID(), t.ID)
	pl.signal(signalJoin)
}

func (pl *Poller) Left(p *Player, t *hub.Table) {
	log.Printf("Player %s: stop polling due to leaving table %s", p.ID(), t.ID)
	pl.signal(signalLeave)
}

func (pl *Poller) signal(s signal) {
	select {
	case pl.signals <- s:
	case <-pl.done:
	}
}

// Run drives the poll cycle until ctx ends or the poller is closed.
func (pl *Poller) Run(ctx context.Context) error {
	defer pl.stopTimer()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-pl.done:
			return nil
		case s := <-pl.signals:
			pl.handleSignal(s)
		case <-pl.timerC:
			pl.timerC = nil
			pl.drainSignals()
			pl.timerFired()
		case resp, ok := <-pl.conn.Responses():
			if !ok {
				return connection.ErrClosed
			}
			pl.drainSignals()
			pl.responseArrived(resp)
		}
	}
}

// Close stops Run and the connection. Queued requests are dropped.
func (pl *Poller) Close() error {
	pl.closeOnce.Do(func() { close(pl.done) })
	return pl.conn.Close()
}

func (pl *Poller) drainSignals() {
	for {
		select {
		case s := <-pl.signals:
			pl.handleSignal(s)
		default:
			return
		}
	}
}

func (pl *Poller) handleSignal(s signal) {
	switch s {
	case signalJoin:
		pl.active = true
		if pl.state == stateIdle && pl.timerC == nil {
			pl.poll()
		}
	case signalLeave:
		if len(pl.player.Tables()) > 0 {
			return
		}
		pl.active = false
		pl.stopTimer()
		if pl.state == stateAwaiting {
			pl.stale = true
		}
	}
}

func (pl *Poller) timerFired() {
	if pl.active && pl.state == stateIdle {
		pl.poll()
	}
}

func (pl *Poller) poll() {
	err := pl.conn.AddRequest(protocol.NewRequest(protocol.Poll, url.Values{"pid": {pl.player.ID()}}))
	if err != nil {
		log.Printf("Player %s: failed to queue poll: %v", pl.player.ID(), err)
		pl.armTimer()
		return
	}
	pl.state = stateAwaiting
	pl.stale = false
}

func (pl *Poller) armTimer() {
	pl.stopTimer()
	pl.timer = time.NewTimer(pl.interval)
	pl.timerC = pl.timer.C
}

func (pl *Poller) stopTimer() {
	if pl.timer != nil {
		pl.timer.Stop()
		pl.timer = nil
	}
	pl.timerC = nil
}

func (pl *Poller) responseArrived(resp protocol.Response) {
	if resp.Type == protocol.Poll {
		pl.handlePoll(resp)
		return
	}
	pl.handleAck(resp)
}

func (pl *Poller) handlePoll(resp protocol.Response) {
	id := pl.player.ID()
	if pl.state != stateAwaiting {
		log.Printf("Player %s: unexpected poll response dropped", id)
		return
	}
	pl.state = stateIdle
	if pl.stale || !pl.active {
		pl.stale = false
		log.Printf("Player %s: poll response after leaving dropped", id)
		if pl.active {
			pl.poll()
		}
		return
	}
	defer pl.armTimer()

	if resp.Err != nil {
		log.Printf("Player %s: poll failed: %v", id, resp.Err)
		return
	}
	events, err := protocol.ParseNetworkEvents(resp.Content)
	if err != nil {
		log.Printf("Player %s: parse table events failed: %v", id, err)
		return
	}
	log.Printf("Player %s: we got [%d] event(s)", id, len(events))
	for _, ev := range events {
		if ev.PlayerID != id {
			log.Printf("Player %s: event [%s] is addressed to %s", id, ev, ev.PlayerID)
		}
	}
	if err := hub.Dispatch(pl.tables, pl.player, events); err != nil {
		log.Printf("Player %s: dispatch abandoned: %v", id, err)
	}
}

func (pl *Poller) handleAck(resp protocol.Response) {
	id := pl.player.ID()
	if resp.Err != nil {
		log.Printf("Player %s: send %s to server failed: %v", id, resp.Type, resp.Err)
		return
	}
	code, msg, err := protocol.ParseSimpleResponse(resp.Content)
	if err != nil {
		log.Printf("Player %s: parse %s response failed: %v", id, resp.Type, err)
		return
	}
	if code != protocol.CodeOK {
		log.Printf("Player %s: send %s to server failed. [%s]", id, resp.Type, msg)
		if resp.Type == protocol.Move {
			pl.takeBack(resp.Query)
		}
		return
	}
	if resp.Type == protocol.Join {
		pl.takeSeat(resp.Query, msg)
	}
}

func (pl *Poller) localTable(query string) (*hub.Table, url.Values, bool) {
	u, err := url.Parse(query)
	if err != nil {
		return nil, nil, false
	}
	q := u.Query()
	t, found := pl.tables.FindTable(q.Get("tid"))
	if !found || !t.HasMember(pl.player.ID()) {
		return nil, nil, false
	}
	return t, q, true
}

// takeBack reverts a local move the server refused so both boards agree again.
func (pl *Poller) takeBack(query string) {
	t, q, found := pl.localTable(query)
	if !found {
		return
	}
	move, err := game.ParseMove(q.Get("move"))
	if err != nil {
		return
	}
	if err := t.TakeBack(move); err != nil {
		log.Printf("Player %s: cannot take back refused move %s: %v", pl.player.ID(), move, err)
	}
}

// takeSeat applies the seat the server granted in a JOIN ack to the local table.
func (pl *Poller) takeSeat(query, granted string) {
	color, ok := game.ParseColor(granted)
	if !ok || color == game.NoColor {
		return
	}
	t, _, found := pl.localTable(query)
	if !found {
		return
	}
	id := pl.player.ID()
	st := t.State()
	if st.Red == id || st.Black == id {
		return
	}
	event := protocol.NetworkEvent{TableID: t.ID, PlayerID: id, Type: protocol.EJoin, Content: id + " " + color.String()}
	if err := t.OnNetworkEvent(pl.player, event); err != nil {
		log.Printf("Player %s: cannot take seat %s at table %s: %v", id, color, t.ID, err)
	}
}
