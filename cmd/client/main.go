package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/DoBuiThao/hoxchess/internal/connection"
	"github.com/DoBuiThao/hoxchess/internal/game"
	"github.com/DoBuiThao/hoxchess/internal/hub"
	"github.com/DoBuiThao/hoxchess/internal/player"
	"github.com/DoBuiThao/hoxchess/internal/transport"
	"github.com/DoBuiThao/hoxchess/pkg/protocol"
)

func main() {
	serverURL := flag.String("server", "http://localhost:8080", "server base url")
	useWS := flag.Bool("ws", false, "talk to the server over a WebSocket")
	pid := flag.String("pid", "", "player id")
	tid := flag.String("tid", "1", "table id")
	colorStr := flag.String("color", "", "seat to request: Red, Black or None (default: first free)")
	interval := flag.Duration("interval", player.DefaultPollInterval, "poll interval")
	timeout := flag.Duration("timeout", connection.DefaultTimeout, "request timeout")
	flag.Parse()

	if !protocol.ValidID(*pid) || !protocol.ValidID(*tid) {
		log.Fatal("-pid and -tid are required and may not contain ';' or line breaks")
	}
	color := game.NoColor
	if *colorStr != "" {
		c, ok := game.ParseColor(*colorStr)
		if !ok {
			log.Fatalf("Unknown color %q", *colorStr)
		}
		color = c
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h := hub.NewHub(nil)
	table, err := h.CreateTable(*tid)
	if err != nil {
		log.Fatal(err)
	}

	cfg := player.Config{
		ServerURL: *serverURL,
		Interval:  *interval,
		Timeout:   *timeout,
		Tables:    h,
		Dial:      connection.DialHTTP,
	}
	if *useWS {
		cfg.ServerURL = websocketURL(*serverURL)
		cfg.Dial = connection.DialWebSocket
	}
	pl, err := player.NewPoller(*pid, cfg)
	if err != nil {
		log.Fatalf("Error connecting to %s: %v", cfg.ServerURL, err)
	}
	defer pl.Close()

	board := player.New("board", player.Local{OnEvent: func(t *hub.Table, event protocol.NetworkEvent) {
		fmt.Printf("[%s] %s %s\n", t.ID, event.Type, event.Content)
		if event.Type == protocol.Move || event.Type == protocol.Reset {
			printBoard(t.State())
		}
	}})
	if _, err := board.JoinTable(table, game.NoColor); err != nil {
		log.Fatal(err)
	}

	join := url.Values{"tid": {*tid}}
	if *colorStr != "" {
		join.Set("color", color.String())
	}
	for _, err := range []error{
		pl.Send(protocol.Login, nil),
		pl.Send(protocol.Join, join),
	} {
		if err != nil {
			log.Fatal(err)
		}
	}
	if _, err := pl.Player().JoinTable(table, color); err != nil {
		log.Fatal(err)
	}

	go readCommands(ctx, pl, table, stop)

	printBoard(table.State())
	if err := pl.Run(ctx); err != nil && ctx.Err() == nil {
		log.Printf("Poll loop stopped: %v", err)
	}
}

// readCommands reads moves like "2124" from stdin, plus "resign", "draw", "board" and "quit".
func readCommands(ctx context.Context, pl *player.Poller, table *hub.Table, stop func()) {
	defer stop()
	tid := url.Values{"tid": {table.ID}}
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		var err error
		switch line := strings.TrimSpace(scanner.Text()); line {
		case "":
			continue
		case "quit":
			if err := pl.Player().LeaveTable(table); err != nil {
				log.Println(err)
			}
			_ = pl.Send(protocol.Leave, tid)
			// Give the connection a moment to flush the LEAVE.
			time.Sleep(200 * time.Millisecond)
			return
		case "board":
			printBoard(table.State())
		case "resign":
			err = pl.Send(protocol.Resign, tid)
		case "draw":
			err = pl.Send(protocol.Draw, tid)
		default:
			err = move(table, pl.Player().ID(), line)
		}
		if err != nil {
			fmt.Println("error:", err)
		}
	}
}

// move plays s for pid. The seat may come from -color or from the server's JOIN ack.
func move(table *hub.Table, pid, s string) error {
	mv, err := game.ParseMove(s)
	if err != nil {
		return err
	}
	if err := table.MakeMoveFor(pid, mv); err != nil {
		return err
	}
	printBoard(table.State())
	return nil
}

func websocketURL(server string) string {
	u, err := url.Parse(server)
	if err != nil {
		return server
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	u.Path = transport.WebSocketPath
	return u.String()
}

var pieceLetters = map[game.PieceType]byte{
	game.King:     'K',
	game.Advisor:  'A',
	game.Elephant: 'E',
	game.Horse:    'H',
	game.Chariot:  'R',
	game.Cannon:   'C',
	game.Pawn:     'P',
}

func printBoard(st hub.Snapshot) {
	var grid [game.Rows][game.Cols]byte
	for r := range grid {
		for c := range grid[r] {
			grid[r][c] = '.'
		}
	}
	for _, p := range st.Pieces {
		ch := pieceLetters[p.Type]
		if p.Color == game.Black {
			ch += 'a' - 'A'
		}
		grid[p.Position.Row][p.Position.Col] = ch
	}
	var sb strings.Builder
	for r := game.Rows - 1; r >= 0; r-- {
		fmt.Fprintf(&sb, "%d %s\n", r, string(grid[r][:]))
	}
	sb.WriteString("  012345678\n")
	fmt.Fprintf(&sb, "table %s: %s, %s to move (red %s, black %s)\n", st.ID, st.Status, st.Next, st.Red, st.Black)
	fmt.Print(sb.String())
}
