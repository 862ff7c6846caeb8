package game

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"
)

const (
	Rows = 10
	Cols = 9
)

type Color int

const (
	NoColor Color = iota
	Red
	Black
)

func (c Color) String() string {
	switch c {
	case Red:
		return "Red"
	case Black:
		return "Black"
	case NoColor:
		return "None"
	default:
		return "UNKNOWN"
	}
}

// ParseColor decodes a color token. Unknown tokens return false.
func ParseColor(s string) (Color, bool) {
	switch s {
	case "Red":
		return Red, true
	case "Black":
		return Black, true
	case "None":
		return NoColor, true
	default:
		return NoColor, false
	}
}

func (c Color) Opponent() Color {
	switch c {
	case Red:
		return Black
	case Black:
		return Red
	default:
		return NoColor
	}
}

type PieceType int

const (
	King PieceType = iota + 1
	Advisor
	Elephant
	Horse
	Chariot
	Cannon
	Pawn
)

func (t PieceType) String() string {
	switch t {
	case King:
		return "King"
	case Advisor:
		return "Advisor"
	case Elephant:
		return "Elephant"
	case Horse:
		return "Horse"
	case Chariot:
		return "Chariot"
	case Cannon:
		return "Cannon"
	case Pawn:
		return "Pawn"
	default:
		return "Unknown"
	}
}

// Position is an intersection on the board. Red's back rank is row 0.
type Position struct {
	Row int
	Col int
}

func (p Position) Valid() bool {
	return p.Row >= 0 && p.Row < Rows && p.Col >= 0 && p.Col < Cols
}

func (p Position) String() string {
	return fmt.Sprintf("(%d,%d)", p.Row, p.Col)
}

type PieceInfo struct {
	Type     PieceType
	Color    Color
	Position Position
}

type Move struct {
	From Position
	To   Position
}

// String encodes the move as four digits: from row, from col, to row, to col.
func (m Move) String() string {
	return fmt.Sprintf("%d%d%d%d", m.From.Row, m.From.Col, m.To.Row, m.To.Col)
}

// ParseMove decodes the four-digit notation produced by Move.String.
func ParseMove(s string) (Move, error) {
	if len(s) != 4 {
		return Move{}, errors.Errorf("bad move %q", s)
	}
	var d [4]int
	for i := 0; i < 4; i++ {
		if s[i] < '0' || s[i] > '9' {
			return Move{}, errors.Errorf("bad move %q", s)
		}
		d[i] = int(s[i] - '0')
	}
	m := Move{From: Position{d[0], d[1]}, To: Position{d[2], d[3]}}
	if !m.From.Valid() || !m.To.Valid() {
		return Move{}, errors.Errorf("move %q out of bounds", s)
	}
	return m, nil
}

// Board maps occupied positions to their piece.
type Board map[Position]PieceInfo

func (b Board) clone() Board {
	c := make(Board, len(b))
	for p, pc := range b {
		c[p] = pc
	}
	return c
}

// apply moves the piece at m.From onto m.To, dropping whatever was there.
func (b Board) apply(m Move) {
	pc := b[m.From]
	delete(b, m.From)
	pc.Position = m.To
	b[m.To] = pc
}

func (b Board) king(c Color) (Position, bool) {
	for p, pc := range b {
		if pc.Type == King && pc.Color == c {
			return p, true
		}
	}
	return Position{}, false
}

// between counts the pieces strictly between two positions on the same row or column.
func (b Board) between(from, to Position) int {
	dr, dc := sign(to.Row-from.Row), sign(to.Col-from.Col)
	n := 0
	for p := (Position{from.Row + dr, from.Col + dc}); p != to; p = (Position{p.Row + dr, p.Col + dc}) {
		if _, ok := b[p]; ok {
			n++
		}
	}
	return n
}

// Pieces lists the board's pieces ordered by row, then column.
func (b Board) Pieces() []PieceInfo {
	out := make([]PieceInfo, 0, len(b))
	for _, pc := range b {
		out = append(out, pc)
	}
	sort.Slice(out, func(i, j int) bool {
		a, c := out[i].Position, out[j].Position
		if a.Row != c.Row {
			return a.Row < c.Row
		}
		return a.Col < c.Col
	})
	return out
}

var backRank = [Cols]PieceType{Chariot, Horse, Elephant, Advisor, King, Advisor, Elephant, Horse, Chariot}

// StartingBoard returns the standard opening layout.
func StartingBoard() Board {
	b := make(Board, 32)
	place := func(t PieceType, c Color, row, col int) {
		p := Position{row, col}
		b[p] = PieceInfo{Type: t, Color: c, Position: p}
	}
	for col, t := range backRank {
		place(t, Red, 0, col)
		place(t, Black, Rows-1, col)
	}
	for _, col := range []int{1, 7} {
		place(Cannon, Red, 2, col)
		place(Cannon, Black, 7, col)
	}
	for col := 0; col < Cols; col += 2 {
		place(Pawn, Red, 3, col)
		place(Pawn, Black, 6, col)
	}
	return b
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
