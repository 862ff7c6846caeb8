package game

type GameStatus int

const (
	StatusUnknown GameStatus = iota
	StatusOpen
	StatusReady
	StatusInProgress
	StatusRedWin
	StatusBlackWin
	StatusDrawn
)

func (s GameStatus) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusReady:
		return "ready"
	case StatusInProgress:
		return "in_progress"
	case StatusRedWin:
		return "red_win"
	case StatusBlackWin:
		return "black_win"
	case StatusDrawn:
		return "drawn"
	default:
		return "UNKNOWN"
	}
}

func ParseGameStatus(s string) GameStatus {
	for st := StatusOpen; st <= StatusDrawn; st++ {
		if st.String() == s {
			return st
		}
	}
	return StatusUnknown
}

// Finished reports whether the game has reached a result.
func (s GameStatus) Finished() bool {
	return s == StatusRedWin || s == StatusBlackWin || s == StatusDrawn
}

// WinFor returns the status in which c has won.
func WinFor(c Color) GameStatus {
	switch c {
	case Red:
		return StatusRedWin
	case Black:
		return StatusBlackWin
	}
	return StatusUnknown
}

type Rule interface {
	IsValidMove(board Board, move Move, next Color) bool
	CheckGameState(board Board, next Color) GameStatus
}

// XiangqiRule implements the standard movement and capture rules.
type XiangqiRule struct{}

func (XiangqiRule) IsValidMove(board Board, move Move, next Color) bool {
	if !move.From.Valid() || !move.To.Valid() || move.From == move.To {
		return false
	}
	piece, ok := board[move.From]
	if !ok || piece.Color != next {
		return false
	}
	if target, ok := board[move.To]; ok && target.Color == piece.Color {
		return false
	}
	if !canReach(board, piece, move.To) {
		return false
	}
	after := board.clone()
	after.apply(move)
	return !inCheck(after, piece.Color)
}

// CheckGameState is evaluated with next to move. A side without a legal move loses,
// whether it is mated or stalemated.
func (r XiangqiRule) CheckGameState(board Board, next Color) GameStatus {
	if _, ok := board.king(next); !ok {
		return WinFor(next.Opponent())
	}
	for _, pc := range board {
		if pc.Color != next {
			continue
		}
		for row := 0; row < Rows; row++ {
			for col := 0; col < Cols; col++ {
				if r.IsValidMove(board, Move{From: pc.Position, To: Position{row, col}}, next) {
					return StatusInProgress
				}
			}
		}
	}
	return WinFor(next.Opponent())
}

// canReach checks piece geometry and blocking, ignoring turn and king safety.
func canReach(b Board, pc PieceInfo, to Position) bool {
	from := pc.Position
	dr, dc := to.Row-from.Row, to.Col-from.Col
	switch pc.Type {
	case King:
		return abs(dr)+abs(dc) == 1 && inPalace(to, pc.Color)
	case Advisor:
		return abs(dr) == 1 && abs(dc) == 1 && inPalace(to, pc.Color)
	case Elephant:
		if abs(dr) != 2 || abs(dc) != 2 || !onOwnSide(to, pc.Color) {
			return false
		}
		_, blocked := b[Position{from.Row + dr/2, from.Col + dc/2}]
		return !blocked
	case Horse:
		var leg Position
		switch {
		case abs(dr) == 2 && abs(dc) == 1:
			leg = Position{from.Row + dr/2, from.Col}
		case abs(dr) == 1 && abs(dc) == 2:
			leg = Position{from.Row, from.Col + dc/2}
		default:
			return false
		}
		_, blocked := b[leg]
		return !blocked
	case Chariot:
		if dr != 0 && dc != 0 {
			return false
		}
		return b.between(from, to) == 0
	case Cannon:
		if dr != 0 && dc != 0 {
			return false
		}
		if _, capture := b[to]; capture {
			return b.between(from, to) == 1
		}
		return b.between(from, to) == 0
	case Pawn:
		forward := 1
		if pc.Color == Black {
			forward = -1
		}
		if dc == 0 && dr == forward {
			return true
		}
		return dr == 0 && abs(dc) == 1 && crossedRiver(from, pc.Color)
	}
	return false
}

// inCheck reports whether c's king is attacked, including by the opposing king
// along an open file.
func inCheck(b Board, c Color) bool {
	kp, ok := b.king(c)
	if !ok {
		return false
	}
	if op, ok := b.king(c.Opponent()); ok && op.Col == kp.Col && b.between(kp, op) == 0 {
		return true
	}
	for _, pc := range b {
		if pc.Color != c && pc.Type != King && canReach(b, pc, kp) {
			return true
		}
	}
	return false
}

func inPalace(p Position, c Color) bool {
	if p.Col < 3 || p.Col > 5 {
		return false
	}
	if c == Red {
		return p.Row >= 0 && p.Row <= 2
	}
	return p.Row >= Rows-3 && p.Row < Rows
}

func onOwnSide(p Position, c Color) bool {
	if c == Red {
		return p.Row < Rows/2
	}
	return p.Row >= Rows/2
}

func crossedRiver(p Position, c Color) bool {
	return !onOwnSide(p, c)
}
