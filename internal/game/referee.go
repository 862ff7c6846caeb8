package game

import (
	"github.com/pkg/errors"
)

var (
	ErrDuplicatePosition = errors.New("two pieces on one position")
	ErrOutOfBounds       = errors.New("position out of bounds")
	ErrKingCount         = errors.New("each color needs exactly one king")
	ErrNoTurn            = errors.New("next color must be Red or Black")
	ErrBadPiece          = errors.New("invalid piece")
)

// Referee owns a board and is the only thing allowed to change it.
// It is not safe for concurrent use; the owning table serializes access.
type Referee struct {
	rule   Rule
	board  Board
	next   Color
	status GameStatus
}

func NewReferee(rule Rule) *Referee {
	if rule == nil {
		rule = XiangqiRule{}
	}
	r := &Referee{rule: rule}
	r.Reset()
	return r
}

// Reset restores the opening position with Red to move.
func (r *Referee) Reset() {
	r.board = StartingBoard()
	r.next = Red
	r.status = StatusInProgress
}

// Load replaces the board with an arbitrary position.
func (r *Referee) Load(pieces []PieceInfo, next Color) error {
	if next != Red && next != Black {
		return ErrNoTurn
	}
	b := make(Board, len(pieces))
	kings := map[Color]int{}
	for _, pc := range pieces {
		if !pc.Position.Valid() {
			return errors.Wrapf(ErrOutOfBounds, "%s %s at %s", pc.Color, pc.Type, pc.Position)
		}
		if _, ok := b[pc.Position]; ok {
			return errors.Wrapf(ErrDuplicatePosition, "%s", pc.Position)
		}
		if err := checkPiece(pc); err != nil {
			return err
		}
		if pc.Type == King {
			kings[pc.Color]++
		}
		b[pc.Position] = pc
	}
	if kings[Red] != 1 || kings[Black] != 1 {
		return ErrKingCount
	}
	r.board = b
	r.next = next
	r.status = r.rule.CheckGameState(b, next)
	return nil
}

func checkPiece(pc PieceInfo) error {
	if pc.Color != Red && pc.Color != Black {
		return errors.Wrapf(ErrBadPiece, "%s at %s has no color", pc.Type, pc.Position)
	}
	if pc.Type < King || pc.Type > Pawn {
		return errors.Wrapf(ErrBadPiece, "unknown piece type %d at %s", pc.Type, pc.Position)
	}
	if (pc.Type == King || pc.Type == Advisor) && !inPalace(pc.Position, pc.Color) {
		return errors.Wrapf(ErrBadPiece, "%s %s outside the palace at %s", pc.Color, pc.Type, pc.Position)
	}
	return nil
}

// ValidateMove applies move and returns true if it is legal. Otherwise the board is
// left untouched. Moves are refused once the game has a result.
func (r *Referee) ValidateMove(move Move) bool {
	if r.status != StatusInProgress {
		return false
	}
	if !r.rule.IsValidMove(r.board, move, r.next) {
		return false
	}
	r.board.apply(move)
	r.next = r.next.Opponent()
	r.status = r.rule.CheckGameState(r.board, r.next)
	return true
}

// GetGameState returns a snapshot of the live pieces and the color to move.
func (r *Referee) GetGameState() ([]PieceInfo, Color) {
	return r.board.Pieces(), r.next
}

func (r *Referee) GetPieceAt(p Position) (PieceInfo, bool) {
	pc, ok := r.board[p]
	return pc, ok
}

func (r *Referee) NextColor() Color {
	return r.next
}

// Status is StatusInProgress until one side has no legal reply.
func (r *Referee) Status() GameStatus {
	return r.status
}
