package game

import "errors"

// Mark is the disc placed by one of the two seats. An empty string is an
// empty cell, which is also what ends up on the wire.
type Mark string

const (
	MarkX Mark = "X"
	MarkO Mark = "O"
	Empty Mark = ""
)

// Other returns the opposing mark.
func Other(m Mark) Mark {
	if m == MarkX {
		return MarkO
	}
	return MarkX
}

const (
	Rows = 6
	Cols = 7
)

var (
	ErrGameOver   = errors.New("game is over")
	ErrOutOfTurn  = errors.New("not your turn")
	ErrColumnFull = errors.New("column full")
)

// Board is row-major with row 0 on top, so discs fall toward Rows-1.
// It is a plain value type: assigning a Board copies it, which is how the
// bot gets its scratch boards.
type Board [Rows][Cols]Mark

// Drop places m in the lowest empty cell of col and returns the landed row.
// Callers must pass a column in [0, Cols); the protocol layer validates
// that before anything reaches the engine.
func (b *Board) Drop(col int, m Mark) (int, error) {
	for row := Rows - 1; row >= 0; row-- {
		if b[row][col] == Empty {
			b[row][col] = m
			return row, nil
		}
	}
	return -1, ErrColumnFull
}

// The four axes through a cell: horizontal, vertical and both diagonals.
var directions = [4][2]int{
	{0, 1},
	{1, 0},
	{1, 1},
	{1, -1},
}

// CheckWin reports whether a run of at least four m discs passes through
// (row, col). It only scans outward from that pivot cell, so it must be
// called right after the Drop that placed it.
func (b *Board) CheckWin(row, col int, m Mark) bool {
	for _, d := range directions {
		run := 1 +
			b.count(row, col, d[0], d[1], m) +
			b.count(row, col, -d[0], -d[1], m)
		if run >= 4 {
			return true
		}
	}
	return false
}

func (b *Board) count(row, col, dr, dc int, m Mark) int {
	n := 0
	r, c := row+dr, col+dc
	for r >= 0 && r < Rows && c >= 0 && c < Cols && b[r][c] == m {
		n++
		r += dr
		c += dc
	}
	return n
}

// IsDraw reports a full board. Only meaningful when the last placement was
// already checked for a win.
func (b *Board) IsDraw() bool {
	for col := 0; col < Cols; col++ {
		if b[0][col] == Empty {
			return false
		}
	}
	return true
}

// LegalColumns returns the columns that still have room, in ascending order.
func (b *Board) LegalColumns() []int {
	var legal []int
	for col := 0; col < Cols; col++ {
		if b[0][col] == Empty {
			legal = append(legal, col)
		}
	}
	return legal
}
