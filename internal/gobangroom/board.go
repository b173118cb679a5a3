package gobangroom

import "github.com/roomforge/server/internal/config"

// Cell is one square of the board.
type Cell int

const (
	CellEmpty Cell = 0
	CellBlack Cell = 1
	CellWhite Cell = 2
)

// Board is a fixed 15x15 grid of stones, grounded on the bidirectional
// four-direction win-scan contract documented in the other_examples
// in_a_row reference.
type Board [config.GobangBoardSize][config.GobangBoardSize]Cell

func inBounds(x, y int) bool {
	return x >= 0 && x < config.GobangBoardSize && y >= 0 && y < config.GobangBoardSize
}

// Place sets (x,y) to c. Caller must have already validated the move.
func (b *Board) Place(x, y int, c Cell) {
	b[x][y] = c
}

// CheckWin reports whether the stone just placed at (x,y) completes
// five-in-a-row in any of the four axes (horizontal, vertical, both
// diagonals), scanning outward in both directions from the new stone.
func (b *Board) CheckWin(x, y int, c Cell) bool {
	dirs := [4][2]int{{1, 0}, {0, 1}, {1, 1}, {1, -1}}
	for _, d := range dirs {
		count := 1 + b.countDirection(x, y, d[0], d[1], c) + b.countDirection(x, y, -d[0], -d[1], c)
		if count >= 5 {
			return true
		}
	}
	return false
}

func (b *Board) countDirection(x, y, dx, dy int, c Cell) int {
	n := 0
	cx, cy := x+dx, y+dy
	for inBounds(cx, cy) && b[cx][cy] == c {
		n++
		cx += dx
		cy += dy
	}
	return n
}
