package game

// Coord 棋盘坐标
type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Adjacent reports whether o is exactly one orthogonal step away from c.
func (c Coord) Adjacent(o Coord) bool {
	dx := c.X - o.X
	dy := c.Y - o.Y
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}
	return dx+dy == 1
}

// Cell is a single grid position. Owner is the stable user id of the player
// whose footprint is on it, 0 when unowned. A cell has at most one owner;
// capture overwrites.
type Cell struct {
	Owner   int64
	HasBomb bool
}

// Board is a fixed-size width×height grid of cells, indexed [x][y]. It is
// created once per match and never resized.
type Board struct {
	width  int
	height int
	cells  [][]Cell
}

func NewBoard(width, height int) *Board {
	cells := make([][]Cell, width)
	for x := range cells {
		cells[x] = make([]Cell, height)
	}
	return &Board{width: width, height: height, cells: cells}
}

func (b *Board) Width() int  { return b.width }
func (b *Board) Height() int { return b.height }

func (b *Board) InBounds(c Coord) bool {
	return c.X >= 0 && c.X < b.width && c.Y >= 0 && c.Y < b.height
}

// Place sets ownership and the bomb flag on the target cell, overwriting
// any previous owner. The caller guarantees c is in bounds.
func (b *Board) Place(c Coord, owner int64, bomb bool) {
	b.cells[c.X][c.Y] = Cell{Owner: owner, HasBomb: bomb}
}

// Occupant returns the owning user id of the cell, 0 when unowned.
func (b *Board) Occupant(c Coord) int64 {
	return b.cells[c.X][c.Y].Owner
}

func (b *Board) HasBomb(c Coord) bool {
	return b.cells[c.X][c.Y].HasBomb
}

// ClearBomb removes a triggered bomb; ownership is untouched.
func (b *Board) ClearBomb(c Coord) {
	b.cells[c.X][c.Y].HasBomb = false
}
