package game

// Grid is the occupancy matrix of the board.
//
// Layout: the LEFT half is x < Width/2 and the RIGHT half is x >= Width/2.
// A 2x2 spawn block sits at the center, straddling both halves; a ring of
// SpawnMargin cells around it is the non-buildable spawn zone. The goal band of
// each side is the GoalDepth outermost columns on that side's edge.
type Grid struct {
	Width       int
	Height      int
	SpawnMargin int
	GoalDepth   int
	cells       []CellKind // row-major: cells[y*Width+x]
}

// NewGrid builds an empty board with spawn block and goal bands marked.
func NewGrid(width, height, spawnMargin, goalDepth int) *Grid {
	if goalDepth < 1 {
		goalDepth = 1
	}
	g := &Grid{
		Width:       width,
		Height:      height,
		SpawnMargin: spawnMargin,
		GoalDepth:   goalDepth,
		cells:       make([]CellKind, width*height),
	}
	for _, c := range g.SpawnBlock() {
		g.Set(c, CellSpawn)
	}
	for y := 0; y < height; y++ {
		for d := 0; d < goalDepth; d++ {
			g.Set(Cell{X: d, Y: y}, CellGoal)
			g.Set(Cell{X: width - 1 - d, Y: y}, CellGoal)
		}
	}
	return g
}

// InBounds reports whether c lies on the board.
func (g *Grid) InBounds(c Cell) bool {
	return c.X >= 0 && c.X < g.Width && c.Y >= 0 && c.Y < g.Height
}

// At returns the kind of cell c. Out-of-bounds cells read as TOWER (impassable).
func (g *Grid) At(c Cell) CellKind {
	if !g.InBounds(c) {
		return CellTower
	}
	return g.cells[c.Y*g.Width+c.X]
}

// Set overwrites the kind of cell c. Out-of-bounds writes are ignored.
func (g *Grid) Set(c Cell, k CellKind) {
	if !g.InBounds(c) {
		return
	}
	g.cells[c.Y*g.Width+c.X] = k
}

// HalfOf returns the side owning column x.
func (g *Grid) HalfOf(x int) Side {
	if x < g.Width/2 {
		return SideLeft
	}
	return SideRight
}

// InHalf reports whether column x belongs to side.
func (g *Grid) InHalf(side Side, x int) bool {
	return g.HalfOf(x) == side
}

// PosInHalf reports whether a continuous position belongs to side's half.
func (g *Grid) PosInHalf(side Side, p Vec) bool {
	return g.HalfOf(p.Cell().X) == side
}

// SpawnBlock returns the four spawn cells in row-major order.
func (g *Grid) SpawnBlock() []Cell {
	x0, y0 := g.Width/2-1, g.Height/2-1
	return []Cell{{x0, y0}, {x0 + 1, y0}, {x0, y0 + 1}, {x0 + 1, y0 + 1}}
}

// InSpawnZone reports whether c is inside the non-buildable center block.
func (g *Grid) InSpawnZone(c Cell) bool {
	x0, y0 := g.Width/2-1-g.SpawnMargin, g.Height/2-1-g.SpawnMargin
	x1, y1 := g.Width/2+g.SpawnMargin, g.Height/2+g.SpawnMargin
	return c.X >= x0 && c.X <= x1 && c.Y >= y0 && c.Y <= y1
}

// InGoalBand reports whether c is in side's goal band.
func (g *Grid) InGoalBand(side Side, c Cell) bool {
	if side == SideLeft {
		return c.X < g.GoalDepth
	}
	return c.X >= g.Width-g.GoalDepth
}

// Clone returns an independent copy.
func (g *Grid) Clone() *Grid {
	cp := *g
	cp.cells = make([]CellKind, len(g.cells))
	copy(cp.cells, g.cells)
	return &cp
}

// Equal reports whether both grids have identical geometry and occupancy.
func (g *Grid) Equal(o *Grid) bool {
	if g.Width != o.Width || g.Height != o.Height || len(g.cells) != len(o.cells) {
		return false
	}
	for i := range g.cells {
		if g.cells[i] != o.cells[i] {
			return false
		}
	}
	return true
}

// Rows encodes the matrix as one string per row, one digit per cell
// (0 EMPTY, 1 TOWER, 2 SPAWN, 3 GOAL).
func (g *Grid) Rows() []string {
	rows := make([]string, g.Height)
	buf := make([]byte, g.Width)
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			buf[x] = '0' + byte(g.cells[y*g.Width+x])
		}
		rows[y] = string(buf)
	}
	return rows
}
