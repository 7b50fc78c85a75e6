package game

// Neighbor exploration order per side: toward the goal first, then the two
// perpendicular directions, then away from the goal. The order makes routes run
// straight until obstructed; changing it changes every route on the board.
var neighborOrder = [2][4]Cell{
	SideLeft:  {{-1, 0}, {0, -1}, {0, 1}, {1, 0}},
	SideRight: {{1, 0}, {0, -1}, {0, 1}, {-1, 0}},
}

// FindPath runs a breadth-first search from the spawn block to side's goal band,
// confined to side's half of the board. It returns the route from a spawn cell to
// the first goal cell reached, inclusive, or false when no route exists.
func FindPath(g *Grid, side Side) ([]Cell, bool) {
	n := g.Width * g.Height
	parent := make([]int32, n)
	for i := range parent {
		parent[i] = -2 // unvisited
	}
	queue := make([]int, 0, n/2)

	for _, c := range g.SpawnBlock() {
		if !g.InHalf(side, c.X) || g.At(c) == CellTower {
			continue
		}
		idx := c.Y*g.Width + c.X
		parent[idx] = -1
		queue = append(queue, idx)
	}

	order := neighborOrder[side]
	for head := 0; head < len(queue); head++ {
		current := queue[head]
		c := Cell{X: current % g.Width, Y: current / g.Width}

		if g.InGoalBand(side, c) {
			return buildRoute(parent, current, g.Width), true
		}

		for _, d := range order {
			nc := Cell{X: c.X + d.X, Y: c.Y + d.Y}
			if !g.InBounds(nc) || !g.InHalf(side, nc.X) || g.At(nc) == CellTower {
				continue
			}
			nidx := nc.Y*g.Width + nc.X
			if parent[nidx] != -2 {
				continue
			}
			parent[nidx] = int32(current)
			queue = append(queue, nidx)
		}
	}

	return nil, false
}

func buildRoute(parent []int32, end, width int) []Cell {
	length := 0
	for i := end; i >= 0; i = int(parent[i]) {
		length++
	}
	route := make([]Cell, length)
	for i, k := end, length-1; i >= 0; i, k = int(parent[i]), k-1 {
		route[k] = Cell{X: i % width, Y: i / width}
	}
	return route
}

// ValidateTowerPlacement checks whether side may build on c. Checks run cheapest
// first; the path probe marks c as a tower, searches both sides, and restores the
// cell's previous kind whatever the outcome.
func ValidateTowerPlacement(g *Grid, c Cell, side Side) error {
	if !g.InBounds(c) {
		return reject(ReasonOutOfBounds)
	}
	if g.At(c) != CellEmpty {
		return reject(ReasonCellOccupied)
	}
	if g.InSpawnZone(c) {
		return reject(ReasonSpawnZone)
	}
	if !g.InHalf(side, c.X) {
		return reject(ReasonWrongSide)
	}
	if wouldBlockPath(g, c) {
		return reject(ReasonWouldBlockPath)
	}
	return nil
}

func wouldBlockPath(g *Grid, c Cell) bool {
	prev := g.At(c)
	g.Set(c, CellTower)
	defer g.Set(c, prev)

	for _, side := range Sides {
		if _, ok := FindPath(g, side); !ok {
			return true
		}
	}
	return false
}
