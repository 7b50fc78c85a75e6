package game

import "math"

var orthogonal = [4]Cell{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}

// AgentMover walks enemies along their captured routes, grinds down adjacent
// towers, and resolves enemies that reach a goal band.
type AgentMover struct{}

// Update advances every spawned enemy by dt. Tower deaths and goal removals are
// applied after the full pass so no enemy sees a half-updated board.
func (AgentMover) Update(w *World, dt float64) {
	towerAt := make(map[Cell]ID, len(w.Towers))
	for id, t := range w.Towers {
		towerAt[t.Cell] = id
	}

	contact := make(map[ID]float64)
	var reached []ID
	eps := w.Rules.ArrivalEpsilon

	for _, id := range w.EnemyIDs() {
		e := w.Enemies[id]
		if !e.Alive() {
			continue
		}

		here := contactCell(e)
		for _, d := range orthogonal {
			if tid, ok := towerAt[Cell{X: here.X + d.X, Y: here.Y + d.Y}]; ok {
				contact[tid] += e.ContactDPS * dt
			}
		}

		if e.RouteIndex < len(e.Route) {
			advance(e, e.Speed*dt, eps)
		}
		if e.RouteIndex >= len(e.Route) {
			reached = append(reached, id)
		}
	}

	for _, tid := range sortedIDs(contact) {
		t, ok := w.Towers[tid]
		if !ok {
			continue
		}
		t.Health -= contact[tid]
		if t.Health <= 0 {
			w.RemoveTower(tid)
			w.Emit(Event{Type: EventTypeTowerDestroyed, PlayerID: t.OwnerID, Payload: TowerPayload{
				TowerID: t.ID, Type: t.Type, Cell: t.Cell, Level: t.Level,
			}})
		}
	}

	for _, id := range reached {
		resolveGoal(w, w.Enemies[id])
	}
}

// advance moves e toward its next waypoint by at most step cells, snapping onto
// the waypoint and moving to the next one when within eps.
// contactCell is the cell an enemy touches from. On a boundary between two
// cells it counts as already inside the one it is heading for, so both sides
// of the board see contact at the same point of travel.
func contactCell(e *Enemy) Cell {
	c := e.Pos.Cell()
	if e.RouteIndex < len(e.Route) {
		next := e.Route[e.RouteIndex]
		if math.Abs(e.Pos.X-float64(next.X)) == 0.5 {
			c.X = next.X
		}
		if math.Abs(e.Pos.Y-float64(next.Y)) == 0.5 {
			c.Y = next.Y
		}
	}
	return c
}

func advance(e *Enemy, step, eps float64) {
	target := e.Route[e.RouteIndex].Center()
	dx, dy := target.X-e.Pos.X, target.Y-e.Pos.Y
	dist := math.Hypot(dx, dy)

	if dist > 0 {
		move := math.Min(step, dist)
		e.Pos.X += dx / dist * move
		e.Pos.Y += dy / dist * move
		dist -= move
	}
	if dist <= eps {
		e.Pos = target
		e.RouteIndex++
	}
}

// resolveGoal charges the defending player the enemy's credit value and removes it.
func resolveGoal(w *World, e *Enemy) {
	healthLeft := 0
	var playerID string
	if p := w.PlayerOnSide(e.Side); p != nil {
		p.Health -= e.CreditValue
		healthLeft = p.Health
		playerID = p.ID
	}
	w.WaveState.Leaked++
	delete(w.Enemies, e.ID)

	w.Emit(Event{Type: EventTypeEnemyLeaked, PlayerID: playerID, Payload: LeakPayload{
		EnemyID: e.ID, Type: e.Type, Side: e.Side, Damage: e.CreditValue, HealthLeft: healthLeft,
	}})
}
