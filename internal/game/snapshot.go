package game

// Snapshot is an immutable copy of the world for broadcasting.
// Uses value types (not pointers) so the tick can keep mutating the world
// while connections encode the copy.
type Snapshot struct {
	Tick      uint64 `json:"tick"`
	Phase     Phase  `json:"phase"`
	Wave      int    `json:"wave"`
	Total     int    `json:"total"`     // enemies queued this wave
	Remaining int    `json:"remaining"` // still waiting to spawn
	Killed    int    `json:"killed"`

	Players     map[string]Player `json:"players"`
	Towers      map[ID]Tower      `json:"towers"`
	Enemies     map[ID]Enemy      `json:"enemies"`
	Projectiles map[ID]Projectile `json:"projectiles"`

	GridWidth  int      `json:"gridWidth"`
	GridHeight int      `json:"gridHeight"`
	Grid       []string `json:"grid"` // one digit per cell, see Grid.Rows
}

// Snapshot copies the current state.
func (w *World) Snapshot() Snapshot {
	snap := Snapshot{
		Tick:        w.Tick,
		Phase:       w.Phase,
		Wave:        w.Wave,
		Total:       w.WaveState.Total,
		Remaining:   w.WaveState.Remaining(),
		Killed:      w.WaveState.Killed,
		Players:     make(map[string]Player, len(w.Players)),
		Towers:      make(map[ID]Tower, len(w.Towers)),
		Enemies:     make(map[ID]Enemy, len(w.Enemies)),
		Projectiles: make(map[ID]Projectile, len(w.Projectiles)),
		GridWidth:   w.Grid.Width,
		GridHeight:  w.Grid.Height,
		Grid:        w.Grid.Rows(),
	}
	for id, p := range w.Players {
		snap.Players[id] = *p
	}
	for id, t := range w.Towers {
		snap.Towers[id] = *t
	}
	for id, e := range w.Enemies {
		cp := *e
		cp.Route = nil
		snap.Enemies[id] = cp
	}
	for id, p := range w.Projectiles {
		snap.Projectiles[id] = *p
	}
	return snap
}
