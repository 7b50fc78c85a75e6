package game

import (
	"math"

	"lane-defense/internal/config"
)

// WaveDirector builds each wave's spawn queue on COMBAT entry and drip-feeds it.
type WaveDirector struct{}

// TypeCount is the number of enemies of one type in a wave (per side).
type TypeCount struct {
	Type  string
	Count int
}

// DifficultyAt samples the difficulty curve for wave. Index is wave-1 clamped at
// zero; past the last point the final segment's slope is extended linearly.
func DifficultyAt(curve []float64, wave int) float64 {
	if len(curve) == 0 {
		return 1
	}
	idx := wave - 1
	if idx < 0 {
		idx = 0
	}
	last := len(curve) - 1
	if idx <= last {
		return curve[idx]
	}
	if last == 0 {
		return curve[0]
	}
	slope := curve[last] - curve[last-1]
	return curve[last] + slope*float64(idx-last)
}

// Composition returns the per-type enemy counts of a wave for one side, in
// stable type order. Types unlock by wave number; periodic types (bosses) only
// appear on waves divisible by their period.
func Composition(b config.Balance, firstWave int, wave int) []TypeCount {
	mult := DifficultyAt(b.Difficulty, wave)
	var out []TypeCount
	for _, name := range b.EnemyTypes() {
		spec := b.Enemies[name]
		if wave < spec.UnlockWave {
			continue
		}
		count := 0
		if spec.Every > 0 {
			if wave%spec.Every == 0 {
				count = wave / spec.Every
			}
		} else {
			count = int(math.Round(float64(firstWave) * spec.Share * mult))
			if count < 1 {
				count = 1
			}
			count += int(math.Floor(float64(wave-spec.UnlockWave) * spec.PerWave))
		}
		if count > 0 {
			out = append(out, TypeCount{Type: name, Count: count})
		}
	}
	return out
}

// BuildQueue creates the shuffled spawn queue for the current wave. In versus every
// entry is paired with a zero-delay twin for the other side so both spawn together.
func BuildQueue(w *World) []SpawnEntry {
	var types []string
	for _, tc := range Composition(w.Balance, w.Rules.FirstWaveEnemies, w.Wave) {
		for i := 0; i < tc.Count; i++ {
			types = append(types, tc.Type)
		}
	}
	w.rng.Shuffle(len(types), func(i, j int) { types[i], types[j] = types[j], types[i] })

	sides := queueSides(w)
	total := len(types) * len(sides)
	if total == 0 {
		return nil
	}
	delay := w.Rules.SpawnPhaseSeconds / float64(total)
	if delay < w.Rules.MinSpawnInterval {
		delay = w.Rules.MinSpawnInterval
	}

	queue := make([]SpawnEntry, 0, total)
	for _, t := range types {
		for i, side := range sides {
			d := delay
			if i > 0 {
				d = 0
			}
			queue = append(queue, SpawnEntry{Type: t, Side: side, Delay: d})
		}
	}
	return queue
}

// queueSides is the set of sides each queue entry spawns for.
func queueSides(w *World) []Side {
	if w.Mode == ModeVersus {
		return Sides[:]
	}
	if ids := w.PlayerIDs(); len(ids) > 0 {
		return []Side{w.Players[ids[0]].Side}
	}
	return []Side{SideLeft}
}

// Update generates the queue once per COMBAT entry, then dequeues one entry each
// time the timer expires and re-arms it with the next entry's delay.
func (WaveDirector) Update(w *World, dt float64) {
	if w.Phase != PhaseCombat {
		return
	}
	ws := &w.WaveState

	if ws.Generating {
		ws.Queue = BuildQueue(w)
		ws.Total = len(ws.Queue)
		ws.Timer = 0
		if len(ws.Queue) > 0 {
			ws.Timer = ws.Queue[0].Delay
		}
		ws.Generating = false
		w.Emit(Event{Type: EventTypeWaveStarted, Payload: WavePayload{Wave: w.Wave, Total: ws.Total}})
	}

	if len(ws.Queue) == 0 {
		return
	}
	ws.Timer -= dt
	for ws.Timer <= 0 && len(ws.Queue) > 0 {
		entry := ws.Queue[0]
		ws.Queue = ws.Queue[1:]
		spawnEnemy(w, entry)
		if len(ws.Queue) > 0 {
			ws.Timer += ws.Queue[0].Delay
		}
	}
}

// spawnEnemy places one enemy at the start of its side's current route. An entry
// whose side has no route is dropped without holding up the queue.
func spawnEnemy(w *World, entry SpawnEntry) {
	spec, ok := w.Balance.Enemies[entry.Type]
	if !ok {
		w.WaveState.Dropped++
		return
	}
	route, ok := FindPath(w.Grid, entry.Side)
	if !ok {
		w.WaveState.Dropped++
		w.Emit(Event{Type: EventTypeSpawnDropped, Payload: SpawnDroppedPayload{Type: entry.Type, Side: entry.Side}})
		return
	}

	health := int(math.Round(float64(spec.Health) * DifficultyAt(w.Balance.Difficulty, w.Wave)))
	e := &Enemy{
		ID:          w.NewID(),
		Type:        entry.Type,
		Pos:         route[0].Center(),
		Side:        entry.Side,
		Health:      health,
		MaxHealth:   health,
		Speed:       spec.Speed,
		BaseSpeed:   spec.Speed,
		CreditValue: spec.CreditValue,
		ContactDPS:  spec.ContactDPS,
		Route:       route,
		RouteIndex:  1,
		Spawned:     true,
	}
	w.Enemies[e.ID] = e
	w.WaveState.Spawned++
}
