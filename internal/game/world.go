package game

import (
	"math/rand"
	"sort"

	"lane-defense/internal/config"
	"lane-defense/internal/game/spatial"
)

// Player is a participant defending one side.
type Player struct {
	ID        string `json:"id"`
	Side      Side   `json:"side"`
	Credits   int    `json:"credits"` // may go negative through per-shot ammo charges
	Health    int    `json:"health"`
	Ready     bool   `json:"ready"`
	Connected bool   `json:"connected"`
}

// Tower is a placed building. Stats are copied from the type spec at placement
// and mutated by upgrades.
type Tower struct {
	ID           ID      `json:"id"`
	Type         string  `json:"type"`
	Cell         Cell    `json:"cell"`
	OwnerID      string  `json:"ownerId"`
	Level        int     `json:"level"`
	BaseCost     int     `json:"baseCost"` // price paid at placement
	Damage       int     `json:"damage"`
	Range        float64 `json:"range"`
	FireRate     float64 `json:"fireRate"`
	LastFire     float64 `json:"lastFire"`
	TargetID     ID      `json:"targetId,omitempty"`
	Health       float64 `json:"health"`
	MaxHealth    float64 `json:"maxHealth"`
	Ammo         int     `json:"ammo"`
	MaxAmmo      int     `json:"maxAmmo"`
	SplashRadius float64 `json:"splashRadius,omitempty"`
	SlowAmount   float64 `json:"slowAmount,omitempty"`
	SlowDuration float64 `json:"slowDuration,omitempty"`
}

// Enemy is a spawned agent walking its captured route toward a goal band.
type Enemy struct {
	ID          ID      `json:"id"`
	Type        string  `json:"type"`
	Pos         Vec     `json:"pos"`
	Side        Side    `json:"side"` // side whose goal it is heading for
	Health      int     `json:"health"`
	MaxHealth   int     `json:"maxHealth"`
	Speed       float64 `json:"speed"`
	BaseSpeed   float64 `json:"baseSpeed"`
	SlowUntil   float64 `json:"slowUntil,omitempty"`
	CreditValue int     `json:"creditValue"`
	ContactDPS  float64 `json:"-"`
	Route       []Cell  `json:"-"`
	RouteIndex  int     `json:"routeIndex"` // index of the next waypoint
	Spawned     bool    `json:"spawned"`
}

// Alive reports whether the enemy still participates in combat.
func (e *Enemy) Alive() bool {
	return e.Spawned && e.Health > 0
}

// Projectile is a shot in flight toward an enemy.
type Projectile struct {
	ID           ID      `json:"id"`
	Pos          Vec     `json:"pos"`
	TargetID     ID      `json:"targetId"`
	Damage       int     `json:"damage"`
	Speed        float64 `json:"speed"`
	TowerID      ID      `json:"towerId"`
	OwnerID      string  `json:"ownerId"`
	Splash       bool    `json:"splash,omitempty"`
	SplashRadius float64 `json:"splashRadius,omitempty"`
	Slow         bool    `json:"slow,omitempty"`
	SlowAmount   float64 `json:"slowAmount,omitempty"`
	SlowDuration float64 `json:"slowDuration,omitempty"`
}

// SpawnEntry is one queued enemy of the current wave.
type SpawnEntry struct {
	Type  string
	Side  Side
	Delay float64 // seconds to wait after the previous entry
}

// WaveState holds the per-wave counters and the pending spawn queue.
type WaveState struct {
	Total      int          // entries queued at wave start
	Spawned    int          // enemies actually placed on the board
	Killed     int          // enemies killed by projectiles
	Leaked     int          // enemies that reached a goal
	Dropped    int          // dequeued entries with no route for their side
	Queue      []SpawnEntry // not yet dequeued
	Timer      float64      // seconds until the head of Queue is due
	Generating bool         // set on COMBAT entry until the queue has been built
}

// Remaining is the number of entries still waiting to spawn.
func (w *WaveState) Remaining() int {
	return len(w.Queue)
}

// World is the single mutable state of one session. Subsystems receive it by
// pointer each tick and look entities up by id; nothing keeps references across ticks.
type World struct {
	Mode  Mode
	Phase Phase
	Wave  int
	Tick  uint64
	Clock float64 // simulated seconds since creation

	WaveState WaveState
	Purchases map[string]int // global per-type purchase count for dynamic pricing

	Players     map[string]*Player
	Towers      map[ID]*Tower
	Enemies     map[ID]*Enemy
	Projectiles map[ID]*Projectile
	Grid        *Grid

	StartingCredits int
	Winner          string // set on GAME_OVER; empty for no winner

	Rules   config.RulesConfig
	Balance config.Balance

	rng    *rand.Rand
	nextID ID
	events []Event
	index  *spatial.Hash // enemy positions, rebuilt by enemyIndex
}

// NewWorld creates an empty world in WAITING.
func NewWorld(mode Mode, sim config.SimConfig, rules config.RulesConfig, balance config.Balance, seed int64) *World {
	return &World{
		Mode:            mode,
		Phase:           PhaseWaiting,
		Purchases:       make(map[string]int),
		Players:         make(map[string]*Player),
		Towers:          make(map[ID]*Tower),
		Enemies:         make(map[ID]*Enemy),
		Projectiles:     make(map[ID]*Projectile),
		Grid:            NewGrid(sim.GridWidth, sim.GridHeight, sim.SpawnZoneMargin, sim.GoalDepth),
		StartingCredits: rules.StartingCredits,
		Rules:           rules,
		Balance:         balance,
		rng:             rand.New(rand.NewSource(seed)),
	}
}

// NewID allocates the next entity id.
func (w *World) NewID() ID {
	w.nextID++
	return w.nextID
}

// AddPlayer creates a player on side with the session's starting credits.
func (w *World) AddPlayer(id string, side Side) *Player {
	p := &Player{
		ID:        id,
		Side:      side,
		Credits:   w.StartingCredits,
		Health:    w.Rules.PlayerHealth,
		Connected: true,
	}
	w.Players[id] = p
	return p
}

// PlayerOnSide returns the player defending side, if any.
func (w *World) PlayerOnSide(side Side) *Player {
	for _, id := range w.PlayerIDs() {
		if p := w.Players[id]; p.Side == side {
			return p
		}
	}
	return nil
}

// PlayerIDs returns player ids in sorted order.
func (w *World) PlayerIDs() []string {
	ids := make([]string, 0, len(w.Players))
	for id := range w.Players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// TowerIDs returns tower ids in ascending order.
func (w *World) TowerIDs() []ID {
	return sortedIDs(w.Towers)
}

// EnemyIDs returns enemy ids in ascending order.
func (w *World) EnemyIDs() []ID {
	return sortedIDs(w.Enemies)
}

// ProjectileIDs returns projectile ids in ascending order.
func (w *World) ProjectileIDs() []ID {
	return sortedIDs(w.Projectiles)
}

// LiveEnemies counts enemies that are spawned and alive.
func (w *World) LiveEnemies() int {
	n := 0
	for _, e := range w.Enemies {
		if e.Alive() {
			n++
		}
	}
	return n
}

// RemoveTower deletes a tower and frees its cell.
func (w *World) RemoveTower(id ID) {
	t, ok := w.Towers[id]
	if !ok {
		return
	}
	if w.Grid.At(t.Cell) == CellTower {
		w.Grid.Set(t.Cell, CellEmpty)
	}
	delete(w.Towers, id)
}

// Emit queues an outbound event for the session to deliver after the current tick or command.
func (w *World) Emit(ev Event) {
	ev.Tick = w.Tick
	w.events = append(w.events, ev)
}

// DrainEvents returns and clears the queued events.
func (w *World) DrainEvents() []Event {
	out := w.events
	w.events = nil
	return out
}

func sortedIDs[V any](m map[ID]V) []ID {
	ids := make([]ID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sortIDs(ids)
	return ids
}

func sortIDs(ids []ID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
