// Package session runs game sessions: player slots, reconnection, the fixed-step
// tick loop, command dispatch and broadcast.
package session

import (
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"lane-defense/internal/config"
	"lane-defense/internal/game"
	"lane-defense/internal/metrics"

	"github.com/google/uuid"
)

var (
	ErrSessionFull     = errors.New("session full")
	ErrSessionNotFound = errors.New("session not found")
	ErrSlotNotReserved = errors.New("no reserved slot for player")
)

// Conn is one connected client as seen by a room. Send must not block; it
// reports false when the message was dropped.
type Conn interface {
	Send(msg []byte) bool
	Close()
}

// Options configures new rooms.
type Options struct {
	Sim     config.SimConfig
	Rules   config.RulesConfig
	Balance config.Balance
	Journal *game.EventLog   // optional
	Seed    func() int64     // world rng seed per room; defaults to wall clock
	Now     func() time.Time // defaults to time.Now
}

func (o Options) withDefaults() Options {
	if o.Sim.TickRate <= 0 {
		o.Sim.TickRate = config.DefaultSim().TickRate
	}
	if o.Seed == nil {
		o.Seed = func() int64 { return time.Now().UnixNano() }
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Room owns one world. Ticks and commands take mu, so a command never observes
// a half-applied tick and a tick never starts before the previous one finished.
type Room struct {
	ID   string
	Mode game.Mode

	mu      sync.Mutex
	world   *game.World
	engine  game.Engine
	sim     config.SimConfig
	journal *game.EventLog
	now     func() time.Time

	conns     map[string]Conn
	stop      chan struct{} // non-nil while the tick goroutine is armed
	paused    bool
	closed    bool
	idleSince time.Time // zero while any member is connected
}

// Summary describes a room for listings.
type Summary struct {
	ID        string     `json:"id"`
	Mode      game.Mode  `json:"mode"`
	Phase     game.Phase `json:"phase"`
	Wave      int        `json:"wave"`
	Players   int        `json:"players"`
	Connected int        `json:"connected"`
	Paused    bool       `json:"paused"`
}

// NewRoom creates an empty room in WAITING.
func NewRoom(id string, mode game.Mode, opts Options) *Room {
	opts = opts.withDefaults()
	r := &Room{
		ID:      id,
		Mode:    mode,
		world:   game.NewWorld(mode, opts.Sim, opts.Rules, opts.Balance, opts.Seed()),
		sim:     opts.Sim,
		journal: opts.Journal,
		now:     opts.Now,
		conns:   make(map[string]Conn),
	}
	r.idleSince = r.now()
	metrics.SessionOpened()
	return r
}

// Join seats a new player on the first free side and starts the match once the
// room has its required player count.
func (r *Room) Join(conn Conn) (string, game.Side, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return "", 0, ErrSessionNotFound
	}
	if r.world.Phase != game.PhaseWaiting || len(r.world.Players) >= r.Mode.RequiredPlayers() {
		return "", 0, ErrSessionFull
	}

	side := game.SideLeft
	if r.world.PlayerOnSide(side) != nil {
		side = game.SideRight
	}
	id := uuid.NewString()
	r.world.AddPlayer(id, side)
	r.conns[id] = conn
	r.idleSince = time.Time{}
	log.Printf("👤 Player %s joined room %s on %s", id, r.ID, side)

	r.sendLocked(id, EventJoined, JoinedData{PlayerID: id, Side: side, SessionID: r.ID, Mode: r.Mode})

	if (game.PhaseMachine{}).TryStart(r.world) {
		log.Printf("🎮 Room %s started (%s)", r.ID, r.Mode)
		r.flushEventsLocked()
		r.startLoopLocked()
	}
	r.broadcastStateLocked()
	return id, side, nil
}

// Rejoin reattaches a disconnected player to their reserved side. The loop
// resumes once every player is connected again.
func (r *Room) Rejoin(playerID string, conn Conn) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrSessionNotFound
	}
	p, ok := r.world.Players[playerID]
	if !ok || p.Connected {
		return ErrSlotNotReserved
	}

	p.Connected = true
	r.conns[playerID] = conn
	r.idleSince = time.Time{}
	log.Printf("👤 Player %s reconnected to room %s", playerID, r.ID)

	r.sendLocked(playerID, EventJoined, JoinedData{PlayerID: playerID, Side: p.Side, SessionID: r.ID, Mode: r.Mode})
	r.broadcastLocked(EventPlayerReconnected, PlayerData{PlayerID: playerID, Side: p.Side})

	if r.paused && r.allConnectedLocked() {
		r.paused = false
		log.Printf("▶️ Room %s resumed", r.ID)
		r.startLoopLocked()
	}
	r.broadcastStateLocked()
	return nil
}

// Leave detaches conn from playerID. Before the match starts the player is
// removed; afterwards the side stays reserved and the whole room pauses.
// A conn that was already replaced by a rejoin is ignored.
func (r *Room) Leave(playerID string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.conns[playerID]; !ok || current != conn {
		return
	}
	delete(r.conns, playerID)
	if len(r.conns) == 0 {
		r.idleSince = r.now()
	}

	p, ok := r.world.Players[playerID]
	if !ok {
		return
	}

	switch r.world.Phase {
	case game.PhaseWaiting:
		delete(r.world.Players, playerID)
		log.Printf("👤 Player %s left room %s", playerID, r.ID)
		r.broadcastStateLocked()
	case game.PhaseGameOver:
		p.Connected = false
	default:
		p.Connected = false
		r.paused = true
		r.stopLoopLocked()
		log.Printf("⏸️ Room %s paused: player %s disconnected", r.ID, playerID)
		r.broadcastLocked(EventPlayerDisconnected, PlayerData{PlayerID: playerID, Side: p.Side})
	}
}

// Handle applies one command from playerID. Rejections go to the sender only.
func (r *Room) Handle(playerID string, cmd Command) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}

	var err error
	if r.paused {
		err = game.Reject(game.ReasonPaused)
	} else {
		err = cmd.Accept(playerID, r)
	}
	if err != nil {
		r.rejectLocked(playerID, cmd.Kind(), err)
		return
	}

	r.flushEventsLocked()
	if r.stop == nil {
		// No tick will carry the change, so publish it now
		r.broadcastStateLocked()
	}
}

// Reject reports a command refused before dispatch, such as by rate limiting.
func (r *Room) Reject(playerID, command string, reason game.Reason) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejectLocked(playerID, command, game.Reject(reason))
}

func (r *Room) rejectLocked(playerID, command string, err error) {
	reason, ok := game.ReasonOf(err)
	if !ok {
		reason = game.ReasonInvalidValue
	}
	metrics.RecordCommandRejected(string(reason))
	r.sendLocked(playerID, EventActionFailed, ActionFailedData{Command: command, Reason: reason})
}

// Command handlers. They run inside Handle with r.mu held.

func (r *Room) VisitPlaceTower(playerID string, c PlaceTower) error {
	t, err := r.world.PlaceTower(playerID, game.Cell{X: c.X, Y: c.Y}, c.TowerType)
	if err != nil {
		return err
	}
	r.sendLocked(playerID, EventTowerPlaced, TowerPlacedData{TowerID: t.ID, Type: t.Type, Cell: t.Cell, Cost: t.BaseCost})
	return nil
}

func (r *Room) VisitUpgradeTower(playerID string, c UpgradeTower) error {
	t, err := r.world.UpgradeTower(playerID, c.TowerID)
	if err != nil {
		return err
	}
	cost := game.UpgradeCost(t.BaseCost, r.world.Rules.UpgradeCostMult, t.Level-1)
	r.ackLocked(playerID, ActionOKData{Command: c.Kind(), TowerID: t.ID, Credits: cost})
	return nil
}

func (r *Room) VisitSellTower(playerID string, c SellTower) error {
	refund, err := r.world.SellTower(playerID, c.TowerID)
	if err != nil {
		return err
	}
	r.ackLocked(playerID, ActionOKData{Command: c.Kind(), TowerID: c.TowerID, Credits: refund})
	return nil
}

func (r *Room) VisitRepairTower(playerID string, c RepairTower) error {
	cost, err := r.world.RepairTower(playerID, c.TowerID)
	if err != nil {
		return err
	}
	r.ackLocked(playerID, ActionOKData{Command: c.Kind(), TowerID: c.TowerID, Credits: cost})
	return nil
}

func (r *Room) VisitRestockTower(playerID string, c RestockTower) error {
	cost, err := r.world.RestockTower(playerID, c.TowerID)
	if err != nil {
		return err
	}
	r.ackLocked(playerID, ActionOKData{Command: c.Kind(), TowerID: c.TowerID, Credits: cost})
	return nil
}

func (r *Room) VisitReady(playerID string, c Ready) error {
	started, err := r.world.SetReady(playerID)
	if err != nil {
		return err
	}
	if started {
		log.Printf("⚔️ Room %s wave %d combat", r.ID, r.world.Wave)
	}
	r.ackLocked(playerID, ActionOKData{Command: c.Kind()})
	return nil
}

func (r *Room) VisitSetStartingCredits(playerID string, c SetStartingCredits) error {
	if err := r.world.SetStartingCredits(playerID, c.Value); err != nil {
		return err
	}
	r.ackLocked(playerID, ActionOKData{Command: c.Kind(), Credits: c.Value})
	return nil
}

func (r *Room) ackLocked(playerID string, data ActionOKData) {
	r.sendLocked(playerID, EventActionOK, data)
}

// flushEventsLocked journals queued world events and turns the client-facing
// ones into broadcasts.
func (r *Room) flushEventsLocked() {
	events := r.world.DrainEvents()
	if len(events) == 0 {
		return
	}
	r.journal.EmitEvents(r.ID, events)

	for _, ev := range events {
		switch ev.Type {
		case game.EventTypePhaseChanged:
			r.broadcastLocked(EventPhaseChanged, ev.Payload)
		case game.EventTypeGameOver:
			r.broadcastLocked(EventGameOver, ev.Payload)
		case game.EventTypeEnemyKilled:
			metrics.EnemyKilled()
		case game.EventTypeEnemyLeaked:
			metrics.EnemyLeaked()
		}
	}
}

func (r *Room) sendLocked(playerID, event string, data any) {
	conn, ok := r.conns[playerID]
	if !ok {
		return
	}
	if msg := encode(event, data); msg != nil {
		conn.Send(msg)
	}
}

func (r *Room) broadcastLocked(event string, data any) {
	if len(r.conns) == 0 {
		return
	}
	msg := encode(event, data)
	if msg == nil {
		return
	}
	for _, id := range r.connIDsLocked() {
		r.conns[id].Send(msg)
	}
}

func (r *Room) broadcastStateLocked() {
	if len(r.conns) == 0 {
		return
	}
	r.broadcastLocked(EventState, r.world.Snapshot())
}

func (r *Room) connIDsLocked() []string {
	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Room) allConnectedLocked() bool {
	for _, p := range r.world.Players {
		if !p.Connected {
			return false
		}
	}
	return true
}

// Snapshot returns a copy of the current world.
func (r *Room) Snapshot() game.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.world.Snapshot()
}

// Summary describes the room for listings.
func (r *Room) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	connected := 0
	for _, p := range r.world.Players {
		if p.Connected {
			connected++
		}
	}
	return Summary{
		ID:        r.ID,
		Mode:      r.Mode,
		Phase:     r.world.Phase,
		Wave:      r.world.Wave,
		Players:   len(r.world.Players),
		Connected: connected,
		Paused:    r.paused,
	}
}

// Paused reports whether the loop is held for a reconnect.
func (r *Room) Paused() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.paused
}

// Running reports whether the tick goroutine is armed.
func (r *Room) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stop != nil
}

// Full reports whether no more players can join.
func (r *Room) Full() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed || r.world.Phase != game.PhaseWaiting || len(r.world.Players) >= r.Mode.RequiredPlayers()
}

// IdleSince returns when the last member disconnected, and false while anyone is connected.
func (r *Room) IdleSince() (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.idleSince, !r.idleSince.IsZero()
}

// Close stops the loop and disconnects every member. Safe to call twice.
func (r *Room) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	r.stopLoopLocked()
	for _, id := range r.connIDsLocked() {
		r.conns[id].Close()
	}
	r.conns = make(map[string]Conn)
	metrics.SessionClosed()
	log.Printf("🗑️ Room %s closed", r.ID)
}
