package session

import (
	"bytes"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lane-defense/internal/config"
	"lane-defense/internal/game"
)

// fakeConn records every message a room sends it
type fakeConn struct {
	mu     sync.Mutex
	msgs   []Envelope
	raw    map[string][]json.RawMessage
	closed bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{raw: make(map[string][]json.RawMessage)}
}

func (c *fakeConn) Send(msg []byte) bool {
	var env struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(msg, &env); err != nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, Envelope{Event: env.Event})
	c.raw[env.Event] = append(c.raw[env.Event], env.Data)
	return true
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) count(event string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.raw[event])
}

// last decodes the most recent message of event into v
func (c *fakeConn) last(t *testing.T, event string, v any) {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	msgs := c.raw[event]
	require.NotEmpty(t, msgs, "no %s message", event)
	require.NoError(t, json.Unmarshal(msgs[len(msgs)-1], v))
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// testOptions uses a one-second tick so the loop stays out of the way of tests
func testOptions() Options {
	sim := config.DefaultSim()
	sim.TickRate = 1
	return Options{
		Sim:     sim,
		Rules:   config.DefaultRules(),
		Balance: config.DefaultBalance(),
		Seed:    func() int64 { return 1 },
	}
}

func newTestRoom(t *testing.T, mode game.Mode) *Room {
	t.Helper()
	r := NewRoom("room-1", mode, testOptions())
	t.Cleanup(r.Close)
	return r
}

// withWorld runs fn on the world under the room lock
func withWorld(r *Room, fn func(w *game.World)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.world)
}

// haltLoop disarms the tick goroutine so a test can step the world by hand
func haltLoop(r *Room) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLoopLocked()
}

func TestSoloJoinStartsMatch(t *testing.T) {
	r := newTestRoom(t, game.ModeSolo)
	conn := newFakeConn()

	id, side, err := r.Join(conn)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, game.SideLeft, side)

	var joined JoinedData
	conn.last(t, EventJoined, &joined)
	assert.Equal(t, id, joined.PlayerID)
	assert.Equal(t, "room-1", joined.SessionID)

	var phase game.PhasePayload
	conn.last(t, EventPhaseChanged, &phase)
	assert.Equal(t, 1, phase.Wave)
	assert.GreaterOrEqual(t, conn.count(EventState), 1)

	assert.True(t, r.Running())
	assert.Equal(t, game.PhaseBuild, r.Summary().Phase)

	_, _, err = r.Join(newFakeConn())
	assert.ErrorIs(t, err, ErrSessionFull)
}

func TestVersusWaitsForSecondPlayer(t *testing.T) {
	r := newTestRoom(t, game.ModeVersus)
	alice, bob := newFakeConn(), newFakeConn()

	_, side, err := r.Join(alice)
	require.NoError(t, err)
	assert.Equal(t, game.SideLeft, side)
	assert.False(t, r.Running())
	assert.False(t, r.Full())

	_, side, err = r.Join(bob)
	require.NoError(t, err)
	assert.Equal(t, game.SideRight, side)
	assert.True(t, r.Running())
	assert.True(t, r.Full())
	assert.Equal(t, 1, alice.count(EventPhaseChanged))
	assert.Equal(t, 1, bob.count(EventPhaseChanged))
}

func TestRejectionGoesToSenderOnly(t *testing.T) {
	r := newTestRoom(t, game.ModeVersus)
	alice, bob := newFakeConn(), newFakeConn()
	aliceID, _, err := r.Join(alice)
	require.NoError(t, err)
	_, _, err = r.Join(bob)
	require.NoError(t, err)

	r.Handle(aliceID, PlaceTower{X: 99, Y: 0, TowerType: "basic"})

	var failed ActionFailedData
	alice.last(t, EventActionFailed, &failed)
	assert.Equal(t, game.ReasonOutOfBounds, failed.Reason)
	assert.Equal(t, "place_tower", failed.Command)
	assert.Equal(t, 0, bob.count(EventActionFailed))
}

func TestPlaceTowerAcksAndJournals(t *testing.T) {
	var buf bytes.Buffer
	journal := game.NewEventLog()
	journal.StartWriter(&buf, nil)

	opts := testOptions()
	opts.Journal = journal
	r := NewRoom("room-j", game.ModeSolo, opts)
	defer r.Close()

	conn := newFakeConn()
	id, _, err := r.Join(conn)
	require.NoError(t, err)

	r.Handle(id, PlaceTower{X: 10, Y: 5, TowerType: "basic"})

	var placed TowerPlacedData
	conn.last(t, EventTowerPlaced, &placed)
	assert.Equal(t, "basic", placed.Type)
	assert.Equal(t, game.Cell{X: 10, Y: 5}, placed.Cell)
	assert.Equal(t, config.DefaultBalance().Towers["basic"].Cost, placed.Cost)

	snap := r.Snapshot()
	require.Contains(t, snap.Towers, placed.TowerID)
	assert.Equal(t, config.DefaultRules().StartingCredits-placed.Cost, snap.Players[id].Credits)

	r.Handle(id, SellTower{TowerID: placed.TowerID})
	var ok ActionOKData
	conn.last(t, EventActionOK, &ok)
	assert.Equal(t, "sell_tower", ok.Command)
	assert.Equal(t, game.SellRefund(placed.Cost, 1.5, 1, 0.6), ok.Credits)

	journal.Stop()
	assert.Contains(t, buf.String(), `"type":"tower_placed"`)
	assert.Contains(t, buf.String(), `"type":"tower_sold"`)
	assert.Contains(t, buf.String(), `"session":"room-j"`)
}

func TestSetStartingCreditsWhileWaiting(t *testing.T) {
	r := newTestRoom(t, game.ModeVersus)
	alice := newFakeConn()
	id, _, err := r.Join(alice)
	require.NoError(t, err)

	r.Handle(id, SetStartingCredits{Value: 900})
	var ok ActionOKData
	alice.last(t, EventActionOK, &ok)
	assert.Equal(t, 900, ok.Credits)

	_, _, err = r.Join(newFakeConn())
	require.NoError(t, err)
	for _, p := range r.Snapshot().Players {
		assert.Equal(t, 900, p.Credits)
	}

	// Once started the value is locked
	r.Handle(id, SetStartingCredits{Value: 5})
	var failed ActionFailedData
	alice.last(t, EventActionFailed, &failed)
	assert.Equal(t, game.ReasonWrongPhase, failed.Reason)
}

func TestDisconnectPausesAndRejoinResumes(t *testing.T) {
	r := newTestRoom(t, game.ModeVersus)
	alice, bob := newFakeConn(), newFakeConn()
	aliceID, _, err := r.Join(alice)
	require.NoError(t, err)
	bobID, _, err := r.Join(bob)
	require.NoError(t, err)
	require.True(t, r.Running())

	r.Leave(bobID, bob)
	assert.True(t, r.Paused())
	assert.False(t, r.Running())

	var gone PlayerData
	alice.last(t, EventPlayerDisconnected, &gone)
	assert.Equal(t, bobID, gone.PlayerID)
	assert.Equal(t, game.SideRight, gone.Side)

	// Side stays reserved and nothing moves while paused
	snap := r.Snapshot()
	require.Contains(t, snap.Players, bobID)
	assert.False(t, snap.Players[bobID].Connected)

	r.Handle(aliceID, PlaceTower{X: 10, Y: 5, TowerType: "basic"})
	var failed ActionFailedData
	alice.last(t, EventActionFailed, &failed)
	assert.Equal(t, game.ReasonPaused, failed.Reason)

	assert.ErrorIs(t, r.Rejoin("stranger", newFakeConn()), ErrSlotNotReserved)
	assert.ErrorIs(t, r.Rejoin(aliceID, newFakeConn()), ErrSlotNotReserved)

	bob2 := newFakeConn()
	require.NoError(t, r.Rejoin(bobID, bob2))
	assert.False(t, r.Paused())
	assert.True(t, r.Running())

	var joined JoinedData
	bob2.last(t, EventJoined, &joined)
	assert.Equal(t, game.SideRight, joined.Side)
	assert.Equal(t, 1, alice.count(EventPlayerReconnected))

	// The old connection closing late must not pause the room again
	r.Leave(bobID, bob)
	assert.False(t, r.Paused())
}

func TestLeaveWhileWaitingFreesSlot(t *testing.T) {
	clock := time.Unix(1000, 0)
	opts := testOptions()
	opts.Now = func() time.Time { return clock }
	r := NewRoom("room-w", game.ModeVersus, opts)
	defer r.Close()

	conn := newFakeConn()
	id, _, err := r.Join(conn)
	require.NoError(t, err)
	_, idle := r.IdleSince()
	assert.False(t, idle)

	r.Leave(id, conn)
	assert.Equal(t, 0, r.Summary().Players)
	since, idle := r.IdleSince()
	assert.True(t, idle)
	assert.Equal(t, clock, since)

	// The next joiner takes the freed LEFT side
	_, side, err := r.Join(newFakeConn())
	require.NoError(t, err)
	assert.Equal(t, game.SideLeft, side)
}

func TestTickEndsOnGameOver(t *testing.T) {
	r := newTestRoom(t, game.ModeSolo)
	conn := newFakeConn()
	id, _, err := r.Join(conn)
	require.NoError(t, err)
	haltLoop(r)

	r.Handle(id, Ready{})
	require.Equal(t, game.PhaseCombat, r.Summary().Phase)

	withWorld(r, func(w *game.World) { w.Players[id].Health = 0 })

	stop := make(chan struct{})
	r.mu.Lock()
	r.stop = stop
	r.mu.Unlock()

	assert.False(t, r.tick(stop, 3))
	assert.False(t, r.Running())
	assert.Equal(t, game.PhaseGameOver, r.Summary().Phase)

	var over struct {
		WinnerID  *string `json:"winnerId"`
		FinalWave int     `json:"finalWave"`
	}
	conn.last(t, EventGameOver, &over)
	assert.Nil(t, over.WinnerID)
	assert.Equal(t, 1, over.FinalWave)

	// A stale wakeup after the loop ended does nothing
	tickBefore := r.Snapshot().Tick
	assert.False(t, r.tick(stop, 1))
	assert.Equal(t, tickBefore, r.Snapshot().Tick)
}

func TestStepLockedAdvancesWorld(t *testing.T) {
	r := newTestRoom(t, game.ModeSolo)
	id, _, err := r.Join(newFakeConn())
	require.NoError(t, err)
	haltLoop(r)
	r.Handle(id, Ready{})

	start := r.Snapshot().Tick
	r.mu.Lock()
	running := r.stepLocked(5) // one-second steps at this tick rate
	r.mu.Unlock()

	assert.True(t, running)
	snap := r.Snapshot()
	assert.Equal(t, start+5, snap.Tick)
	assert.Greater(t, snap.Total, 0)
	assert.Less(t, snap.Remaining, snap.Total)
}

func TestCloseDisconnectsMembers(t *testing.T) {
	r := NewRoom("room-c", game.ModeSolo, testOptions())
	conn := newFakeConn()
	id, _, err := r.Join(conn)
	require.NoError(t, err)

	r.Close()
	r.Close()
	assert.True(t, conn.isClosed())
	assert.False(t, r.Running())

	_, _, err = r.Join(newFakeConn())
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, r.Rejoin(id, newFakeConn()), ErrSessionNotFound)
}

func TestAccumulator(t *testing.T) {
	tests := []struct {
		name        string
		elapsed     []time.Duration
		wantRun     int
		wantSkipped int
	}{
		{"one period", []time.Duration{50 * time.Millisecond}, 1, 0},
		{"partial carries over", []time.Duration{20 * time.Millisecond, 30 * time.Millisecond}, 1, 0},
		{"catch up to cap", []time.Duration{150 * time.Millisecond}, 3, 0},
		{"backlog beyond cap dropped", []time.Duration{400 * time.Millisecond}, 3, 5},
		{"clock went backwards", []time.Duration{-time.Second}, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc := newAccumulator(20, 3)
			var run, skipped int
			for _, d := range tt.elapsed {
				run, skipped = acc.advance(d)
			}
			assert.Equal(t, tt.wantRun, run)
			assert.Equal(t, tt.wantSkipped, skipped)
			assert.Less(t, acc.pending, acc.period)
		})
	}
}
