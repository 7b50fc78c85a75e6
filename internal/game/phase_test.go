package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadyGatesCombat(t *testing.T) {
	w := startedWorld(t, ModeVersus, 200)

	started, err := w.SetReady("alice")
	require.NoError(t, err)
	assert.False(t, started)
	assert.Equal(t, PhaseBuild, w.Phase)

	started, err = w.SetReady("bob")
	require.NoError(t, err)
	assert.True(t, started)
	assert.Equal(t, PhaseCombat, w.Phase)
	for _, p := range w.Players {
		assert.False(t, p.Ready)
	}

	_, err = w.SetReady("alice")
	reason, _ := ReasonOf(err)
	assert.Equal(t, ReasonWrongPhase, reason)
}

func TestCombatEntryRefillsAmmo(t *testing.T) {
	w := startedWorld(t, ModeSolo, 500)
	tower, err := w.PlaceTower("alice", Cell{X: 10, Y: 5}, "basic")
	require.NoError(t, err)
	tower.Ammo = 3

	_, err = w.SetReady("alice")
	require.NoError(t, err)
	assert.Equal(t, tower.MaxAmmo, tower.Ammo)
}

// TestCombatSentinelHoldsPhase verifies COMBAT cannot close before the queue is generated
func TestCombatSentinelHoldsPhase(t *testing.T) {
	w := startedWorld(t, ModeSolo, 200)
	_, err := w.SetReady("alice")
	require.NoError(t, err)
	require.True(t, w.WaveState.Generating)

	PhaseMachine{}.Update(w)
	assert.Equal(t, PhaseCombat, w.Phase)

	WaveDirector{}.Update(w, 0.05)
	assert.False(t, w.WaveState.Generating)
	assert.Positive(t, w.WaveState.Total)
}

func TestWaveClearedEntersBuild(t *testing.T) {
	w := startedWorld(t, ModeVersus, 500)
	_, err := w.PlaceTower("alice", Cell{X: 10, Y: 5}, "bank")
	require.NoError(t, err)
	_, err = w.PlaceTower("bob", Cell{X: 50, Y: 5}, "basic")
	require.NoError(t, err)

	_, _ = w.SetReady("alice")
	_, _ = w.SetReady("bob")
	require.Equal(t, PhaseCombat, w.Phase)

	engine := &Engine{}
	require.True(t, engine.Step(w, 0.05))

	// Clear the wave by hand
	w.WaveState.Queue = nil
	for id := range w.Enemies {
		delete(w.Enemies, id)
	}
	w.Players["alice"].Ready = true
	require.True(t, engine.Step(w, 0.05))

	assert.Equal(t, PhaseBuild, w.Phase)
	assert.Equal(t, 2, w.Wave)
	for _, p := range w.Players {
		assert.False(t, p.Ready)
	}
	assert.Empty(t, w.Projectiles)

	// 500 - 150 bank + 100 stipend + 25 income
	assert.Equal(t, 475, w.Players["alice"].Credits)
	// 500 - 50 basic + 100 stipend - 1 maintenance
	assert.Equal(t, 549, w.Players["bob"].Credits)
}

func TestGameOverSolo(t *testing.T) {
	w := startedWorld(t, ModeSolo, 200)
	_, _ = w.SetReady("alice")
	w.WaveState.Generating = false
	w.Players["alice"].Health = 10

	e := addEnemy(w, Vec{X: 1, Y: 5}, SideLeft, 40)
	e.CreditValue = 50
	e.Speed = 20
	e.Route = []Cell{{X: 1, Y: 5}, {X: 0, Y: 5}}
	e.RouteIndex = 1

	engine := &Engine{}
	assert.False(t, engine.Step(w, 0.1))
	assert.Equal(t, PhaseGameOver, w.Phase)
	assert.Empty(t, w.Winner)

	tick := w.Tick
	assert.False(t, engine.Step(w, 0.1))
	assert.Equal(t, tick, w.Tick, "ticks continue after game over")

	var over *GameOverPayload
	for _, ev := range w.DrainEvents() {
		if ev.Type == EventTypeGameOver {
			p := ev.Payload.(GameOverPayload)
			over = &p
		}
	}
	require.NotNil(t, over)
	assert.Nil(t, over.WinnerID)
	assert.Equal(t, 1, over.FinalWave)
}

func TestGameOverVersusWinner(t *testing.T) {
	w := startedWorld(t, ModeVersus, 200)
	_, _ = w.SetReady("alice")
	_, _ = w.SetReady("bob")
	w.WaveState.Generating = false
	w.Players["bob"].Health = 5

	e := addEnemy(w, Vec{X: 58, Y: 5}, SideRight, 40)
	e.Speed = 20
	e.Route = []Cell{{X: 58, Y: 5}, {X: 59, Y: 5}}
	e.RouteIndex = 1

	engine := &Engine{}
	engine.Step(w, 0.1)

	assert.Equal(t, PhaseGameOver, w.Phase)
	assert.Equal(t, "alice", w.Winner)
}

func TestHealthLossOutsideCombatIsNotGameOver(t *testing.T) {
	w := startedWorld(t, ModeSolo, 200)
	w.Players["alice"].Health = 0

	assert.False(t, PhaseMachine{}.CheckGameOver(w))
	assert.Equal(t, PhaseBuild, w.Phase)
}
