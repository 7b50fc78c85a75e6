package game

import "log"

// PhaseMachine drives WAITING → BUILD ⇄ COMBAT → GAME_OVER.
type PhaseMachine struct{}

// TryStart leaves WAITING once the session has its required player count.
func (PhaseMachine) TryStart(w *World) bool {
	if w.Phase != PhaseWaiting || len(w.Players) < w.Mode.RequiredPlayers() {
		return false
	}
	w.Wave = 1
	for _, p := range w.Players {
		p.Ready = false
	}
	setPhase(w, PhaseBuild)
	return true
}

// Update ends COMBAT once the wave's queue is drained and no enemy is alive.
// While the queue is still being generated the check is held off.
func (m PhaseMachine) Update(w *World) {
	if w.Phase != PhaseCombat || w.WaveState.Generating {
		return
	}
	if w.LiveEnemies() == 0 && w.WaveState.Remaining() == 0 {
		m.EnterBuild(w)
	}
}

// StartCombat enters COMBAT: towers are refilled, ready flags cleared and the
// wave queue is marked as pending generation.
func StartCombat(w *World) {
	for _, id := range w.TowerIDs() {
		t := w.Towers[id]
		t.Ammo = t.MaxAmmo
	}
	for _, p := range w.Players {
		p.Ready = false
	}
	w.WaveState = WaveState{Generating: true}
	setPhase(w, PhaseCombat)
}

// EnterBuild closes the current wave: wave number advances, every player gets the
// stipend plus their towers' net income, and ready flags are cleared.
func (PhaseMachine) EnterBuild(w *World) {
	ws := w.WaveState
	w.Emit(Event{Type: EventTypeWaveCleared, Payload: WavePayload{
		Wave: w.Wave, Total: ws.Total, Spawned: ws.Spawned, Killed: ws.Killed, Leaked: ws.Leaked, Dropped: ws.Dropped,
	}})

	w.Wave++
	for _, id := range w.PlayerIDs() {
		p := w.Players[id]
		p.Credits += w.Rules.WaveStipend
		p.Credits += w.NetIncome(id)
		p.Ready = false
	}
	for id := range w.Projectiles {
		delete(w.Projectiles, id)
	}
	setPhase(w, PhaseBuild)
}

// CheckGameOver ends the match the moment any player's health reaches zero during
// COMBAT. In versus the surviving player wins; otherwise there is no winner.
func (PhaseMachine) CheckGameOver(w *World) bool {
	if w.Phase != PhaseCombat {
		return false
	}

	var fallen, standing []*Player
	for _, id := range w.PlayerIDs() {
		p := w.Players[id]
		if p.Health <= 0 {
			fallen = append(fallen, p)
		} else {
			standing = append(standing, p)
		}
	}
	if len(fallen) == 0 {
		return false
	}

	var winner *string
	if w.Mode == ModeVersus && len(standing) == 1 {
		id := standing[0].ID
		winner = &id
		w.Winner = id
	}
	setPhase(w, PhaseGameOver)
	w.Emit(Event{Type: EventTypeGameOver, Payload: GameOverPayload{WinnerID: winner, FinalWave: w.Wave}})
	log.Printf("🏁 Game over on wave %d (winner: %q)", w.Wave, w.Winner)
	return true
}

func setPhase(w *World, phase Phase) {
	w.Phase = phase
	w.Emit(Event{Type: EventTypePhaseChanged, Payload: PhasePayload{Phase: phase, Wave: w.Wave}})
}
