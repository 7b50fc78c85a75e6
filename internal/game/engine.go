package game

// Engine runs the fixed per-tick subsystem pipeline over a World. It holds no
// state of its own; everything lives in the World passed to Step.
type Engine struct {
	Phases      PhaseMachine
	Waves       WaveDirector
	Mover       AgentMover
	Turrets     TurretController
	Projectiles ProjectileResolver
}

// Step advances w by one tick of dt seconds. It returns false when the match is
// over, either before the step or as a result of it.
//
// Order matters: the phase check runs before the wave director so a freshly
// entered COMBAT is never closed before its queue exists, and game over is
// checked right after movement, the only stage that lowers player health.
func (e *Engine) Step(w *World, dt float64) bool {
	if w.Phase == PhaseGameOver {
		return false
	}
	w.Tick++
	w.Clock += dt

	e.Phases.Update(w)
	e.Waves.Update(w, dt)
	e.Mover.Update(w, dt)
	if e.Phases.CheckGameOver(w) {
		return false
	}
	e.Turrets.Update(w, dt)
	e.Projectiles.Update(w, dt)
	return true
}
