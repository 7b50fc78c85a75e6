package game

import (
	"math"

	"lane-defense/internal/game/spatial"
)

// ProjectileResolver flies projectiles toward their targets and applies
// damage, splash and slow on impact.
type ProjectileResolver struct{}

// Update advances every projectile by dt. A projectile whose target is gone or
// dead is discarded without effect.
func (ProjectileResolver) Update(w *World, dt float64) {
	if len(w.Projectiles) == 0 {
		return
	}
	index := enemyIndex(w)
	eps := w.Rules.ArrivalEpsilon

	for _, id := range w.ProjectileIDs() {
		p := w.Projectiles[id]
		target, ok := w.Enemies[p.TargetID]
		if !ok || !target.Alive() {
			delete(w.Projectiles, id)
			continue
		}

		step := p.Speed * dt
		dx, dy := target.Pos.X-p.Pos.X, target.Pos.Y-p.Pos.Y
		dist := math.Hypot(dx, dy)
		if dist > step+eps {
			p.Pos.X += dx / dist * step
			p.Pos.Y += dy / dist * step
			continue
		}

		p.Pos = target.Pos
		impact(w, index, p, target)
		delete(w.Projectiles, id)
	}
}

// impact resolves a projectile that reached its target.
func impact(w *World, index *spatial.Hash, p *Projectile, target *Enemy) {
	at := target.Pos

	if p.Slow {
		floor := target.BaseSpeed * p.SlowAmount
		if floor < target.Speed {
			target.Speed = floor
		}
		target.SlowUntil = w.Clock + p.SlowDuration
	}
	damageEnemy(w, p, target, p.Damage)

	if !p.Splash || p.SplashRadius <= 0 {
		return
	}
	splash := int(math.Round(float64(p.Damage) / 2))
	r2 := p.SplashRadius * p.SplashRadius

	var hit []ID
	for _, raw := range index.QueryRadius(at.X, at.Y, p.SplashRadius) {
		eid := ID(raw)
		if eid == target.ID {
			continue
		}
		e, ok := w.Enemies[eid]
		if !ok || !e.Alive() || distSq(at, e.Pos) > r2 {
			continue
		}
		hit = append(hit, eid)
	}
	sortIDs(hit)
	for _, eid := range hit {
		damageEnemy(w, p, w.Enemies[eid], splash)
	}
}

// damageEnemy applies dmg and, on a kill, pays the enemy's credit value to the
// player who owned the firing tower.
func damageEnemy(w *World, p *Projectile, e *Enemy, dmg int) {
	e.Health -= dmg
	if e.Health > 0 {
		return
	}

	if owner, ok := w.Players[p.OwnerID]; ok {
		owner.Credits += e.CreditValue
	}
	w.WaveState.Killed++
	delete(w.Enemies, e.ID)

	w.Emit(Event{Type: EventTypeEnemyKilled, PlayerID: p.OwnerID, Payload: KillPayload{
		EnemyID: e.ID, Type: e.Type, TowerID: p.TowerID, Credits: e.CreditValue,
	}})
}
