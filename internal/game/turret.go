package game

import (
	"lane-defense/internal/game/spatial"
)

// indexBucket is the spatial hash bucket edge in cells.
const indexBucket = 4

// TurretController picks targets for towers whose cooldown has elapsed and
// launches projectiles at them.
type TurretController struct{}

// Update fires every ready tower at the nearest living enemy in its owner's half.
// Each shot costs one round of ammo and the tower type's per-shot credit charge.
func (TurretController) Update(w *World, dt float64) {
	if len(w.Towers) == 0 {
		return
	}
	index := enemyIndex(w)

	for _, id := range w.TowerIDs() {
		t := w.Towers[id]
		if !t.canFire(w.Clock) {
			continue
		}
		owner, ok := w.Players[t.OwnerID]
		if !ok {
			continue
		}

		target := nearestEnemy(w, index, t, owner.Side)
		if target == nil {
			t.TargetID = 0
			continue
		}

		p := &Projectile{
			ID:       w.NewID(),
			Pos:      t.Cell.Center(),
			TargetID: target.ID,
			Damage:   t.Damage,
			Speed:    w.Rules.ProjectileSpeed,
			TowerID:  t.ID,
			OwnerID:  t.OwnerID,
		}
		if t.SplashRadius > 0 {
			p.Splash = true
			p.SplashRadius = t.SplashRadius
		}
		if t.SlowAmount > 0 {
			p.Slow = true
			p.SlowAmount = t.SlowAmount
			p.SlowDuration = t.SlowDuration
		}
		w.Projectiles[p.ID] = p

		t.Ammo--
		owner.Credits -= w.Balance.Towers[t.Type].AmmoCost
		t.LastFire = w.Clock
		t.TargetID = target.ID
	}
}

// canFire reports whether the tower has ammo, a positive rate, and a finished cooldown.
// The small slack absorbs float drift in the accumulated clock.
func (t *Tower) canFire(clock float64) bool {
	if t.FireRate <= 0 || t.Ammo <= 0 {
		return false
	}
	if t.LastFire < 0 {
		return true
	}
	return clock-t.LastFire+1e-9 >= 1/t.FireRate
}

// nearestEnemy returns the closest living enemy within t's range whose position
// lies in side's half. Ties go to the lowest id.
func nearestEnemy(w *World, index *spatial.Hash, t *Tower, side Side) *Enemy {
	origin := t.Cell.Center()
	r2 := t.Range * t.Range

	var best *Enemy
	bestDist := 0.0
	for _, raw := range index.QueryRadius(origin.X, origin.Y, t.Range) {
		e, ok := w.Enemies[ID(raw)]
		if !ok || !e.Alive() || !w.Grid.PosInHalf(side, e.Pos) {
			continue
		}
		d := distSq(origin, e.Pos)
		if d > r2 {
			continue
		}
		if best == nil || d < bestDist || (d == bestDist && e.ID < best.ID) {
			best, bestDist = e, d
		}
	}
	return best
}

// enemyIndex rebuckets living enemies by position for range queries. The
// world's hash is reused across calls, so an index is only valid until the
// next rebuild.
func enemyIndex(w *World) *spatial.Hash {
	if w.index == nil {
		w.index = spatial.NewHash(float64(w.Grid.Width), float64(w.Grid.Height), indexBucket)
	}
	h := w.index
	h.Clear()
	for _, id := range w.EnemyIDs() {
		e := w.Enemies[id]
		if e.Alive() {
			h.Insert(uint64(id), e.Pos.X, e.Pos.Y)
		}
	}
	return h
}

func distSq(a, b Vec) float64 {
	dx, dy := a.X-b.X, a.Y-b.Y
	return dx*dx + dy*dy
}
