package game

import "math"

// TowerPrice returns the current placement price of a tower type: the base cost
// scaled up by how many of that type have been bought in this session.
func (w *World) TowerPrice(towerType string) (int, bool) {
	spec, ok := w.Balance.Towers[towerType]
	if !ok {
		return 0, false
	}
	scale := 1 + w.Rules.PriceGrowth*float64(w.Purchases[towerType])
	return int(math.Round(float64(spec.Cost) * scale)), true
}

// UpgradeCost is the price of raising a tower from level to level+1.
func UpgradeCost(baseCost int, mult float64, level int) int {
	return int(math.Round(float64(baseCost) * math.Pow(mult, float64(level))))
}

// Invested is the total paid for a tower that reached level: the placement price
// plus every upgrade price from level 1 up to level-1.
func Invested(baseCost int, mult float64, level int) int {
	total := baseCost
	for l := 1; l < level; l++ {
		total += UpgradeCost(baseCost, mult, l)
	}
	return total
}

// SellRefund returns the credits paid back when selling a tower at level.
// Integer arithmetic keeps the 60% ratio exact.
func SellRefund(baseCost int, mult float64, level int, ratio float64) int {
	invested := Invested(baseCost, mult, level)
	pct := int(math.Round(ratio * 100))
	return invested * pct / 100
}

// RepairCost is the price of restoring a tower to full health.
func (w *World) RepairCost(t *Tower) int {
	missing := t.MaxHealth - t.Health
	if missing <= 0 {
		return 0
	}
	return int(math.Ceil(missing * w.Rules.RepairCostPerHP))
}

// RestockCost is the price of refilling a tower's ammo.
func (w *World) RestockCost(t *Tower) int {
	spec := w.Balance.Towers[t.Type]
	return (t.MaxAmmo - t.Ammo) * spec.AmmoCost
}

// NetIncome is the per-wave passive income minus maintenance across a player's towers.
func (w *World) NetIncome(playerID string) int {
	net := 0
	for _, id := range w.TowerIDs() {
		t := w.Towers[id]
		if t.OwnerID != playerID {
			continue
		}
		spec := w.Balance.Towers[t.Type]
		net += spec.Income - spec.Maintenance
	}
	return net
}
