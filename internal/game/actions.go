package game

import "math"

// neverFired marks a tower that has not shot yet; the simulated clock is never negative.
const neverFired = -1

// PlaceTower builds a tower of towerType on c for playerID.
func (w *World) PlaceTower(playerID string, c Cell, towerType string) (*Tower, error) {
	if w.Phase != PhaseBuild {
		return nil, reject(ReasonWrongPhase)
	}
	p, ok := w.Players[playerID]
	if !ok {
		return nil, reject(ReasonUnknownPlayer)
	}
	spec, ok := w.Balance.Towers[towerType]
	if !ok {
		return nil, reject(ReasonUnknownTowerType)
	}
	price, _ := w.TowerPrice(towerType)
	if p.Credits < price {
		return nil, reject(ReasonInsufficientCredits)
	}
	if err := ValidateTowerPlacement(w.Grid, c, p.Side); err != nil {
		return nil, err
	}

	t := &Tower{
		ID:           w.NewID(),
		Type:         towerType,
		Cell:         c,
		OwnerID:      playerID,
		Level:        1,
		BaseCost:     price,
		Damage:       spec.Damage,
		Range:        spec.Range,
		FireRate:     spec.FireRate,
		LastFire:     neverFired,
		Health:       spec.MaxHealth,
		MaxHealth:    spec.MaxHealth,
		Ammo:         spec.MaxAmmo,
		MaxAmmo:      spec.MaxAmmo,
		SplashRadius: spec.SplashRadius,
		SlowAmount:   spec.SlowAmount,
		SlowDuration: spec.SlowDuration,
	}
	w.Towers[t.ID] = t
	w.Grid.Set(c, CellTower)
	w.Purchases[towerType]++
	p.Credits -= price

	w.Emit(Event{Type: EventTypeTowerPlaced, PlayerID: playerID, Payload: TowerPayload{
		TowerID: t.ID, Type: t.Type, Cell: c, Level: 1, Cost: price,
	}})
	return t, nil
}

// ownedTower resolves a tower the player may act on.
func (w *World) ownedTower(playerID string, id ID) (*Player, *Tower, error) {
	p, ok := w.Players[playerID]
	if !ok {
		return nil, nil, reject(ReasonUnknownPlayer)
	}
	t, ok := w.Towers[id]
	if !ok {
		return nil, nil, reject(ReasonUnknownTower)
	}
	if t.OwnerID != playerID {
		return nil, nil, reject(ReasonNotOwner)
	}
	return p, t, nil
}

// UpgradeTower raises a tower one level.
func (w *World) UpgradeTower(playerID string, id ID) (*Tower, error) {
	if w.Phase != PhaseBuild {
		return nil, reject(ReasonWrongPhase)
	}
	p, t, err := w.ownedTower(playerID, id)
	if err != nil {
		return nil, err
	}
	if t.Level >= w.Rules.MaxLevel {
		return nil, reject(ReasonMaxLevel)
	}
	cost := UpgradeCost(t.BaseCost, w.Rules.UpgradeCostMult, t.Level)
	if p.Credits < cost {
		return nil, reject(ReasonInsufficientCredits)
	}

	p.Credits -= cost
	t.Level++
	t.Damage = int(math.Round(float64(t.Damage) * w.Rules.UpgradeDamageMult))
	t.FireRate *= w.Rules.UpgradeRateMult
	if t.Range > 0 {
		t.Range += w.Rules.UpgradeRangeBonus
	}
	t.MaxHealth *= 1.2
	t.Health = t.MaxHealth
	t.MaxAmmo = int(math.Round(float64(t.MaxAmmo) * 1.2))
	t.Ammo = t.MaxAmmo

	w.Emit(Event{Type: EventTypeTowerUpgraded, PlayerID: playerID, Payload: TowerPayload{
		TowerID: t.ID, Type: t.Type, Cell: t.Cell, Level: t.Level, Cost: cost,
	}})
	return t, nil
}

// SellTower removes a tower and refunds part of what was paid for it.
func (w *World) SellTower(playerID string, id ID) (int, error) {
	if w.Phase != PhaseBuild {
		return 0, reject(ReasonWrongPhase)
	}
	p, t, err := w.ownedTower(playerID, id)
	if err != nil {
		return 0, err
	}

	refund := SellRefund(t.BaseCost, w.Rules.UpgradeCostMult, t.Level, w.Rules.SellRefundRatio)
	p.Credits += refund
	w.RemoveTower(id)

	w.Emit(Event{Type: EventTypeTowerSold, PlayerID: playerID, Payload: TowerPayload{
		TowerID: t.ID, Type: t.Type, Cell: t.Cell, Level: t.Level, Refund: refund,
	}})
	return refund, nil
}

// RepairTower restores a damaged tower to full health.
func (w *World) RepairTower(playerID string, id ID) (int, error) {
	if w.Phase != PhaseBuild && w.Phase != PhaseCombat {
		return 0, reject(ReasonWrongPhase)
	}
	p, t, err := w.ownedTower(playerID, id)
	if err != nil {
		return 0, err
	}
	cost := w.RepairCost(t)
	if t.Health >= t.MaxHealth {
		return 0, reject(ReasonNothingToRepair)
	}
	if p.Credits < cost {
		return 0, reject(ReasonInsufficientCredits)
	}
	p.Credits -= cost
	t.Health = t.MaxHealth
	return cost, nil
}

// RestockTower refills a tower's ammo.
func (w *World) RestockTower(playerID string, id ID) (int, error) {
	if w.Phase != PhaseBuild && w.Phase != PhaseCombat {
		return 0, reject(ReasonWrongPhase)
	}
	p, t, err := w.ownedTower(playerID, id)
	if err != nil {
		return 0, err
	}
	if t.Ammo >= t.MaxAmmo {
		return 0, reject(ReasonNothingToRestock)
	}
	cost := w.RestockCost(t)
	if p.Credits < cost {
		return 0, reject(ReasonInsufficientCredits)
	}
	p.Credits -= cost
	t.Ammo = t.MaxAmmo
	return cost, nil
}

// SetReady flags the player ready. When every present player is ready the match
// enters COMBAT; the returned bool reports that transition.
func (w *World) SetReady(playerID string) (bool, error) {
	if w.Phase != PhaseBuild {
		return false, reject(ReasonWrongPhase)
	}
	p, ok := w.Players[playerID]
	if !ok {
		return false, reject(ReasonUnknownPlayer)
	}
	p.Ready = true
	for _, other := range w.Players {
		if !other.Ready {
			return false, nil
		}
	}
	StartCombat(w)
	return true, nil
}

// SetStartingCredits changes the credits every player starts with. Only while WAITING;
// already-joined players are reset to the new value.
func (w *World) SetStartingCredits(playerID string, value int) error {
	if w.Phase != PhaseWaiting {
		return reject(ReasonWrongPhase)
	}
	if _, ok := w.Players[playerID]; !ok {
		return reject(ReasonUnknownPlayer)
	}
	if value < 0 {
		return reject(ReasonInvalidValue)
	}
	w.StartingCredits = value
	for _, p := range w.Players {
		p.Credits = value
	}
	return nil
}
