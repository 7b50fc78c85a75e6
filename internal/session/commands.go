package session

import (
	"encoding/json"
	"errors"
	"fmt"

	"lane-defense/internal/game"
)

// Command is one player instruction. The set of kinds is closed: every kind has
// a method on CommandVisitor, so a new kind does not compile until it is handled.
type Command interface {
	Accept(playerID string, v CommandVisitor) error
	Kind() string
}

// CommandVisitor handles each command kind.
type CommandVisitor interface {
	VisitPlaceTower(playerID string, c PlaceTower) error
	VisitUpgradeTower(playerID string, c UpgradeTower) error
	VisitSellTower(playerID string, c SellTower) error
	VisitRepairTower(playerID string, c RepairTower) error
	VisitRestockTower(playerID string, c RestockTower) error
	VisitReady(playerID string, c Ready) error
	VisitSetStartingCredits(playerID string, c SetStartingCredits) error
}

// PlaceTower builds a tower of TowerType on (X, Y).
type PlaceTower struct {
	X, Y      int
	TowerType string
}

// UpgradeTower raises an owned tower one level.
type UpgradeTower struct{ TowerID game.ID }

// SellTower removes an owned tower for a partial refund.
type SellTower struct{ TowerID game.ID }

// RepairTower restores an owned tower to full health.
type RepairTower struct{ TowerID game.ID }

// RestockTower refills an owned tower's ammo.
type RestockTower struct{ TowerID game.ID }

// Ready signals the player is done building.
type Ready struct{}

// SetStartingCredits changes everyone's starting credits before the match begins.
type SetStartingCredits struct{ Value int }

func (c PlaceTower) Accept(id string, v CommandVisitor) error   { return v.VisitPlaceTower(id, c) }
func (c UpgradeTower) Accept(id string, v CommandVisitor) error { return v.VisitUpgradeTower(id, c) }
func (c SellTower) Accept(id string, v CommandVisitor) error    { return v.VisitSellTower(id, c) }
func (c RepairTower) Accept(id string, v CommandVisitor) error  { return v.VisitRepairTower(id, c) }
func (c RestockTower) Accept(id string, v CommandVisitor) error { return v.VisitRestockTower(id, c) }
func (c Ready) Accept(id string, v CommandVisitor) error        { return v.VisitReady(id, c) }
func (c SetStartingCredits) Accept(id string, v CommandVisitor) error {
	return v.VisitSetStartingCredits(id, c)
}

func (PlaceTower) Kind() string         { return "place_tower" }
func (UpgradeTower) Kind() string       { return "upgrade_tower" }
func (SellTower) Kind() string          { return "sell_tower" }
func (RepairTower) Kind() string        { return "repair_tower" }
func (RestockTower) Kind() string       { return "restock_tower" }
func (Ready) Kind() string              { return "ready" }
func (SetStartingCredits) Kind() string { return "set_starting_credits" }

// ErrMalformed marks inbound data that is not a valid command. The transport
// drops such messages without replying.
var ErrMalformed = errors.New("malformed command")

// wireCommand is the inbound JSON shape. Pointer fields distinguish "missing"
// from zero so required fields can be enforced.
type wireCommand struct {
	Type      string  `json:"type"`
	X         *int    `json:"x"`
	Y         *int    `json:"y"`
	TowerType string  `json:"towerType"`
	TowerID   *uint64 `json:"towerId"`
	Value     *int    `json:"value"`
}

// DecodeCommand parses one inbound message.
func DecodeCommand(data []byte) (Command, error) {
	var msg wireCommand
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch msg.Type {
	case "place_tower":
		if msg.X == nil || msg.Y == nil || msg.TowerType == "" {
			return nil, fmt.Errorf("%w: place_tower needs x, y and towerType", ErrMalformed)
		}
		return PlaceTower{X: *msg.X, Y: *msg.Y, TowerType: msg.TowerType}, nil
	case "upgrade_tower", "sell_tower", "repair_tower", "restock_tower":
		if msg.TowerID == nil {
			return nil, fmt.Errorf("%w: %s needs towerId", ErrMalformed, msg.Type)
		}
		id := game.ID(*msg.TowerID)
		switch msg.Type {
		case "upgrade_tower":
			return UpgradeTower{TowerID: id}, nil
		case "sell_tower":
			return SellTower{TowerID: id}, nil
		case "repair_tower":
			return RepairTower{TowerID: id}, nil
		default:
			return RestockTower{TowerID: id}, nil
		}
	case "ready":
		return Ready{}, nil
	case "set_starting_credits":
		if msg.Value == nil {
			return nil, fmt.Errorf("%w: set_starting_credits needs value", ErrMalformed)
		}
		return SetStartingCredits{Value: *msg.Value}, nil
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformed, msg.Type)
	}
}
