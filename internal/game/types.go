package game

import (
	"encoding/json"
	"fmt"
	"math"
)

// ID identifies towers, enemies and projectiles within one world.
// IDs are allocated monotonically, so lower means older; tie-breaks rely on that.
type ID uint64

// Side is a half of the board and the player defending it.
type Side uint8

const (
	SideLeft Side = iota
	SideRight
)

// Sides lists both sides in a fixed order for deterministic iteration.
var Sides = [2]Side{SideLeft, SideRight}

// String returns the wire name of the side
func (s Side) String() string {
	if s == SideRight {
		return "RIGHT"
	}
	return "LEFT"
}

func (s Side) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Side) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	switch name {
	case "LEFT":
		*s = SideLeft
	case "RIGHT":
		*s = SideRight
	default:
		return fmt.Errorf("unknown side %q", name)
	}
	return nil
}

// Phase is the match state machine position.
type Phase uint8

const (
	PhaseWaiting Phase = iota
	PhaseBuild
	PhaseCombat
	PhaseGameOver
)

// String returns the wire name of the phase
func (p Phase) String() string {
	switch p {
	case PhaseBuild:
		return "BUILD"
	case PhaseCombat:
		return "COMBAT"
	case PhaseGameOver:
		return "GAME_OVER"
	default:
		return "WAITING"
	}
}

func (p Phase) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Phase) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for _, candidate := range []Phase{PhaseWaiting, PhaseBuild, PhaseCombat, PhaseGameOver} {
		if candidate.String() == name {
			*p = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", name)
}

// CellKind is the occupancy of one grid cell.
type CellKind uint8

const (
	CellEmpty CellKind = iota
	CellTower
	CellSpawn
	CellGoal
)

// String returns the wire name of the cell kind
func (k CellKind) String() string {
	switch k {
	case CellTower:
		return "TOWER"
	case CellSpawn:
		return "SPAWN"
	case CellGoal:
		return "GOAL"
	default:
		return "EMPTY"
	}
}

// Mode is the session type, which fixes the number of player slots.
type Mode uint8

const (
	ModeSolo Mode = iota
	ModeVersus
)

// String returns the wire name of the mode
func (m Mode) String() string {
	if m == ModeVersus {
		return "versus"
	}
	return "solo"
}

// RequiredPlayers is the number of present players needed to leave WAITING.
func (m Mode) RequiredPlayers() int {
	if m == ModeVersus {
		return 2
	}
	return 1
}

func (m Mode) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *Mode) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	mode, ok := ParseMode(name)
	if !ok {
		return fmt.Errorf("unknown mode %q", name)
	}
	*m = mode
	return nil
}

// ParseMode maps a wire name onto a Mode.
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "solo", "":
		return ModeSolo, true
	case "versus":
		return ModeVersus, true
	}
	return ModeSolo, false
}

// Cell is an integer grid coordinate.
type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Vec is a continuous position in cell units.
type Vec struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Center returns the cell's coordinate as a position.
func (c Cell) Center() Vec {
	return Vec{X: float64(c.X), Y: float64(c.Y)}
}

// Cell returns the cell whose center is nearest to v. Halves round up.
func (v Vec) Cell() Cell {
	return Cell{X: int(math.Floor(v.X + 0.5)), Y: int(math.Floor(v.Y + 0.5))}
}
