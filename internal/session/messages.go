package session

import (
	"encoding/json"

	"lane-defense/internal/game"
)

// Outbound event names
const (
	EventJoined             = "joined"
	EventState              = "state"
	EventPhaseChanged       = "phase_changed"
	EventTowerPlaced        = "tower_placed"
	EventActionOK           = "action_ok"
	EventActionFailed       = "action_failed"
	EventPlayerDisconnected = "player_disconnected"
	EventPlayerReconnected  = "player_reconnected"
	EventGameOver           = "game_over"
)

// Envelope is the outbound wire format: {"event": ..., "data": ...}
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// JoinedData tells a connection who it is
type JoinedData struct {
	PlayerID  string    `json:"playerId"`
	Side      game.Side `json:"side"`
	SessionID string    `json:"sessionId"`
	Mode      game.Mode `json:"mode"`
}

// TowerPlacedData acknowledges a placement to the player who made it
type TowerPlacedData struct {
	TowerID game.ID   `json:"towerId"`
	Type    string    `json:"type"`
	Cell    game.Cell `json:"cell"`
	Cost    int       `json:"cost"`
}

// ActionOKData acknowledges any other accepted command
type ActionOKData struct {
	Command string  `json:"command"`
	TowerID game.ID `json:"towerId,omitempty"`
	Credits int     `json:"credits,omitempty"` // charged, or refunded for a sale
}

// ActionFailedData reports a rejected command to its sender only
type ActionFailedData struct {
	Command string      `json:"command"`
	Reason  game.Reason `json:"reason"`
}

// PlayerData names the player a presence event refers to
type PlayerData struct {
	PlayerID string    `json:"playerId"`
	Side     game.Side `json:"side"`
}

// encode marshals an envelope once so every recipient shares the bytes
func encode(event string, data any) []byte {
	b, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return nil
	}
	return b
}
