package game

import (
	"encoding/json"
	"time"
)

// EventType enum for event classification
type EventType uint8

const (
	EventTypeUnknown EventType = iota
	EventTypePhaseChanged
	EventTypeWaveStarted
	EventTypeWaveCleared
	EventTypeTowerPlaced
	EventTypeTowerUpgraded
	EventTypeTowerSold
	EventTypeTowerDestroyed
	EventTypeEnemyKilled
	EventTypeEnemyLeaked // reached a goal band
	EventTypeSpawnDropped
	EventTypeGameOver
)

// EventVersion for backwards compatibility in the match journal
const EventVersion uint8 = 1

// Event is something that happened inside the world during a tick or command.
// The session turns some of these into outbound messages; all of them go to the journal.
type Event struct {
	Type     EventType
	Tick     uint64
	PlayerID string // acting or affected player, if any
	Payload  any
}

// String returns human-readable event type
func (t EventType) String() string {
	switch t {
	case EventTypePhaseChanged:
		return "phase_changed"
	case EventTypeWaveStarted:
		return "wave_started"
	case EventTypeWaveCleared:
		return "wave_cleared"
	case EventTypeTowerPlaced:
		return "tower_placed"
	case EventTypeTowerUpgraded:
		return "tower_upgraded"
	case EventTypeTowerSold:
		return "tower_sold"
	case EventTypeTowerDestroyed:
		return "tower_destroyed"
	case EventTypeEnemyKilled:
		return "enemy_killed"
	case EventTypeEnemyLeaked:
		return "enemy_leaked"
	case EventTypeSpawnDropped:
		return "spawn_dropped"
	case EventTypeGameOver:
		return "game_over"
	default:
		return "unknown"
	}
}

func (t EventType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// Typed payloads for different event types

// PhasePayload is emitted on every phase transition
type PhasePayload struct {
	Phase Phase `json:"phase"`
	Wave  int   `json:"wave"`
}

// WavePayload summarizes a wave at start or when cleared
type WavePayload struct {
	Wave    int `json:"wave"`
	Total   int `json:"total"`
	Spawned int `json:"spawned"`
	Killed  int `json:"killed"`
	Leaked  int `json:"leaked"`
	Dropped int `json:"dropped"`
}

// TowerPayload describes a tower change
type TowerPayload struct {
	TowerID ID     `json:"towerId"`
	Type    string `json:"type"`
	Cell    Cell   `json:"cell"`
	Level   int    `json:"level"`
	Cost    int    `json:"cost,omitempty"`   // credits charged
	Refund  int    `json:"refund,omitempty"` // credits returned on sell
}

// KillPayload contains kill details
type KillPayload struct {
	EnemyID ID     `json:"enemyId"`
	Type    string `json:"type"`
	TowerID ID     `json:"towerId"`
	Credits int    `json:"credits"`
}

// LeakPayload contains goal details
type LeakPayload struct {
	EnemyID    ID     `json:"enemyId"`
	Type       string `json:"type"`
	Side       Side   `json:"side"`
	Damage     int    `json:"damage"`
	HealthLeft int    `json:"healthLeft"`
}

// SpawnDroppedPayload records a spawn that found no route
type SpawnDroppedPayload struct {
	Type string `json:"type"`
	Side Side   `json:"side"`
}

// GameOverPayload carries the final result; WinnerID is nil for no winner
type GameOverPayload struct {
	WinnerID  *string `json:"winnerId"`
	FinalWave int     `json:"finalWave"`
}

// Record is the journal form of an Event
type Record struct {
	Version   uint8     `json:"version"`
	Session   string    `json:"session"`
	Type      EventType `json:"type"`
	Timestamp int64     `json:"timestamp"` // Unix nano
	Sequence  uint64    `json:"sequence"`  // Monotonic sequence, assigned by the log
	TickNum   uint64    `json:"tickNum"`
	PlayerID  string    `json:"playerId,omitempty"`
	Payload   []byte    `json:"payload"` // JSON-encoded payload
}

// EncodePayload marshals a payload to JSON bytes
func EncodePayload(payload interface{}) []byte {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return data
}

// NewRecord creates a journal record with the current timestamp
func NewRecord(session string, ev Event) Record {
	return Record{
		Version:   EventVersion,
		Session:   session,
		Type:      ev.Type,
		Timestamp: time.Now().UnixNano(),
		TickNum:   ev.Tick,
		PlayerID:  ev.PlayerID,
		Payload:   EncodePayload(ev.Payload),
	}
}
