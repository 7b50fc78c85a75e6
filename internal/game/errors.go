package game

import "errors"

// Reason is the stable, client-facing name of a rejected action.
type Reason string

const (
	ReasonWrongPhase          Reason = "wrong_phase"
	ReasonInsufficientCredits Reason = "insufficient_credits"
	ReasonOutOfBounds         Reason = "out_of_bounds"
	ReasonCellOccupied        Reason = "cell_occupied"
	ReasonSpawnZone           Reason = "spawn_zone"
	ReasonWrongSide           Reason = "wrong_side"
	ReasonWouldBlockPath      Reason = "would_block_path"
	ReasonNotOwner            Reason = "not_owner"
	ReasonUnknownTower        Reason = "unknown_tower"
	ReasonUnknownTowerType    Reason = "unknown_tower_type"
	ReasonUnknownPlayer       Reason = "unknown_player"
	ReasonMaxLevel            Reason = "max_level"
	ReasonNothingToRepair     Reason = "nothing_to_repair"
	ReasonNothingToRestock    Reason = "nothing_to_restock"
	ReasonInvalidValue        Reason = "invalid_value"
	ReasonRateLimited         Reason = "rate_limited"
	ReasonPaused              Reason = "session_paused"
)

// ActionError is a validation failure of a player command. The world is unchanged.
type ActionError struct {
	Reason Reason
}

func (e *ActionError) Error() string {
	return "action rejected: " + string(e.Reason)
}

func reject(r Reason) error {
	return &ActionError{Reason: r}
}

// Reject builds an ActionError for checks made outside the world, such as
// rate limiting or a paused session.
func Reject(r Reason) error {
	return reject(r)
}

// ReasonOf extracts the rejection reason from err, if it is an ActionError.
func ReasonOf(err error) (Reason, bool) {
	var ae *ActionError
	if errors.As(err, &ae) {
		return ae.Reason, true
	}
	return "", false
}
