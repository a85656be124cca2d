// Package domain provides core business rules for the leads bounded context.
package domain

// Status is derived from the stage and is never set directly.
type Status string

const (
	StatusOpen Status = "open"
	StatusWon  Status = "won"
	StatusLost Status = "lost"
)

// IsTerminalStage returns true for closed stages (won, lost).
func IsTerminalStage(s Stage) bool {
	info, ok := stageIndex[s]
	return ok && info.IsClosed
}

// StatusForStage derives the lead status from its pipeline stage.
func StatusForStage(s Stage) Status {
	info, ok := stageIndex[s]
	if !ok || !info.IsClosed {
		return StatusOpen
	}
	if info.IsWon {
		return StatusWon
	}
	return StatusLost
}

// IsKnownStatus reports whether s is a valid status filter value.
func IsKnownStatus(s Status) bool {
	switch s {
	case StatusOpen, StatusWon, StatusLost:
		return true
	}
	return false
}
