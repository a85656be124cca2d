package domain

import "errors"

// Stage is a position in the sales pipeline.
type Stage string

const (
	StageNew         Stage = "new"
	StageContacted   Stage = "contacted"
	StageQualified   Stage = "qualified"
	StageProposal    Stage = "proposal"
	StageNegotiation Stage = "negotiation"
	StageWon         Stage = "won"
	StageLost        Stage = "lost"
)

// StageInfo is an immutable catalog entry.
type StageInfo struct {
	ID          Stage  `json:"id"`
	Label       string `json:"label"`
	Order       int    `json:"order"`
	Probability int    `json:"probability"`
	IsClosed    bool   `json:"isClosed"`
	IsWon       bool   `json:"isWon"`
}

var stageCatalog = []StageInfo{
	{ID: StageNew, Label: "New", Order: 1, Probability: 10},
	{ID: StageContacted, Label: "Contacted", Order: 2, Probability: 20},
	{ID: StageQualified, Label: "Qualified", Order: 3, Probability: 40},
	{ID: StageProposal, Label: "Proposal", Order: 4, Probability: 60},
	{ID: StageNegotiation, Label: "Negotiation", Order: 5, Probability: 80},
	{ID: StageWon, Label: "Won", Order: 6, Probability: 100, IsClosed: true, IsWon: true},
	{ID: StageLost, Label: "Lost", Order: 7, Probability: 0, IsClosed: true},
}

var stageIndex = func() map[Stage]StageInfo {
	idx := make(map[Stage]StageInfo, len(stageCatalog))
	for _, info := range stageCatalog {
		idx[info.ID] = info
	}
	return idx
}()

var (
	ErrUnknownStage = errors.New("unknown pipeline stage")
	ErrStageFrozen  = errors.New("lead is in a terminal stage")
	ErrSameStage    = errors.New("lead is already in this stage")
	ErrNotTerminal  = errors.New("lead is not in a terminal stage")
	ErrReopenTarget = errors.New("reopen target must be an open stage")
)

// Stages returns the catalog in canonical order.
func Stages() []StageInfo {
	out := make([]StageInfo, len(stageCatalog))
	copy(out, stageCatalog)
	return out
}

// LookupStage returns the catalog entry for s.
func LookupStage(s Stage) (StageInfo, bool) {
	info, ok := stageIndex[s]
	return info, ok
}

// IsKnownStage reports whether s is in the catalog.
func IsKnownStage(s Stage) bool {
	_, ok := stageIndex[s]
	return ok
}

// ValidateTransition checks a regular stage change. Any open stage may move
// to any other stage; closed stages are frozen until reopened.
func ValidateTransition(from, to Stage) error {
	if !IsKnownStage(to) {
		return ErrUnknownStage
	}
	if IsTerminalStage(from) {
		return ErrStageFrozen
	}
	if from == to {
		return ErrSameStage
	}
	return nil
}

// ValidateReopen checks a reopen from a closed stage back into an open one.
func ValidateReopen(from, to Stage) error {
	if !IsTerminalStage(from) {
		return ErrNotTerminal
	}
	if !IsKnownStage(to) {
		return ErrUnknownStage
	}
	if IsTerminalStage(to) {
		return ErrReopenTarget
	}
	return nil
}
