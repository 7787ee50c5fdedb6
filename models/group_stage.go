package models

import "github.com/google/uuid"

// GroupStage is the round-robin phase of a tournament. The number of
// participants advancing to the playoff per group is fixed at creation.
type GroupStage struct {
	ID                      uuid.UUID `json:"id" db:"id"`
	TournamentID            uuid.UUID `json:"tournament_id" db:"tournament_id"`
	WinnersBracketQualified int       `json:"winners_bracket_qualified" db:"winners_bracket_qualified"`

	Groups []Group `json:"groups,omitempty" db:"-"`
}

// Group is one round-robin pool, labeled 'A' onward.
type Group struct {
	ID              uuid.UUID `json:"id" db:"id"`
	GroupStageID    uuid.UUID `json:"group_stage_id" db:"group_stage_id"`
	Letter          string    `json:"letter" db:"letter"`
	MaxParticipants int       `json:"max_participants" db:"max_participants"`

	Rows []GroupRow `json:"rows,omitempty" db:"-"`
}

// GroupRow is one standings slot inside a group. Rows are created empty
// at skeleton time and filled with participants when the tournament
// starts; Place stays 0 until the first standings sort.
type GroupRow struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	GroupID       uuid.UUID  `json:"group_id" db:"group_id"`
	ParticipantID *uuid.UUID `json:"participant_id,omitempty" db:"participant_id"`
	Place         int        `json:"place" db:"place"`
	Wins          int        `json:"wins" db:"wins"`
	Draws         int        `json:"draws" db:"draws"`
	Losses        int        `json:"losses" db:"losses"`
}

// Points is the round-robin score of the row: two per win, one per draw.
func (r GroupRow) Points() int {
	return r.Wins*2 + r.Draws
}
