package models

import "github.com/google/uuid"

// PlayoffBracket marks which bracket a playoff node belongs to. Only the
// winners bracket exists today.
type PlayoffBracket string

const BracketWinners PlayoffBracket = "winners"

// PlayoffStage is the single-elimination phase of a tournament.
type PlayoffStage struct {
	ID           uuid.UUID `json:"id" db:"id"`
	TournamentID uuid.UUID `json:"tournament_id" db:"tournament_id"`

	Matches []PlayoffMatch `json:"matches,omitempty" db:"-"`
}

// PlayoffMatch is a bracket node. DependsOn1/DependsOn2 point at the two
// previous-round nodes feeding this one; WinnerTo points forward at the
// node this one's winner advances into. Each node owns exactly one Match
// shell (matches.playoff_match_id).
type PlayoffMatch struct {
	ID             uuid.UUID      `json:"id" db:"id"`
	PlayoffStageID uuid.UUID      `json:"playoff_stage_id" db:"playoff_stage_id"`
	Round          int            `json:"round" db:"round"`
	Bracket        PlayoffBracket `json:"bracket" db:"bracket"`
	DependsOn1     *uuid.UUID     `json:"depends_on_1,omitempty" db:"depends_on_1"`
	DependsOn2     *uuid.UUID     `json:"depends_on_2,omitempty" db:"depends_on_2"`
	WinnerTo       *uuid.UUID     `json:"winner_to,omitempty" db:"winner_to"`
	LoserTo        *uuid.UUID     `json:"loser_to,omitempty" db:"loser_to"`

	Match *Match `json:"match,omitempty" db:"-"`
}
