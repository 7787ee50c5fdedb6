package models

import "github.com/google/uuid"

// PrizeTable is created together with its tournament. When the prize fund
// is positive it carries default 50/30/20 rows whose participants are
// filled in at completion.
type PrizeTable struct {
	ID           uuid.UUID `json:"id" db:"id"`
	TournamentID uuid.UUID `json:"tournament_id" db:"tournament_id"`

	Rows []PrizeTableRow `json:"rows,omitempty" db:"-"`
}

// PrizeTableRow assigns a prize amount (decimal string) to a final place.
type PrizeTableRow struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	PrizeTableID  uuid.UUID  `json:"prize_table_id" db:"prize_table_id"`
	Place         int        `json:"place" db:"place"`
	Prize         string     `json:"prize" db:"prize"`
	ParticipantID *uuid.UUID `json:"participant_id,omitempty" db:"participant_id"`
}
