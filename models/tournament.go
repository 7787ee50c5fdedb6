package models

import (
	"time"

	"github.com/google/uuid"
)

// TournamentStatus mirrors the tournament_status ENUM in the database.
type TournamentStatus string

const (
	TournamentOpen      TournamentStatus = "open"
	TournamentOngoing   TournamentStatus = "ongoing"
	TournamentCompleted TournamentStatus = "completed"
	TournamentCancelled TournamentStatus = "cancelled"
)

// TournamentKind discriminates what a participant id refers to:
// a user for solo tournaments, a team for team tournaments.
type TournamentKind string

const (
	KindSolo TournamentKind = "solo"
	KindTeam TournamentKind = "team"
)

// Valid reports whether the kind is a known participant discriminator.
func (k TournamentKind) Valid() bool {
	return k == KindSolo || k == KindTeam
}

// Tournament is the root aggregate of the engine.
type Tournament struct {
	ID              uuid.UUID        `json:"id" db:"id"`
	CreatorID       uuid.UUID        `json:"creator_id" db:"creator_id"`
	GameID          uuid.UUID        `json:"game_id" db:"game_id"`
	Title           string           `json:"title" db:"title"`
	Description     *string          `json:"description,omitempty" db:"description"`
	Contact         *string          `json:"contact,omitempty" db:"contact"`
	StartTime       time.Time        `json:"start_time" db:"start_time"`
	PrizeFund       string           `json:"prize_fund" db:"prize_fund"`
	MaxParticipants int              `json:"max_participants" db:"max_participants"`
	Kind            TournamentKind   `json:"kind" db:"kind"`
	Status          TournamentStatus `json:"status" db:"status"`
	MatchFormat     MatchFormat      `json:"match_format" db:"match_format"`
	FinalFormat     MatchFormat      `json:"final_format" db:"final_format"`
	BannerKey       *string          `json:"-" db:"banner_key"`
	BannerURL       *string          `json:"banner_url,omitempty" db:"-"`
	HighlightURL    *string          `json:"highlight_url,omitempty" db:"highlight_url"`
	CreatedAt       time.Time        `json:"created_at" db:"created_at"`

	// Optional related aggregates, loaded on demand.
	Game         *Game         `json:"game,omitempty" db:"-"`
	GroupStage   *GroupStage   `json:"group_stage,omitempty" db:"-"`
	PlayoffStage *PlayoffStage `json:"playoff_stage,omitempty" db:"-"`
	PrizeTable   *PrizeTable   `json:"prize_table,omitempty" db:"-"`
	Matches      []Match       `json:"matches,omitempty" db:"-"`
	Participants []uuid.UUID   `json:"participants,omitempty" db:"-"`
}

// Registration ties an opaque participant id (user or team, see Kind)
// to a tournament. Structural state built on top of registrations is
// wiped by a reset; registrations themselves survive it.
type Registration struct {
	ID            uuid.UUID `json:"id" db:"id"`
	TournamentID  uuid.UUID `json:"tournament_id" db:"tournament_id"`
	ParticipantID uuid.UUID `json:"participant_id" db:"participant_id"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// ScheduledStart is a persisted scheduler job so that pending automatic
// starts survive a process restart.
type ScheduledStart struct {
	TournamentID uuid.UUID `json:"tournament_id" db:"tournament_id"`
	JobID        string    `json:"job_id" db:"job_id"`
	StartTime    time.Time `json:"start_time" db:"start_time"`
}
