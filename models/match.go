package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MatchStatus mirrors the match_status ENUM in the database.
type MatchStatus string

const (
	MatchScheduled MatchStatus = "scheduled"
	MatchOngoing   MatchStatus = "ongoing"
	MatchCompleted MatchStatus = "completed"
	MatchCancelled MatchStatus = "cancelled"
)

// Valid reports whether the status is one of the known lifecycle values.
func (s MatchStatus) Valid() bool {
	switch s {
	case MatchScheduled, MatchOngoing, MatchCompleted, MatchCancelled:
		return true
	}
	return false
}

// MatchFormat is a best-of series length, e.g. "bo3".
type MatchFormat string

const (
	FormatBo1 MatchFormat = "bo1"
	FormatBo2 MatchFormat = "bo2"
	FormatBo3 MatchFormat = "bo3"
	FormatBo5 MatchFormat = "bo5"
)

// Valid reports whether the format is one of the supported boN values.
func (f MatchFormat) Valid() bool {
	switch f {
	case FormatBo1, FormatBo2, FormatBo3, FormatBo5:
		return true
	}
	return false
}

// MapCount parses the N out of "boN".
func (f MatchFormat) MapCount() (int, error) {
	s := string(f)
	if !strings.HasPrefix(s, "bo") {
		return 0, fmt.Errorf("unsupported match format %q", s)
	}
	n, err := strconv.Atoi(s[2:])
	if err != nil || n < 1 {
		return 0, fmt.Errorf("unsupported match format %q", s)
	}
	return n, nil
}

// Match is a single series between two participants. Group matches carry
// GroupID, playoff matches carry PlayoffMatchID; exactly one is set.
type Match struct {
	ID                uuid.UUID   `json:"id" db:"id"`
	TournamentID      uuid.UUID   `json:"tournament_id" db:"tournament_id"`
	Number            int         `json:"number" db:"number"`
	Format            MatchFormat `json:"format" db:"format"`
	Status            MatchStatus `json:"status" db:"status"`
	IsPlayoff         bool        `json:"is_playoff" db:"is_playoff"`
	GroupID           *uuid.UUID  `json:"group_id,omitempty" db:"group_id"`
	PlayoffMatchID    *uuid.UUID  `json:"playoff_match_id,omitempty" db:"playoff_match_id"`
	Participant1ID    *uuid.UUID  `json:"participant1_id,omitempty" db:"participant1_id"`
	Participant2ID    *uuid.UUID  `json:"participant2_id,omitempty" db:"participant2_id"`
	Participant1Score int         `json:"participant1_score" db:"participant1_score"`
	Participant2Score int         `json:"participant2_score" db:"participant2_score"`
	WinnerID          *uuid.UUID  `json:"winner_id,omitempty" db:"winner_id"`
	CreatedAt         time.Time   `json:"created_at" db:"created_at"`

	Maps []Map `json:"maps,omitempty" db:"-"`
}

// Decided reports whether the match no longer awaits play.
func (m *Match) Decided() bool {
	return m.Status == MatchCompleted || m.Status == MatchCancelled
}

// HasParticipant reports whether id occupies one of the two slots.
func (m *Match) HasParticipant(id uuid.UUID) bool {
	if m.Participant1ID != nil && *m.Participant1ID == id {
		return true
	}
	return m.Participant2ID != nil && *m.Participant2ID == id
}

// ParticipantCount counts occupied slots.
func (m *Match) ParticipantCount() int {
	n := 0
	if m.Participant1ID != nil {
		n++
	}
	if m.Participant2ID != nil {
		n++
	}
	return n
}

// SoleParticipant returns the only occupied slot, or nil when the match
// has zero or two participants.
func (m *Match) SoleParticipant() *uuid.UUID {
	if m.Participant1ID != nil && m.Participant2ID == nil {
		return m.Participant1ID
	}
	if m.Participant2ID != nil && m.Participant1ID == nil {
		return m.Participant2ID
	}
	return nil
}

// Opponent returns the other slot's participant, or nil when id is not in
// the match or the other slot is empty.
func (m *Match) Opponent(id uuid.UUID) *uuid.UUID {
	if m.Participant1ID != nil && *m.Participant1ID == id {
		return m.Participant2ID
	}
	if m.Participant2ID != nil && *m.Participant2ID == id {
		return m.Participant1ID
	}
	return nil
}

// Map is one game of a boN series. WinnerID stays nil until the map is
// decided; a drawn map keeps it nil and the map remains re-completable.
type Map struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	MatchID     uuid.UUID  `json:"match_id" db:"match_id"`
	Number      int        `json:"number" db:"number"`
	ExternalURL *string    `json:"external_url,omitempty" db:"external_url"`
	WinnerID    *uuid.UUID `json:"winner_id,omitempty" db:"winner_id"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}
