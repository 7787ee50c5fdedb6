package models

import (
	"time"

	"github.com/google/uuid"
)

// Game is the discipline a tournament is played in.
type Game struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	LogoURL   *string   `json:"logo_url,omitempty" db:"logo_url"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
