package services

import (
	"errors"
	"fmt"
)

// The four base sentinels. Every error a service returns wraps exactly one
// of them, so the transport layer can translate with errors.Is without
// knowing the specific failure.
var (
	ErrValidation   = errors.New("validation failed")
	ErrInvalidState = errors.New("operation not allowed in the current state")
	ErrNotFound     = errors.New("requested resource not found")
	ErrPermission   = errors.New("operation not allowed for the current user")
)

// Errors shared by more than one service. Errors tied to a single service
// are declared next to it.
var (
	ErrTournamentNotOpen     = fmt.Errorf("%w: tournament is not open", ErrInvalidState)
	ErrTournamentNotOngoing  = fmt.Errorf("%w: tournament is not ongoing", ErrInvalidState)
	ErrNotEnoughParticipants = fmt.Errorf("%w: at least 2 participants are required", ErrValidation)
	ErrPlayoffStageMissing   = fmt.Errorf("%w: tournament has no playoff stage", ErrInvalidState)
	ErrWinnerNotParticipant  = fmt.Errorf("%w: winner must be one of the match participants", ErrValidation)
)
