package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/bracketops/tournament-engine/brackets"
	"github.com/bracketops/tournament-engine/models"
	"github.com/bracketops/tournament-engine/realtime"
	"github.com/bracketops/tournament-engine/repositories"
)

var (
	ErrMatchAlreadyCompleted    = fmt.Errorf("%w: match is already completed", ErrValidation)
	ErrMatchNotPlayable         = fmt.Errorf("%w: match is not scheduled or ongoing", ErrInvalidState)
	ErrMatchNotScheduled        = fmt.Errorf("%w: match is not scheduled", ErrInvalidState)
	ErrMatchMapsExist           = fmt.Errorf("%w: match already has maps", ErrInvalidState)
	ErrMatchParticipantsMissing = fmt.Errorf("%w: match does not have two participants", ErrValidation)
	ErrMapAlreadyCompleted      = fmt.Errorf("%w: map already completed", ErrValidation)
	ErrMapNotInMatch            = fmt.Errorf("%w: map does not belong to this match", ErrValidation)
	ErrWinnerRequired           = fmt.Errorf("%w: a winner is required to complete this match", ErrValidation)
	ErrDrawNotAllowed           = fmt.Errorf("%w: this match cannot end in a draw", ErrValidation)
)

// MatchEventPayload is what match lifecycle events carry over the wire.
type MatchEventPayload struct {
	TournamentID uuid.UUID     `json:"tournament_id"`
	Match        *models.Match `json:"match"`
}

// MapEventPayload announces a single decided map.
type MapEventPayload struct {
	TournamentID uuid.UUID   `json:"tournament_id"`
	MatchID      uuid.UUID   `json:"match_id"`
	Map          *models.Map `json:"map"`
}

// GroupStageCompletedPayload announces that every group match is decided
// and the playoff has been seeded from the standings.
type GroupStageCompletedPayload struct {
	TournamentID uuid.UUID `json:"tournament_id"`
}

// UpdateMatchResultInput is a partial result edit. Nil fields keep the
// stored value.
type UpdateMatchResultInput struct {
	WinnerID          *uuid.UUID          `json:"winner_id"`
	Status            *models.MatchStatus `json:"status"`
	Participant1Score *int                `json:"participant1_score"`
	Participant2Score *int                `json:"participant2_score"`
}

type MatchService interface {
	GetMatch(ctx context.Context, matchID uuid.UUID) (*models.Match, error)
	ListByTournament(ctx context.Context, tournamentID uuid.UUID, filter repositories.ListMatchesFilter) ([]models.Match, error)
	StartMatch(ctx context.Context, matchID uuid.UUID) (*models.Match, error)
	CompleteMap(ctx context.Context, matchID, mapID uuid.UUID, winnerID *uuid.UUID) (*models.Match, error)
	CompleteMatch(ctx context.Context, matchID uuid.UUID, winnerID *uuid.UUID) (*models.Match, error)
	UpdateMatchResult(ctx context.Context, matchID, callerID uuid.UUID, input UpdateMatchResultInput) (*models.Match, error)
}

type matchService struct {
	db             *sql.DB
	tournamentRepo repositories.TournamentRepository
	matchRepo      repositories.MatchRepository
	mapRepo        repositories.MapRepository
	groupRepo      repositories.GroupRepository
	playoffRepo    repositories.PlayoffRepository
	userRepo       repositories.UserRepository
	bracketSvc     BracketService
	progression    *progression
	broadcaster    Broadcaster
}

func NewMatchService(
	db *sql.DB,
	tournamentRepo repositories.TournamentRepository,
	matchRepo repositories.MatchRepository,
	mapRepo repositories.MapRepository,
	groupRepo repositories.GroupRepository,
	playoffRepo repositories.PlayoffRepository,
	prizeRepo repositories.PrizeRepository,
	userRepo repositories.UserRepository,
	bracketSvc BracketService,
	broadcaster Broadcaster,
) MatchService {
	return &matchService{
		db:             db,
		tournamentRepo: tournamentRepo,
		matchRepo:      matchRepo,
		mapRepo:        mapRepo,
		groupRepo:      groupRepo,
		playoffRepo:    playoffRepo,
		userRepo:       userRepo,
		bracketSvc:     bracketSvc,
		progression:    newProgression(tournamentRepo, matchRepo, playoffRepo, prizeRepo),
		broadcaster:    broadcaster,
	}
}

func (s *matchService) GetMatch(ctx context.Context, matchID uuid.UUID) (*models.Match, error) {
	match, err := s.matchRepo.GetByID(ctx, nil, matchID)
	if err != nil {
		return nil, notFound(fmt.Errorf("load match: %w", err), repositories.ErrMatchNotFound, "match")
	}
	maps, err := s.mapRepo.ListByMatch(ctx, nil, matchID)
	if err != nil {
		return nil, fmt.Errorf("load maps: %w", err)
	}
	match.Maps = maps
	return match, nil
}

func (s *matchService) ListByTournament(ctx context.Context, tournamentID uuid.UUID, filter repositories.ListMatchesFilter) ([]models.Match, error) {
	if _, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID); err != nil {
		return nil, notFound(fmt.Errorf("load tournament: %w", err), repositories.ErrTournamentNotFound, "tournament")
	}
	matches, err := s.matchRepo.ListByTournament(ctx, nil, tournamentID, filter)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	return matches, nil
}

// StartMatch moves a scheduled match with both participants to ongoing and
// creates one map row per map of its format.
func (s *matchService) StartMatch(ctx context.Context, matchID uuid.UUID) (*models.Match, error) {
	var (
		match  *models.Match
		events eventCollector
		roomID uuid.UUID
	)
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		match, err = s.matchRepo.GetByID(ctx, tx, matchID)
		if err != nil {
			return notFound(fmt.Errorf("load match: %w", err), repositories.ErrMatchNotFound, "match")
		}
		roomID = match.TournamentID
		if match.Status != models.MatchScheduled {
			return ErrMatchNotScheduled
		}
		if match.ParticipantCount() != 2 {
			return ErrMatchParticipantsMissing
		}
		existing, err := s.mapRepo.ListByMatch(ctx, tx, matchID)
		if err != nil {
			return fmt.Errorf("list maps: %w", err)
		}
		if len(existing) > 0 {
			return ErrMatchMapsExist
		}

		count, err := match.Format.MapCount()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}
		maps := make([]*models.Map, count)
		for i := range maps {
			maps[i] = &models.Map{MatchID: match.ID, Number: i + 1}
		}
		if err := s.mapRepo.CreateBatch(ctx, tx, maps); err != nil {
			return fmt.Errorf("create maps: %w", err)
		}
		if err := s.matchRepo.UpdateStatusWinner(ctx, tx, match.ID, models.MatchOngoing, nil); err != nil {
			return fmt.Errorf("mark match ongoing: %w", err)
		}
		match.Status = models.MatchOngoing
		for i := range maps {
			match.Maps = append(match.Maps, *maps[i])
		}
		events.add(realtime.EventMatchStarted, MatchEventPayload{TournamentID: match.TournamentID, Match: match})
		return nil
	})
	if err != nil {
		return nil, err
	}
	publishEvents(s.broadcaster, roomID, &events)
	return match, nil
}

// CompleteMap records a map winner and bumps the match score. The match is
// decided as soon as one side's score cannot be caught, or once every map
// is decided. Completing a map with no winner is a no-op: a drawn map stays
// open for a later verdict.
func (s *matchService) CompleteMap(ctx context.Context, matchID, mapID uuid.UUID, winnerID *uuid.UUID) (*models.Match, error) {
	var (
		match  *models.Match
		events eventCollector
		roomID uuid.UUID
	)
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		match, err = s.matchRepo.GetByID(ctx, tx, matchID)
		if err != nil {
			return notFound(fmt.Errorf("load match: %w", err), repositories.ErrMatchNotFound, "match")
		}
		roomID = match.TournamentID
		if match.Status != models.MatchScheduled && match.Status != models.MatchOngoing {
			return ErrMatchNotPlayable
		}
		tournament, err := s.tournamentRepo.GetByID(ctx, tx, match.TournamentID)
		if err != nil {
			return notFound(fmt.Errorf("load tournament: %w", err), repositories.ErrTournamentNotFound, "tournament")
		}

		gameMap, err := s.mapRepo.GetByID(ctx, tx, mapID)
		if err != nil {
			return notFound(fmt.Errorf("load map: %w", err), repositories.ErrMapNotFound, "map")
		}
		if gameMap.MatchID != match.ID {
			return ErrMapNotInMatch
		}
		if gameMap.WinnerID != nil {
			return ErrMapAlreadyCompleted
		}
		if winnerID == nil {
			return nil
		}

		if sole := match.SoleParticipant(); sole != nil {
			if err := s.mapRepo.UpdateWinner(ctx, tx, gameMap.ID, sole); err != nil {
				return fmt.Errorf("record map winner: %w", err)
			}
			gameMap.WinnerID = sole
			events.add(realtime.EventMapCompleted, MapEventPayload{TournamentID: tournament.ID, MatchID: match.ID, Map: gameMap})
			return s.completeMatchTx(ctx, tx, tournament, match, sole, &events)
		}
		if !match.HasParticipant(*winnerID) {
			return ErrWinnerNotParticipant
		}

		if err := s.mapRepo.UpdateWinner(ctx, tx, gameMap.ID, winnerID); err != nil {
			return fmt.Errorf("record map winner: %w", err)
		}
		gameMap.WinnerID = winnerID
		if match.Participant1ID != nil && *winnerID == *match.Participant1ID {
			match.Participant1Score++
		} else {
			match.Participant2Score++
		}
		if err := s.matchRepo.UpdateScores(ctx, tx, match.ID, match.Participant1Score, match.Participant2Score); err != nil {
			return fmt.Errorf("update score: %w", err)
		}
		events.add(realtime.EventMapCompleted, MapEventPayload{TournamentID: tournament.ID, MatchID: match.ID, Map: gameMap})

		maps, err := s.mapRepo.ListByMatch(ctx, tx, match.ID)
		if err != nil {
			return fmt.Errorf("list maps: %w", err)
		}
		match.Maps = maps

		count, err := match.Format.MapCount()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}
		switch {
		case match.Participant1Score > count/2:
			return s.completeMatchTx(ctx, tx, tournament, match, match.Participant1ID, &events)
		case match.Participant2Score > count/2:
			return s.completeMatchTx(ctx, tx, tournament, match, match.Participant2ID, &events)
		}

		for i := range maps {
			if maps[i].WinnerID == nil {
				return nil
			}
		}
		switch {
		case match.Participant1Score == match.Participant2Score:
			return s.completeMatchTx(ctx, tx, tournament, match, nil, &events)
		case match.Participant1Score > match.Participant2Score:
			return s.completeMatchTx(ctx, tx, tournament, match, match.Participant1ID, &events)
		default:
			return s.completeMatchTx(ctx, tx, tournament, match, match.Participant2ID, &events)
		}
	})
	if err != nil {
		return nil, err
	}
	publishEvents(s.broadcaster, roomID, &events)
	return match, nil
}

// CompleteMatch decides a match directly, without going through maps.
func (s *matchService) CompleteMatch(ctx context.Context, matchID uuid.UUID, winnerID *uuid.UUID) (*models.Match, error) {
	var (
		match  *models.Match
		events eventCollector
		roomID uuid.UUID
	)
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		match, err = s.matchRepo.GetByID(ctx, tx, matchID)
		if err != nil {
			return notFound(fmt.Errorf("load match: %w", err), repositories.ErrMatchNotFound, "match")
		}
		roomID = match.TournamentID
		tournament, err := s.tournamentRepo.GetByID(ctx, tx, match.TournamentID)
		if err != nil {
			return notFound(fmt.Errorf("load tournament: %w", err), repositories.ErrTournamentNotFound, "tournament")
		}
		return s.completeMatchTx(ctx, tx, tournament, match, winnerID, &events)
	})
	if err != nil {
		return nil, err
	}
	publishEvents(s.broadcaster, roomID, &events)
	return match, nil
}

// completeMatchTx settles a match and runs everything the decision implies:
// standings and possible playoff seeding for a group match, bracket
// propagation for a playoff match, and tournament completion when the final
// was the last open match. A cancelled match may be re-completed; only a
// completed one is final.
func (s *matchService) completeMatchTx(ctx context.Context, tx *sql.Tx, tournament *models.Tournament, match *models.Match, winnerID *uuid.UUID, events *eventCollector) error {
	if match.Status == models.MatchCompleted {
		return ErrMatchAlreadyCompleted
	}

	status := models.MatchCompleted
	switch match.ParticipantCount() {
	case 0:
		if !match.IsPlayoff {
			return ErrMatchParticipantsMissing
		}
		winnerID = nil
		status = models.MatchCancelled
	case 1:
		if !match.IsPlayoff {
			return ErrMatchParticipantsMissing
		}
		winnerID = match.SoleParticipant()
		status = models.MatchCancelled
	default:
		if winnerID == nil {
			if match.IsPlayoff {
				return ErrWinnerRequired
			}
			if match.Format != models.FormatBo2 {
				return ErrDrawNotAllowed
			}
		} else if !match.HasParticipant(*winnerID) {
			return ErrWinnerNotParticipant
		}
	}

	if err := s.matchRepo.UpdateStatusWinner(ctx, tx, match.ID, status, winnerID); err != nil {
		return fmt.Errorf("decide match: %w", err)
	}
	match.Status = status
	match.WinnerID = winnerID
	events.add(realtime.EventMatchCompleted, MatchEventPayload{TournamentID: tournament.ID, Match: match})

	if match.IsPlayoff {
		if match.PlayoffMatchID == nil {
			return fmt.Errorf("%w: playoff match has no bracket node", ErrInvalidState)
		}
		if err := s.progression.advanceDecided(ctx, tx, *match.PlayoffMatchID, winnerID); err != nil {
			return err
		}
	} else {
		if err := s.applyGroupResult(ctx, tx, match, winnerID); err != nil {
			return err
		}
		if err := s.completeGroupStageIfReady(ctx, tx, tournament, events); err != nil {
			return err
		}
	}

	done, err := s.progression.completeTournamentIfReady(ctx, tx, tournament)
	if err != nil {
		return err
	}
	if done {
		events.add(realtime.EventTournamentCompleted, tournament)
	}
	return nil
}

// applyGroupResult books the outcome into both standings rows and resorts
// the group's places.
func (s *matchService) applyGroupResult(ctx context.Context, tx *sql.Tx, match *models.Match, winnerID *uuid.UUID) error {
	if match.GroupID == nil {
		return fmt.Errorf("%w: group match has no group", ErrInvalidState)
	}
	row1, err := s.groupRepo.GetRowByParticipant(ctx, tx, *match.GroupID, *match.Participant1ID)
	if err != nil {
		return fmt.Errorf("load standings row: %w", err)
	}
	row2, err := s.groupRepo.GetRowByParticipant(ctx, tx, *match.GroupID, *match.Participant2ID)
	if err != nil {
		return fmt.Errorf("load standings row: %w", err)
	}

	switch {
	case winnerID == nil:
		row1.Draws++
		row2.Draws++
	case *winnerID == *match.Participant1ID:
		row1.Wins++
		row2.Losses++
	default:
		row2.Wins++
		row1.Losses++
	}
	if err := s.groupRepo.UpdateRow(ctx, tx, row1); err != nil {
		return fmt.Errorf("update standings row: %w", err)
	}
	if err := s.groupRepo.UpdateRow(ctx, tx, row2); err != nil {
		return fmt.Errorf("update standings row: %w", err)
	}

	rows, err := s.groupRepo.ListRowsByGroup(ctx, tx, *match.GroupID)
	if err != nil {
		return fmt.Errorf("list standings: %w", err)
	}
	brackets.SortStandings(rows)
	for i := range rows {
		if err := s.groupRepo.UpdateRow(ctx, tx, &rows[i]); err != nil {
			return fmt.Errorf("persist standings: %w", err)
		}
	}
	return nil
}

// completeGroupStageIfReady seeds the playoff from the standings once every
// group match is decided. An already seeded bracket counts as done, not as
// a failure, so repeated completion cascades stay idempotent.
func (s *matchService) completeGroupStageIfReady(ctx context.Context, tx *sql.Tx, tournament *models.Tournament, events *eventCollector) error {
	groupOnly := false
	matches, err := s.matchRepo.ListByTournament(ctx, tx, tournament.ID, repositories.ListMatchesFilter{IsPlayoff: &groupOnly})
	if err != nil {
		return fmt.Errorf("list group matches: %w", err)
	}
	for i := range matches {
		if !matches[i].Decided() {
			return nil
		}
	}

	if err := s.bracketSvc.SeedPlayoffFromGroups(ctx, tx, tournament); err != nil {
		if errors.Is(err, ErrPlayoffAlreadySeeded) {
			return nil
		}
		return err
	}
	events.add(realtime.EventGroupStageCompleted, GroupStageCompletedPayload{TournamentID: tournament.ID})
	return nil
}

// UpdateMatchResult lets the tournament creator or an admin overwrite a
// result directly. The edit is stored as given and never cascades into the
// bracket or the standings.
func (s *matchService) UpdateMatchResult(ctx context.Context, matchID, callerID uuid.UUID, input UpdateMatchResultInput) (*models.Match, error) {
	var (
		match  *models.Match
		events eventCollector
		roomID uuid.UUID
	)
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		match, err = s.matchRepo.GetByID(ctx, tx, matchID)
		if err != nil {
			return notFound(fmt.Errorf("load match: %w", err), repositories.ErrMatchNotFound, "match")
		}
		roomID = match.TournamentID
		tournament, err := s.tournamentRepo.GetByID(ctx, tx, match.TournamentID)
		if err != nil {
			return notFound(fmt.Errorf("load tournament: %w", err), repositories.ErrTournamentNotFound, "tournament")
		}
		if err := requireCreatorOrAdmin(ctx, s.userRepo, tournament.CreatorID, callerID); err != nil {
			return err
		}
		if match.Status == models.MatchCompleted {
			return ErrMatchAlreadyCompleted
		}

		if match.ParticipantCount() == 0 {
			if err := s.matchRepo.UpdateStatusWinner(ctx, tx, match.ID, models.MatchCancelled, nil); err != nil {
				return fmt.Errorf("cancel match: %w", err)
			}
			match.Status = models.MatchCancelled
			match.WinnerID = nil
			events.add(realtime.EventMatchUpdated, MatchEventPayload{TournamentID: tournament.ID, Match: match})
			return nil
		}

		if input.Status != nil && !input.Status.Valid() {
			return fmt.Errorf("%w: unknown match status %q", ErrValidation, *input.Status)
		}
		if input.WinnerID != nil && !match.HasParticipant(*input.WinnerID) {
			return ErrWinnerNotParticipant
		}

		status := match.Status
		if input.Status != nil {
			status = *input.Status
		}
		winnerID := match.WinnerID
		if input.WinnerID != nil {
			winnerID = input.WinnerID
		}
		if status == models.MatchCompleted && winnerID == nil {
			return ErrWinnerRequired
		}

		p1Score := match.Participant1Score
		if input.Participant1Score != nil {
			p1Score = *input.Participant1Score
		}
		p2Score := match.Participant2Score
		if input.Participant2Score != nil {
			p2Score = *input.Participant2Score
		}
		if p1Score < 0 || p2Score < 0 {
			return fmt.Errorf("%w: scores must not be negative", ErrValidation)
		}

		if err := s.matchRepo.UpdateScores(ctx, tx, match.ID, p1Score, p2Score); err != nil {
			return fmt.Errorf("update scores: %w", err)
		}
		if err := s.matchRepo.UpdateStatusWinner(ctx, tx, match.ID, status, winnerID); err != nil {
			return fmt.Errorf("update result: %w", err)
		}
		match.Participant1Score = p1Score
		match.Participant2Score = p2Score
		match.Status = status
		match.WinnerID = winnerID
		events.add(realtime.EventMatchUpdated, MatchEventPayload{TournamentID: tournament.ID, Match: match})
		return nil
	})
	if err != nil {
		return nil, err
	}
	publishEvents(s.broadcaster, roomID, &events)
	return match, nil
}
