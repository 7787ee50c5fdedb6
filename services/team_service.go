package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/bracketops/tournament-engine/models"
	"github.com/bracketops/tournament-engine/repositories"
)

var (
	ErrTeamNameRequired = fmt.Errorf("%w: team name must not be empty", ErrValidation)
	ErrTeamNameTaken    = fmt.Errorf("%w: team name is already taken", ErrValidation)
	ErrTeamRegistered   = fmt.Errorf("%w: team is registered in an active tournament", ErrInvalidState)
)

type CreateTeamInput struct {
	Name string `json:"name"`
}

type UpdateTeamInput struct {
	Name      *string    `json:"name,omitempty"`
	CaptainID *uuid.UUID `json:"captain_id,omitempty"`
}

// TeamService manages teams. The creator of a team becomes its captain and
// only the captain or an admin can change or delete it.
type TeamService interface {
	CreateTeam(ctx context.Context, callerID uuid.UUID, input CreateTeamInput) (*models.Team, error)
	GetTeam(ctx context.Context, id uuid.UUID) (*models.Team, error)
	UpdateTeam(ctx context.Context, id, callerID uuid.UUID, input UpdateTeamInput) (*models.Team, error)
	DeleteTeam(ctx context.Context, id, callerID uuid.UUID) error
}

type teamService struct {
	teamRepo       repositories.TeamRepository
	userRepo       repositories.UserRepository
	tournamentRepo repositories.TournamentRepository
}

func NewTeamService(
	teamRepo repositories.TeamRepository,
	userRepo repositories.UserRepository,
	tournamentRepo repositories.TournamentRepository,
) TeamService {
	return &teamService{
		teamRepo:       teamRepo,
		userRepo:       userRepo,
		tournamentRepo: tournamentRepo,
	}
}

func (s *teamService) CreateTeam(ctx context.Context, callerID uuid.UUID, input CreateTeamInput) (*models.Team, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrTeamNameRequired
	}

	team := &models.Team{
		Name:      name,
		CaptainID: callerID,
	}
	if err := s.teamRepo.Create(ctx, team); err != nil {
		switch {
		case errors.Is(err, repositories.ErrTeamNameConflict):
			return nil, ErrTeamNameTaken
		case errors.Is(err, repositories.ErrTeamCaptainInvalid):
			return nil, fmt.Errorf("%w: captain", ErrNotFound)
		}
		return nil, fmt.Errorf("create team: %w", err)
	}
	return team, nil
}

func (s *teamService) GetTeam(ctx context.Context, id uuid.UUID) (*models.Team, error) {
	team, err := s.teamRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(fmt.Errorf("load team: %w", err), repositories.ErrTeamNotFound, "team")
	}
	if team.Captain != nil {
		team.Captain.PasswordHash = ""
	}
	return team, nil
}

func (s *teamService) UpdateTeam(ctx context.Context, id, callerID uuid.UUID, input UpdateTeamInput) (*models.Team, error) {
	team, err := s.teamRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(fmt.Errorf("load team: %w", err), repositories.ErrTeamNotFound, "team")
	}
	if err := s.requireCaptainOrAdmin(ctx, team, callerID); err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, ErrTeamNameRequired
		}
		team.Name = name
	}
	if input.CaptainID != nil && *input.CaptainID != team.CaptainID {
		captain, err := s.userRepo.GetByID(ctx, *input.CaptainID)
		if err != nil {
			return nil, notFound(fmt.Errorf("load new captain: %w", err), repositories.ErrUserNotFound, "user")
		}
		team.CaptainID = captain.ID
		team.Captain = captain
	}

	if err := s.teamRepo.Update(ctx, team); err != nil {
		switch {
		case errors.Is(err, repositories.ErrTeamNotFound):
			return nil, notFound(err, repositories.ErrTeamNotFound, "team")
		case errors.Is(err, repositories.ErrTeamNameConflict):
			return nil, ErrTeamNameTaken
		case errors.Is(err, repositories.ErrTeamCaptainInvalid):
			return nil, fmt.Errorf("%w: captain", ErrNotFound)
		}
		return nil, fmt.Errorf("update team: %w", err)
	}

	if team.Captain != nil {
		team.Captain.PasswordHash = ""
	}
	return team, nil
}

// DeleteTeam removes a team. Registrations do not cascade, so a team that is
// still registered in an open or ongoing tournament cannot be deleted.
func (s *teamService) DeleteTeam(ctx context.Context, id, callerID uuid.UUID) error {
	team, err := s.teamRepo.GetByID(ctx, id)
	if err != nil {
		return notFound(fmt.Errorf("load team: %w", err), repositories.ErrTeamNotFound, "team")
	}
	if err := s.requireCaptainOrAdmin(ctx, team, callerID); err != nil {
		return err
	}

	tournaments, err := s.tournamentRepo.ListByParticipant(ctx, id)
	if err != nil {
		return fmt.Errorf("list team tournaments: %w", err)
	}
	for _, t := range tournaments {
		if t.Status == models.TournamentOpen || t.Status == models.TournamentOngoing {
			return ErrTeamRegistered
		}
	}

	if err := s.teamRepo.Delete(ctx, id); err != nil {
		return notFound(fmt.Errorf("delete team: %w", err), repositories.ErrTeamNotFound, "team")
	}
	return nil
}

func (s *teamService) requireCaptainOrAdmin(ctx context.Context, team *models.Team, callerID uuid.UUID) error {
	if team.CaptainID == callerID {
		return nil
	}
	caller, err := s.userRepo.GetByID(ctx, callerID)
	if err != nil {
		return notFound(fmt.Errorf("load caller: %w", err), repositories.ErrUserNotFound, "user")
	}
	if caller.Role != models.RoleAdmin {
		return fmt.Errorf("%w: only the team captain or an admin can manage the team", ErrPermission)
	}
	return nil
}
