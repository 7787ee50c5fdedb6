package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/bracketops/tournament-engine/models"
)

var (
	ErrMatchNotFound          = errors.New("match not found")
	ErrMatchPlayoffConflict   = errors.New("playoff slot already has a match")
	ErrMatchTournamentInvalid = errors.New("match references an invalid tournament")
	ErrMatchGroupInvalid      = errors.New("match references an invalid group")
)

// ListMatchesFilter narrows ListByTournament. Nil fields match everything.
type ListMatchesFilter struct {
	GroupID   *uuid.UUID
	IsPlayoff *bool
	Status    *models.MatchStatus
}

type MatchRepository interface {
	Create(ctx context.Context, exec SQLExecutor, match *models.Match) error
	GetByID(ctx context.Context, exec SQLExecutor, id uuid.UUID) (*models.Match, error)
	GetByPlayoffMatchID(ctx context.Context, exec SQLExecutor, playoffMatchID uuid.UUID) (*models.Match, error)
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID uuid.UUID, filter ListMatchesFilter) ([]models.Match, error)
	ListByGroup(ctx context.Context, exec SQLExecutor, groupID uuid.UUID) ([]models.Match, error)
	UpdateParticipants(ctx context.Context, exec SQLExecutor, id uuid.UUID, p1, p2 *uuid.UUID) error
	UpdateScores(ctx context.Context, exec SQLExecutor, id uuid.UUID, p1Score, p2Score int) error
	UpdateStatusWinner(ctx context.Context, exec SQLExecutor, id uuid.UUID, status models.MatchStatus, winnerID *uuid.UUID) error
	DeleteByTournament(ctx context.Context, exec SQLExecutor, tournamentID uuid.UUID) error
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const matchColumns = `
	id, tournament_id, number, format, status, is_playoff, group_id, playoff_match_id,
	participant1_id, participant2_id, participant1_score, participant2_score, winner_id, created_at`

func (r *postgresMatchRepository) scanMatch(scanner rowScanner) (*models.Match, error) {
	m := &models.Match{}
	err := scanner.Scan(
		&m.ID, &m.TournamentID, &m.Number, &m.Format, &m.Status, &m.IsPlayoff, &m.GroupID, &m.PlayoffMatchID,
		&m.Participant1ID, &m.Participant2ID, &m.Participant1Score, &m.Participant2Score, &m.WinnerID, &m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return m, nil
}

func (r *postgresMatchRepository) Create(ctx context.Context, exec SQLExecutor, match *models.Match) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO matches (
			tournament_id, number, format, status, is_playoff, group_id, playoff_match_id,
			participant1_id, participant2_id, participant1_score, participant2_score, winner_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query,
		match.TournamentID, match.Number, match.Format, match.Status, match.IsPlayoff,
		match.GroupID, match.PlayoffMatchID,
		match.Participant1ID, match.Participant2ID,
		match.Participant1Score, match.Participant2Score, match.WinnerID,
	).Scan(&match.ID, &match.CreatedAt)

	return r.handleMatchError(err)
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, exec SQLExecutor, id uuid.UUID) (*models.Match, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + matchColumns + ` FROM matches WHERE id = $1`
	return r.scanMatch(executor.QueryRowContext(ctx, query, id))
}

func (r *postgresMatchRepository) GetByPlayoffMatchID(ctx context.Context, exec SQLExecutor, playoffMatchID uuid.UUID) (*models.Match, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + matchColumns + ` FROM matches WHERE playoff_match_id = $1`
	return r.scanMatch(executor.QueryRowContext(ctx, query, playoffMatchID))
}

func (r *postgresMatchRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID uuid.UUID, filter ListMatchesFilter) ([]models.Match, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + matchColumns + ` FROM matches WHERE tournament_id = $1`
	args := []interface{}{tournamentID}
	argID := 2

	if filter.GroupID != nil {
		query += fmt.Sprintf(" AND group_id = $%d", argID)
		args = append(args, *filter.GroupID)
		argID++
	}
	if filter.IsPlayoff != nil {
		query += fmt.Sprintf(" AND is_playoff = $%d", argID)
		args = append(args, *filter.IsPlayoff)
		argID++
	}
	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argID)
		args = append(args, *filter.Status)
		argID++
	}

	query += ` ORDER BY number ASC`
	return r.queryMatches(ctx, executor, query, args...)
}

func (r *postgresMatchRepository) ListByGroup(ctx context.Context, exec SQLExecutor, groupID uuid.UUID) ([]models.Match, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + matchColumns + ` FROM matches WHERE group_id = $1 ORDER BY number ASC`
	return r.queryMatches(ctx, executor, query, groupID)
}

func (r *postgresMatchRepository) queryMatches(ctx context.Context, executor SQLExecutor, query string, args ...interface{}) ([]models.Match, error) {
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	matches := make([]models.Match, 0)
	for rows.Next() {
		m, scanErr := r.scanMatch(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		matches = append(matches, *m)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return matches, nil
}

func (r *postgresMatchRepository) UpdateParticipants(ctx context.Context, exec SQLExecutor, id uuid.UUID, p1, p2 *uuid.UUID) error {
	executor := r.getExecutor(exec)
	query := `UPDATE matches SET participant1_id = $1, participant2_id = $2 WHERE id = $3`
	result, err := executor.ExecContext(ctx, query, p1, p2, id)
	if err != nil {
		return r.handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) UpdateScores(ctx context.Context, exec SQLExecutor, id uuid.UUID, p1Score, p2Score int) error {
	executor := r.getExecutor(exec)
	query := `UPDATE matches SET participant1_score = $1, participant2_score = $2 WHERE id = $3`
	result, err := executor.ExecContext(ctx, query, p1Score, p2Score, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) UpdateStatusWinner(ctx context.Context, exec SQLExecutor, id uuid.UUID, status models.MatchStatus, winnerID *uuid.UUID) error {
	executor := r.getExecutor(exec)
	query := `UPDATE matches SET status = $1, winner_id = $2 WHERE id = $3`
	result, err := executor.ExecContext(ctx, query, status, winnerID, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

// DeleteByTournament removes every match of a tournament; maps follow through
// ON DELETE CASCADE.
func (r *postgresMatchRepository) DeleteByTournament(ctx context.Context, exec SQLExecutor, tournamentID uuid.UUID) error {
	executor := r.getExecutor(exec)
	_, err := executor.ExecContext(ctx, `DELETE FROM matches WHERE tournament_id = $1`, tournamentID)
	return err
}

func (r *postgresMatchRepository) handleMatchError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "23505":
			if pqErr.Constraint == "matches_playoff_match_id_key" {
				return ErrMatchPlayoffConflict
			}
		case "23503":
			switch pqErr.Constraint {
			case "matches_tournament_id_fkey":
				return ErrMatchTournamentInvalid
			case "matches_group_id_fkey":
				return ErrMatchGroupInvalid
			}
		}
	}
	return err
}
