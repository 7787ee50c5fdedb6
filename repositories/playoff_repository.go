package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/bracketops/tournament-engine/models"
)

var (
	ErrPlayoffStageNotFound = errors.New("playoff stage not found")
	ErrPlayoffMatchNotFound = errors.New("playoff match not found")
)

type PlayoffRepository interface {
	CreateStage(ctx context.Context, exec SQLExecutor, stage *models.PlayoffStage) error
	GetStageByTournament(ctx context.Context, exec SQLExecutor, tournamentID uuid.UUID) (*models.PlayoffStage, error)
	DeleteStageByTournament(ctx context.Context, exec SQLExecutor, tournamentID uuid.UUID) error

	CreateMatch(ctx context.Context, exec SQLExecutor, pm *models.PlayoffMatch) error
	GetMatchByID(ctx context.Context, exec SQLExecutor, id uuid.UUID) (*models.PlayoffMatch, error)
	ListMatchesByStage(ctx context.Context, exec SQLExecutor, stageID uuid.UUID) ([]models.PlayoffMatch, error)
	ListMatchesByRound(ctx context.Context, exec SQLExecutor, stageID uuid.UUID, round int) ([]models.PlayoffMatch, error)
	FindDependent(ctx context.Context, exec SQLExecutor, feederID uuid.UUID) (*models.PlayoffMatch, error)
	UpdateWinnerTo(ctx context.Context, exec SQLExecutor, id uuid.UUID, winnerTo *uuid.UUID) error
	MaxRound(ctx context.Context, exec SQLExecutor, stageID uuid.UUID) (int, error)
}

type postgresPlayoffRepository struct {
	db *sql.DB
}

func NewPostgresPlayoffRepository(db *sql.DB) PlayoffRepository {
	return &postgresPlayoffRepository{db: db}
}

func (r *postgresPlayoffRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresPlayoffRepository) CreateStage(ctx context.Context, exec SQLExecutor, stage *models.PlayoffStage) error {
	executor := r.getExecutor(exec)
	query := `INSERT INTO playoff_stages (tournament_id) VALUES ($1) RETURNING id`
	return executor.QueryRowContext(ctx, query, stage.TournamentID).Scan(&stage.ID)
}

func (r *postgresPlayoffRepository) GetStageByTournament(ctx context.Context, exec SQLExecutor, tournamentID uuid.UUID) (*models.PlayoffStage, error) {
	executor := r.getExecutor(exec)
	query := `SELECT id, tournament_id FROM playoff_stages WHERE tournament_id = $1`

	stage := &models.PlayoffStage{}
	err := executor.QueryRowContext(ctx, query, tournamentID).Scan(&stage.ID, &stage.TournamentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlayoffStageNotFound
		}
		return nil, err
	}
	return stage, nil
}

// DeleteStageByTournament removes the stage; its nodes go with it through
// ON DELETE CASCADE.
func (r *postgresPlayoffRepository) DeleteStageByTournament(ctx context.Context, exec SQLExecutor, tournamentID uuid.UUID) error {
	executor := r.getExecutor(exec)
	_, err := executor.ExecContext(ctx, `DELETE FROM playoff_stages WHERE tournament_id = $1`, tournamentID)
	return err
}

func (r *postgresPlayoffRepository) CreateMatch(ctx context.Context, exec SQLExecutor, pm *models.PlayoffMatch) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO playoff_matches (playoff_stage_id, round, bracket, depends_on_1, depends_on_2, winner_to, loser_to)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	return executor.QueryRowContext(ctx, query,
		pm.PlayoffStageID, pm.Round, pm.Bracket, pm.DependsOn1, pm.DependsOn2, pm.WinnerTo, pm.LoserTo,
	).Scan(&pm.ID)
}

func (r *postgresPlayoffRepository) scanMatch(scanner rowScanner) (*models.PlayoffMatch, error) {
	pm := &models.PlayoffMatch{}
	err := scanner.Scan(
		&pm.ID, &pm.PlayoffStageID, &pm.Round, &pm.Bracket,
		&pm.DependsOn1, &pm.DependsOn2, &pm.WinnerTo, &pm.LoserTo,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlayoffMatchNotFound
		}
		return nil, err
	}
	return pm, nil
}

const playoffMatchColumns = `
	id, playoff_stage_id, round, bracket, depends_on_1, depends_on_2, winner_to, loser_to`

func (r *postgresPlayoffRepository) GetMatchByID(ctx context.Context, exec SQLExecutor, id uuid.UUID) (*models.PlayoffMatch, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + playoffMatchColumns + ` FROM playoff_matches WHERE id = $1`
	return r.scanMatch(executor.QueryRowContext(ctx, query, id))
}

const playoffMatchColumnsQualified = `
	pm.id, pm.playoff_stage_id, pm.round, pm.bracket,
	pm.depends_on_1, pm.depends_on_2, pm.winner_to, pm.loser_to`

// Listings join the paired match shells so nodes come back in bracket
// position order (match number), not uuid order.
func (r *postgresPlayoffRepository) ListMatchesByStage(ctx context.Context, exec SQLExecutor, stageID uuid.UUID) ([]models.PlayoffMatch, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + playoffMatchColumnsQualified + `
		FROM playoff_matches pm
		LEFT JOIN matches m ON m.playoff_match_id = pm.id
		WHERE pm.playoff_stage_id = $1
		ORDER BY pm.round ASC, m.number ASC`
	return r.queryMatches(ctx, executor, query, stageID)
}

func (r *postgresPlayoffRepository) ListMatchesByRound(ctx context.Context, exec SQLExecutor, stageID uuid.UUID, round int) ([]models.PlayoffMatch, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + playoffMatchColumnsQualified + `
		FROM playoff_matches pm
		LEFT JOIN matches m ON m.playoff_match_id = pm.id
		WHERE pm.playoff_stage_id = $1 AND pm.round = $2
		ORDER BY m.number ASC`
	return r.queryMatches(ctx, executor, query, stageID, round)
}

func (r *postgresPlayoffRepository) queryMatches(ctx context.Context, executor SQLExecutor, query string, args ...interface{}) ([]models.PlayoffMatch, error) {
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	matches := make([]models.PlayoffMatch, 0)
	for rows.Next() {
		pm, scanErr := r.scanMatch(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		matches = append(matches, *pm)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return matches, nil
}

// FindDependent locates the next-round node one of whose dependency edges
// points at feederID. Returns ErrPlayoffMatchNotFound for the final.
func (r *postgresPlayoffRepository) FindDependent(ctx context.Context, exec SQLExecutor, feederID uuid.UUID) (*models.PlayoffMatch, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + playoffMatchColumns + `
		FROM playoff_matches
		WHERE depends_on_1 = $1 OR depends_on_2 = $1`
	return r.scanMatch(executor.QueryRowContext(ctx, query, feederID))
}

func (r *postgresPlayoffRepository) UpdateWinnerTo(ctx context.Context, exec SQLExecutor, id uuid.UUID, winnerTo *uuid.UUID) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx,
		`UPDATE playoff_matches SET winner_to = $1 WHERE id = $2`, winnerTo, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrPlayoffMatchNotFound)
}

func (r *postgresPlayoffRepository) MaxRound(ctx context.Context, exec SQLExecutor, stageID uuid.UUID) (int, error) {
	executor := r.getExecutor(exec)
	var round int
	err := executor.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(round), 0) FROM playoff_matches WHERE playoff_stage_id = $1`, stageID,
	).Scan(&round)
	if err != nil {
		return 0, err
	}
	return round, nil
}
