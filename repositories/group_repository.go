package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/bracketops/tournament-engine/models"
)

var (
	ErrGroupStageNotFound = errors.New("group stage not found")
	ErrGroupNotFound      = errors.New("group not found")
	ErrGroupRowNotFound   = errors.New("group row not found")
)

type GroupRepository interface {
	CreateStage(ctx context.Context, exec SQLExecutor, stage *models.GroupStage) error
	GetStageByTournament(ctx context.Context, exec SQLExecutor, tournamentID uuid.UUID) (*models.GroupStage, error)
	DeleteStageByTournament(ctx context.Context, exec SQLExecutor, tournamentID uuid.UUID) error

	CreateGroup(ctx context.Context, exec SQLExecutor, group *models.Group) error
	ListGroupsByStage(ctx context.Context, exec SQLExecutor, stageID uuid.UUID) ([]models.Group, error)
	GetGroupByID(ctx context.Context, exec SQLExecutor, id uuid.UUID) (*models.Group, error)

	CreateRow(ctx context.Context, exec SQLExecutor, row *models.GroupRow) error
	ListRowsByGroup(ctx context.Context, exec SQLExecutor, groupID uuid.UUID) ([]models.GroupRow, error)
	ListTopRows(ctx context.Context, exec SQLExecutor, groupID uuid.UUID, limit int) ([]models.GroupRow, error)
	GetRowByParticipant(ctx context.Context, exec SQLExecutor, groupID, participantID uuid.UUID) (*models.GroupRow, error)
	UpdateRow(ctx context.Context, exec SQLExecutor, row *models.GroupRow) error
}

type postgresGroupRepository struct {
	db *sql.DB
}

func NewPostgresGroupRepository(db *sql.DB) GroupRepository {
	return &postgresGroupRepository{db: db}
}

func (r *postgresGroupRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresGroupRepository) CreateStage(ctx context.Context, exec SQLExecutor, stage *models.GroupStage) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO group_stages (tournament_id, winners_bracket_qualified)
		VALUES ($1, $2)
		RETURNING id`
	return executor.QueryRowContext(ctx, query, stage.TournamentID, stage.WinnersBracketQualified).
		Scan(&stage.ID)
}

func (r *postgresGroupRepository) GetStageByTournament(ctx context.Context, exec SQLExecutor, tournamentID uuid.UUID) (*models.GroupStage, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT id, tournament_id, winners_bracket_qualified
		FROM group_stages
		WHERE tournament_id = $1`

	stage := &models.GroupStage{}
	err := executor.QueryRowContext(ctx, query, tournamentID).
		Scan(&stage.ID, &stage.TournamentID, &stage.WinnersBracketQualified)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGroupStageNotFound
		}
		return nil, err
	}
	return stage, nil
}

// DeleteStageByTournament removes the stage; groups and rows go with it
// through ON DELETE CASCADE.
func (r *postgresGroupRepository) DeleteStageByTournament(ctx context.Context, exec SQLExecutor, tournamentID uuid.UUID) error {
	executor := r.getExecutor(exec)
	_, err := executor.ExecContext(ctx, `DELETE FROM group_stages WHERE tournament_id = $1`, tournamentID)
	return err
}

func (r *postgresGroupRepository) CreateGroup(ctx context.Context, exec SQLExecutor, group *models.Group) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO groups (group_stage_id, letter, max_participants)
		VALUES ($1, $2, $3)
		RETURNING id`
	return executor.QueryRowContext(ctx, query, group.GroupStageID, group.Letter, group.MaxParticipants).
		Scan(&group.ID)
}

func (r *postgresGroupRepository) ListGroupsByStage(ctx context.Context, exec SQLExecutor, stageID uuid.UUID) ([]models.Group, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT id, group_stage_id, letter, max_participants
		FROM groups
		WHERE group_stage_id = $1
		ORDER BY letter ASC`

	rows, err := executor.QueryContext(ctx, query, stageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	groups := make([]models.Group, 0)
	for rows.Next() {
		var g models.Group
		if scanErr := rows.Scan(&g.ID, &g.GroupStageID, &g.Letter, &g.MaxParticipants); scanErr != nil {
			return nil, scanErr
		}
		groups = append(groups, g)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return groups, nil
}

func (r *postgresGroupRepository) GetGroupByID(ctx context.Context, exec SQLExecutor, id uuid.UUID) (*models.Group, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT id, group_stage_id, letter, max_participants
		FROM groups
		WHERE id = $1`

	g := &models.Group{}
	err := executor.QueryRowContext(ctx, query, id).
		Scan(&g.ID, &g.GroupStageID, &g.Letter, &g.MaxParticipants)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGroupNotFound
		}
		return nil, err
	}
	return g, nil
}

func (r *postgresGroupRepository) CreateRow(ctx context.Context, exec SQLExecutor, row *models.GroupRow) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO group_rows (group_id, participant_id, place, wins, draws, losses)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	return executor.QueryRowContext(ctx, query,
		row.GroupID, row.ParticipantID, row.Place, row.Wins, row.Draws, row.Losses,
	).Scan(&row.ID)
}

func (r *postgresGroupRepository) scanRow(scanner rowScanner) (*models.GroupRow, error) {
	row := &models.GroupRow{}
	err := scanner.Scan(&row.ID, &row.GroupID, &row.ParticipantID, &row.Place, &row.Wins, &row.Draws, &row.Losses)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGroupRowNotFound
		}
		return nil, err
	}
	return row, nil
}

func (r *postgresGroupRepository) ListRowsByGroup(ctx context.Context, exec SQLExecutor, groupID uuid.UUID) ([]models.GroupRow, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT id, group_id, participant_id, place, wins, draws, losses
		FROM group_rows
		WHERE group_id = $1
		ORDER BY place ASC, wins DESC, id ASC`
	return r.queryRows(ctx, executor, query, groupID)
}

// ListTopRows returns a group's occupied rows ordered by standing,
// best place first.
func (r *postgresGroupRepository) ListTopRows(ctx context.Context, exec SQLExecutor, groupID uuid.UUID, limit int) ([]models.GroupRow, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT id, group_id, participant_id, place, wins, draws, losses
		FROM group_rows
		WHERE group_id = $1 AND participant_id IS NOT NULL
		ORDER BY place ASC, wins DESC
		LIMIT $2`
	return r.queryRows(ctx, executor, query, groupID, limit)
}

func (r *postgresGroupRepository) queryRows(ctx context.Context, executor SQLExecutor, query string, args ...interface{}) ([]models.GroupRow, error) {
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]models.GroupRow, 0)
	for rows.Next() {
		gr, scanErr := r.scanRow(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		result = append(result, *gr)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *postgresGroupRepository) GetRowByParticipant(ctx context.Context, exec SQLExecutor, groupID, participantID uuid.UUID) (*models.GroupRow, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT id, group_id, participant_id, place, wins, draws, losses
		FROM group_rows
		WHERE group_id = $1 AND participant_id = $2`
	return r.scanRow(executor.QueryRowContext(ctx, query, groupID, participantID))
}

func (r *postgresGroupRepository) UpdateRow(ctx context.Context, exec SQLExecutor, row *models.GroupRow) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE group_rows SET
			participant_id = $1, place = $2, wins = $3, draws = $4, losses = $5
		WHERE id = $6`
	result, err := executor.ExecContext(ctx, query,
		row.ParticipantID, row.Place, row.Wins, row.Draws, row.Losses, row.ID,
	)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrGroupRowNotFound)
}
