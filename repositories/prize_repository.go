package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/bracketops/tournament-engine/models"
)

var (
	ErrPrizeTableNotFound   = errors.New("prize table not found")
	ErrPrizeTableDuplicate  = errors.New("tournament already has a prize table")
	ErrPrizeRowNotFound     = errors.New("prize row not found")
	ErrPrizeTableTournament = errors.New("prize table references an invalid tournament")
)

type PrizeRepository interface {
	CreateTable(ctx context.Context, exec SQLExecutor, table *models.PrizeTable) error
	GetTableByTournament(ctx context.Context, exec SQLExecutor, tournamentID uuid.UUID) (*models.PrizeTable, error)
	DeleteTableByTournament(ctx context.Context, exec SQLExecutor, tournamentID uuid.UUID) error
	CreateRow(ctx context.Context, exec SQLExecutor, row *models.PrizeTableRow) error
	ListRows(ctx context.Context, exec SQLExecutor, tableID uuid.UUID) ([]models.PrizeTableRow, error)
	SetRowParticipant(ctx context.Context, exec SQLExecutor, tableID uuid.UUID, place int, participantID uuid.UUID) error
}

type postgresPrizeRepository struct {
	db *sql.DB
}

func NewPostgresPrizeRepository(db *sql.DB) PrizeRepository {
	return &postgresPrizeRepository{db: db}
}

func (r *postgresPrizeRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresPrizeRepository) CreateTable(ctx context.Context, exec SQLExecutor, table *models.PrizeTable) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO prize_tables (tournament_id)
		VALUES ($1)
		RETURNING id`

	err := executor.QueryRowContext(ctx, query, table.TournamentID).Scan(&table.ID)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Code {
			case "23505":
				return ErrPrizeTableDuplicate
			case "23503":
				return ErrPrizeTableTournament
			}
		}
		return err
	}
	return nil
}

func (r *postgresPrizeRepository) GetTableByTournament(ctx context.Context, exec SQLExecutor, tournamentID uuid.UUID) (*models.PrizeTable, error) {
	executor := r.getExecutor(exec)
	query := `SELECT id, tournament_id FROM prize_tables WHERE tournament_id = $1`

	table := &models.PrizeTable{}
	err := executor.QueryRowContext(ctx, query, tournamentID).Scan(&table.ID, &table.TournamentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPrizeTableNotFound
		}
		return nil, err
	}
	return table, nil
}

// DeleteTableByTournament removes the table; rows follow through ON DELETE CASCADE.
func (r *postgresPrizeRepository) DeleteTableByTournament(ctx context.Context, exec SQLExecutor, tournamentID uuid.UUID) error {
	executor := r.getExecutor(exec)
	_, err := executor.ExecContext(ctx, `DELETE FROM prize_tables WHERE tournament_id = $1`, tournamentID)
	return err
}

func (r *postgresPrizeRepository) CreateRow(ctx context.Context, exec SQLExecutor, row *models.PrizeTableRow) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO prize_table_rows (prize_table_id, place, prize, participant_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	return executor.QueryRowContext(ctx, query, row.PrizeTableID, row.Place, row.Prize, row.ParticipantID).
		Scan(&row.ID)
}

func (r *postgresPrizeRepository) ListRows(ctx context.Context, exec SQLExecutor, tableID uuid.UUID) ([]models.PrizeTableRow, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT id, prize_table_id, place, prize, participant_id
		FROM prize_table_rows
		WHERE prize_table_id = $1
		ORDER BY place ASC`

	rows, err := executor.QueryContext(ctx, query, tableID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.PrizeTableRow, 0)
	for rows.Next() {
		var row models.PrizeTableRow
		if err := rows.Scan(&row.ID, &row.PrizeTableID, &row.Place, &row.Prize, &row.ParticipantID); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *postgresPrizeRepository) SetRowParticipant(ctx context.Context, exec SQLExecutor, tableID uuid.UUID, place int, participantID uuid.UUID) error {
	executor := r.getExecutor(exec)
	query := `UPDATE prize_table_rows SET participant_id = $1 WHERE prize_table_id = $2 AND place = $3`

	result, err := executor.ExecContext(ctx, query, participantID, tableID, place)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrPrizeRowNotFound)
}
