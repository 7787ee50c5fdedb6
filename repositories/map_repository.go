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
	ErrMapNotFound     = errors.New("map not found")
	ErrMapMatchInvalid = errors.New("map references an invalid match")
)

type MapRepository interface {
	CreateBatch(ctx context.Context, exec SQLExecutor, maps []*models.Map) error
	GetByID(ctx context.Context, exec SQLExecutor, id uuid.UUID) (*models.Map, error)
	ListByMatch(ctx context.Context, exec SQLExecutor, matchID uuid.UUID) ([]models.Map, error)
	UpdateWinner(ctx context.Context, exec SQLExecutor, id uuid.UUID, winnerID *uuid.UUID) error
	UpdateExternalURL(ctx context.Context, exec SQLExecutor, id uuid.UUID, url *string) error
}

type postgresMapRepository struct {
	db *sql.DB
}

func NewPostgresMapRepository(db *sql.DB) MapRepository {
	return &postgresMapRepository{db: db}
}

func (r *postgresMapRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const mapColumns = ` id, match_id, number, external_url, winner_id, created_at `

func (r *postgresMapRepository) scanMap(scanner rowScanner) (*models.Map, error) {
	m := &models.Map{}
	err := scanner.Scan(&m.ID, &m.MatchID, &m.Number, &m.ExternalURL, &m.WinnerID, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMapNotFound
		}
		return nil, err
	}
	return m, nil
}

func (r *postgresMapRepository) CreateBatch(ctx context.Context, exec SQLExecutor, maps []*models.Map) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO maps (match_id, number, external_url, winner_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	for _, m := range maps {
		err := executor.QueryRowContext(ctx, query, m.MatchID, m.Number, m.ExternalURL, m.WinnerID).
			Scan(&m.ID, &m.CreatedAt)
		if err != nil {
			if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
				return ErrMapMatchInvalid
			}
			return err
		}
	}
	return nil
}

func (r *postgresMapRepository) GetByID(ctx context.Context, exec SQLExecutor, id uuid.UUID) (*models.Map, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + mapColumns + `FROM maps WHERE id = $1`
	return r.scanMap(executor.QueryRowContext(ctx, query, id))
}

func (r *postgresMapRepository) ListByMatch(ctx context.Context, exec SQLExecutor, matchID uuid.UUID) ([]models.Map, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + mapColumns + `FROM maps WHERE match_id = $1 ORDER BY number ASC`

	rows, err := executor.QueryContext(ctx, query, matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	maps := make([]models.Map, 0)
	for rows.Next() {
		m, scanErr := r.scanMap(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		maps = append(maps, *m)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return maps, nil
}

func (r *postgresMapRepository) UpdateWinner(ctx context.Context, exec SQLExecutor, id uuid.UUID, winnerID *uuid.UUID) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx, `UPDATE maps SET winner_id = $1 WHERE id = $2`, winnerID, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrMapNotFound)
}

func (r *postgresMapRepository) UpdateExternalURL(ctx context.Context, exec SQLExecutor, id uuid.UUID, url *string) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx, `UPDATE maps SET external_url = $1 WHERE id = $2`, url, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrMapNotFound)
}
