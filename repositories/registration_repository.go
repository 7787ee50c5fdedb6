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
	ErrRegistrationNotFound   = errors.New("registration not found")
	ErrRegistrationDuplicate  = errors.New("participant is already registered for this tournament")
	ErrRegistrationTournament = errors.New("registration references an unknown tournament")
)

type RegistrationRepository interface {
	Create(ctx context.Context, exec SQLExecutor, reg *models.Registration) error
	Delete(ctx context.Context, exec SQLExecutor, tournamentID, participantID uuid.UUID) error
	Exists(ctx context.Context, exec SQLExecutor, tournamentID, participantID uuid.UUID) (bool, error)
	ListParticipants(ctx context.Context, exec SQLExecutor, tournamentID uuid.UUID) ([]uuid.UUID, error)
	CountByTournament(ctx context.Context, exec SQLExecutor, tournamentID uuid.UUID) (int, error)
}

type postgresRegistrationRepository struct {
	db *sql.DB
}

func NewPostgresRegistrationRepository(db *sql.DB) RegistrationRepository {
	return &postgresRegistrationRepository{db: db}
}

func (r *postgresRegistrationRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresRegistrationRepository) Create(ctx context.Context, exec SQLExecutor, reg *models.Registration) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO registrations (tournament_id, participant_id)
		VALUES ($1, $2)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query, reg.TournamentID, reg.ParticipantID).
		Scan(&reg.ID, &reg.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Code {
			case "23505":
				return ErrRegistrationDuplicate
			case "23503":
				return ErrRegistrationTournament
			}
		}
		return err
	}
	return nil
}

func (r *postgresRegistrationRepository) Delete(ctx context.Context, exec SQLExecutor, tournamentID, participantID uuid.UUID) error {
	executor := r.getExecutor(exec)
	query := `DELETE FROM registrations WHERE tournament_id = $1 AND participant_id = $2`
	result, err := executor.ExecContext(ctx, query, tournamentID, participantID)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrRegistrationNotFound)
}

func (r *postgresRegistrationRepository) Exists(ctx context.Context, exec SQLExecutor, tournamentID, participantID uuid.UUID) (bool, error) {
	executor := r.getExecutor(exec)
	query := `SELECT EXISTS (
		SELECT 1 FROM registrations WHERE tournament_id = $1 AND participant_id = $2
	)`
	var exists bool
	if err := executor.QueryRowContext(ctx, query, tournamentID, participantID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *postgresRegistrationRepository) ListParticipants(ctx context.Context, exec SQLExecutor, tournamentID uuid.UUID) ([]uuid.UUID, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT participant_id FROM registrations
		WHERE tournament_id = $1
		ORDER BY created_at ASC`

	rows, err := executor.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if scanErr := rows.Scan(&id); scanErr != nil {
			return nil, scanErr
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *postgresRegistrationRepository) CountByTournament(ctx context.Context, exec SQLExecutor, tournamentID uuid.UUID) (int, error) {
	executor := r.getExecutor(exec)
	var count int
	err := executor.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM registrations WHERE tournament_id = $1`, tournamentID,
	).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}
