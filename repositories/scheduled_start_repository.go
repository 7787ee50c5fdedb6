package repositories

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/bracketops/tournament-engine/models"
)

type ScheduledStartRepository interface {
	Upsert(ctx context.Context, exec SQLExecutor, entry *models.ScheduledStart) error
	Delete(ctx context.Context, exec SQLExecutor, tournamentID uuid.UUID) error
	List(ctx context.Context) ([]models.ScheduledStart, error)
}

type postgresScheduledStartRepository struct {
	db *sql.DB
}

func NewPostgresScheduledStartRepository(db *sql.DB) ScheduledStartRepository {
	return &postgresScheduledStartRepository{db: db}
}

func (r *postgresScheduledStartRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresScheduledStartRepository) Upsert(ctx context.Context, exec SQLExecutor, entry *models.ScheduledStart) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO scheduled_starts (tournament_id, job_id, start_time)
		VALUES ($1, $2, $3)
		ON CONFLICT (tournament_id) DO UPDATE
		SET job_id = EXCLUDED.job_id, start_time = EXCLUDED.start_time`

	_, err := executor.ExecContext(ctx, query, entry.TournamentID, entry.JobID, entry.StartTime)
	return err
}

// Delete is tolerant of a missing row: cancelling an already fired or never
// scheduled start is not an error.
func (r *postgresScheduledStartRepository) Delete(ctx context.Context, exec SQLExecutor, tournamentID uuid.UUID) error {
	executor := r.getExecutor(exec)
	_, err := executor.ExecContext(ctx, `DELETE FROM scheduled_starts WHERE tournament_id = $1`, tournamentID)
	return err
}

func (r *postgresScheduledStartRepository) List(ctx context.Context) ([]models.ScheduledStart, error) {
	query := `SELECT tournament_id, job_id, start_time FROM scheduled_starts ORDER BY start_time ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]models.ScheduledStart, 0)
	for rows.Next() {
		var entry models.ScheduledStart
		if err := rows.Scan(&entry.TournamentID, &entry.JobID, &entry.StartTime); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
