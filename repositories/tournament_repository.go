package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/bracketops/tournament-engine/models"
)

var (
	ErrTournamentNotFound    = errors.New("tournament not found")
	ErrTournamentInvalidGame = errors.New("invalid game reference")
	ErrTournamentInvalidUser = errors.New("invalid creator reference")
	ErrTournamentInUse       = errors.New("tournament is referenced by other records")
)

type TournamentRepository interface {
	Create(ctx context.Context, exec SQLExecutor, t *models.Tournament) error
	GetByID(ctx context.Context, exec SQLExecutor, id uuid.UUID) (*models.Tournament, error)
	ListNearest(ctx context.Context, after time.Time, limit int) ([]models.Tournament, error)
	ListByGame(ctx context.Context, gameID uuid.UUID, limit, offset int) ([]models.Tournament, error)
	ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]models.Tournament, error)
	ListByParticipant(ctx context.Context, participantID uuid.UUID) ([]models.Tournament, error)
	UpdateDetails(ctx context.Context, exec SQLExecutor, t *models.Tournament) error
	UpdateStatus(ctx context.Context, exec SQLExecutor, id uuid.UUID, status models.TournamentStatus) error
	UpdateBannerKey(ctx context.Context, exec SQLExecutor, id uuid.UUID, bannerKey *string) error
	UpdateHighlightURL(ctx context.Context, exec SQLExecutor, id uuid.UUID, url *string) error
	Delete(ctx context.Context, exec SQLExecutor, id uuid.UUID) error
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

func (r *postgresTournamentRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const tournamentColumns = `
	id, creator_id, game_id, title, description, contact, start_time,
	prize_fund, max_participants, kind, status, match_format, final_format,
	banner_key, highlight_url, created_at`

func (r *postgresTournamentRepository) scanTournament(row rowScanner) (*models.Tournament, error) {
	t := &models.Tournament{}
	err := row.Scan(
		&t.ID, &t.CreatorID, &t.GameID, &t.Title, &t.Description, &t.Contact, &t.StartTime,
		&t.PrizeFund, &t.MaxParticipants, &t.Kind, &t.Status, &t.MatchFormat, &t.FinalFormat,
		&t.BannerKey, &t.HighlightURL, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	return t, nil
}

func (r *postgresTournamentRepository) Create(ctx context.Context, exec SQLExecutor, t *models.Tournament) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO tournaments (
			creator_id, game_id, title, description, contact, start_time,
			prize_fund, max_participants, kind, status, match_format, final_format
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query,
		t.CreatorID, t.GameID, t.Title, t.Description, t.Contact, t.StartTime,
		t.PrizeFund, t.MaxParticipants, t.Kind, t.Status, t.MatchFormat, t.FinalFormat,
	).Scan(&t.ID, &t.CreatedAt)

	return r.handleTournamentError(err)
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, exec SQLExecutor, id uuid.UUID) (*models.Tournament, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + tournamentColumns + ` FROM tournaments WHERE id = $1`
	return r.scanTournament(executor.QueryRowContext(ctx, query, id))
}

func (r *postgresTournamentRepository) ListNearest(ctx context.Context, after time.Time, limit int) ([]models.Tournament, error) {
	query := `SELECT` + tournamentColumns + `
		FROM tournaments
		WHERE status = $1 AND start_time >= $2
		ORDER BY start_time ASC
		LIMIT $3`
	return r.queryTournaments(ctx, query, models.TournamentOpen, after, limit)
}

func (r *postgresTournamentRepository) ListByGame(ctx context.Context, gameID uuid.UUID, limit, offset int) ([]models.Tournament, error) {
	query := `SELECT` + tournamentColumns + `
		FROM tournaments
		WHERE game_id = $1
		ORDER BY start_time DESC, created_at DESC
		LIMIT $2 OFFSET $3`
	return r.queryTournaments(ctx, query, gameID, limit, offset)
}

func (r *postgresTournamentRepository) ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]models.Tournament, error) {
	query := `SELECT` + tournamentColumns + `
		FROM tournaments
		WHERE creator_id = $1
		ORDER BY created_at DESC`
	return r.queryTournaments(ctx, query, creatorID)
}

func (r *postgresTournamentRepository) ListByParticipant(ctx context.Context, participantID uuid.UUID) ([]models.Tournament, error) {
	query := `SELECT` + tournamentColumns + `
		FROM tournaments t
		WHERE EXISTS (
			SELECT 1 FROM registrations reg
			WHERE reg.tournament_id = t.id AND reg.participant_id = $1
		)
		ORDER BY t.start_time DESC`
	return r.queryTournaments(ctx, query, participantID)
}

func (r *postgresTournamentRepository) queryTournaments(ctx context.Context, query string, args ...interface{}) ([]models.Tournament, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tournaments := make([]models.Tournament, 0)
	for rows.Next() {
		t, scanErr := r.scanTournament(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		tournaments = append(tournaments, *t)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return tournaments, nil
}

func (r *postgresTournamentRepository) UpdateDetails(ctx context.Context, exec SQLExecutor, t *models.Tournament) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE tournaments SET
			title = $1,
			description = $2,
			contact = $3,
			start_time = $4,
			prize_fund = $5,
			max_participants = $6
		WHERE id = $7`

	result, err := executor.ExecContext(ctx, query,
		t.Title, t.Description, t.Contact, t.StartTime, t.PrizeFund, t.MaxParticipants, t.ID,
	)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id uuid.UUID, status models.TournamentStatus) error {
	executor := r.getExecutor(exec)
	query := `UPDATE tournaments SET status = $1 WHERE id = $2`
	result, err := executor.ExecContext(ctx, query, status, id)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) UpdateBannerKey(ctx context.Context, exec SQLExecutor, id uuid.UUID, bannerKey *string) error {
	executor := r.getExecutor(exec)
	query := `UPDATE tournaments SET banner_key = $1 WHERE id = $2`
	result, err := executor.ExecContext(ctx, query, bannerKey, id)
	if err != nil {
		return fmt.Errorf("failed to update tournament banner key: %w", err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) UpdateHighlightURL(ctx context.Context, exec SQLExecutor, id uuid.UUID, url *string) error {
	executor := r.getExecutor(exec)
	query := `UPDATE tournaments SET highlight_url = $1 WHERE id = $2`
	result, err := executor.ExecContext(ctx, query, url, id)
	if err != nil {
		return fmt.Errorf("failed to update tournament highlight url: %w", err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) Delete(ctx context.Context, exec SQLExecutor, id uuid.UUID) error {
	executor := r.getExecutor(exec)
	query := `DELETE FROM tournaments WHERE id = $1`
	result, err := executor.ExecContext(ctx, query, id)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) handleTournamentError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		if pqErr.Code == "23503" {
			switch pqErr.Constraint {
			case "tournaments_game_id_fkey":
				return ErrTournamentInvalidGame
			case "tournaments_creator_id_fkey":
				return ErrTournamentInvalidUser
			default:
				return ErrTournamentInUse
			}
		}
	}
	return err
}
