package repositories

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/bracketops/tournament-engine/models"
)

func newMatchRepo(t *testing.T) (MatchRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresMatchRepository(db), mock
}

var matchRowColumns = []string{
	"id", "tournament_id", "number", "format", "status", "is_playoff", "group_id", "playoff_match_id",
	"participant1_id", "participant2_id", "participant1_score", "participant2_score", "winner_id", "created_at",
}

func TestMatchRepositoryListByTournamentAppliesFilters(t *testing.T) {
	repo, mock := newMatchRepo(t)

	tournamentID := uuid.New()
	groupID := uuid.New()
	isPlayoff := false
	status := models.MatchScheduled

	matchID := uuid.New()
	rows := sqlmock.NewRows(matchRowColumns).AddRow(
		matchID.String(), tournamentID.String(), 3, "bo3", "scheduled", false,
		groupID.String(), nil, nil, nil, 0, 0, nil, time.Now(),
	)
	mock.ExpectQuery(regexp.QuoteMeta("AND group_id = $2 AND is_playoff = $3 AND status = $4 ORDER BY number ASC")).
		WithArgs(tournamentID, groupID, isPlayoff, status).
		WillReturnRows(rows)

	matches, err := repo.ListByTournament(context.Background(), nil, tournamentID, ListMatchesFilter{
		GroupID:   &groupID,
		IsPlayoff: &isPlayoff,
		Status:    &status,
	})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, matchID, matches[0].ID)
	require.Equal(t, 3, matches[0].Number)
	require.Equal(t, models.FormatBo3, matches[0].Format)
	require.NotNil(t, matches[0].GroupID)
	require.Equal(t, groupID, *matches[0].GroupID)
	require.Nil(t, matches[0].PlayoffMatchID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMatchRepositoryListByTournamentNoFilter(t *testing.T) {
	repo, mock := newMatchRepo(t)

	tournamentID := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE tournament_id = $1 ORDER BY number ASC")).
		WithArgs(tournamentID).
		WillReturnRows(sqlmock.NewRows(matchRowColumns))

	matches, err := repo.ListByTournament(context.Background(), nil, tournamentID, ListMatchesFilter{})
	require.NoError(t, err)
	require.Empty(t, matches)
}

func TestMatchRepositoryCreateMapsConstraints(t *testing.T) {
	repo, mock := newMatchRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO matches")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "matches_playoff_match_id_key"})
	err := repo.Create(context.Background(), nil, &models.Match{})
	require.ErrorIs(t, err, ErrMatchPlayoffConflict)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO matches")).
		WillReturnError(&pq.Error{Code: "23503", Constraint: "matches_tournament_id_fkey"})
	err = repo.Create(context.Background(), nil, &models.Match{})
	require.ErrorIs(t, err, ErrMatchTournamentInvalid)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO matches")).
		WillReturnError(&pq.Error{Code: "23503", Constraint: "matches_group_id_fkey"})
	err = repo.Create(context.Background(), nil, &models.Match{})
	require.ErrorIs(t, err, ErrMatchGroupInvalid)
}

func TestMatchRepositoryGetByIDNotFound(t *testing.T) {
	repo, mock := newMatchRepo(t)

	id := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta("FROM matches WHERE id = $1")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(matchRowColumns))

	_, err := repo.GetByID(context.Background(), nil, id)
	require.ErrorIs(t, err, ErrMatchNotFound)
}

func TestMatchRepositoryUpdateStatusWinner(t *testing.T) {
	repo, mock := newMatchRepo(t)

	id := uuid.New()
	winner := uuid.New()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE matches SET status = $1, winner_id = $2 WHERE id = $3")).
		WithArgs(models.MatchCompleted, &winner, id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateStatusWinner(context.Background(), nil, id, models.MatchCompleted, &winner)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
