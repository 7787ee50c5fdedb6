package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bracketops/tournament-engine/models"
	"github.com/bracketops/tournament-engine/repositories"
)

// playoffShells returns the tournament's playoff match shells in bracket
// position order.
func playoffShells(t *testing.T, f *fixture, tournamentID uuid.UUID) []models.Match {
	t.Helper()
	playoff := true
	shells, err := f.matches.ListByTournament(context.Background(), nil, tournamentID, repositories.ListMatchesFilter{IsPlayoff: &playoff})
	require.NoError(t, err)
	return shells
}

func newUUIDs(n int) []uuid.UUID {
	ids := make([]uuid.UUID, n)
	for i := range ids {
		ids[i] = uuid.New()
	}
	return ids
}

func TestFillOpeningRound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tour, _ := f.seedTournament(t, tournamentParams{
		kind: models.KindSolo, maxParticipants: 4,
		matchFormat: models.FormatBo1, finalFormat: models.FormatBo1, prizeFund: "0",
	})
	stage, err := f.playoffs.GetStageByTournament(ctx, nil, tour.ID)
	require.NoError(t, err)

	prog := newProgression(f.tournaments, f.matches, f.playoffs, f.prizes)
	ids := newUUIDs(3)
	require.NoError(t, prog.fillOpeningRound(ctx, nil, stage.ID, ids))

	shells := playoffShells(t, f, tour.ID)
	require.Len(t, shells, 3)

	semi1, semi2, final := shells[0], shells[1], shells[2]
	require.NotNil(t, semi1.Participant1ID)
	assert.Equal(t, ids[0], *semi1.Participant1ID)
	require.NotNil(t, semi1.Participant2ID)
	assert.Equal(t, ids[1], *semi1.Participant2ID)
	require.NotNil(t, semi2.Participant1ID)
	assert.Equal(t, ids[2], *semi2.Participant1ID)
	assert.Nil(t, semi2.Participant2ID)
	assert.Equal(t, 0, final.ParticipantCount())
}

func TestFillOpeningRound_Overflow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tour, _ := f.seedTournament(t, tournamentParams{
		kind: models.KindSolo, maxParticipants: 4,
		matchFormat: models.FormatBo1, finalFormat: models.FormatBo1, prizeFund: "0",
	})
	stage, err := f.playoffs.GetStageByTournament(ctx, nil, tour.ID)
	require.NoError(t, err)

	prog := newProgression(f.tournaments, f.matches, f.playoffs, f.prizes)
	err = prog.fillOpeningRound(ctx, nil, stage.ID, newUUIDs(5))
	assert.ErrorIs(t, err, ErrSeedOverflow)
	assert.ErrorIs(t, err, ErrValidation)
}

// Two sibling byes decide before either winner reaches the next round. The
// drain must deliver both winners instead of cancelling the dependent after
// the first one arrives.
func TestResolveOpeningByes_SiblingByes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tour, _ := f.seedTournament(t, tournamentParams{
		kind: models.KindSolo, maxParticipants: 4,
		matchFormat: models.FormatBo1, finalFormat: models.FormatBo1, prizeFund: "0",
	})
	stage, err := f.playoffs.GetStageByTournament(ctx, nil, tour.ID)
	require.NoError(t, err)

	shells := playoffShells(t, f, tour.ID)
	p0, p1 := uuid.New(), uuid.New()
	require.NoError(t, f.matches.UpdateParticipants(ctx, nil, shells[0].ID, &p0, nil))
	require.NoError(t, f.matches.UpdateParticipants(ctx, nil, shells[1].ID, &p1, nil))

	prog := newProgression(f.tournaments, f.matches, f.playoffs, f.prizes)
	require.NoError(t, prog.resolveOpeningByes(ctx, nil, stage.ID))

	shells = playoffShells(t, f, tour.ID)
	semi1, semi2, final := shells[0], shells[1], shells[2]

	assert.Equal(t, models.MatchCancelled, semi1.Status)
	require.NotNil(t, semi1.WinnerID)
	assert.Equal(t, p0, *semi1.WinnerID)
	assert.Equal(t, models.MatchCancelled, semi2.Status)
	require.NotNil(t, semi2.WinnerID)
	assert.Equal(t, p1, *semi2.WinnerID)

	assert.Equal(t, models.MatchScheduled, final.Status)
	assert.Equal(t, 2, final.ParticipantCount())
	assert.True(t, final.HasParticipant(p0))
	assert.True(t, final.HasParticipant(p1))
}

// A single entrant walks through the whole bracket: every shell cancels and
// the final carries the entrant as winner without a single played match.
func TestResolveOpeningByes_CollapsesToSoleEntrant(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tour, _ := f.seedTournament(t, tournamentParams{
		kind: models.KindSolo, maxParticipants: 4,
		matchFormat: models.FormatBo1, finalFormat: models.FormatBo1, prizeFund: "0",
	})
	stage, err := f.playoffs.GetStageByTournament(ctx, nil, tour.ID)
	require.NoError(t, err)

	prog := newProgression(f.tournaments, f.matches, f.playoffs, f.prizes)
	ids := newUUIDs(1)
	require.NoError(t, prog.fillOpeningRound(ctx, nil, stage.ID, ids))
	require.NoError(t, prog.resolveOpeningByes(ctx, nil, stage.ID))

	shells := playoffShells(t, f, tour.ID)
	for _, shell := range shells {
		assert.Equal(t, models.MatchCancelled, shell.Status, "match %d", shell.Number)
	}
	final := shells[2]
	require.NotNil(t, final.WinnerID)
	assert.Equal(t, ids[0], *final.WinnerID)
}

// playOutBracket seeds four participants and records results so that
// ids[0] beats ids[1], ids[2] beats ids[3] and ids[0] wins the final.
func playOutBracket(t *testing.T, f *fixture, tour *models.Tournament, ids []uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	stage, err := f.playoffs.GetStageByTournament(ctx, nil, tour.ID)
	require.NoError(t, err)

	prog := newProgression(f.tournaments, f.matches, f.playoffs, f.prizes)
	require.NoError(t, prog.fillOpeningRound(ctx, nil, stage.ID, ids))

	shells := playoffShells(t, f, tour.ID)
	require.NoError(t, f.matches.UpdateStatusWinner(ctx, nil, shells[0].ID, models.MatchCompleted, &ids[0]))
	require.NoError(t, f.matches.UpdateStatusWinner(ctx, nil, shells[1].ID, models.MatchCompleted, &ids[2]))
	require.NoError(t, f.matches.UpdateParticipants(ctx, nil, shells[2].ID, &ids[0], &ids[2]))
	require.NoError(t, f.matches.UpdateStatusWinner(ctx, nil, shells[2].ID, models.MatchCompleted, &ids[0]))
}

func TestCompleteTournament_AssignsPrizePlaces(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tour, _ := f.seedTournament(t, tournamentParams{
		kind: models.KindSolo, maxParticipants: 4,
		matchFormat: models.FormatBo1, finalFormat: models.FormatBo1, prizeFund: "100",
	})
	ids := newUUIDs(4)
	playOutBracket(t, f, tour, ids)
	require.NoError(t, f.tournaments.UpdateStatus(ctx, nil, tour.ID, models.TournamentOngoing))
	tour.Status = models.TournamentOngoing

	prog := newProgression(f.tournaments, f.matches, f.playoffs, f.prizes)
	require.NoError(t, prog.completeTournament(ctx, nil, tour))
	assert.Equal(t, models.TournamentCompleted, tour.Status)

	stored, err := f.tournaments.GetByID(ctx, nil, tour.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TournamentCompleted, stored.Status)

	table, err := f.prizes.GetTableByTournament(ctx, nil, tour.ID)
	require.NoError(t, err)
	rows, err := f.prizes.ListRows(ctx, nil, table.ID)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "50.00", rows[0].Prize)
	require.NotNil(t, rows[0].ParticipantID)
	assert.Equal(t, ids[0], *rows[0].ParticipantID, "first place goes to the final's winner")
	require.NotNil(t, rows[1].ParticipantID)
	assert.Equal(t, ids[2], *rows[1].ParticipantID, "second place goes to the final's loser")
	require.NotNil(t, rows[2].ParticipantID)
	assert.Equal(t, ids[1], *rows[2].ParticipantID, "third place goes to the first semifinal's loser")
}

func TestCompleteTournament_Guards(t *testing.T) {
	ctx := context.Background()

	t.Run("not ongoing", func(t *testing.T) {
		f := newFixture(t)
		tour, _ := f.seedTournament(t, defaultTournamentParams())
		prog := newProgression(f.tournaments, f.matches, f.playoffs, f.prizes)
		err := prog.completeTournament(ctx, nil, tour)
		assert.ErrorIs(t, err, ErrTournamentNotOngoing)
	})

	t.Run("matches undecided", func(t *testing.T) {
		f := newFixture(t)
		tour, _ := f.seedTournament(t, defaultTournamentParams())
		require.NoError(t, f.tournaments.UpdateStatus(ctx, nil, tour.ID, models.TournamentOngoing))
		tour.Status = models.TournamentOngoing
		prog := newProgression(f.tournaments, f.matches, f.playoffs, f.prizes)
		err := prog.completeTournament(ctx, nil, tour)
		assert.ErrorIs(t, err, ErrMatchesUndecided)
	})

	t.Run("final without winner", func(t *testing.T) {
		f := newFixture(t)
		tour, _ := f.seedTournament(t, tournamentParams{
			kind: models.KindSolo, maxParticipants: 4,
			matchFormat: models.FormatBo1, finalFormat: models.FormatBo1, prizeFund: "0",
		})
		for _, shell := range playoffShells(t, f, tour.ID) {
			require.NoError(t, f.matches.UpdateStatusWinner(ctx, nil, shell.ID, models.MatchCancelled, nil))
		}
		require.NoError(t, f.tournaments.UpdateStatus(ctx, nil, tour.ID, models.TournamentOngoing))
		tour.Status = models.TournamentOngoing
		prog := newProgression(f.tournaments, f.matches, f.playoffs, f.prizes)
		err := prog.completeTournament(ctx, nil, tour)
		assert.ErrorIs(t, err, ErrFinalUndecided)
	})

	t.Run("prize table missing", func(t *testing.T) {
		f := newFixture(t)
		tour, _ := f.seedTournament(t, tournamentParams{
			kind: models.KindSolo, maxParticipants: 4,
			matchFormat: models.FormatBo1, finalFormat: models.FormatBo1, prizeFund: "0",
		})
		ids := newUUIDs(4)
		playOutBracket(t, f, tour, ids)
		require.NoError(t, f.prizes.DeleteTableByTournament(ctx, nil, tour.ID))
		require.NoError(t, f.tournaments.UpdateStatus(ctx, nil, tour.ID, models.TournamentOngoing))
		tour.Status = models.TournamentOngoing
		prog := newProgression(f.tournaments, f.matches, f.playoffs, f.prizes)
		err := prog.completeTournament(ctx, nil, tour)
		assert.ErrorIs(t, err, ErrPrizeTableMissing)
	})
}

func TestCompleteTournamentIfReady(t *testing.T) {
	ctx := context.Background()

	t.Run("skips a tournament that is not ongoing", func(t *testing.T) {
		f := newFixture(t)
		tour, _ := f.seedTournament(t, defaultTournamentParams())
		prog := newProgression(f.tournaments, f.matches, f.playoffs, f.prizes)
		done, err := prog.completeTournamentIfReady(ctx, nil, tour)
		require.NoError(t, err)
		assert.False(t, done)
	})

	t.Run("skips while matches are open", func(t *testing.T) {
		f := newFixture(t)
		tour, _ := f.seedTournament(t, defaultTournamentParams())
		require.NoError(t, f.tournaments.UpdateStatus(ctx, nil, tour.ID, models.TournamentOngoing))
		tour.Status = models.TournamentOngoing
		prog := newProgression(f.tournaments, f.matches, f.playoffs, f.prizes)
		done, err := prog.completeTournamentIfReady(ctx, nil, tour)
		require.NoError(t, err)
		assert.False(t, done)
	})

	t.Run("completes once the final is decided", func(t *testing.T) {
		f := newFixture(t)
		tour, _ := f.seedTournament(t, tournamentParams{
			kind: models.KindSolo, maxParticipants: 4,
			matchFormat: models.FormatBo1, finalFormat: models.FormatBo1, prizeFund: "0",
		})
		ids := newUUIDs(4)
		playOutBracket(t, f, tour, ids)
		require.NoError(t, f.tournaments.UpdateStatus(ctx, nil, tour.ID, models.TournamentOngoing))
		tour.Status = models.TournamentOngoing

		prog := newProgression(f.tournaments, f.matches, f.playoffs, f.prizes)
		done, err := prog.completeTournamentIfReady(ctx, nil, tour)
		require.NoError(t, err)
		assert.True(t, done)

		stored, err := f.tournaments.GetByID(ctx, nil, tour.ID)
		require.NoError(t, err)
		assert.Equal(t, models.TournamentCompleted, stored.Status)
	})
}
