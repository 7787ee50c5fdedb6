package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/bracketops/tournament-engine/models"
	"github.com/bracketops/tournament-engine/repositories"
)

var (
	ErrPlayoffSlotsOccupied = fmt.Errorf("%w: playoff match already has both participants", ErrValidation)
	ErrSeedOverflow         = fmt.Errorf("%w: participants exceed bracket capacity", ErrValidation)
	ErrMatchesUndecided     = fmt.Errorf("%w: not all matches are decided", ErrInvalidState)
	ErrFinalUndecided       = fmt.Errorf("%w: the final has not produced a winner", ErrInvalidState)
	ErrPrizeTableMissing    = fmt.Errorf("%w: tournament has no prize table", ErrInvalidState)
)

// progression is the part of the engine the bracket and match services
// share: seeding the opening round, pushing decided playoff outcomes
// through the dependency edges, and closing the tournament out once the
// final is decided. All methods run on the caller's executor, inside the
// caller's transaction.
type progression struct {
	tournamentRepo repositories.TournamentRepository
	matchRepo      repositories.MatchRepository
	playoffRepo    repositories.PlayoffRepository
	prizeRepo      repositories.PrizeRepository
}

func newProgression(
	tournamentRepo repositories.TournamentRepository,
	matchRepo repositories.MatchRepository,
	playoffRepo repositories.PlayoffRepository,
	prizeRepo repositories.PrizeRepository,
) *progression {
	return &progression{
		tournamentRepo: tournamentRepo,
		matchRepo:      matchRepo,
		playoffRepo:    playoffRepo,
		prizeRepo:      prizeRepo,
	}
}

// progressionStep records a decided playoff node whose outcome still has to
// be pushed into its dependent node. A nil winner means the node resolved
// without one.
type progressionStep struct {
	nodeID   uuid.UUID
	winnerID *uuid.UUID
}

// fillOpeningRound writes participant ids pairwise into the round-1 match
// shells, in bracket position order. Unfilled slots stay nil.
func (p *progression) fillOpeningRound(ctx context.Context, exec repositories.SQLExecutor, stageID uuid.UUID, participantIDs []uuid.UUID) error {
	nodes, err := p.playoffRepo.ListMatchesByRound(ctx, exec, stageID, 1)
	if err != nil {
		return fmt.Errorf("list opening round: %w", err)
	}
	if len(participantIDs) > 2*len(nodes) {
		return ErrSeedOverflow
	}

	for i := range nodes {
		var p1, p2 *uuid.UUID
		if 2*i < len(participantIDs) {
			id := participantIDs[2*i]
			p1 = &id
		}
		if 2*i+1 < len(participantIDs) {
			id := participantIDs[2*i+1]
			p2 = &id
		}
		if p1 == nil && p2 == nil {
			continue
		}
		match, err := p.matchRepo.GetByPlayoffMatchID(ctx, exec, nodes[i].ID)
		if err != nil {
			return fmt.Errorf("load opening match: %w", err)
		}
		if err := p.matchRepo.UpdateParticipants(ctx, exec, match.ID, p1, p2); err != nil {
			return fmt.Errorf("seed opening match: %w", err)
		}
	}
	return nil
}

// resolveOpeningByes settles round-1 matches that cannot be played: empty
// ones are cancelled, sole-participant ones are cancelled with that
// participant as winner, and the outcomes cascade through the bracket.
func (p *progression) resolveOpeningByes(ctx context.Context, exec repositories.SQLExecutor, stageID uuid.UUID) error {
	nodes, err := p.playoffRepo.ListMatchesByRound(ctx, exec, stageID, 1)
	if err != nil {
		return fmt.Errorf("list opening round: %w", err)
	}

	queue := make([]progressionStep, 0, len(nodes))
	for i := range nodes {
		match, err := p.matchRepo.GetByPlayoffMatchID(ctx, exec, nodes[i].ID)
		if err != nil {
			return fmt.Errorf("load opening match: %w", err)
		}
		if match.Decided() {
			continue
		}
		switch match.ParticipantCount() {
		case 0:
			if err := p.matchRepo.UpdateStatusWinner(ctx, exec, match.ID, models.MatchCancelled, nil); err != nil {
				return fmt.Errorf("cancel empty opening match: %w", err)
			}
			queue = append(queue, progressionStep{nodeID: nodes[i].ID})
		case 1:
			winner := match.SoleParticipant()
			if err := p.matchRepo.UpdateStatusWinner(ctx, exec, match.ID, models.MatchCancelled, winner); err != nil {
				return fmt.Errorf("cancel bye match: %w", err)
			}
			queue = append(queue, progressionStep{nodeID: nodes[i].ID, winnerID: winner})
		}
	}
	return p.drain(ctx, exec, queue)
}

// advanceDecided pushes a just-decided playoff node's outcome through the
// bracket.
func (p *progression) advanceDecided(ctx context.Context, exec repositories.SQLExecutor, nodeID uuid.UUID, winnerID *uuid.UUID) error {
	return p.drain(ctx, exec, []progressionStep{{nodeID: nodeID, winnerID: winnerID}})
}

// drain applies queued outcomes until the bracket settles. Every iteration
// either stops at a node that still needs play or cancels a previously
// undecided node, so the queue empties within the node count.
func (p *progression) drain(ctx context.Context, exec repositories.SQLExecutor, queue []progressionStep) error {
	for len(queue) > 0 {
		step := queue[0]
		queue = queue[1:]
		next, err := p.applyStep(ctx, exec, step)
		if err != nil {
			return err
		}
		queue = append(queue, next...)
	}
	return nil
}

func (p *progression) applyStep(ctx context.Context, exec repositories.SQLExecutor, step progressionStep) ([]progressionStep, error) {
	dependent, err := p.playoffRepo.FindDependent(ctx, exec, step.nodeID)
	if err != nil {
		if errors.Is(err, repositories.ErrPlayoffMatchNotFound) {
			// The final has no dependent; nothing left to push.
			return nil, nil
		}
		return nil, fmt.Errorf("find dependent node: %w", err)
	}

	depMatch, err := p.matchRepo.GetByPlayoffMatchID(ctx, exec, dependent.ID)
	if err != nil {
		return nil, fmt.Errorf("load dependent match: %w", err)
	}
	if depMatch.Decided() {
		return nil, nil
	}

	if step.winnerID != nil && !depMatch.HasParticipant(*step.winnerID) {
		switch {
		case depMatch.Participant1ID == nil:
			depMatch.Participant1ID = step.winnerID
		case depMatch.Participant2ID == nil:
			depMatch.Participant2ID = step.winnerID
		default:
			return nil, ErrPlayoffSlotsOccupied
		}
		if err := p.matchRepo.UpdateParticipants(ctx, exec, depMatch.ID, depMatch.Participant1ID, depMatch.Participant2ID); err != nil {
			return nil, fmt.Errorf("assign winner to next match: %w", err)
		}
	}

	return p.recheckDependent(ctx, exec, dependent, depMatch)
}

// recheckDependent auto-resolves a node whose participants can no longer
// change: both feeder matches are decided and every feeder winner has been
// delivered. One participant left is a bye; zero means the branch died and
// the cancellation keeps cascading.
func (p *progression) recheckDependent(ctx context.Context, exec repositories.SQLExecutor, node *models.PlayoffMatch, match *models.Match) ([]progressionStep, error) {
	if node.DependsOn1 == nil || node.DependsOn2 == nil {
		return nil, nil
	}
	for _, feederID := range []uuid.UUID{*node.DependsOn1, *node.DependsOn2} {
		feeder, err := p.matchRepo.GetByPlayoffMatchID(ctx, exec, feederID)
		if err != nil {
			return nil, fmt.Errorf("load feeder match: %w", err)
		}
		if !feeder.Decided() {
			return nil, nil
		}
		if feeder.WinnerID != nil && !match.HasParticipant(*feeder.WinnerID) {
			// That feeder's transfer is still queued; it re-runs this check.
			return nil, nil
		}
	}

	switch match.ParticipantCount() {
	case 2:
		return nil, nil
	case 1:
		winner := match.SoleParticipant()
		if err := p.matchRepo.UpdateStatusWinner(ctx, exec, match.ID, models.MatchCancelled, winner); err != nil {
			return nil, fmt.Errorf("cancel bye match: %w", err)
		}
		return []progressionStep{{nodeID: node.ID, winnerID: winner}}, nil
	default:
		if err := p.matchRepo.UpdateStatusWinner(ctx, exec, match.ID, models.MatchCancelled, nil); err != nil {
			return nil, fmt.Errorf("cancel dead match: %w", err)
		}
		return []progressionStep{{nodeID: node.ID}}, nil
	}
}

// finalMatch returns the highest-round node and its match.
func (p *progression) finalMatch(ctx context.Context, exec repositories.SQLExecutor, stageID uuid.UUID) (*models.PlayoffMatch, *models.Match, error) {
	maxRound, err := p.playoffRepo.MaxRound(ctx, exec, stageID)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve final round: %w", err)
	}
	if maxRound == 0 {
		return nil, nil, ErrPlayoffStageMissing
	}
	nodes, err := p.playoffRepo.ListMatchesByRound(ctx, exec, stageID, maxRound)
	if err != nil {
		return nil, nil, fmt.Errorf("load final node: %w", err)
	}
	if len(nodes) == 0 {
		return nil, nil, ErrPlayoffStageMissing
	}
	node := nodes[0]
	match, err := p.matchRepo.GetByPlayoffMatchID(ctx, exec, node.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("load final match: %w", err)
	}
	return &node, match, nil
}

// completeTournament verifies the end conditions, fills the prize table and
// marks the tournament completed. Place 1 is the final's winner, place 2 the
// final's loser, place 3 the loser of the first semifinal in match number
// order that was actually played out.
func (p *progression) completeTournament(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament) error {
	if t.Status != models.TournamentOngoing {
		return ErrTournamentNotOngoing
	}

	matches, err := p.matchRepo.ListByTournament(ctx, exec, t.ID, repositories.ListMatchesFilter{})
	if err != nil {
		return fmt.Errorf("list matches: %w", err)
	}
	for i := range matches {
		if !matches[i].Decided() {
			return ErrMatchesUndecided
		}
	}

	stage, err := p.playoffRepo.GetStageByTournament(ctx, exec, t.ID)
	if err != nil {
		if errors.Is(err, repositories.ErrPlayoffStageNotFound) {
			return ErrPlayoffStageMissing
		}
		return err
	}

	final, finalMatch, err := p.finalMatch(ctx, exec, stage.ID)
	if err != nil {
		return err
	}
	if finalMatch.WinnerID == nil {
		return ErrFinalUndecided
	}
	winnerID := *finalMatch.WinnerID

	table, err := p.prizeRepo.GetTableByTournament(ctx, exec, t.ID)
	if err != nil {
		if errors.Is(err, repositories.ErrPrizeTableNotFound) {
			return ErrPrizeTableMissing
		}
		return err
	}
	rows, err := p.prizeRepo.ListRows(ctx, exec, table.ID)
	if err != nil {
		return fmt.Errorf("list prize rows: %w", err)
	}
	places := make(map[int]bool, len(rows))
	for _, row := range rows {
		places[row.Place] = true
	}
	assign := func(place int, participantID uuid.UUID) error {
		if !places[place] {
			return nil
		}
		return p.prizeRepo.SetRowParticipant(ctx, exec, table.ID, place, participantID)
	}

	if err := assign(1, winnerID); err != nil {
		return fmt.Errorf("assign first place: %w", err)
	}
	if runnerUp := finalMatch.Opponent(winnerID); runnerUp != nil {
		if err := assign(2, *runnerUp); err != nil {
			return fmt.Errorf("assign second place: %w", err)
		}
	}
	if final.Round > 1 {
		semis, err := p.playoffRepo.ListMatchesByRound(ctx, exec, stage.ID, final.Round-1)
		if err != nil {
			return fmt.Errorf("load semifinals: %w", err)
		}
		for i := range semis {
			semiMatch, err := p.matchRepo.GetByPlayoffMatchID(ctx, exec, semis[i].ID)
			if err != nil {
				return fmt.Errorf("load semifinal match: %w", err)
			}
			if semiMatch.WinnerID == nil || semiMatch.ParticipantCount() != 2 {
				continue
			}
			loser := semiMatch.Opponent(*semiMatch.WinnerID)
			if loser == nil {
				continue
			}
			if err := assign(3, *loser); err != nil {
				return fmt.Errorf("assign third place: %w", err)
			}
			break
		}
	}

	if err := p.tournamentRepo.UpdateStatus(ctx, exec, t.ID, models.TournamentCompleted); err != nil {
		return fmt.Errorf("mark tournament completed: %w", err)
	}
	t.Status = models.TournamentCompleted
	return nil
}

// completeTournamentIfReady runs completeTournament only when the end
// conditions hold, so completion cascades can attempt it after every
// playoff decision without failing mid-operation.
func (p *progression) completeTournamentIfReady(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament) (bool, error) {
	if t.Status != models.TournamentOngoing {
		return false, nil
	}

	matches, err := p.matchRepo.ListByTournament(ctx, exec, t.ID, repositories.ListMatchesFilter{})
	if err != nil {
		return false, fmt.Errorf("list matches: %w", err)
	}
	for i := range matches {
		if !matches[i].Decided() {
			return false, nil
		}
	}

	stage, err := p.playoffRepo.GetStageByTournament(ctx, exec, t.ID)
	if err != nil {
		if errors.Is(err, repositories.ErrPlayoffStageNotFound) {
			return false, nil
		}
		return false, err
	}
	_, finalMatch, err := p.finalMatch(ctx, exec, stage.ID)
	if err != nil {
		if errors.Is(err, ErrPlayoffStageMissing) {
			return false, nil
		}
		return false, err
	}
	if finalMatch.WinnerID == nil {
		return false, nil
	}

	if err := p.completeTournament(ctx, exec, t); err != nil {
		return false, err
	}
	return true, nil
}
