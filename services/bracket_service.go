package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/bracketops/tournament-engine/brackets"
	"github.com/bracketops/tournament-engine/models"
	"github.com/bracketops/tournament-engine/repositories"
)

var (
	ErrGroupStageExists     = fmt.Errorf("%w: tournament already has a group stage", ErrInvalidState)
	ErrPlayoffStageExists   = fmt.Errorf("%w: tournament already has a playoff stage", ErrInvalidState)
	ErrGroupConfigInvalid   = fmt.Errorf("%w: group stage configuration is invalid", ErrValidation)
	ErrPlayoffAlreadySeeded = fmt.Errorf("%w: playoff bracket is already seeded", ErrInvalidState)
)

// BracketService builds the structural skeletons of a tournament and fills
// them with participants. Every method runs on the caller's executor so the
// surrounding tournament flow stays atomic.
type BracketService interface {
	CreateGroupSkeleton(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament, numGroups, qualifiers int) (*models.GroupStage, error)
	CreateBracketSkeleton(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament, expectedParticipants, firstNumber int) (*models.PlayoffStage, error)
	SeedGroups(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament, participantIDs []uuid.UUID) error
	SeedPlayoffFromRegistrations(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament, participantIDs []uuid.UUID) error
	SeedPlayoffFromGroups(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament) error
}

type bracketService struct {
	groupRepo   repositories.GroupRepository
	playoffRepo repositories.PlayoffRepository
	matchRepo   repositories.MatchRepository
	progression *progression
	shuffle     func([]uuid.UUID)
}

func NewBracketService(
	tournamentRepo repositories.TournamentRepository,
	groupRepo repositories.GroupRepository,
	playoffRepo repositories.PlayoffRepository,
	matchRepo repositories.MatchRepository,
	prizeRepo repositories.PrizeRepository,
) BracketService {
	return &bracketService{
		groupRepo:   groupRepo,
		playoffRepo: playoffRepo,
		matchRepo:   matchRepo,
		progression: newProgression(tournamentRepo, matchRepo, playoffRepo, prizeRepo),
		shuffle:     shuffleUUIDs,
	}
}

// ValidateGroupConfig checks that numGroups splits the tournament capacity
// into even pools of at least two seats and that the qualifier count fits a
// pool. Exposed so tournament creation can reject bad input before any row
// is written.
func ValidateGroupConfig(maxParticipants, numGroups, qualifiers int) error {
	if numGroups != 2 && numGroups != 4 {
		return fmt.Errorf("%w: number of groups must be 2 or 4", ErrGroupConfigInvalid)
	}
	if maxParticipants%numGroups != 0 {
		return fmt.Errorf("%w: max participants must divide evenly into %d groups", ErrGroupConfigInvalid, numGroups)
	}
	capacity := maxParticipants / numGroups
	if capacity < 2 {
		return fmt.Errorf("%w: each group needs at least two seats", ErrGroupConfigInvalid)
	}
	if qualifiers < 1 || qualifiers > capacity {
		return fmt.Errorf("%w: qualifiers per group must be between 1 and %d", ErrGroupConfigInvalid, capacity)
	}
	return nil
}

// CreateGroupSkeleton creates the stage, its lettered groups with empty
// standings rows, and every round-robin match shell. Group matches keep the
// tournament's regular format and are numbered globally from 1, group by
// group.
func (s *bracketService) CreateGroupSkeleton(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament, numGroups, qualifiers int) (*models.GroupStage, error) {
	if t.Status != models.TournamentOpen {
		return nil, ErrTournamentNotOpen
	}
	if _, err := s.groupRepo.GetStageByTournament(ctx, exec, t.ID); err == nil {
		return nil, ErrGroupStageExists
	} else if !errors.Is(err, repositories.ErrGroupStageNotFound) {
		return nil, fmt.Errorf("check existing group stage: %w", err)
	}
	if err := ValidateGroupConfig(t.MaxParticipants, numGroups, qualifiers); err != nil {
		return nil, err
	}

	stage := &models.GroupStage{
		TournamentID:            t.ID,
		WinnersBracketQualified: qualifiers,
	}
	if err := s.groupRepo.CreateStage(ctx, exec, stage); err != nil {
		return nil, fmt.Errorf("create group stage: %w", err)
	}

	capacity := t.MaxParticipants / numGroups
	number := 1
	for g := 0; g < numGroups; g++ {
		group := &models.Group{
			GroupStageID:    stage.ID,
			Letter:          string(rune('A' + g)),
			MaxParticipants: capacity,
		}
		if err := s.groupRepo.CreateGroup(ctx, exec, group); err != nil {
			return nil, fmt.Errorf("create group %s: %w", group.Letter, err)
		}
		for i := 0; i < capacity; i++ {
			row := &models.GroupRow{GroupID: group.ID}
			if err := s.groupRepo.CreateRow(ctx, exec, row); err != nil {
				return nil, fmt.Errorf("create row for group %s: %w", group.Letter, err)
			}
			group.Rows = append(group.Rows, *row)
		}

		pairings, err := brackets.BuildRoundRobin(capacity, number)
		if err != nil {
			return nil, fmt.Errorf("plan round robin for group %s: %w", group.Letter, err)
		}
		for _, pairing := range pairings {
			match := &models.Match{
				TournamentID: t.ID,
				Number:       pairing.Number,
				Format:       t.MatchFormat,
				Status:       models.MatchScheduled,
				GroupID:      &group.ID,
			}
			if err := s.matchRepo.Create(ctx, exec, match); err != nil {
				return nil, fmt.Errorf("create group match %d: %w", pairing.Number, err)
			}
		}
		number += len(pairings)
		stage.Groups = append(stage.Groups, *group)
	}
	return stage, nil
}

// CreateBracketSkeleton lays the single-elimination stage out for the
// expected number of entrants: one node plus one match shell per bracket
// position, dependency edges wired between rounds, and WinnerTo back-links
// filled in a second pass once every node has an id.
func (s *bracketService) CreateBracketSkeleton(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament, expectedParticipants, firstNumber int) (*models.PlayoffStage, error) {
	if t.Status != models.TournamentOpen {
		return nil, ErrTournamentNotOpen
	}
	if _, err := s.playoffRepo.GetStageByTournament(ctx, exec, t.ID); err == nil {
		return nil, ErrPlayoffStageExists
	} else if !errors.Is(err, repositories.ErrPlayoffStageNotFound) {
		return nil, fmt.Errorf("check existing playoff stage: %w", err)
	}

	plan, err := brackets.BuildSingleElimination(
		expectedParticipants,
		firstNumber,
		brackets.PlayoffRegularFormat(t.MatchFormat),
		t.FinalFormat,
	)
	if err != nil {
		if errors.Is(err, brackets.ErrNotEnoughSlots) {
			return nil, ErrNotEnoughParticipants
		}
		return nil, fmt.Errorf("plan bracket: %w", err)
	}

	stage := &models.PlayoffStage{TournamentID: t.ID}
	if err := s.playoffRepo.CreateStage(ctx, exec, stage); err != nil {
		return nil, fmt.Errorf("create playoff stage: %w", err)
	}

	// Rounds come out of the plan in ascending order, so feeder ids are
	// always known before the node that consumes them.
	nodeIDs := make([]uuid.UUID, len(plan.Matches))
	for i, bm := range plan.Matches {
		node := &models.PlayoffMatch{
			PlayoffStageID: stage.ID,
			Round:          bm.Round,
			Bracket:        models.BracketWinners,
		}
		if bm.Feeder1 >= 0 {
			id := nodeIDs[bm.Feeder1]
			node.DependsOn1 = &id
		}
		if bm.Feeder2 >= 0 {
			id := nodeIDs[bm.Feeder2]
			node.DependsOn2 = &id
		}
		if err := s.playoffRepo.CreateMatch(ctx, exec, node); err != nil {
			return nil, fmt.Errorf("create playoff node %d: %w", bm.Number, err)
		}
		nodeIDs[i] = node.ID

		match := &models.Match{
			TournamentID:   t.ID,
			Number:         bm.Number,
			Format:         bm.Format,
			Status:         models.MatchScheduled,
			IsPlayoff:      true,
			PlayoffMatchID: &node.ID,
		}
		if err := s.matchRepo.Create(ctx, exec, match); err != nil {
			return nil, fmt.Errorf("create playoff match %d: %w", bm.Number, err)
		}
		node.Match = match
		stage.Matches = append(stage.Matches, *node)
	}

	for i, bm := range plan.Matches {
		if bm.Feeder1 >= 0 {
			if err := s.playoffRepo.UpdateWinnerTo(ctx, exec, nodeIDs[bm.Feeder1], &nodeIDs[i]); err != nil {
				return nil, fmt.Errorf("link winner edge: %w", err)
			}
		}
		if bm.Feeder2 >= 0 {
			if err := s.playoffRepo.UpdateWinnerTo(ctx, exec, nodeIDs[bm.Feeder2], &nodeIDs[i]); err != nil {
				return nil, fmt.Errorf("link winner edge: %w", err)
			}
		}
	}
	return stage, nil
}

// SeedGroups shuffles the participants into the lettered groups round-robin
// style, fills each group's standings rows, and assigns every pair of group
// members onto the pre-created match shells in number order. Shells left
// without a pairing are cancelled.
func (s *bracketService) SeedGroups(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament, participantIDs []uuid.UUID) error {
	stage, err := s.groupRepo.GetStageByTournament(ctx, exec, t.ID)
	if err != nil {
		return notFound(fmt.Errorf("load group stage: %w", err), repositories.ErrGroupStageNotFound, "group stage")
	}
	groups, err := s.groupRepo.ListGroupsByStage(ctx, exec, stage.ID)
	if err != nil {
		return fmt.Errorf("list groups: %w", err)
	}
	if len(groups) == 0 {
		return fmt.Errorf("%w: group stage has no groups", ErrInvalidState)
	}

	ids := make([]uuid.UUID, len(participantIDs))
	copy(ids, participantIDs)
	s.shuffle(ids)

	buckets := make([][]uuid.UUID, len(groups))
	for i, id := range ids {
		gi := i % len(groups)
		for tries := 0; tries < len(groups) && len(buckets[gi]) >= groups[gi].MaxParticipants; tries++ {
			gi = (gi + 1) % len(groups)
		}
		if len(buckets[gi]) >= groups[gi].MaxParticipants {
			return ErrSeedOverflow
		}
		buckets[gi] = append(buckets[gi], id)
	}

	for gi := range groups {
		s.shuffle(buckets[gi])
		if err := s.seedGroup(ctx, exec, &groups[gi], buckets[gi]); err != nil {
			return fmt.Errorf("seed group %s: %w", groups[gi].Letter, err)
		}
	}
	return nil
}

func (s *bracketService) seedGroup(ctx context.Context, exec repositories.SQLExecutor, group *models.Group, members []uuid.UUID) error {
	rows, err := s.groupRepo.ListRowsByGroup(ctx, exec, group.ID)
	if err != nil {
		return fmt.Errorf("list rows: %w", err)
	}
	if len(members) > len(rows) {
		return ErrSeedOverflow
	}
	for i := range members {
		rows[i].ParticipantID = &members[i]
		if err := s.groupRepo.UpdateRow(ctx, exec, &rows[i]); err != nil {
			return fmt.Errorf("fill row: %w", err)
		}
	}

	matches, err := s.matchRepo.ListByGroup(ctx, exec, group.ID)
	if err != nil {
		return fmt.Errorf("list matches: %w", err)
	}
	next := 0
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			if next >= len(matches) {
				return fmt.Errorf("%w: more pairings than match shells", ErrInvalidState)
			}
			if err := s.matchRepo.UpdateParticipants(ctx, exec, matches[next].ID, &members[i], &members[j]); err != nil {
				return fmt.Errorf("assign pairing: %w", err)
			}
			next++
		}
	}
	// A short group produces fewer pairings than shells; the leftovers
	// cannot be played and drop out of the completion checks.
	for ; next < len(matches); next++ {
		if err := s.matchRepo.UpdateStatusWinner(ctx, exec, matches[next].ID, models.MatchCancelled, nil); err != nil {
			return fmt.Errorf("cancel surplus match: %w", err)
		}
	}
	return nil
}

// SeedPlayoffFromRegistrations shuffles the registered participants straight
// into the opening round and settles any byes the shortfall produces.
func (s *bracketService) SeedPlayoffFromRegistrations(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament, participantIDs []uuid.UUID) error {
	stage, err := s.playoffRepo.GetStageByTournament(ctx, exec, t.ID)
	if err != nil {
		if errors.Is(err, repositories.ErrPlayoffStageNotFound) {
			return ErrPlayoffStageMissing
		}
		return fmt.Errorf("load playoff stage: %w", err)
	}

	ids := make([]uuid.UUID, len(participantIDs))
	copy(ids, participantIDs)
	s.shuffle(ids)

	if err := s.progression.fillOpeningRound(ctx, exec, stage.ID, ids); err != nil {
		return err
	}
	return s.progression.resolveOpeningByes(ctx, exec, stage.ID)
}

// SeedPlayoffFromGroups moves the qualified rows of every group into the
// opening round: groups in letter order, each contributing its top rows in
// standings order, without reshuffling. Groups short on occupied rows
// contribute what they have and the byes absorb the gap.
func (s *bracketService) SeedPlayoffFromGroups(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament) error {
	groupStage, err := s.groupRepo.GetStageByTournament(ctx, exec, t.ID)
	if err != nil {
		return notFound(fmt.Errorf("load group stage: %w", err), repositories.ErrGroupStageNotFound, "group stage")
	}
	playoffStage, err := s.playoffRepo.GetStageByTournament(ctx, exec, t.ID)
	if err != nil {
		if errors.Is(err, repositories.ErrPlayoffStageNotFound) {
			return ErrPlayoffStageMissing
		}
		return fmt.Errorf("load playoff stage: %w", err)
	}

	opening, err := s.playoffRepo.ListMatchesByRound(ctx, exec, playoffStage.ID, 1)
	if err != nil {
		return fmt.Errorf("list opening round: %w", err)
	}
	for i := range opening {
		match, err := s.matchRepo.GetByPlayoffMatchID(ctx, exec, opening[i].ID)
		if err != nil {
			return fmt.Errorf("load opening match: %w", err)
		}
		if match.Decided() || match.ParticipantCount() > 0 {
			return ErrPlayoffAlreadySeeded
		}
	}

	groups, err := s.groupRepo.ListGroupsByStage(ctx, exec, groupStage.ID)
	if err != nil {
		return fmt.Errorf("list groups: %w", err)
	}
	qualified := make([]uuid.UUID, 0, len(groups)*groupStage.WinnersBracketQualified)
	for i := range groups {
		top, err := s.groupRepo.ListTopRows(ctx, exec, groups[i].ID, groupStage.WinnersBracketQualified)
		if err != nil {
			return fmt.Errorf("list qualifiers for group %s: %w", groups[i].Letter, err)
		}
		for _, row := range top {
			if row.ParticipantID != nil {
				qualified = append(qualified, *row.ParticipantID)
			}
		}
	}

	if err := s.progression.fillOpeningRound(ctx, exec, playoffStage.ID, qualified); err != nil {
		return err
	}
	return s.progression.resolveOpeningByes(ctx, exec, playoffStage.ID)
}
