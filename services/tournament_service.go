package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bracketops/tournament-engine/models"
	"github.com/bracketops/tournament-engine/realtime"
	"github.com/bracketops/tournament-engine/repositories"
	"github.com/bracketops/tournament-engine/scheduler"
	"github.com/bracketops/tournament-engine/storage"
)

var (
	ErrTitleRequired       = fmt.Errorf("%w: title must not be empty", ErrValidation)
	ErrGameUnknown         = fmt.Errorf("%w: game not found", ErrValidation)
	ErrStartTimeInvalid    = fmt.Errorf("%w: start time must be in the future", ErrValidation)
	ErrCapacityInvalid     = fmt.Errorf("%w: max participants must be between 4 and 32", ErrValidation)
	ErrFormatInvalid       = fmt.Errorf("%w: unknown match format", ErrValidation)
	ErrFinalFormatDraw     = fmt.Errorf("%w: the final cannot use a format that allows draws", ErrValidation)
	ErrKindInvalid         = fmt.Errorf("%w: unknown tournament kind", ErrValidation)
	ErrPrizeFundInvalid    = fmt.Errorf("%w: prize fund must be a non-negative number", ErrValidation)
	ErrRegistrationClosed  = fmt.Errorf("%w: registration is possible only while the tournament is open", ErrInvalidState)
	ErrTournamentFull      = fmt.Errorf("%w: tournament is full", ErrValidation)
	ErrAlreadyRegistered   = fmt.Errorf("%w: participant is already registered", ErrValidation)
	ErrNotRegistered       = fmt.Errorf("%w: registration", ErrNotFound)
	ErrTournamentStillOpen = fmt.Errorf("%w: tournament has not been started", ErrInvalidState)
	ErrDeleteOngoing       = fmt.Errorf("%w: an ongoing tournament cannot be deleted", ErrInvalidState)
	ErrCancelNotAllowed    = fmt.Errorf("%w: only an open or ongoing tournament can be cancelled", ErrInvalidState)
	ErrHighlightTooEarly   = fmt.Errorf("%w: highlights can be attached only to a completed tournament", ErrInvalidState)
	ErrHighlightURLInvalid = fmt.Errorf("%w: highlight url must be an absolute http or https url", ErrValidation)
)

// CreateTournamentInput is everything a creator submits. PrizeFund is a
// decimal string; an empty one means no prize money. NumGroups and
// Qualifiers only matter when HasGroupStage is set.
type CreateTournamentInput struct {
	Title           string                `json:"title"`
	Description     *string               `json:"description"`
	Contact         *string               `json:"contact"`
	GameID          uuid.UUID             `json:"game_id"`
	Kind            models.TournamentKind `json:"kind"`
	StartTime       time.Time             `json:"start_time"`
	MaxParticipants int                   `json:"max_participants"`
	PrizeFund       string                `json:"prize_fund"`
	MatchFormat     models.MatchFormat    `json:"match_format"`
	FinalFormat     models.MatchFormat    `json:"final_format"`
	HasGroupStage   bool                  `json:"has_group_stage"`
	NumGroups       int                   `json:"num_groups"`
	Qualifiers      int                   `json:"qualifiers"`
}

// UpdateTournamentInput carries the editable presentation fields. Nil
// fields keep the stored value.
type UpdateTournamentInput struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Contact     *string `json:"contact"`
}

type TournamentService interface {
	Create(ctx context.Context, creatorID uuid.UUID, input CreateTournamentInput) (*models.Tournament, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tournament, error)
	ListNearest(ctx context.Context, limit int) ([]models.Tournament, error)
	ListByGame(ctx context.Context, gameID uuid.UUID, limit, offset int) ([]models.Tournament, error)
	ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]models.Tournament, error)
	ListByParticipant(ctx context.Context, participantID uuid.UUID) ([]models.Tournament, error)
	GetStandings(ctx context.Context, tournamentID uuid.UUID) (*models.GroupStage, error)
	GetBracket(ctx context.Context, tournamentID uuid.UUID) (*models.PlayoffStage, error)
	GetPrizes(ctx context.Context, tournamentID uuid.UUID) (*models.PrizeTable, error)
	UpdateDetails(ctx context.Context, id, callerID uuid.UUID, input UpdateTournamentInput) (*models.Tournament, error)
	Register(ctx context.Context, tournamentID, participantID, callerID uuid.UUID) error
	Unregister(ctx context.Context, tournamentID, participantID, callerID uuid.UUID) error
	Start(ctx context.Context, id uuid.UUID) error
	StartScheduled(ctx context.Context, tournamentID uuid.UUID)
	Reset(ctx context.Context, id, callerID uuid.UUID) error
	Cancel(ctx context.Context, id, callerID uuid.UUID) error
	Complete(ctx context.Context, id, callerID uuid.UUID) (*models.Tournament, error)
	Delete(ctx context.Context, id, callerID uuid.UUID) error
	UploadBanner(ctx context.Context, id, callerID uuid.UUID, contentType string, banner io.Reader) (*models.Tournament, error)
	SetHighlight(ctx context.Context, id, callerID uuid.UUID, highlightURL string) (*models.Tournament, error)
	RestoreSchedules(ctx context.Context) error
}

type tournamentService struct {
	db               *sql.DB
	tournamentRepo   repositories.TournamentRepository
	registrationRepo repositories.RegistrationRepository
	groupRepo        repositories.GroupRepository
	playoffRepo      repositories.PlayoffRepository
	matchRepo        repositories.MatchRepository
	prizeRepo        repositories.PrizeRepository
	scheduleRepo     repositories.ScheduledStartRepository
	gameRepo         repositories.GameRepository
	userRepo         repositories.UserRepository
	teamRepo         repositories.TeamRepository
	bracketSvc       BracketService
	progression      *progression
	uploader         storage.FileUploader
	sched            scheduler.Scheduler
	broadcaster      Broadcaster
	logger           *slog.Logger
}

func NewTournamentService(
	db *sql.DB,
	tournamentRepo repositories.TournamentRepository,
	registrationRepo repositories.RegistrationRepository,
	groupRepo repositories.GroupRepository,
	playoffRepo repositories.PlayoffRepository,
	matchRepo repositories.MatchRepository,
	prizeRepo repositories.PrizeRepository,
	scheduleRepo repositories.ScheduledStartRepository,
	gameRepo repositories.GameRepository,
	userRepo repositories.UserRepository,
	teamRepo repositories.TeamRepository,
	bracketSvc BracketService,
	uploader storage.FileUploader,
	sched scheduler.Scheduler,
	broadcaster Broadcaster,
	logger *slog.Logger,
) TournamentService {
	return &tournamentService{
		db:               db,
		tournamentRepo:   tournamentRepo,
		registrationRepo: registrationRepo,
		groupRepo:        groupRepo,
		playoffRepo:      playoffRepo,
		matchRepo:        matchRepo,
		prizeRepo:        prizeRepo,
		scheduleRepo:     scheduleRepo,
		gameRepo:         gameRepo,
		userRepo:         userRepo,
		teamRepo:         teamRepo,
		bracketSvc:       bracketSvc,
		progression:      newProgression(tournamentRepo, matchRepo, playoffRepo, prizeRepo),
		uploader:         uploader,
		sched:            sched,
		broadcaster:      broadcaster,
		logger:           logger,
	}
}

func scheduleJobID(tournamentID uuid.UUID) string {
	return "tournament_start_" + tournamentID.String()
}

// Create validates the input, writes the tournament with its prize table,
// builds the group skeleton when requested and the playoff skeleton always,
// and arms the automatic start timer.
func (s *tournamentService) Create(ctx context.Context, creatorID uuid.UUID, input CreateTournamentInput) (*models.Tournament, error) {
	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		return nil, ErrTitleRequired
	}
	if !input.Kind.Valid() {
		return nil, ErrKindInvalid
	}
	if !input.MatchFormat.Valid() || !input.FinalFormat.Valid() {
		return nil, ErrFormatInvalid
	}
	if input.FinalFormat == models.FormatBo2 {
		return nil, ErrFinalFormatDraw
	}
	if input.MaxParticipants < 4 || input.MaxParticipants > 32 {
		return nil, ErrCapacityInvalid
	}
	if !input.StartTime.After(time.Now()) {
		return nil, ErrStartTimeInvalid
	}
	amount, err := parsePrizeFund(strings.TrimSpace(input.PrizeFund))
	if err != nil {
		return nil, ErrPrizeFundInvalid
	}
	if input.HasGroupStage {
		if err := ValidateGroupConfig(input.MaxParticipants, input.NumGroups, input.Qualifiers); err != nil {
			return nil, err
		}
	}

	if _, err := s.gameRepo.GetByID(ctx, input.GameID); err != nil {
		if errors.Is(err, repositories.ErrGameNotFound) {
			return nil, ErrGameUnknown
		}
		return nil, fmt.Errorf("load game: %w", err)
	}
	if _, err := s.userRepo.GetByID(ctx, creatorID); err != nil {
		return nil, notFound(fmt.Errorf("load creator: %w", err), repositories.ErrUserNotFound, "creator")
	}

	t := &models.Tournament{
		CreatorID:       creatorID,
		GameID:          input.GameID,
		Title:           input.Title,
		Description:     input.Description,
		Contact:         input.Contact,
		StartTime:       input.StartTime,
		PrizeFund:       formatPrize(amount),
		MaxParticipants: input.MaxParticipants,
		Kind:            input.Kind,
		Status:          models.TournamentOpen,
		MatchFormat:     input.MatchFormat,
		FinalFormat:     input.FinalFormat,
	}

	err = withTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.tournamentRepo.Create(ctx, tx, t); err != nil {
			switch {
			case errors.Is(err, repositories.ErrTournamentInvalidGame):
				return ErrGameUnknown
			case errors.Is(err, repositories.ErrTournamentInvalidUser):
				return fmt.Errorf("%w: creator", ErrNotFound)
			}
			return fmt.Errorf("create tournament: %w", err)
		}
		if err := s.createPrizeStructure(ctx, tx, t, amount); err != nil {
			return err
		}

		firstNumber := 1
		expected := t.MaxParticipants
		if input.HasGroupStage {
			stage, err := s.bracketSvc.CreateGroupSkeleton(ctx, tx, t, input.NumGroups, input.Qualifiers)
			if err != nil {
				return err
			}
			t.GroupStage = stage
			capacity := t.MaxParticipants / input.NumGroups
			firstNumber = input.NumGroups*capacity*(capacity-1)/2 + 1
			expected = input.NumGroups * input.Qualifiers
		}
		playoff, err := s.bracketSvc.CreateBracketSkeleton(ctx, tx, t, expected, firstNumber)
		if err != nil {
			return err
		}
		t.PlayoffStage = playoff

		entry := &models.ScheduledStart{
			TournamentID: t.ID,
			JobID:        scheduleJobID(t.ID),
			StartTime:    t.StartTime,
		}
		if err := s.scheduleRepo.Upsert(ctx, tx, entry); err != nil {
			return fmt.Errorf("persist scheduled start: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.sched.Schedule(t.ID, t.StartTime)
	return t, nil
}

// createPrizeStructure writes the table and, when there is prize money,
// the default 50/30/20 podium split.
func (s *tournamentService) createPrizeStructure(ctx context.Context, tx *sql.Tx, t *models.Tournament, amount float64) error {
	table := &models.PrizeTable{TournamentID: t.ID}
	if err := s.prizeRepo.CreateTable(ctx, tx, table); err != nil {
		return fmt.Errorf("create prize table: %w", err)
	}
	if amount > 0 {
		shares := []float64{0.5, 0.3, 0.2}
		for i, share := range shares {
			row := &models.PrizeTableRow{
				PrizeTableID: table.ID,
				Place:        i + 1,
				Prize:        formatPrize(amount * share),
			}
			if err := s.prizeRepo.CreateRow(ctx, tx, row); err != nil {
				return fmt.Errorf("create prize row: %w", err)
			}
			table.Rows = append(table.Rows, *row)
		}
	}
	t.PrizeTable = table
	return nil
}

// GetByID assembles the full aggregate: game, both stages, prize table,
// matches and participants are loaded in parallel, then playoff nodes get
// their match shells attached from the already loaded match list.
func (s *tournamentService) GetByID(ctx context.Context, id uuid.UUID) (*models.Tournament, error) {
	t, err := s.tournamentRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, notFound(fmt.Errorf("load tournament: %w", err), repositories.ErrTournamentNotFound, "tournament")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		game, err := s.gameRepo.GetByID(gctx, t.GameID)
		if err != nil {
			return fmt.Errorf("load game: %w", err)
		}
		t.Game = game
		return nil
	})
	g.Go(func() error {
		stage, err := s.loadGroupStage(gctx, t.ID)
		if err != nil && !errors.Is(err, repositories.ErrGroupStageNotFound) {
			return err
		}
		t.GroupStage = stage
		return nil
	})
	g.Go(func() error {
		stage, err := s.loadPlayoffStage(gctx, t.ID)
		if err != nil && !errors.Is(err, repositories.ErrPlayoffStageNotFound) {
			return err
		}
		t.PlayoffStage = stage
		return nil
	})
	g.Go(func() error {
		table, err := s.loadPrizeTable(gctx, t.ID)
		if err != nil && !errors.Is(err, repositories.ErrPrizeTableNotFound) {
			return err
		}
		t.PrizeTable = table
		return nil
	})
	g.Go(func() error {
		matches, err := s.matchRepo.ListByTournament(gctx, nil, t.ID, repositories.ListMatchesFilter{})
		if err != nil {
			return fmt.Errorf("list matches: %w", err)
		}
		t.Matches = matches
		return nil
	})
	g.Go(func() error {
		participants, err := s.registrationRepo.ListParticipants(gctx, nil, t.ID)
		if err != nil {
			return fmt.Errorf("list participants: %w", err)
		}
		t.Participants = participants
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if t.PlayoffStage != nil {
		byNode := make(map[uuid.UUID]*models.Match, len(t.Matches))
		for i := range t.Matches {
			if nodeID := t.Matches[i].PlayoffMatchID; nodeID != nil {
				byNode[*nodeID] = &t.Matches[i]
			}
		}
		for i := range t.PlayoffStage.Matches {
			t.PlayoffStage.Matches[i].Match = byNode[t.PlayoffStage.Matches[i].ID]
		}
	}
	s.attachBanner(t)
	return t, nil
}

func (s *tournamentService) loadGroupStage(ctx context.Context, tournamentID uuid.UUID) (*models.GroupStage, error) {
	stage, err := s.groupRepo.GetStageByTournament(ctx, nil, tournamentID)
	if err != nil {
		return nil, err
	}
	groups, err := s.groupRepo.ListGroupsByStage(ctx, nil, stage.ID)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	for i := range groups {
		rows, err := s.groupRepo.ListRowsByGroup(ctx, nil, groups[i].ID)
		if err != nil {
			return nil, fmt.Errorf("list group rows: %w", err)
		}
		groups[i].Rows = rows
	}
	stage.Groups = groups
	return stage, nil
}

func (s *tournamentService) loadPlayoffStage(ctx context.Context, tournamentID uuid.UUID) (*models.PlayoffStage, error) {
	stage, err := s.playoffRepo.GetStageByTournament(ctx, nil, tournamentID)
	if err != nil {
		return nil, err
	}
	nodes, err := s.playoffRepo.ListMatchesByStage(ctx, nil, stage.ID)
	if err != nil {
		return nil, fmt.Errorf("list playoff nodes: %w", err)
	}
	stage.Matches = nodes
	return stage, nil
}

func (s *tournamentService) loadPrizeTable(ctx context.Context, tournamentID uuid.UUID) (*models.PrizeTable, error) {
	table, err := s.prizeRepo.GetTableByTournament(ctx, nil, tournamentID)
	if err != nil {
		return nil, err
	}
	rows, err := s.prizeRepo.ListRows(ctx, nil, table.ID)
	if err != nil {
		return nil, fmt.Errorf("list prize rows: %w", err)
	}
	table.Rows = rows
	return table, nil
}

func (s *tournamentService) attachBanner(t *models.Tournament) {
	if t.BannerKey != nil && s.uploader != nil {
		publicURL := s.uploader.GetPublicURL(*t.BannerKey)
		t.BannerURL = &publicURL
	}
}

func (s *tournamentService) attachBanners(tournaments []models.Tournament) {
	for i := range tournaments {
		s.attachBanner(&tournaments[i])
	}
}

func (s *tournamentService) ListNearest(ctx context.Context, limit int) ([]models.Tournament, error) {
	if limit <= 0 {
		limit = 10
	}
	tournaments, err := s.tournamentRepo.ListNearest(ctx, time.Now(), limit)
	if err != nil {
		return nil, fmt.Errorf("list nearest tournaments: %w", err)
	}
	s.attachBanners(tournaments)
	return tournaments, nil
}

func (s *tournamentService) ListByGame(ctx context.Context, gameID uuid.UUID, limit, offset int) ([]models.Tournament, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	tournaments, err := s.tournamentRepo.ListByGame(ctx, gameID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list tournaments by game: %w", err)
	}
	s.attachBanners(tournaments)
	return tournaments, nil
}

func (s *tournamentService) ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]models.Tournament, error) {
	tournaments, err := s.tournamentRepo.ListByCreator(ctx, creatorID)
	if err != nil {
		return nil, fmt.Errorf("list tournaments by creator: %w", err)
	}
	s.attachBanners(tournaments)
	return tournaments, nil
}

func (s *tournamentService) ListByParticipant(ctx context.Context, participantID uuid.UUID) ([]models.Tournament, error) {
	tournaments, err := s.tournamentRepo.ListByParticipant(ctx, participantID)
	if err != nil {
		return nil, fmt.Errorf("list tournaments by participant: %w", err)
	}
	s.attachBanners(tournaments)
	return tournaments, nil
}

func (s *tournamentService) GetStandings(ctx context.Context, tournamentID uuid.UUID) (*models.GroupStage, error) {
	if _, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID); err != nil {
		return nil, notFound(fmt.Errorf("load tournament: %w", err), repositories.ErrTournamentNotFound, "tournament")
	}
	stage, err := s.loadGroupStage(ctx, tournamentID)
	if err != nil {
		return nil, notFound(fmt.Errorf("load group stage: %w", err), repositories.ErrGroupStageNotFound, "group stage")
	}
	return stage, nil
}

func (s *tournamentService) GetBracket(ctx context.Context, tournamentID uuid.UUID) (*models.PlayoffStage, error) {
	if _, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID); err != nil {
		return nil, notFound(fmt.Errorf("load tournament: %w", err), repositories.ErrTournamentNotFound, "tournament")
	}
	stage, err := s.loadPlayoffStage(ctx, tournamentID)
	if err != nil {
		return nil, notFound(fmt.Errorf("load playoff stage: %w", err), repositories.ErrPlayoffStageNotFound, "playoff stage")
	}
	for i := range stage.Matches {
		match, err := s.matchRepo.GetByPlayoffMatchID(ctx, nil, stage.Matches[i].ID)
		if err != nil {
			return nil, fmt.Errorf("load node match: %w", err)
		}
		stage.Matches[i].Match = match
	}
	return stage, nil
}

func (s *tournamentService) GetPrizes(ctx context.Context, tournamentID uuid.UUID) (*models.PrizeTable, error) {
	if _, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID); err != nil {
		return nil, notFound(fmt.Errorf("load tournament: %w", err), repositories.ErrTournamentNotFound, "tournament")
	}
	table, err := s.loadPrizeTable(ctx, tournamentID)
	if err != nil {
		return nil, notFound(fmt.Errorf("load prize table: %w", err), repositories.ErrPrizeTableNotFound, "prize table")
	}
	return table, nil
}

// UpdateDetails edits the presentation fields. Only the creator may edit,
// and only while the tournament is still open.
func (s *tournamentService) UpdateDetails(ctx context.Context, id, callerID uuid.UUID, input UpdateTournamentInput) (*models.Tournament, error) {
	var t *models.Tournament
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		t, err = s.tournamentRepo.GetByID(ctx, tx, id)
		if err != nil {
			return notFound(fmt.Errorf("load tournament: %w", err), repositories.ErrTournamentNotFound, "tournament")
		}
		if t.CreatorID != callerID {
			return fmt.Errorf("%w: only the creator can edit a tournament", ErrPermission)
		}
		if t.Status != models.TournamentOpen {
			return ErrTournamentNotOpen
		}

		if input.Title != nil {
			title := strings.TrimSpace(*input.Title)
			if title == "" {
				return ErrTitleRequired
			}
			t.Title = title
		}
		if input.Description != nil {
			t.Description = input.Description
		}
		if input.Contact != nil {
			t.Contact = input.Contact
		}
		if err := s.tournamentRepo.UpdateDetails(ctx, tx, t); err != nil {
			return fmt.Errorf("update tournament: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.attachBanner(t)
	return t, nil
}

// Register adds a participant while the tournament is open and has room.
// For solo tournaments participants register themselves; for team
// tournaments the team captain registers the team. Admins may do either.
func (s *tournamentService) Register(ctx context.Context, tournamentID, participantID, callerID uuid.UUID) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		t, err := s.tournamentRepo.GetByID(ctx, tx, tournamentID)
		if err != nil {
			return notFound(fmt.Errorf("load tournament: %w", err), repositories.ErrTournamentNotFound, "tournament")
		}
		if t.Status != models.TournamentOpen {
			return ErrRegistrationClosed
		}
		if err := s.authorizeParticipantAction(ctx, t, participantID, callerID); err != nil {
			return err
		}

		count, err := s.registrationRepo.CountByTournament(ctx, tx, tournamentID)
		if err != nil {
			return fmt.Errorf("count registrations: %w", err)
		}
		if count >= t.MaxParticipants {
			return ErrTournamentFull
		}

		reg := &models.Registration{TournamentID: tournamentID, ParticipantID: participantID}
		if err := s.registrationRepo.Create(ctx, tx, reg); err != nil {
			if errors.Is(err, repositories.ErrRegistrationDuplicate) {
				return ErrAlreadyRegistered
			}
			return fmt.Errorf("register participant: %w", err)
		}
		return nil
	})
}

// Unregister removes a registration under the same permission rules as
// Register, and only while the tournament is still open.
func (s *tournamentService) Unregister(ctx context.Context, tournamentID, participantID, callerID uuid.UUID) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		t, err := s.tournamentRepo.GetByID(ctx, tx, tournamentID)
		if err != nil {
			return notFound(fmt.Errorf("load tournament: %w", err), repositories.ErrTournamentNotFound, "tournament")
		}
		if t.Status != models.TournamentOpen {
			return ErrRegistrationClosed
		}
		if err := s.authorizeParticipantAction(ctx, t, participantID, callerID); err != nil {
			return err
		}

		if err := s.registrationRepo.Delete(ctx, tx, tournamentID, participantID); err != nil {
			if errors.Is(err, repositories.ErrRegistrationNotFound) {
				return ErrNotRegistered
			}
			return fmt.Errorf("remove registration: %w", err)
		}
		return nil
	})
}

func (s *tournamentService) authorizeParticipantAction(ctx context.Context, t *models.Tournament, participantID, callerID uuid.UUID) error {
	switch t.Kind {
	case models.KindTeam:
		team, err := s.teamRepo.GetByID(ctx, participantID)
		if err != nil {
			return notFound(fmt.Errorf("load team: %w", err), repositories.ErrTeamNotFound, "team")
		}
		return s.requireSelfOrAdmin(ctx, team.CaptainID, callerID, "only the team captain can manage the team's registration")
	default:
		if _, err := s.userRepo.GetByID(ctx, participantID); err != nil {
			return notFound(fmt.Errorf("load participant: %w", err), repositories.ErrUserNotFound, "participant")
		}
		return s.requireSelfOrAdmin(ctx, participantID, callerID, "participants can manage only their own registration")
	}
}

func (s *tournamentService) requireSelfOrAdmin(ctx context.Context, allowedID, callerID uuid.UUID, message string) error {
	if allowedID == callerID {
		return nil
	}
	user, err := s.userRepo.GetByID(ctx, callerID)
	if err != nil {
		return notFound(fmt.Errorf("load caller: %w", err), repositories.ErrUserNotFound, "user")
	}
	if user.Role != models.RoleAdmin {
		return fmt.Errorf("%w: %s", ErrPermission, message)
	}
	return nil
}

// Start moves an open tournament into play. With fewer than two registered
// participants the tournament is cancelled instead, and that cancellation
// commits before the error is reported. Otherwise the persisted start entry
// is consumed, participants are seeded into the group stage or straight
// into the bracket, and the tournament goes ongoing.
func (s *tournamentService) Start(ctx context.Context, id uuid.UUID) error {
	var (
		t            *models.Tournament
		events       eventCollector
		insufficient bool
	)
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		t, err = s.tournamentRepo.GetByID(ctx, tx, id)
		if err != nil {
			return notFound(fmt.Errorf("load tournament: %w", err), repositories.ErrTournamentNotFound, "tournament")
		}
		if t.Status != models.TournamentOpen {
			return ErrTournamentNotOpen
		}

		participants, err := s.registrationRepo.ListParticipants(ctx, tx, id)
		if err != nil {
			return fmt.Errorf("list participants: %w", err)
		}
		if err := s.scheduleRepo.Delete(ctx, tx, id); err != nil {
			return fmt.Errorf("drop scheduled start: %w", err)
		}

		if len(participants) < 2 {
			// The cancellation must outlive this call, so it commits and
			// the error is raised after the transaction.
			if err := s.tournamentRepo.UpdateStatus(ctx, tx, id, models.TournamentCancelled); err != nil {
				return fmt.Errorf("cancel tournament: %w", err)
			}
			t.Status = models.TournamentCancelled
			insufficient = true
			events.add(realtime.EventTournamentCancelled, t)
			return nil
		}

		if err := s.tournamentRepo.UpdateStatus(ctx, tx, id, models.TournamentOngoing); err != nil {
			return fmt.Errorf("mark tournament ongoing: %w", err)
		}
		t.Status = models.TournamentOngoing
		events.add(realtime.EventTournamentStarted, t)

		hasGroups := true
		if _, err := s.groupRepo.GetStageByTournament(ctx, tx, id); err != nil {
			if !errors.Is(err, repositories.ErrGroupStageNotFound) {
				return fmt.Errorf("check group stage: %w", err)
			}
			hasGroups = false
		}
		if !hasGroups {
			return s.bracketSvc.SeedPlayoffFromRegistrations(ctx, tx, t, participants)
		}

		if err := s.bracketSvc.SeedGroups(ctx, tx, t, participants); err != nil {
			return err
		}
		// Seeding a sparse field can cancel every group match outright;
		// the playoff still has to be fed from whatever standings exist.
		groupOnly := false
		matches, err := s.matchRepo.ListByTournament(ctx, tx, id, repositories.ListMatchesFilter{IsPlayoff: &groupOnly})
		if err != nil {
			return fmt.Errorf("list group matches: %w", err)
		}
		for i := range matches {
			if !matches[i].Decided() {
				return nil
			}
		}
		if err := s.bracketSvc.SeedPlayoffFromGroups(ctx, tx, t); err != nil {
			if errors.Is(err, ErrPlayoffAlreadySeeded) {
				return nil
			}
			return err
		}
		events.add(realtime.EventGroupStageCompleted, GroupStageCompletedPayload{TournamentID: t.ID})
		return nil
	})
	if err != nil {
		return err
	}

	s.sched.Cancel(id)
	publishEvents(s.broadcaster, id, &events)
	if insufficient {
		return ErrNotEnoughParticipants
	}
	return nil
}

// StartScheduled is the scheduler callback. A tournament cancelled for
// lack of participants is an expected outcome there, not a failure.
func (s *tournamentService) StartScheduled(ctx context.Context, tournamentID uuid.UUID) {
	err := s.Start(ctx, tournamentID)
	switch {
	case err == nil:
		s.logger.Info("tournament started on schedule", "tournament_id", tournamentID)
	case errors.Is(err, ErrNotEnoughParticipants):
		s.logger.Info("scheduled start cancelled tournament", "tournament_id", tournamentID, "reason", err)
	case errors.Is(err, ErrTournamentNotOpen):
		s.logger.Info("scheduled start skipped", "tournament_id", tournamentID, "reason", err)
	default:
		s.logger.Error("scheduled start failed", "tournament_id", tournamentID, "error", err)
	}
}

// Reset wipes everything derived from registrations on a started,
// completed or cancelled tournament and rebuilds the empty skeletons with
// the same layout, returning the tournament to open. Registrations and the
// prize fund survive; results, standings and prize winners do not. The
// start timer is not re-armed, a reset tournament is started manually.
func (s *tournamentService) Reset(ctx context.Context, id, callerID uuid.UUID) error {
	var (
		t      *models.Tournament
		events eventCollector
	)
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		t, err = s.tournamentRepo.GetByID(ctx, tx, id)
		if err != nil {
			return notFound(fmt.Errorf("load tournament: %w", err), repositories.ErrTournamentNotFound, "tournament")
		}
		if err := requireCreatorOrAdmin(ctx, s.userRepo, t.CreatorID, callerID); err != nil {
			return err
		}
		if t.Status == models.TournamentOpen {
			return ErrTournamentStillOpen
		}

		// Capture the group layout before the teardown wipes it.
		numGroups, qualifiers := 0, 0
		stage, err := s.groupRepo.GetStageByTournament(ctx, tx, id)
		switch {
		case err == nil:
			groups, err := s.groupRepo.ListGroupsByStage(ctx, tx, stage.ID)
			if err != nil {
				return fmt.Errorf("list groups: %w", err)
			}
			numGroups = len(groups)
			qualifiers = stage.WinnersBracketQualified
		case !errors.Is(err, repositories.ErrGroupStageNotFound):
			return fmt.Errorf("check group stage: %w", err)
		}

		if err := s.matchRepo.DeleteByTournament(ctx, tx, id); err != nil {
			return fmt.Errorf("delete matches: %w", err)
		}
		if err := s.groupRepo.DeleteStageByTournament(ctx, tx, id); err != nil {
			return fmt.Errorf("delete group stage: %w", err)
		}
		if err := s.playoffRepo.DeleteStageByTournament(ctx, tx, id); err != nil {
			return fmt.Errorf("delete playoff stage: %w", err)
		}
		if err := s.prizeRepo.DeleteTableByTournament(ctx, tx, id); err != nil {
			return fmt.Errorf("delete prize table: %w", err)
		}
		if err := s.scheduleRepo.Delete(ctx, tx, id); err != nil {
			return fmt.Errorf("drop scheduled start: %w", err)
		}

		if err := s.tournamentRepo.UpdateStatus(ctx, tx, id, models.TournamentOpen); err != nil {
			return fmt.Errorf("reopen tournament: %w", err)
		}
		t.Status = models.TournamentOpen

		amount, err := parsePrizeFund(t.PrizeFund)
		if err != nil {
			return fmt.Errorf("parse stored prize fund: %w", err)
		}
		if err := s.createPrizeStructure(ctx, tx, t, amount); err != nil {
			return err
		}

		firstNumber := 1
		expected := t.MaxParticipants
		if numGroups > 0 {
			if _, err := s.bracketSvc.CreateGroupSkeleton(ctx, tx, t, numGroups, qualifiers); err != nil {
				return err
			}
			capacity := t.MaxParticipants / numGroups
			firstNumber = numGroups*capacity*(capacity-1)/2 + 1
			expected = numGroups * qualifiers
		}
		if _, err := s.bracketSvc.CreateBracketSkeleton(ctx, tx, t, expected, firstNumber); err != nil {
			return err
		}
		events.add(realtime.EventTournamentReset, t)
		return nil
	})
	if err != nil {
		return err
	}

	s.sched.Cancel(id)
	publishEvents(s.broadcaster, id, &events)
	return nil
}

// Cancel closes an open or ongoing tournament without a result.
func (s *tournamentService) Cancel(ctx context.Context, id, callerID uuid.UUID) error {
	var (
		t      *models.Tournament
		events eventCollector
	)
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		t, err = s.tournamentRepo.GetByID(ctx, tx, id)
		if err != nil {
			return notFound(fmt.Errorf("load tournament: %w", err), repositories.ErrTournamentNotFound, "tournament")
		}
		if err := requireCreatorOrAdmin(ctx, s.userRepo, t.CreatorID, callerID); err != nil {
			return err
		}
		if t.Status != models.TournamentOpen && t.Status != models.TournamentOngoing {
			return ErrCancelNotAllowed
		}

		if err := s.scheduleRepo.Delete(ctx, tx, id); err != nil {
			return fmt.Errorf("drop scheduled start: %w", err)
		}
		if err := s.tournamentRepo.UpdateStatus(ctx, tx, id, models.TournamentCancelled); err != nil {
			return fmt.Errorf("cancel tournament: %w", err)
		}
		t.Status = models.TournamentCancelled
		events.add(realtime.EventTournamentCancelled, t)
		return nil
	})
	if err != nil {
		return err
	}

	s.sched.Cancel(id)
	publishEvents(s.broadcaster, id, &events)
	return nil
}

// Complete forces the end-of-tournament bookkeeping. Only admins may do
// this; the usual path is the automatic completion after the final.
func (s *tournamentService) Complete(ctx context.Context, id, callerID uuid.UUID) (*models.Tournament, error) {
	var (
		t      *models.Tournament
		events eventCollector
	)
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		t, err = s.tournamentRepo.GetByID(ctx, tx, id)
		if err != nil {
			return notFound(fmt.Errorf("load tournament: %w", err), repositories.ErrTournamentNotFound, "tournament")
		}
		user, err := s.userRepo.GetByID(ctx, callerID)
		if err != nil {
			return notFound(fmt.Errorf("load caller: %w", err), repositories.ErrUserNotFound, "user")
		}
		if user.Role != models.RoleAdmin {
			return fmt.Errorf("%w: only an admin can complete a tournament manually", ErrPermission)
		}

		if err := s.progression.completeTournament(ctx, tx, t); err != nil {
			return err
		}
		events.add(realtime.EventTournamentCompleted, t)
		return nil
	})
	if err != nil {
		return nil, err
	}

	publishEvents(s.broadcaster, id, &events)
	s.attachBanner(t)
	return t, nil
}

// Delete removes the tournament and everything hanging off it. Ongoing
// tournaments must be cancelled first.
func (s *tournamentService) Delete(ctx context.Context, id, callerID uuid.UUID) error {
	var bannerKey *string
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		t, err := s.tournamentRepo.GetByID(ctx, tx, id)
		if err != nil {
			return notFound(fmt.Errorf("load tournament: %w", err), repositories.ErrTournamentNotFound, "tournament")
		}
		if err := requireCreatorOrAdmin(ctx, s.userRepo, t.CreatorID, callerID); err != nil {
			return err
		}
		if t.Status == models.TournamentOngoing {
			return ErrDeleteOngoing
		}
		bannerKey = t.BannerKey

		if err := s.tournamentRepo.Delete(ctx, tx, id); err != nil {
			if errors.Is(err, repositories.ErrTournamentInUse) {
				return fmt.Errorf("%w: %v", ErrInvalidState, err)
			}
			return fmt.Errorf("delete tournament: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.sched.Cancel(id)
	if bannerKey != nil && s.uploader != nil {
		if err := s.uploader.Delete(ctx, *bannerKey); err != nil {
			s.logger.Warn("failed to delete tournament banner", "tournament_id", id, "key", *bannerKey, "error", err)
		}
	}
	return nil
}

// UploadBanner stores the image under a per-tournament key and swaps the
// stored key, removing the previous object best effort.
func (s *tournamentService) UploadBanner(ctx context.Context, id, callerID uuid.UUID, contentType string, banner io.Reader) (*models.Tournament, error) {
	if s.uploader == nil {
		return nil, fmt.Errorf("%w: file storage is not configured", ErrInvalidState)
	}
	ext, err := GetExtensionFromContentType(contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	t, err := s.tournamentRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, notFound(fmt.Errorf("load tournament: %w", err), repositories.ErrTournamentNotFound, "tournament")
	}
	if t.CreatorID != callerID {
		return nil, fmt.Errorf("%w: only the creator can change the banner", ErrPermission)
	}

	key := fmt.Sprintf("tournaments/%s/banner%s", t.ID, ext)
	result, err := s.uploader.Upload(ctx, key, contentType, banner)
	if err != nil {
		return nil, fmt.Errorf("upload banner: %w", err)
	}
	if err := s.tournamentRepo.UpdateBannerKey(ctx, nil, id, &result.Key); err != nil {
		return nil, fmt.Errorf("store banner key: %w", err)
	}

	if t.BannerKey != nil && *t.BannerKey != result.Key {
		if err := s.uploader.Delete(ctx, *t.BannerKey); err != nil {
			s.logger.Warn("failed to delete previous banner", "tournament_id", id, "key", *t.BannerKey, "error", err)
		}
	}
	t.BannerKey = &result.Key
	s.attachBanner(t)
	return t, nil
}

// SetHighlight attaches a highlight video link to a completed tournament.
func (s *tournamentService) SetHighlight(ctx context.Context, id, callerID uuid.UUID, highlightURL string) (*models.Tournament, error) {
	t, err := s.tournamentRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, notFound(fmt.Errorf("load tournament: %w", err), repositories.ErrTournamentNotFound, "tournament")
	}
	if t.CreatorID != callerID {
		return nil, fmt.Errorf("%w: only the creator can attach a highlight", ErrPermission)
	}
	if t.Status != models.TournamentCompleted {
		return nil, ErrHighlightTooEarly
	}
	parsed, err := url.Parse(highlightURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, ErrHighlightURLInvalid
	}

	if err := s.tournamentRepo.UpdateHighlightURL(ctx, nil, id, &highlightURL); err != nil {
		return nil, fmt.Errorf("store highlight url: %w", err)
	}
	t.HighlightURL = &highlightURL
	s.attachBanner(t)
	return t, nil
}

// RestoreSchedules re-arms the start timers persisted before a restart.
// Entries whose start time already passed are dropped and logged; a
// tournament whose window was missed waits for a manual start instead of
// starting at some arbitrary later moment.
func (s *tournamentService) RestoreSchedules(ctx context.Context) error {
	entries, err := s.scheduleRepo.List(ctx)
	if err != nil {
		return fmt.Errorf("list scheduled starts: %w", err)
	}

	now := time.Now()
	for _, entry := range entries {
		if entry.StartTime.After(now) {
			s.sched.Schedule(entry.TournamentID, entry.StartTime)
			continue
		}
		if err := s.scheduleRepo.Delete(ctx, nil, entry.TournamentID); err != nil {
			s.logger.Warn("failed to drop stale scheduled start", "tournament_id", entry.TournamentID, "error", err)
			continue
		}
		s.logger.Warn("dropped stale scheduled start", "tournament_id", entry.TournamentID, "start_time", entry.StartTime)
	}
	return nil
}
