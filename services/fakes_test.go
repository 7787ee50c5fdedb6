package services

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/bracketops/tournament-engine/models"
	"github.com/bracketops/tournament-engine/realtime"
	"github.com/bracketops/tournament-engine/repositories"
	"github.com/bracketops/tournament-engine/storage"
)

// The fakes below are in-memory repositories used by every service test.
// They ignore the SQLExecutor they receive and mirror the ordering
// guarantees the services rely on: matches come back in number order,
// group rows in standings order, registrations in creation order.

// newTxDB returns a *sql.DB whose transactions always succeed. No query
// ever reaches it; the in-memory repositories hold the state.
func newTxDB(t *testing.T) *sql.DB {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.MatchExpectationsInOrder(false)
	for i := 0; i < 256; i++ {
		mock.ExpectBegin()
		mock.ExpectCommit()
		mock.ExpectRollback()
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

func copyUUIDPtr(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

// ---- tournaments ----

type fakeTournamentRepo struct {
	tournaments map[uuid.UUID]*models.Tournament
	order       []uuid.UUID
	regs        *fakeRegistrationRepo
}

func newFakeTournamentRepo(regs *fakeRegistrationRepo) *fakeTournamentRepo {
	return &fakeTournamentRepo{tournaments: map[uuid.UUID]*models.Tournament{}, regs: regs}
}

func (f *fakeTournamentRepo) Create(_ context.Context, _ repositories.SQLExecutor, t *models.Tournament) error {
	ensureID(&t.ID)
	t.CreatedAt = time.Now()
	c := *t
	f.tournaments[t.ID] = &c
	f.order = append(f.order, t.ID)
	return nil
}

func (f *fakeTournamentRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id uuid.UUID) (*models.Tournament, error) {
	t, ok := f.tournaments[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	c := *t
	return &c, nil
}

func (f *fakeTournamentRepo) ListNearest(_ context.Context, after time.Time, limit int) ([]models.Tournament, error) {
	out := make([]models.Tournament, 0)
	for _, id := range f.order {
		t := f.tournaments[id]
		if t.Status == models.TournamentOpen && !t.StartTime.Before(after) {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeTournamentRepo) ListByGame(_ context.Context, gameID uuid.UUID, limit, offset int) ([]models.Tournament, error) {
	out := make([]models.Tournament, 0)
	for _, id := range f.order {
		t := f.tournaments[id]
		if t.GameID == gameID {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	if offset >= len(out) {
		return []models.Tournament{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeTournamentRepo) ListByCreator(_ context.Context, creatorID uuid.UUID) ([]models.Tournament, error) {
	out := make([]models.Tournament, 0)
	for _, id := range f.order {
		t := f.tournaments[id]
		if t.CreatorID == creatorID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeTournamentRepo) ListByParticipant(_ context.Context, participantID uuid.UUID) ([]models.Tournament, error) {
	out := make([]models.Tournament, 0)
	for _, id := range f.order {
		t := f.tournaments[id]
		for _, reg := range f.regs.regs {
			if reg.TournamentID == t.ID && reg.ParticipantID == participantID {
				out = append(out, *t)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeTournamentRepo) UpdateDetails(_ context.Context, _ repositories.SQLExecutor, t *models.Tournament) error {
	stored, ok := f.tournaments[t.ID]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	stored.Title = t.Title
	stored.Description = t.Description
	stored.Contact = t.Contact
	stored.StartTime = t.StartTime
	stored.PrizeFund = t.PrizeFund
	stored.MaxParticipants = t.MaxParticipants
	return nil
}

func (f *fakeTournamentRepo) UpdateStatus(_ context.Context, _ repositories.SQLExecutor, id uuid.UUID, status models.TournamentStatus) error {
	stored, ok := f.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	stored.Status = status
	return nil
}

func (f *fakeTournamentRepo) UpdateBannerKey(_ context.Context, _ repositories.SQLExecutor, id uuid.UUID, bannerKey *string) error {
	stored, ok := f.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	stored.BannerKey = bannerKey
	return nil
}

func (f *fakeTournamentRepo) UpdateHighlightURL(_ context.Context, _ repositories.SQLExecutor, id uuid.UUID, url *string) error {
	stored, ok := f.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	stored.HighlightURL = url
	return nil
}

func (f *fakeTournamentRepo) Delete(_ context.Context, _ repositories.SQLExecutor, id uuid.UUID) error {
	if _, ok := f.tournaments[id]; !ok {
		return repositories.ErrTournamentNotFound
	}
	delete(f.tournaments, id)
	for i, oid := range f.order {
		if oid == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return nil
}

// ---- registrations ----

type fakeRegistrationRepo struct {
	regs []models.Registration
}

func newFakeRegistrationRepo() *fakeRegistrationRepo {
	return &fakeRegistrationRepo{}
}

func (f *fakeRegistrationRepo) Create(_ context.Context, _ repositories.SQLExecutor, reg *models.Registration) error {
	for _, r := range f.regs {
		if r.TournamentID == reg.TournamentID && r.ParticipantID == reg.ParticipantID {
			return repositories.ErrRegistrationDuplicate
		}
	}
	ensureID(&reg.ID)
	reg.CreatedAt = time.Now()
	f.regs = append(f.regs, *reg)
	return nil
}

func (f *fakeRegistrationRepo) Delete(_ context.Context, _ repositories.SQLExecutor, tournamentID, participantID uuid.UUID) error {
	for i, r := range f.regs {
		if r.TournamentID == tournamentID && r.ParticipantID == participantID {
			f.regs = append(f.regs[:i], f.regs[i+1:]...)
			return nil
		}
	}
	return repositories.ErrRegistrationNotFound
}

func (f *fakeRegistrationRepo) Exists(_ context.Context, _ repositories.SQLExecutor, tournamentID, participantID uuid.UUID) (bool, error) {
	for _, r := range f.regs {
		if r.TournamentID == tournamentID && r.ParticipantID == participantID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRegistrationRepo) ListParticipants(_ context.Context, _ repositories.SQLExecutor, tournamentID uuid.UUID) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0)
	for _, r := range f.regs {
		if r.TournamentID == tournamentID {
			out = append(out, r.ParticipantID)
		}
	}
	return out, nil
}

func (f *fakeRegistrationRepo) CountByTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID uuid.UUID) (int, error) {
	n := 0
	for _, r := range f.regs {
		if r.TournamentID == tournamentID {
			n++
		}
	}
	return n, nil
}

// ---- group stage ----

type fakeGroupRepo struct {
	stages map[uuid.UUID]*models.GroupStage // by tournament id
	groups map[uuid.UUID][]*models.Group    // by stage id, creation order
	rows   map[uuid.UUID][]*models.GroupRow // by group id, creation order
}

func newFakeGroupRepo() *fakeGroupRepo {
	return &fakeGroupRepo{
		stages: map[uuid.UUID]*models.GroupStage{},
		groups: map[uuid.UUID][]*models.Group{},
		rows:   map[uuid.UUID][]*models.GroupRow{},
	}
}

func (f *fakeGroupRepo) CreateStage(_ context.Context, _ repositories.SQLExecutor, stage *models.GroupStage) error {
	ensureID(&stage.ID)
	c := *stage
	f.stages[stage.TournamentID] = &c
	return nil
}

func (f *fakeGroupRepo) GetStageByTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID uuid.UUID) (*models.GroupStage, error) {
	stage, ok := f.stages[tournamentID]
	if !ok {
		return nil, repositories.ErrGroupStageNotFound
	}
	c := *stage
	return &c, nil
}

func (f *fakeGroupRepo) DeleteStageByTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID uuid.UUID) error {
	stage, ok := f.stages[tournamentID]
	if !ok {
		return nil
	}
	for _, g := range f.groups[stage.ID] {
		delete(f.rows, g.ID)
	}
	delete(f.groups, stage.ID)
	delete(f.stages, tournamentID)
	return nil
}

func (f *fakeGroupRepo) CreateGroup(_ context.Context, _ repositories.SQLExecutor, group *models.Group) error {
	ensureID(&group.ID)
	c := *group
	f.groups[group.GroupStageID] = append(f.groups[group.GroupStageID], &c)
	return nil
}

func (f *fakeGroupRepo) ListGroupsByStage(_ context.Context, _ repositories.SQLExecutor, stageID uuid.UUID) ([]models.Group, error) {
	out := make([]models.Group, 0)
	for _, g := range f.groups[stageID] {
		out = append(out, *g)
	}
	return out, nil
}

func (f *fakeGroupRepo) GetGroupByID(_ context.Context, _ repositories.SQLExecutor, id uuid.UUID) (*models.Group, error) {
	for _, groups := range f.groups {
		for _, g := range groups {
			if g.ID == id {
				c := *g
				return &c, nil
			}
		}
	}
	return nil, repositories.ErrGroupNotFound
}

func (f *fakeGroupRepo) CreateRow(_ context.Context, _ repositories.SQLExecutor, row *models.GroupRow) error {
	ensureID(&row.ID)
	c := *row
	f.rows[row.GroupID] = append(f.rows[row.GroupID], &c)
	return nil
}

func (f *fakeGroupRepo) ListRowsByGroup(_ context.Context, _ repositories.SQLExecutor, groupID uuid.UUID) ([]models.GroupRow, error) {
	return f.sortedRows(groupID), nil
}

func (f *fakeGroupRepo) ListTopRows(_ context.Context, _ repositories.SQLExecutor, groupID uuid.UUID, limit int) ([]models.GroupRow, error) {
	out := make([]models.GroupRow, 0)
	for _, row := range f.sortedRows(groupID) {
		if row.ParticipantID == nil {
			continue
		}
		out = append(out, row)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeGroupRepo) GetRowByParticipant(_ context.Context, _ repositories.SQLExecutor, groupID, participantID uuid.UUID) (*models.GroupRow, error) {
	for _, row := range f.rows[groupID] {
		if row.ParticipantID != nil && *row.ParticipantID == participantID {
			c := *row
			return &c, nil
		}
	}
	return nil, repositories.ErrGroupRowNotFound
}

func (f *fakeGroupRepo) UpdateRow(_ context.Context, _ repositories.SQLExecutor, row *models.GroupRow) error {
	for _, stored := range f.rows[row.GroupID] {
		if stored.ID == row.ID {
			stored.ParticipantID = copyUUIDPtr(row.ParticipantID)
			stored.Place = row.Place
			stored.Wins = row.Wins
			stored.Draws = row.Draws
			stored.Losses = row.Losses
			return nil
		}
	}
	return repositories.ErrGroupRowNotFound
}

func (f *fakeGroupRepo) sortedRows(groupID uuid.UUID) []models.GroupRow {
	stored := f.rows[groupID]
	index := make(map[uuid.UUID]int, len(stored))
	out := make([]models.GroupRow, 0, len(stored))
	for i, row := range stored {
		index[row.ID] = i
		out = append(out, *row)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Place != out[j].Place {
			return out[i].Place < out[j].Place
		}
		if out[i].Wins != out[j].Wins {
			return out[i].Wins > out[j].Wins
		}
		return index[out[i].ID] < index[out[j].ID]
	})
	return out
}

// ---- playoff stage ----

type fakePlayoffRepo struct {
	stages map[uuid.UUID]*models.PlayoffStage   // by tournament id
	nodes  map[uuid.UUID][]*models.PlayoffMatch // by stage id
}

func newFakePlayoffRepo() *fakePlayoffRepo {
	return &fakePlayoffRepo{
		stages: map[uuid.UUID]*models.PlayoffStage{},
		nodes:  map[uuid.UUID][]*models.PlayoffMatch{},
	}
}

func (f *fakePlayoffRepo) CreateStage(_ context.Context, _ repositories.SQLExecutor, stage *models.PlayoffStage) error {
	ensureID(&stage.ID)
	c := *stage
	f.stages[stage.TournamentID] = &c
	return nil
}

func (f *fakePlayoffRepo) GetStageByTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID uuid.UUID) (*models.PlayoffStage, error) {
	stage, ok := f.stages[tournamentID]
	if !ok {
		return nil, repositories.ErrPlayoffStageNotFound
	}
	c := *stage
	return &c, nil
}

func (f *fakePlayoffRepo) DeleteStageByTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID uuid.UUID) error {
	stage, ok := f.stages[tournamentID]
	if !ok {
		return nil
	}
	delete(f.nodes, stage.ID)
	delete(f.stages, tournamentID)
	return nil
}

func (f *fakePlayoffRepo) CreateMatch(_ context.Context, _ repositories.SQLExecutor, pm *models.PlayoffMatch) error {
	ensureID(&pm.ID)
	c := *pm
	f.nodes[pm.PlayoffStageID] = append(f.nodes[pm.PlayoffStageID], &c)
	return nil
}

func (f *fakePlayoffRepo) GetMatchByID(_ context.Context, _ repositories.SQLExecutor, id uuid.UUID) (*models.PlayoffMatch, error) {
	for _, nodes := range f.nodes {
		for _, n := range nodes {
			if n.ID == id {
				c := *n
				return &c, nil
			}
		}
	}
	return nil, repositories.ErrPlayoffMatchNotFound
}

// The bracket skeleton creates nodes in match number order, so creation
// order here matches the number ordering of the postgres listings.
func (f *fakePlayoffRepo) ListMatchesByStage(_ context.Context, _ repositories.SQLExecutor, stageID uuid.UUID) ([]models.PlayoffMatch, error) {
	out := make([]models.PlayoffMatch, 0)
	for _, n := range f.nodes[stageID] {
		out = append(out, *n)
	}
	return out, nil
}

func (f *fakePlayoffRepo) ListMatchesByRound(_ context.Context, _ repositories.SQLExecutor, stageID uuid.UUID, round int) ([]models.PlayoffMatch, error) {
	out := make([]models.PlayoffMatch, 0)
	for _, n := range f.nodes[stageID] {
		if n.Round == round {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (f *fakePlayoffRepo) FindDependent(_ context.Context, _ repositories.SQLExecutor, feederID uuid.UUID) (*models.PlayoffMatch, error) {
	for _, nodes := range f.nodes {
		for _, n := range nodes {
			if (n.DependsOn1 != nil && *n.DependsOn1 == feederID) ||
				(n.DependsOn2 != nil && *n.DependsOn2 == feederID) {
				c := *n
				return &c, nil
			}
		}
	}
	return nil, repositories.ErrPlayoffMatchNotFound
}

func (f *fakePlayoffRepo) UpdateWinnerTo(_ context.Context, _ repositories.SQLExecutor, id uuid.UUID, winnerTo *uuid.UUID) error {
	for _, nodes := range f.nodes {
		for _, n := range nodes {
			if n.ID == id {
				n.WinnerTo = copyUUIDPtr(winnerTo)
				return nil
			}
		}
	}
	return repositories.ErrPlayoffMatchNotFound
}

func (f *fakePlayoffRepo) MaxRound(_ context.Context, _ repositories.SQLExecutor, stageID uuid.UUID) (int, error) {
	max := 0
	for _, n := range f.nodes[stageID] {
		if n.Round > max {
			max = n.Round
		}
	}
	return max, nil
}

// ---- matches ----

type fakeMatchRepo struct {
	matches []*models.Match
}

func newFakeMatchRepo() *fakeMatchRepo {
	return &fakeMatchRepo{}
}

func (f *fakeMatchRepo) Create(_ context.Context, _ repositories.SQLExecutor, match *models.Match) error {
	ensureID(&match.ID)
	match.CreatedAt = time.Now()
	c := *match
	f.matches = append(f.matches, &c)
	return nil
}

func (f *fakeMatchRepo) find(id uuid.UUID) *models.Match {
	for _, m := range f.matches {
		if m.ID == id {
			return m
		}
	}
	return nil
}

func (f *fakeMatchRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id uuid.UUID) (*models.Match, error) {
	m := f.find(id)
	if m == nil {
		return nil, repositories.ErrMatchNotFound
	}
	c := *m
	return &c, nil
}

func (f *fakeMatchRepo) GetByPlayoffMatchID(_ context.Context, _ repositories.SQLExecutor, playoffMatchID uuid.UUID) (*models.Match, error) {
	for _, m := range f.matches {
		if m.PlayoffMatchID != nil && *m.PlayoffMatchID == playoffMatchID {
			c := *m
			return &c, nil
		}
	}
	return nil, repositories.ErrMatchNotFound
}

func (f *fakeMatchRepo) ListByTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID uuid.UUID, filter repositories.ListMatchesFilter) ([]models.Match, error) {
	out := make([]models.Match, 0)
	for _, m := range f.matches {
		if m.TournamentID != tournamentID {
			continue
		}
		if filter.GroupID != nil && (m.GroupID == nil || *m.GroupID != *filter.GroupID) {
			continue
		}
		if filter.IsPlayoff != nil && m.IsPlayoff != *filter.IsPlayoff {
			continue
		}
		if filter.Status != nil && m.Status != *filter.Status {
			continue
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (f *fakeMatchRepo) ListByGroup(_ context.Context, _ repositories.SQLExecutor, groupID uuid.UUID) ([]models.Match, error) {
	out := make([]models.Match, 0)
	for _, m := range f.matches {
		if m.GroupID != nil && *m.GroupID == groupID {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (f *fakeMatchRepo) UpdateParticipants(_ context.Context, _ repositories.SQLExecutor, id uuid.UUID, p1, p2 *uuid.UUID) error {
	m := f.find(id)
	if m == nil {
		return repositories.ErrMatchNotFound
	}
	m.Participant1ID = copyUUIDPtr(p1)
	m.Participant2ID = copyUUIDPtr(p2)
	return nil
}

func (f *fakeMatchRepo) UpdateScores(_ context.Context, _ repositories.SQLExecutor, id uuid.UUID, p1Score, p2Score int) error {
	m := f.find(id)
	if m == nil {
		return repositories.ErrMatchNotFound
	}
	m.Participant1Score = p1Score
	m.Participant2Score = p2Score
	return nil
}

func (f *fakeMatchRepo) UpdateStatusWinner(_ context.Context, _ repositories.SQLExecutor, id uuid.UUID, status models.MatchStatus, winnerID *uuid.UUID) error {
	m := f.find(id)
	if m == nil {
		return repositories.ErrMatchNotFound
	}
	m.Status = status
	m.WinnerID = copyUUIDPtr(winnerID)
	return nil
}

func (f *fakeMatchRepo) DeleteByTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID uuid.UUID) error {
	kept := f.matches[:0]
	for _, m := range f.matches {
		if m.TournamentID != tournamentID {
			kept = append(kept, m)
		}
	}
	f.matches = kept
	return nil
}

// ---- maps ----

type fakeMapRepo struct {
	maps []*models.Map
}

func newFakeMapRepo() *fakeMapRepo {
	return &fakeMapRepo{}
}

func (f *fakeMapRepo) CreateBatch(_ context.Context, _ repositories.SQLExecutor, maps []*models.Map) error {
	for _, m := range maps {
		ensureID(&m.ID)
		m.CreatedAt = time.Now()
		c := *m
		f.maps = append(f.maps, &c)
	}
	return nil
}

func (f *fakeMapRepo) find(id uuid.UUID) *models.Map {
	for _, m := range f.maps {
		if m.ID == id {
			return m
		}
	}
	return nil
}

func (f *fakeMapRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id uuid.UUID) (*models.Map, error) {
	m := f.find(id)
	if m == nil {
		return nil, repositories.ErrMapNotFound
	}
	c := *m
	return &c, nil
}

func (f *fakeMapRepo) ListByMatch(_ context.Context, _ repositories.SQLExecutor, matchID uuid.UUID) ([]models.Map, error) {
	out := make([]models.Map, 0)
	for _, m := range f.maps {
		if m.MatchID == matchID {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (f *fakeMapRepo) UpdateWinner(_ context.Context, _ repositories.SQLExecutor, id uuid.UUID, winnerID *uuid.UUID) error {
	m := f.find(id)
	if m == nil {
		return repositories.ErrMapNotFound
	}
	m.WinnerID = copyUUIDPtr(winnerID)
	return nil
}

func (f *fakeMapRepo) UpdateExternalURL(_ context.Context, _ repositories.SQLExecutor, id uuid.UUID, url *string) error {
	m := f.find(id)
	if m == nil {
		return repositories.ErrMapNotFound
	}
	m.ExternalURL = url
	return nil
}

// ---- prizes ----

type fakePrizeRepo struct {
	tables map[uuid.UUID]*models.PrizeTable      // by tournament id
	rows   map[uuid.UUID][]*models.PrizeTableRow // by table id
}

func newFakePrizeRepo() *fakePrizeRepo {
	return &fakePrizeRepo{
		tables: map[uuid.UUID]*models.PrizeTable{},
		rows:   map[uuid.UUID][]*models.PrizeTableRow{},
	}
}

func (f *fakePrizeRepo) CreateTable(_ context.Context, _ repositories.SQLExecutor, table *models.PrizeTable) error {
	if _, ok := f.tables[table.TournamentID]; ok {
		return repositories.ErrPrizeTableDuplicate
	}
	ensureID(&table.ID)
	c := *table
	f.tables[table.TournamentID] = &c
	return nil
}

func (f *fakePrizeRepo) GetTableByTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID uuid.UUID) (*models.PrizeTable, error) {
	table, ok := f.tables[tournamentID]
	if !ok {
		return nil, repositories.ErrPrizeTableNotFound
	}
	c := *table
	return &c, nil
}

func (f *fakePrizeRepo) DeleteTableByTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID uuid.UUID) error {
	table, ok := f.tables[tournamentID]
	if !ok {
		return nil
	}
	delete(f.rows, table.ID)
	delete(f.tables, tournamentID)
	return nil
}

func (f *fakePrizeRepo) CreateRow(_ context.Context, _ repositories.SQLExecutor, row *models.PrizeTableRow) error {
	ensureID(&row.ID)
	c := *row
	f.rows[row.PrizeTableID] = append(f.rows[row.PrizeTableID], &c)
	return nil
}

func (f *fakePrizeRepo) ListRows(_ context.Context, _ repositories.SQLExecutor, tableID uuid.UUID) ([]models.PrizeTableRow, error) {
	out := make([]models.PrizeTableRow, 0)
	for _, r := range f.rows[tableID] {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Place < out[j].Place })
	return out, nil
}

func (f *fakePrizeRepo) SetRowParticipant(_ context.Context, _ repositories.SQLExecutor, tableID uuid.UUID, place int, participantID uuid.UUID) error {
	for _, r := range f.rows[tableID] {
		if r.Place == place {
			v := participantID
			r.ParticipantID = &v
			return nil
		}
	}
	return repositories.ErrPrizeRowNotFound
}

// ---- scheduled starts ----

type fakeScheduleRepo struct {
	entries map[uuid.UUID]models.ScheduledStart
	order   []uuid.UUID
}

func newFakeScheduleRepo() *fakeScheduleRepo {
	return &fakeScheduleRepo{entries: map[uuid.UUID]models.ScheduledStart{}}
}

func (f *fakeScheduleRepo) Upsert(_ context.Context, _ repositories.SQLExecutor, entry *models.ScheduledStart) error {
	if _, ok := f.entries[entry.TournamentID]; !ok {
		f.order = append(f.order, entry.TournamentID)
	}
	f.entries[entry.TournamentID] = *entry
	return nil
}

// Delete mirrors the postgres repository: a missing row is not an error.
func (f *fakeScheduleRepo) Delete(_ context.Context, _ repositories.SQLExecutor, tournamentID uuid.UUID) error {
	delete(f.entries, tournamentID)
	for i, id := range f.order {
		if id == tournamentID {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeScheduleRepo) List(_ context.Context) ([]models.ScheduledStart, error) {
	out := make([]models.ScheduledStart, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.entries[id])
	}
	return out, nil
}

// ---- games ----

type fakeGameRepo struct {
	games map[uuid.UUID]*models.Game
	order []uuid.UUID
	inUse map[uuid.UUID]bool
}

func newFakeGameRepo() *fakeGameRepo {
	return &fakeGameRepo{games: map[uuid.UUID]*models.Game{}, inUse: map[uuid.UUID]bool{}}
}

func (f *fakeGameRepo) Create(_ context.Context, game *models.Game) error {
	for _, g := range f.games {
		if g.Name == game.Name {
			return repositories.ErrGameNameConflict
		}
	}
	ensureID(&game.ID)
	game.CreatedAt = time.Now()
	c := *game
	f.games[game.ID] = &c
	f.order = append(f.order, game.ID)
	return nil
}

func (f *fakeGameRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Game, error) {
	g, ok := f.games[id]
	if !ok {
		return nil, repositories.ErrGameNotFound
	}
	c := *g
	return &c, nil
}

func (f *fakeGameRepo) List(_ context.Context) ([]models.Game, error) {
	out := make([]models.Game, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, *f.games[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeGameRepo) Update(_ context.Context, game *models.Game) error {
	stored, ok := f.games[game.ID]
	if !ok {
		return repositories.ErrGameNotFound
	}
	for _, g := range f.games {
		if g.ID != game.ID && g.Name == game.Name {
			return repositories.ErrGameNameConflict
		}
	}
	stored.Name = game.Name
	stored.LogoURL = game.LogoURL
	return nil
}

func (f *fakeGameRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := f.games[id]; !ok {
		return repositories.ErrGameNotFound
	}
	if f.inUse[id] {
		return repositories.ErrGameInUse
	}
	delete(f.games, id)
	for i, oid := range f.order {
		if oid == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return nil
}

// ---- users ----

type fakeUserRepo struct {
	users map[uuid.UUID]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[uuid.UUID]*models.User{}}
}

func (f *fakeUserRepo) Create(_ context.Context, user *models.User) error {
	for _, u := range f.users {
		if u.Email == user.Email {
			return repositories.ErrUserEmailConflict
		}
		if u.Nickname == user.Nickname {
			return repositories.ErrUserNicknameConflict
		}
	}
	ensureID(&user.ID)
	user.CreatedAt = time.Now()
	c := *user
	f.users[user.ID] = &c
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	c := *u
	return &c, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (f *fakeUserRepo) Update(_ context.Context, user *models.User) error {
	stored, ok := f.users[user.ID]
	if !ok {
		return repositories.ErrUserNotFound
	}
	for _, u := range f.users {
		if u.ID == user.ID {
			continue
		}
		if u.Email == user.Email {
			return repositories.ErrUserEmailConflict
		}
		if u.Nickname == user.Nickname {
			return repositories.ErrUserNicknameConflict
		}
	}
	stored.Nickname = user.Nickname
	stored.Email = user.Email
	stored.PasswordHash = user.PasswordHash
	stored.Role = user.Role
	return nil
}

func (f *fakeUserRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := f.users[id]; !ok {
		return repositories.ErrUserNotFound
	}
	delete(f.users, id)
	return nil
}

// ---- teams ----

type fakeTeamRepo struct {
	teams map[uuid.UUID]*models.Team
	users *fakeUserRepo
}

func newFakeTeamRepo(users *fakeUserRepo) *fakeTeamRepo {
	return &fakeTeamRepo{teams: map[uuid.UUID]*models.Team{}, users: users}
}

func (f *fakeTeamRepo) Create(_ context.Context, team *models.Team) error {
	for _, t := range f.teams {
		if t.Name == team.Name {
			return repositories.ErrTeamNameConflict
		}
	}
	if _, ok := f.users.users[team.CaptainID]; !ok {
		return repositories.ErrTeamCaptainInvalid
	}
	ensureID(&team.ID)
	team.CreatedAt = time.Now()
	c := *team
	c.Captain = nil
	f.teams[team.ID] = &c
	return nil
}

func (f *fakeTeamRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Team, error) {
	t, ok := f.teams[id]
	if !ok {
		return nil, repositories.ErrTeamNotFound
	}
	c := *t
	if captain, ok := f.users.users[t.CaptainID]; ok {
		cc := *captain
		c.Captain = &cc
	}
	return &c, nil
}

func (f *fakeTeamRepo) Update(_ context.Context, team *models.Team) error {
	stored, ok := f.teams[team.ID]
	if !ok {
		return repositories.ErrTeamNotFound
	}
	for _, t := range f.teams {
		if t.ID != team.ID && t.Name == team.Name {
			return repositories.ErrTeamNameConflict
		}
	}
	if _, ok := f.users.users[team.CaptainID]; !ok {
		return repositories.ErrTeamCaptainInvalid
	}
	stored.Name = team.Name
	stored.CaptainID = team.CaptainID
	return nil
}

func (f *fakeTeamRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := f.teams[id]; !ok {
		return repositories.ErrTeamNotFound
	}
	delete(f.teams, id)
	return nil
}

// ---- outward collaborators ----

type broadcastRecord struct {
	tournamentID uuid.UUID
	event        realtime.Event
}

type fakeBroadcaster struct {
	events []broadcastRecord
}

func (f *fakeBroadcaster) BroadcastToTournament(tournamentID uuid.UUID, event realtime.Event) {
	f.events = append(f.events, broadcastRecord{tournamentID: tournamentID, event: event})
}

func (f *fakeBroadcaster) eventTypes() []string {
	out := make([]string, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.event.Type)
	}
	return out
}

type fakeScheduler struct {
	scheduled map[uuid.UUID]time.Time
	cancelled []uuid.UUID
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{scheduled: map[uuid.UUID]time.Time{}}
}

func (f *fakeScheduler) Schedule(tournamentID uuid.UUID, startTime time.Time) {
	f.scheduled[tournamentID] = startTime
}

func (f *fakeScheduler) Cancel(tournamentID uuid.UUID) {
	delete(f.scheduled, tournamentID)
	f.cancelled = append(f.cancelled, tournamentID)
}

func (f *fakeScheduler) Stop() {}

type fakeUploader struct {
	uploads map[string]string // key -> content type
	deleted []string
}

func (f *fakeUploader) Upload(_ context.Context, key, contentType string, _ io.Reader) (*storage.UploadResult, error) {
	if f.uploads == nil {
		f.uploads = map[string]string{}
	}
	f.uploads[key] = contentType
	return &storage.UploadResult{Key: key, Location: f.GetPublicURL(key)}, nil
}

func (f *fakeUploader) Delete(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeUploader) GetPublicURL(key string) string {
	return "https://cdn.test/" + key
}

// ---- fixture ----

type fixture struct {
	db            *sql.DB
	games         *fakeGameRepo
	users         *fakeUserRepo
	teams         *fakeTeamRepo
	registrations *fakeRegistrationRepo
	tournaments   *fakeTournamentRepo
	groups        *fakeGroupRepo
	playoffs      *fakePlayoffRepo
	matches       *fakeMatchRepo
	gameMaps      *fakeMapRepo
	prizes        *fakePrizeRepo
	schedules     *fakeScheduleRepo
	uploader      *fakeUploader
	sched         *fakeScheduler
	hub           *fakeBroadcaster

	bracketSvc    BracketService
	matchSvc      MatchService
	tournamentSvc TournamentService
}

// newFixture wires every service against the in-memory repositories with
// shuffling disabled, so seeding follows registration order and tests can
// predict slot assignments.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		db:            newTxDB(t),
		games:         newFakeGameRepo(),
		users:         newFakeUserRepo(),
		registrations: newFakeRegistrationRepo(),
		groups:        newFakeGroupRepo(),
		playoffs:      newFakePlayoffRepo(),
		matches:       newFakeMatchRepo(),
		gameMaps:      newFakeMapRepo(),
		prizes:        newFakePrizeRepo(),
		schedules:     newFakeScheduleRepo(),
		uploader:      &fakeUploader{},
		sched:         newFakeScheduler(),
		hub:           &fakeBroadcaster{},
	}
	f.teams = newFakeTeamRepo(f.users)
	f.tournaments = newFakeTournamentRepo(f.registrations)

	bracketSvc := NewBracketService(f.tournaments, f.groups, f.playoffs, f.matches, f.prizes).(*bracketService)
	bracketSvc.shuffle = func([]uuid.UUID) {}
	f.bracketSvc = bracketSvc

	f.matchSvc = NewMatchService(
		f.db, f.tournaments, f.matches, f.gameMaps, f.groups,
		f.playoffs, f.prizes, f.users, bracketSvc, f.hub,
	)
	f.tournamentSvc = NewTournamentService(
		f.db, f.tournaments, f.registrations, f.groups, f.playoffs,
		f.matches, f.prizes, f.schedules, f.games, f.users, f.teams,
		bracketSvc, f.uploader, f.sched, f.hub,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	return f
}

func (f *fixture) seedUser(t *testing.T, nickname string, role models.UserRole) *models.User {
	t.Helper()
	user := &models.User{
		Nickname:     nickname,
		Email:        nickname + "@example.com",
		PasswordHash: "x",
		Role:         role,
	}
	require.NoError(t, f.users.Create(context.Background(), user))
	return user
}

func (f *fixture) seedGame(t *testing.T, name string) *models.Game {
	t.Helper()
	game := &models.Game{Name: name}
	require.NoError(t, f.games.Create(context.Background(), game))
	return game
}

type tournamentParams struct {
	kind            models.TournamentKind
	maxParticipants int
	matchFormat     models.MatchFormat
	finalFormat     models.MatchFormat
	prizeFund       string
	hasGroupStage   bool
	numGroups       int
	qualifiers      int
}

func defaultTournamentParams() tournamentParams {
	return tournamentParams{
		kind:            models.KindSolo,
		maxParticipants: 8,
		matchFormat:     models.FormatBo1,
		finalFormat:     models.FormatBo1,
		prizeFund:       "0",
	}
}

// seedTournament creates a tournament through the service so that the
// prize table, skeletons and scheduled start all exist, then returns the
// stored aggregate root and its creator.
func (f *fixture) seedTournament(t *testing.T, p tournamentParams) (*models.Tournament, *models.User) {
	t.Helper()
	creator := f.seedUser(t, "creator-"+uuid.NewString()[:8], models.RoleUser)
	game := f.seedGame(t, "game-"+uuid.NewString()[:8])

	created, err := f.tournamentSvc.Create(context.Background(), creator.ID, CreateTournamentInput{
		Title:           "Test Cup",
		GameID:          game.ID,
		Kind:            p.kind,
		StartTime:       time.Now().Add(24 * time.Hour),
		MaxParticipants: p.maxParticipants,
		PrizeFund:       p.prizeFund,
		MatchFormat:     p.matchFormat,
		FinalFormat:     p.finalFormat,
		HasGroupStage:   p.hasGroupStage,
		NumGroups:       p.numGroups,
		Qualifiers:      p.qualifiers,
	})
	require.NoError(t, err)
	return created, creator
}

// registerUsers registers n fresh users and returns their ids in
// registration order.
func (f *fixture) registerUsers(t *testing.T, tournamentID uuid.UUID, n int) []uuid.UUID {
	t.Helper()
	ids := make([]uuid.UUID, 0, n)
	for i := 0; i < n; i++ {
		u := f.seedUser(t, "player-"+uuid.NewString()[:8], models.RoleUser)
		require.NoError(t, f.tournamentSvc.Register(context.Background(), tournamentID, u.ID, u.ID))
		ids = append(ids, u.ID)
	}
	return ids
}
