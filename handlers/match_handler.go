package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/bracketops/tournament-engine/models"
	"github.com/bracketops/tournament-engine/repositories"
	"github.com/bracketops/tournament-engine/services"
)

type MatchHandler struct {
	matchService      services.MatchService
	tournamentService services.TournamentService
	logger            *slog.Logger
}

func NewMatchHandler(matchService services.MatchService, tournamentService services.TournamentService, logger *slog.Logger) *MatchHandler {
	return &MatchHandler{
		matchService:      matchService,
		tournamentService: tournamentService,
		logger:            logger,
	}
}

// winnerInput names the winning participant. Nil means a draw where the
// operation allows one.
type winnerInput struct {
	WinnerID *uuid.UUID `json:"winner_id"`
}

// ListByTournament godoc
//
//	@Summary	List a tournament's matches
//	@Tags		matches
//	@Produce	json
//	@Param		tournamentID	path	string	true	"Tournament ID"
//	@Param		status			query	string	false	"Filter by match status"
//	@Param		is_playoff		query	bool	false	"Playoff matches only (false for group matches)"
//	@Param		group_id		query	string	false	"Filter by group"
//	@Success	200	{array}		models.Match
//	@Failure	404	{object}	map[string]string
//	@Router		/tournaments/{tournamentID}/matches [get]
func (h *MatchHandler) ListByTournament(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := uuidParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	filter, err := parseMatchFilter(r)
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	matches, err := h.matchService.ListByTournament(r.Context(), tournamentID, filter)
	if err != nil {
		mapServiceError(w, r, h.logger, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"matches": matches}, nil); err != nil {
		serverErrorResponse(w, r, h.logger, err)
	}
}

func parseMatchFilter(r *http.Request) (repositories.ListMatchesFilter, error) {
	var filter repositories.ListMatchesFilter
	query := r.URL.Query()

	if raw := query.Get("status"); raw != "" {
		status := models.MatchStatus(raw)
		if !status.Valid() {
			return filter, errors.New("invalid status query parameter")
		}
		filter.Status = &status
	}
	if raw := query.Get("is_playoff"); raw != "" {
		isPlayoff, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, errors.New("invalid is_playoff query parameter")
		}
		filter.IsPlayoff = &isPlayoff
	}
	if raw := query.Get("group_id"); raw != "" {
		groupID, err := uuid.Parse(raw)
		if err != nil {
			return filter, errors.New("invalid group_id query parameter")
		}
		filter.GroupID = &groupID
	}
	return filter, nil
}

// GetMatch godoc
//
//	@Summary	Fetch a match with its maps
//	@Tags		matches
//	@Produce	json
//	@Param		tournamentID	path		string	true	"Tournament ID"
//	@Param		matchID			path		string	true	"Match ID"
//	@Success	200				{object}	models.Match
//	@Failure	404				{object}	map[string]string
//	@Router		/tournaments/{tournamentID}/matches/{matchID} [get]
func (h *MatchHandler) GetMatch(w http.ResponseWriter, r *http.Request) {
	match, ok := h.matchInTournament(w, r)
	if !ok {
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, h.logger, err)
	}
}

// StartMatch godoc
//
//	@Summary	Start a scheduled match
//	@Tags		matches
//	@Produce	json
//	@Param		tournamentID	path		string	true	"Tournament ID"
//	@Param		matchID			path		string	true	"Match ID"
//	@Success	200				{object}	models.Match
//	@Failure	409				{object}	map[string]string
//	@Security	BearerAuth
//	@Router		/tournaments/{tournamentID}/matches/{matchID}/start [post]
func (h *MatchHandler) StartMatch(w http.ResponseWriter, r *http.Request) {
	match, ok := h.matchInTournament(w, r)
	if !ok {
		return
	}
	if !authorizeTournamentAction(w, r, h.logger, h.tournamentService, match.TournamentID) {
		return
	}

	match, err := h.matchService.StartMatch(r.Context(), match.ID)
	if err != nil {
		mapServiceError(w, r, h.logger, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, h.logger, err)
	}
}

// CompleteMap godoc
//
//	@Summary	Record a map result
//	@Description	A null winner_id records a drawn map.
//	@Tags		matches
//	@Accept		json
//	@Produce	json
//	@Param		tournamentID	path		string		true	"Tournament ID"
//	@Param		matchID			path		string		true	"Match ID"
//	@Param		mapID			path		string		true	"Map ID"
//	@Param		input			body		winnerInput	true	"Map winner"
//	@Success	200				{object}	models.Match
//	@Failure	422				{object}	map[string]string
//	@Security	BearerAuth
//	@Router		/tournaments/{tournamentID}/matches/{matchID}/maps/{mapID}/complete [post]
func (h *MatchHandler) CompleteMap(w http.ResponseWriter, r *http.Request) {
	match, ok := h.matchInTournament(w, r)
	if !ok {
		return
	}
	mapID, err := uuidParam(r, "mapID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}
	if !authorizeTournamentAction(w, r, h.logger, h.tournamentService, match.TournamentID) {
		return
	}

	var input winnerInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, err)
		return
	}

	match, err = h.matchService.CompleteMap(r.Context(), match.ID, mapID, input.WinnerID)
	if err != nil {
		mapServiceError(w, r, h.logger, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, h.logger, err)
	}
}

// CompleteMatch godoc
//
//	@Summary	Complete a match with an overall winner
//	@Description	A null winner_id records a draw where the format allows one.
//	@Tags		matches
//	@Accept		json
//	@Produce	json
//	@Param		tournamentID	path		string		true	"Tournament ID"
//	@Param		matchID			path		string		true	"Match ID"
//	@Param		input			body		winnerInput	true	"Match winner"
//	@Success	200				{object}	models.Match
//	@Failure	422				{object}	map[string]string
//	@Security	BearerAuth
//	@Router		/tournaments/{tournamentID}/matches/{matchID}/complete [post]
func (h *MatchHandler) CompleteMatch(w http.ResponseWriter, r *http.Request) {
	match, ok := h.matchInTournament(w, r)
	if !ok {
		return
	}
	if !authorizeTournamentAction(w, r, h.logger, h.tournamentService, match.TournamentID) {
		return
	}

	var input winnerInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, err)
		return
	}

	match, err := h.matchService.CompleteMatch(r.Context(), match.ID, input.WinnerID)
	if err != nil {
		mapServiceError(w, r, h.logger, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, h.logger, err)
	}
}

// UpdateResult godoc
//
//	@Summary	Edit a match result
//	@Tags		matches
//	@Accept		json
//	@Produce	json
//	@Param		tournamentID	path		string							true	"Tournament ID"
//	@Param		matchID			path		string							true	"Match ID"
//	@Param		input			body		services.UpdateMatchResultInput	true	"Fields to change"
//	@Success	200				{object}	models.Match
//	@Failure	403				{object}	map[string]string
//	@Security	BearerAuth
//	@Router		/tournaments/{tournamentID}/matches/{matchID}/result [patch]
func (h *MatchHandler) UpdateResult(w http.ResponseWriter, r *http.Request) {
	match, ok := h.matchInTournament(w, r)
	if !ok {
		return
	}
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	var input services.UpdateMatchResultInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, err)
		return
	}

	match, err := h.matchService.UpdateMatchResult(r.Context(), match.ID, caller, input)
	if err != nil {
		mapServiceError(w, r, h.logger, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, h.logger, err)
	}
}

// matchInTournament resolves the match from the URL and rejects ids that
// do not belong to the tournament in the path.
func (h *MatchHandler) matchInTournament(w http.ResponseWriter, r *http.Request) (*models.Match, bool) {
	tournamentID, err := uuidParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, err)
		return nil, false
	}
	matchID, err := uuidParam(r, "matchID")
	if err != nil {
		badRequestResponse(w, err)
		return nil, false
	}

	match, err := h.matchService.GetMatch(r.Context(), matchID)
	if err != nil {
		mapServiceError(w, r, h.logger, err)
		return nil, false
	}
	if match.TournamentID != tournamentID {
		notFoundResponse(w)
		return nil, false
	}
	return match, true
}
