package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/bracketops/tournament-engine/services"
)

type TournamentHandler struct {
	tournamentService services.TournamentService
	logger            *slog.Logger
}

func NewTournamentHandler(tournamentService services.TournamentService, logger *slog.Logger) *TournamentHandler {
	return &TournamentHandler{
		tournamentService: tournamentService,
		logger:            logger,
	}
}

// participantInput names the user or team an action applies to. A nil
// ParticipantID means the caller acts for themselves.
type participantInput struct {
	ParticipantID *uuid.UUID `json:"participant_id"`
}

type highlightInput struct {
	HighlightURL string `json:"highlight_url"`
}

// Create godoc
//
//	@Summary	Create a tournament
//	@Tags		tournaments
//	@Accept		json
//	@Produce	json
//	@Param		input	body		services.CreateTournamentInput	true	"Tournament details"
//	@Success	201		{object}	models.Tournament
//	@Failure	422		{object}	map[string]string
//	@Security	BearerAuth
//	@Router		/tournaments [post]
func (h *TournamentHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	var input services.CreateTournamentInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, err)
		return
	}

	tournament, err := h.tournamentService.Create(r.Context(), caller, input)
	if err != nil {
		mapServiceError(w, r, h.logger, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, h.logger, err)
	}
}

// GetByID godoc
//
//	@Summary	Fetch a tournament with stages, matches and prizes
//	@Tags		tournaments
//	@Produce	json
//	@Param		tournamentID	path		string	true	"Tournament ID"
//	@Success	200				{object}	models.Tournament
//	@Failure	404				{object}	map[string]string
//	@Router		/tournaments/{tournamentID} [get]
func (h *TournamentHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	tournament, err := h.tournamentService.GetByID(r.Context(), id)
	if err != nil {
		mapServiceError(w, r, h.logger, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, h.logger, err)
	}
}

// List godoc
//
//	@Summary	List tournaments by game, creator or participant
//	@Tags		tournaments
//	@Produce	json
//	@Param		game_id			query	string	false	"Filter by game"
//	@Param		creator_id		query	string	false	"Filter by creator"
//	@Param		participant_id	query	string	false	"Filter by registered participant"
//	@Param		limit			query	int		false	"Page size (game filter only)"
//	@Param		offset			query	int		false	"Page offset (game filter only)"
//	@Success	200	{array}		models.Tournament
//	@Failure	400	{object}	map[string]string
//	@Router		/tournaments [get]
func (h *TournamentHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var (
		tournaments interface{}
		err         error
	)
	switch {
	case query.Get("game_id") != "":
		var gameID uuid.UUID
		gameID, err = uuid.Parse(query.Get("game_id"))
		if err != nil {
			badRequestResponse(w, errors.New("invalid game_id query parameter"))
			return
		}
		limit, _ := strconv.Atoi(query.Get("limit"))
		offset, _ := strconv.Atoi(query.Get("offset"))
		tournaments, err = h.tournamentService.ListByGame(r.Context(), gameID, limit, offset)
	case query.Get("creator_id") != "":
		var creatorID uuid.UUID
		creatorID, err = uuid.Parse(query.Get("creator_id"))
		if err != nil {
			badRequestResponse(w, errors.New("invalid creator_id query parameter"))
			return
		}
		tournaments, err = h.tournamentService.ListByCreator(r.Context(), creatorID)
	case query.Get("participant_id") != "":
		var participantID uuid.UUID
		participantID, err = uuid.Parse(query.Get("participant_id"))
		if err != nil {
			badRequestResponse(w, errors.New("invalid participant_id query parameter"))
			return
		}
		tournaments, err = h.tournamentService.ListByParticipant(r.Context(), participantID)
	default:
		badRequestResponse(w, errors.New("one of game_id, creator_id or participant_id is required"))
		return
	}
	if err != nil {
		mapServiceError(w, r, h.logger, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournaments": tournaments}, nil); err != nil {
		serverErrorResponse(w, r, h.logger, err)
	}
}

// ListNearest godoc
//
//	@Summary	List upcoming open tournaments
//	@Tags		tournaments
//	@Produce	json
//	@Param		limit	query	int	false	"Maximum results"
//	@Success	200		{array}	models.Tournament
//	@Router		/tournaments/nearest [get]
func (h *TournamentHandler) ListNearest(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	tournaments, err := h.tournamentService.ListNearest(r.Context(), limit)
	if err != nil {
		mapServiceError(w, r, h.logger, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournaments": tournaments}, nil); err != nil {
		serverErrorResponse(w, r, h.logger, err)
	}
}

// GetStandings godoc
//
//	@Summary	Fetch the group stage with standings
//	@Tags		tournaments
//	@Produce	json
//	@Param		tournamentID	path		string	true	"Tournament ID"
//	@Success	200				{object}	models.GroupStage
//	@Failure	404				{object}	map[string]string
//	@Router		/tournaments/{tournamentID}/group-stage [get]
func (h *TournamentHandler) GetStandings(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	stage, err := h.tournamentService.GetStandings(r.Context(), id)
	if err != nil {
		mapServiceError(w, r, h.logger, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"group_stage": stage}, nil); err != nil {
		serverErrorResponse(w, r, h.logger, err)
	}
}

// GetBracket godoc
//
//	@Summary	Fetch the playoff bracket
//	@Tags		tournaments
//	@Produce	json
//	@Param		tournamentID	path		string	true	"Tournament ID"
//	@Success	200				{object}	models.PlayoffStage
//	@Failure	404				{object}	map[string]string
//	@Router		/tournaments/{tournamentID}/playoff-stage [get]
func (h *TournamentHandler) GetBracket(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	stage, err := h.tournamentService.GetBracket(r.Context(), id)
	if err != nil {
		mapServiceError(w, r, h.logger, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"playoff_stage": stage}, nil); err != nil {
		serverErrorResponse(w, r, h.logger, err)
	}
}

// GetPrizes godoc
//
//	@Summary	Fetch the prize table
//	@Tags		tournaments
//	@Produce	json
//	@Param		tournamentID	path		string	true	"Tournament ID"
//	@Success	200				{object}	models.PrizeTable
//	@Failure	404				{object}	map[string]string
//	@Router		/tournaments/{tournamentID}/prize-table [get]
func (h *TournamentHandler) GetPrizes(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	prizes, err := h.tournamentService.GetPrizes(r.Context(), id)
	if err != nil {
		mapServiceError(w, r, h.logger, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"prize_table": prizes}, nil); err != nil {
		serverErrorResponse(w, r, h.logger, err)
	}
}

// UpdateDetails godoc
//
//	@Summary	Edit title, description or contact
//	@Tags		tournaments
//	@Accept		json
//	@Produce	json
//	@Param		tournamentID	path		string							true	"Tournament ID"
//	@Param		input			body		services.UpdateTournamentInput	true	"Fields to change"
//	@Success	200				{object}	models.Tournament
//	@Failure	403				{object}	map[string]string
//	@Security	BearerAuth
//	@Router		/tournaments/{tournamentID} [patch]
func (h *TournamentHandler) UpdateDetails(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	var input services.UpdateTournamentInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, err)
		return
	}

	tournament, err := h.tournamentService.UpdateDetails(r.Context(), id, caller, input)
	if err != nil {
		mapServiceError(w, r, h.logger, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, h.logger, err)
	}
}

// Register godoc
//
//	@Summary	Register a participant
//	@Description	Solo tournaments register users, team tournaments register teams. Without a participant_id the caller registers themselves.
//	@Tags		tournaments
//	@Accept		json
//	@Param		tournamentID	path	string				true	"Tournament ID"
//	@Param		input			body	participantInput	false	"Participant"
//	@Success	204
//	@Failure	409	{object}	map[string]string
//	@Security	BearerAuth
//	@Router		/tournaments/{tournamentID}/register [post]
func (h *TournamentHandler) Register(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	participantID, ok := h.readParticipant(w, r, caller)
	if !ok {
		return
	}

	if err := h.tournamentService.Register(r.Context(), id, participantID, caller); err != nil {
		mapServiceError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Unregister godoc
//
//	@Summary	Withdraw a participant
//	@Tags		tournaments
//	@Accept		json
//	@Param		tournamentID	path	string				true	"Tournament ID"
//	@Param		input			body	participantInput	false	"Participant"
//	@Success	204
//	@Failure	404	{object}	map[string]string
//	@Security	BearerAuth
//	@Router		/tournaments/{tournamentID}/unregister [post]
func (h *TournamentHandler) Unregister(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	participantID, ok := h.readParticipant(w, r, caller)
	if !ok {
		return
	}

	if err := h.tournamentService.Unregister(r.Context(), id, participantID, caller); err != nil {
		mapServiceError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// readParticipant decodes the optional registration body, defaulting the
// participant to the caller. An empty body is allowed.
func (h *TournamentHandler) readParticipant(w http.ResponseWriter, r *http.Request, caller uuid.UUID) (uuid.UUID, bool) {
	if r.ContentLength == 0 {
		return caller, true
	}
	var input participantInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, err)
		return uuid.Nil, false
	}
	if input.ParticipantID == nil {
		return caller, true
	}
	return *input.ParticipantID, true
}

// Start godoc
//
//	@Summary	Start a tournament ahead of schedule
//	@Tags		tournaments
//	@Param		tournamentID	path	string	true	"Tournament ID"
//	@Success	204
//	@Failure	409	{object}	map[string]string
//	@Security	BearerAuth
//	@Router		/tournaments/{tournamentID}/start [post]
func (h *TournamentHandler) Start(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}
	if !authorizeTournamentAction(w, r, h.logger, h.tournamentService, id) {
		return
	}

	if err := h.tournamentService.Start(r.Context(), id); err != nil {
		mapServiceError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Reset godoc
//
//	@Summary	Wipe results and reopen a started tournament
//	@Tags		tournaments
//	@Param		tournamentID	path	string	true	"Tournament ID"
//	@Success	204
//	@Failure	409	{object}	map[string]string
//	@Security	BearerAuth
//	@Router		/tournaments/{tournamentID}/reset [post]
func (h *TournamentHandler) Reset(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	if err := h.tournamentService.Reset(r.Context(), id, caller); err != nil {
		mapServiceError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Cancel godoc
//
//	@Summary	Cancel an open or ongoing tournament
//	@Tags		tournaments
//	@Param		tournamentID	path	string	true	"Tournament ID"
//	@Success	204
//	@Failure	409	{object}	map[string]string
//	@Security	BearerAuth
//	@Router		/tournaments/{tournamentID}/cancel [post]
func (h *TournamentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	if err := h.tournamentService.Cancel(r.Context(), id, caller); err != nil {
		mapServiceError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Complete godoc
//
//	@Summary	Manually complete an ongoing tournament
//	@Tags		tournaments
//	@Produce	json
//	@Param		tournamentID	path		string	true	"Tournament ID"
//	@Success	200				{object}	models.Tournament
//	@Failure	409				{object}	map[string]string
//	@Security	BearerAuth
//	@Router		/tournaments/{tournamentID}/complete [post]
func (h *TournamentHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	tournament, err := h.tournamentService.Complete(r.Context(), id, caller)
	if err != nil {
		mapServiceError(w, r, h.logger, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, h.logger, err)
	}
}

// Delete godoc
//
//	@Summary	Delete a tournament that is not running
//	@Tags		tournaments
//	@Param		tournamentID	path	string	true	"Tournament ID"
//	@Success	204
//	@Failure	409	{object}	map[string]string
//	@Security	BearerAuth
//	@Router		/tournaments/{tournamentID} [delete]
func (h *TournamentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	if err := h.tournamentService.Delete(r.Context(), id, caller); err != nil {
		mapServiceError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UploadBanner godoc
//
//	@Summary	Upload a tournament banner
//	@Tags		tournaments
//	@Accept		multipart/form-data
//	@Produce	json
//	@Param		tournamentID	path		string	true	"Tournament ID"
//	@Param		banner			formData	file	true	"PNG or JPEG image"
//	@Success	200				{object}	models.Tournament
//	@Failure	422				{object}	map[string]string
//	@Security	BearerAuth
//	@Router		/tournaments/{tournamentID}/banner [post]
func (h *TournamentHandler) UploadBanner(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	file, contentType, err := formFile(r, "banner")
	if err != nil {
		badRequestResponse(w, err)
		return
	}
	defer file.Close()

	tournament, err := h.tournamentService.UploadBanner(r.Context(), id, caller, contentType, file)
	if err != nil {
		mapServiceError(w, r, h.logger, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, h.logger, err)
	}
}

// SetHighlight godoc
//
//	@Summary	Attach a highlight video to a completed tournament
//	@Tags		tournaments
//	@Accept		json
//	@Produce	json
//	@Param		tournamentID	path		string			true	"Tournament ID"
//	@Param		input			body		highlightInput	true	"Highlight URL"
//	@Success	200				{object}	models.Tournament
//	@Failure	422				{object}	map[string]string
//	@Security	BearerAuth
//	@Router		/tournaments/{tournamentID}/highlight [patch]
func (h *TournamentHandler) SetHighlight(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	var input highlightInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, err)
		return
	}

	tournament, err := h.tournamentService.SetHighlight(r.Context(), id, caller, input.HighlightURL)
	if err != nil {
		mapServiceError(w, r, h.logger, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, h.logger, err)
	}
}
