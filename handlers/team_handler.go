package handlers

import (
	"log/slog"
	"net/http"

	"github.com/bracketops/tournament-engine/services"
)

type TeamHandler struct {
	teamService services.TeamService
	logger      *slog.Logger
}

func NewTeamHandler(teamService services.TeamService, logger *slog.Logger) *TeamHandler {
	return &TeamHandler{
		teamService: teamService,
		logger:      logger,
	}
}

// CreateTeam godoc
//
//	@Summary	Create a team captained by the caller
//	@Tags		teams
//	@Accept		json
//	@Produce	json
//	@Param		input	body		services.CreateTeamInput	true	"Team details"
//	@Success	201		{object}	models.Team
//	@Failure	422		{object}	map[string]string
//	@Security	BearerAuth
//	@Router		/teams [post]
func (h *TeamHandler) CreateTeam(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	var input services.CreateTeamInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, err)
		return
	}

	team, err := h.teamService.CreateTeam(r.Context(), caller, input)
	if err != nil {
		mapServiceError(w, r, h.logger, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"team": team}, nil); err != nil {
		serverErrorResponse(w, r, h.logger, err)
	}
}

// GetTeam godoc
//
//	@Summary	Fetch a team with its captain
//	@Tags		teams
//	@Produce	json
//	@Param		teamID	path		string	true	"Team ID"
//	@Success	200		{object}	models.Team
//	@Failure	404		{object}	map[string]string
//	@Router		/teams/{teamID} [get]
func (h *TeamHandler) GetTeam(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "teamID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	team, err := h.teamService.GetTeam(r.Context(), id)
	if err != nil {
		mapServiceError(w, r, h.logger, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"team": team}, nil); err != nil {
		serverErrorResponse(w, r, h.logger, err)
	}
}

// UpdateTeam godoc
//
//	@Summary	Rename a team or transfer its captaincy
//	@Tags		teams
//	@Accept		json
//	@Produce	json
//	@Param		teamID	path		string						true	"Team ID"
//	@Param		input	body		services.UpdateTeamInput	true	"Fields to change"
//	@Success	200		{object}	models.Team
//	@Failure	403		{object}	map[string]string
//	@Security	BearerAuth
//	@Router		/teams/{teamID} [patch]
func (h *TeamHandler) UpdateTeam(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "teamID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	var input services.UpdateTeamInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, err)
		return
	}

	team, err := h.teamService.UpdateTeam(r.Context(), id, caller, input)
	if err != nil {
		mapServiceError(w, r, h.logger, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"team": team}, nil); err != nil {
		serverErrorResponse(w, r, h.logger, err)
	}
}

// DeleteTeam godoc
//
//	@Summary	Delete a team
//	@Tags		teams
//	@Param		teamID	path	string	true	"Team ID"
//	@Success	204
//	@Failure	409	{object}	map[string]string
//	@Security	BearerAuth
//	@Router		/teams/{teamID} [delete]
func (h *TeamHandler) DeleteTeam(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "teamID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	if err := h.teamService.DeleteTeam(r.Context(), id, caller); err != nil {
		mapServiceError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
