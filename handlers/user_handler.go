package handlers

import (
	"log/slog"
	"net/http"

	"github.com/bracketops/tournament-engine/services"
)

type UserHandler struct {
	userService services.UserService
	logger      *slog.Logger
}

func NewUserHandler(userService services.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		logger:      logger,
	}
}

// GetProfile godoc
//
//	@Summary	Fetch a user profile
//	@Tags		users
//	@Produce	json
//	@Param		userID	path		string	true	"User ID"
//	@Success	200		{object}	models.User
//	@Failure	404		{object}	map[string]string
//	@Router		/users/{userID} [get]
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "userID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	user, err := h.userService.GetProfile(r.Context(), id)
	if err != nil {
		mapServiceError(w, r, h.logger, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"user": user}, nil); err != nil {
		serverErrorResponse(w, r, h.logger, err)
	}
}

// UpdateProfile godoc
//
//	@Summary	Update nickname or email
//	@Tags		users
//	@Accept		json
//	@Produce	json
//	@Param		userID	path		string						true	"User ID"
//	@Param		input	body		services.UpdateProfileInput	true	"Fields to change"
//	@Success	200		{object}	models.User
//	@Failure	403		{object}	map[string]string
//	@Security	BearerAuth
//	@Router		/users/{userID} [patch]
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "userID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	var input services.UpdateProfileInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, err)
		return
	}

	user, err := h.userService.UpdateProfile(r.Context(), id, caller, input)
	if err != nil {
		mapServiceError(w, r, h.logger, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"user": user}, nil); err != nil {
		serverErrorResponse(w, r, h.logger, err)
	}
}

// ChangePassword godoc
//
//	@Summary	Change the account password
//	@Tags		users
//	@Accept		json
//	@Param		userID	path	string							true	"User ID"
//	@Param		input	body	services.ChangePasswordInput	true	"Current and new password"
//	@Success	204
//	@Failure	401	{object}	map[string]string
//	@Security	BearerAuth
//	@Router		/users/{userID}/password [put]
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "userID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	var input services.ChangePasswordInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, err)
		return
	}

	if err := h.userService.ChangePassword(r.Context(), id, caller, input); err != nil {
		mapServiceError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
