package handlers

import (
	"log/slog"
	"net/http"

	"github.com/bracketops/tournament-engine/services"
)

type GameHandler struct {
	gameService services.GameService
	logger      *slog.Logger
}

func NewGameHandler(gameService services.GameService, logger *slog.Logger) *GameHandler {
	return &GameHandler{
		gameService: gameService,
		logger:      logger,
	}
}

// ListGames godoc
//
//	@Summary	List all games
//	@Tags		games
//	@Produce	json
//	@Success	200	{array}	models.Game
//	@Router		/games [get]
func (h *GameHandler) ListGames(w http.ResponseWriter, r *http.Request) {
	games, err := h.gameService.ListGames(r.Context())
	if err != nil {
		mapServiceError(w, r, h.logger, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"games": games}, nil); err != nil {
		serverErrorResponse(w, r, h.logger, err)
	}
}

// GetGame godoc
//
//	@Summary	Fetch a single game
//	@Tags		games
//	@Produce	json
//	@Param		gameID	path		string	true	"Game ID"
//	@Success	200		{object}	models.Game
//	@Failure	404		{object}	map[string]string
//	@Router		/games/{gameID} [get]
func (h *GameHandler) GetGame(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "gameID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	game, err := h.gameService.GetGame(r.Context(), id)
	if err != nil {
		mapServiceError(w, r, h.logger, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"game": game}, nil); err != nil {
		serverErrorResponse(w, r, h.logger, err)
	}
}

// CreateGame godoc
//
//	@Summary	Add a game to the catalog
//	@Tags		games
//	@Accept		json
//	@Produce	json
//	@Param		input	body		services.CreateGameInput	true	"Game details"
//	@Success	201		{object}	models.Game
//	@Failure	422		{object}	map[string]string
//	@Security	BearerAuth
//	@Router		/games [post]
func (h *GameHandler) CreateGame(w http.ResponseWriter, r *http.Request) {
	var input services.CreateGameInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, err)
		return
	}

	game, err := h.gameService.CreateGame(r.Context(), input)
	if err != nil {
		mapServiceError(w, r, h.logger, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"game": game}, nil); err != nil {
		serverErrorResponse(w, r, h.logger, err)
	}
}

// UpdateGame godoc
//
//	@Summary	Rename a game
//	@Tags		games
//	@Accept		json
//	@Produce	json
//	@Param		gameID	path		string						true	"Game ID"
//	@Param		input	body		services.UpdateGameInput	true	"New name"
//	@Success	200		{object}	models.Game
//	@Failure	422		{object}	map[string]string
//	@Security	BearerAuth
//	@Router		/games/{gameID} [patch]
func (h *GameHandler) UpdateGame(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "gameID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	var input services.UpdateGameInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, err)
		return
	}

	game, err := h.gameService.UpdateGame(r.Context(), id, input)
	if err != nil {
		mapServiceError(w, r, h.logger, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"game": game}, nil); err != nil {
		serverErrorResponse(w, r, h.logger, err)
	}
}

// DeleteGame godoc
//
//	@Summary	Remove a game not referenced by any tournament
//	@Tags		games
//	@Param		gameID	path	string	true	"Game ID"
//	@Success	204
//	@Failure	409	{object}	map[string]string
//	@Security	BearerAuth
//	@Router		/games/{gameID} [delete]
func (h *GameHandler) DeleteGame(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "gameID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	if err := h.gameService.DeleteGame(r.Context(), id); err != nil {
		mapServiceError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UploadLogo godoc
//
//	@Summary	Upload a game logo
//	@Tags		games
//	@Accept		multipart/form-data
//	@Produce	json
//	@Param		gameID	path		string	true	"Game ID"
//	@Param		logo	formData	file	true	"PNG or JPEG image"
//	@Success	200		{object}	models.Game
//	@Failure	422		{object}	map[string]string
//	@Security	BearerAuth
//	@Router		/games/{gameID}/logo [post]
func (h *GameHandler) UploadLogo(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "gameID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	file, contentType, err := formFile(r, "logo")
	if err != nil {
		badRequestResponse(w, err)
		return
	}
	defer file.Close()

	game, err := h.gameService.UploadLogo(r.Context(), id, contentType, file)
	if err != nil {
		mapServiceError(w, r, h.logger, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"game": game}, nil); err != nil {
		serverErrorResponse(w, r, h.logger, err)
	}
}
