package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/bracketops/tournament-engine/models"
	"github.com/bracketops/tournament-engine/repositories"
	"github.com/bracketops/tournament-engine/storage"
)

var (
	ErrGameNameRequired = fmt.Errorf("%w: game name must not be empty", ErrValidation)
	ErrGameNameTaken    = fmt.Errorf("%w: game name is already taken", ErrValidation)
	ErrGameInUse        = fmt.Errorf("%w: game is referenced by tournaments", ErrInvalidState)
)

type CreateGameInput struct {
	Name string `json:"name"`
}

type UpdateGameInput struct {
	Name string `json:"name"`
}

// GameService manages the disciplines tournaments are played in. Mutations
// are admin operations and are gated at the router.
type GameService interface {
	CreateGame(ctx context.Context, input CreateGameInput) (*models.Game, error)
	GetGame(ctx context.Context, id uuid.UUID) (*models.Game, error)
	ListGames(ctx context.Context) ([]models.Game, error)
	UpdateGame(ctx context.Context, id uuid.UUID, input UpdateGameInput) (*models.Game, error)
	DeleteGame(ctx context.Context, id uuid.UUID) error
	UploadLogo(ctx context.Context, id uuid.UUID, contentType string, logo io.Reader) (*models.Game, error)
}

type gameService struct {
	gameRepo repositories.GameRepository
	uploader storage.FileUploader
}

func NewGameService(gameRepo repositories.GameRepository, uploader storage.FileUploader) GameService {
	return &gameService{
		gameRepo: gameRepo,
		uploader: uploader,
	}
}

func (s *gameService) CreateGame(ctx context.Context, input CreateGameInput) (*models.Game, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrGameNameRequired
	}

	game := &models.Game{Name: name}
	if err := s.gameRepo.Create(ctx, game); err != nil {
		if errors.Is(err, repositories.ErrGameNameConflict) {
			return nil, ErrGameNameTaken
		}
		return nil, fmt.Errorf("create game: %w", err)
	}
	return game, nil
}

func (s *gameService) GetGame(ctx context.Context, id uuid.UUID) (*models.Game, error) {
	game, err := s.gameRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(fmt.Errorf("load game: %w", err), repositories.ErrGameNotFound, "game")
	}
	return game, nil
}

func (s *gameService) ListGames(ctx context.Context) ([]models.Game, error) {
	games, err := s.gameRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	return games, nil
}

func (s *gameService) UpdateGame(ctx context.Context, id uuid.UUID, input UpdateGameInput) (*models.Game, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrGameNameRequired
	}

	game, err := s.gameRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(fmt.Errorf("load game: %w", err), repositories.ErrGameNotFound, "game")
	}

	game.Name = name
	if err := s.gameRepo.Update(ctx, game); err != nil {
		switch {
		case errors.Is(err, repositories.ErrGameNotFound):
			return nil, notFound(err, repositories.ErrGameNotFound, "game")
		case errors.Is(err, repositories.ErrGameNameConflict):
			return nil, ErrGameNameTaken
		}
		return nil, fmt.Errorf("update game: %w", err)
	}
	return game, nil
}

func (s *gameService) DeleteGame(ctx context.Context, id uuid.UUID) error {
	if err := s.gameRepo.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, repositories.ErrGameNotFound):
			return notFound(err, repositories.ErrGameNotFound, "game")
		case errors.Is(err, repositories.ErrGameInUse):
			return ErrGameInUse
		}
		return fmt.Errorf("delete game: %w", err)
	}
	return nil
}

// UploadLogo stores the logo and records its public URL on the game. The key
// is derived from the game id, so a re-upload with the same content type
// replaces the previous object.
func (s *gameService) UploadLogo(ctx context.Context, id uuid.UUID, contentType string, logo io.Reader) (*models.Game, error) {
	if s.uploader == nil {
		return nil, fmt.Errorf("%w: file storage is not configured", ErrInvalidState)
	}
	ext, err := GetExtensionFromContentType(contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	game, err := s.gameRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(fmt.Errorf("load game: %w", err), repositories.ErrGameNotFound, "game")
	}

	key := fmt.Sprintf("games/%s/logo%s", game.ID, ext)
	result, err := s.uploader.Upload(ctx, key, contentType, logo)
	if err != nil {
		return nil, fmt.Errorf("upload logo: %w", err)
	}

	url := s.uploader.GetPublicURL(result.Key)
	game.LogoURL = &url
	if err := s.gameRepo.Update(ctx, game); err != nil {
		return nil, fmt.Errorf("store logo url: %w", err)
	}
	return game, nil
}
