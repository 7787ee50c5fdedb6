package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/bracketops/tournament-engine/models"
	"github.com/bracketops/tournament-engine/repositories"
)

type UpdateProfileInput struct {
	Nickname *string `json:"nickname,omitempty"`
	Email    *string `json:"email,omitempty"`
}

type ChangePasswordInput struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type UserService interface {
	GetProfile(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateProfile(ctx context.Context, id, callerID uuid.UUID, input UpdateProfileInput) (*models.User, error)
	ChangePassword(ctx context.Context, id, callerID uuid.UUID, input ChangePasswordInput) error
}

type userService struct {
	userRepo repositories.UserRepository
}

func NewUserService(userRepo repositories.UserRepository) UserService {
	return &userService{userRepo: userRepo}
}

func (s *userService) GetProfile(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(fmt.Errorf("load user: %w", err), repositories.ErrUserNotFound, "user")
	}
	user.PasswordHash = ""
	return user, nil
}

func (s *userService) UpdateProfile(ctx context.Context, id, callerID uuid.UUID, input UpdateProfileInput) (*models.User, error) {
	if err := s.requireSelfOrAdmin(ctx, id, callerID); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(fmt.Errorf("load user: %w", err), repositories.ErrUserNotFound, "user")
	}

	if input.Nickname != nil {
		nickname := strings.TrimSpace(*input.Nickname)
		if nickname == "" {
			return nil, ErrNicknameRequired
		}
		user.Nickname = nickname
	}
	if input.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*input.Email))
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, ErrEmailInvalid
		}
		user.Email = email
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		switch {
		case errors.Is(err, repositories.ErrUserNotFound):
			return nil, notFound(err, repositories.ErrUserNotFound, "user")
		case errors.Is(err, repositories.ErrUserEmailConflict):
			return nil, ErrEmailTaken
		case errors.Is(err, repositories.ErrUserNicknameConflict):
			return nil, ErrNicknameTaken
		}
		return nil, fmt.Errorf("update user: %w", err)
	}

	user.PasswordHash = ""
	return user, nil
}

// ChangePassword requires the current password, so only the account owner can
// call it.
func (s *userService) ChangePassword(ctx context.Context, id, callerID uuid.UUID, input ChangePasswordInput) error {
	if id != callerID {
		return fmt.Errorf("%w: only the account owner can change the password", ErrPermission)
	}
	if len(input.NewPassword) < 8 {
		return ErrPasswordTooShort
	}

	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return notFound(fmt.Errorf("load user: %w", err), repositories.ErrUserNotFound, "user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.CurrentPassword)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("compare password hash: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = string(hash)

	if err := s.userRepo.Update(ctx, user); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

func (s *userService) requireSelfOrAdmin(ctx context.Context, allowedID, callerID uuid.UUID) error {
	if allowedID == callerID {
		return nil
	}
	caller, err := s.userRepo.GetByID(ctx, callerID)
	if err != nil {
		return notFound(fmt.Errorf("load caller: %w", err), repositories.ErrUserNotFound, "user")
	}
	if caller.Role != models.RoleAdmin {
		return fmt.Errorf("%w: users can manage only their own profile", ErrPermission)
	}
	return nil
}
