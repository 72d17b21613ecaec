package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Marga-Ghale/group-calendar-backend/internal/repository"
)

type UserService interface {
	GetByID(ctx context.Context, id string) (*repository.User, error)
	// UpdateProfile applies the non-nil fields.
	UpdateProfile(ctx context.Context, id string, name, bio, avatar *string) (*repository.User, error)
}

type userService struct {
	userRepo repository.UserRepository
}

func NewUserService(userRepo repository.UserRepository) UserService {
	return &userService{userRepo: userRepo}
}

func (s *userService) GetByID(ctx context.Context, id string) (*repository.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *userService) UpdateProfile(ctx context.Context, id string, name, bio, avatar *string) (*repository.User, error) {
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return nil, validationError("Name cannot be empty")
		}
		if hasControl(trimmed) {
			return nil, validationError("Name must not contain control characters")
		}
		user.Name = trimmed
	}
	if bio != nil {
		user.Bio = *bio
	}
	if avatar != nil {
		user.Avatar = strings.TrimSpace(*avatar)
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return user, nil
}
