package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"shareit/internal/domain"
	"shareit/internal/models"

	"github.com/rs/zerolog"
)

type UserService struct {
	repo   domain.UserRepository
	logger *zerolog.Logger
}

func NewUserService(repo domain.UserRepository, logger *zerolog.Logger) *UserService {
	return &UserService{repo: repo, logger: logger}
}

func validateEmail(email string) error {
	if strings.TrimSpace(email) == "" {
		return fmt.Errorf("%w: email is required", domain.ErrValidation)
	}
	if !strings.Contains(email, "@") {
		return fmt.Errorf("%w: email %q is malformed", domain.ErrValidation, email)
	}
	return nil
}

func (s *UserService) CreateUser(ctx context.Context, name, email string) (*models.User, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}

	user := &models.User{Name: strings.TrimSpace(name), Email: strings.TrimSpace(email)}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info().Int64("user_id", user.ID).Msg("user created")
	return user, nil
}

func (s *UserService) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return s.repo.GetUserByID(ctx, id)
}

// UpdateUser applies the non-nil fields of patch.
func (s *UserService) UpdateUser(ctx context.Context, id int64, patch models.UserPatch) (*models.User, error) {
	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		if strings.TrimSpace(*patch.Name) == "" {
			return nil, fmt.Errorf("%w: name must not be blank", domain.ErrValidation)
		}
		user.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Email != nil {
		email := strings.TrimSpace(*patch.Email)
		if err := validateEmail(email); err != nil {
			return nil, err
		}
		other, err := s.repo.GetUserByEmail(ctx, email)
		switch {
		case err == nil && other.ID != id:
			return nil, fmt.Errorf("%w: email %s is already registered", domain.ErrConflict, email)
		case err != nil && !errors.Is(err, domain.ErrNotFound):
			return nil, err
		}
		user.Email = email
	}

	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) DeleteUser(ctx context.Context, id int64) error {
	if err := s.repo.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Int64("user_id", id).Msg("user deleted")
	return nil
}

func (s *UserService) ListUsers(ctx context.Context) ([]*models.User, error) {
	return s.repo.GetAllUsers(ctx)
}
