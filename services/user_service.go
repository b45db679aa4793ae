package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Dosada05/round-matches/models"
	"github.com/Dosada05/round-matches/repositories"
)

type RegisterInput struct {
	Name  string                  `json:"name"`
	Role  models.ParticipantRole  `json:"role"`
	Style models.ParticipantStyle `json:"style"`
}

// UpdateUserInput is a partial update; nil fields are left unchanged.
type UpdateUserInput struct {
	Name  *string                  `json:"name"`
	Role  *models.ParticipantRole  `json:"role"`
	Style *models.ParticipantStyle `json:"style"`
}

type UserService interface {
	Register(ctx context.Context, identity string, input RegisterInput) (*models.Participant, error)
	CurrentUser(ctx context.Context, identity string) (*models.Participant, error)
	UpdateCurrentUser(ctx context.Context, identity string, input UpdateUserInput) (*models.Participant, error)
	GetByID(ctx context.Context, id int) (*models.Participant, error)
	ListAll(ctx context.Context) ([]*models.Participant, error)
	ListPlayers(ctx context.Context) ([]*models.Participant, error)
}

type userService struct {
	userRepo repositories.UserRepository
	logger   *slog.Logger
}

func NewUserService(userRepo repositories.UserRepository, logger *slog.Logger) UserService {
	return &userService{
		userRepo: userRepo,
		logger:   nonNilLogger(logger),
	}
}

func (s *userService) Register(ctx context.Context, identity string, input RegisterInput) (*models.Participant, error) {
	if strings.TrimSpace(identity) == "" {
		return nil, ErrUnauthenticated
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrNameRequired
	}
	if !input.Role.Valid() {
		return nil, ErrInvalidRole
	}
	style := input.Style
	if style == "" {
		style = models.StyleCasual
	}
	if !style.Valid() {
		return nil, ErrInvalidStyle
	}

	if _, err := s.userRepo.GetByEmail(ctx, identity); err == nil {
		return nil, ErrUserAlreadyRegistered
	} else if !errors.Is(err, repositories.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to check existing registration: %w", err)
	}

	user := &models.Participant{
		Name:  name,
		Email: identity,
		Role:  input.Role,
		Style: style,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrUserEmailConflict) {
			return nil, ErrUserAlreadyRegistered
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	s.logger.InfoContext(ctx, "participant registered", slog.Int("user_id", user.ID), slog.String("role", string(user.Role)))
	return user, nil
}

func (s *userService) CurrentUser(ctx context.Context, identity string) (*models.Participant, error) {
	if strings.TrimSpace(identity) == "" {
		return nil, ErrUnauthenticated
	}
	user, err := s.userRepo.GetByEmail(ctx, identity)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *userService) UpdateCurrentUser(ctx context.Context, identity string, input UpdateUserInput) (*models.Participant, error) {
	user, err := s.CurrentUser(ctx, identity)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, ErrNameRequired
		}
		user.Name = name
	}
	if input.Role != nil {
		if !input.Role.Valid() {
			return nil, ErrInvalidRole
		}
		user.Role = *input.Role
	}
	if input.Style != nil {
		if !input.Style.Valid() {
			return nil, ErrInvalidStyle
		}
		user.Style = *input.Style
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to update user %d: %w", user.ID, err)
	}
	return user, nil
}

func (s *userService) GetByID(ctx context.Context, id int) (*models.Participant, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *userService) ListAll(ctx context.Context) ([]*models.Participant, error) {
	return s.userRepo.List(ctx)
}

func (s *userService) ListPlayers(ctx context.Context) ([]*models.Participant, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	players := make([]*models.Participant, 0, len(users))
	for _, u := range users {
		if u.IsPlayer() {
			players = append(players, u)
		}
	}
	return players, nil
}
