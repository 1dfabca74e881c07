package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/reviewhub/internal/domain"
	"github.com/vedran77/reviewhub/internal/realtime"
	"github.com/vedran77/reviewhub/internal/repository"
)

var ErrUserNotFound = errors.New("user not found")

// UserService is the user directory. Every change is published so live
// conversation lists can refresh.
type UserService struct {
	userRepo repository.UserRepository
	broker   *realtime.Broker
}

func NewUserService(userRepo repository.UserRepository, broker *realtime.Broker) *UserService {
	return &UserService{userRepo: userRepo, broker: broker}
}

type UpdateProfileInput struct {
	Name        *string `json:"name,omitempty"`
	DisplayName *string `json:"display_name,omitempty"`
	PhotoURL    *string `json:"photo_url,omitempty"`
}

// Directory returns every registered user, most recently active first.
func (s *UserService) Directory(ctx context.Context) ([]domain.User, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	if users == nil {
		users = []domain.User{}
	}
	return users, nil
}

func (s *UserService) Get(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, id uuid.UUID, input UpdateProfileInput) (*domain.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		user.Name = strings.TrimSpace(*input.Name)
	}
	if input.DisplayName != nil {
		user.DisplayName = strings.TrimSpace(*input.DisplayName)
	}
	if input.PhotoURL != nil {
		photo := strings.TrimSpace(*input.PhotoURL)
		if photo == "" {
			user.PhotoURL = nil
		} else {
			user.PhotoURL = &photo
		}
	}
	user.UpdatedAt = time.Now()

	if err := s.userRepo.UpdateProfile(ctx, user); err != nil {
		return nil, fmt.Errorf("updating profile: %w", err)
	}

	s.publish(user)
	return user, nil
}

func (s *UserService) publish(user *domain.User) {
	if s.broker != nil {
		s.broker.Publish(realtime.Event{Type: realtime.DirectoryChanged, User: user})
	}
}
