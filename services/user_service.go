package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"dietTrackerAPI/internal/streak"
	streakTypes "dietTrackerAPI/internal/types/streak"
	"dietTrackerAPI/internal/types/user"
)

var ErrUserNotFound = errors.New("user not found")

// ProfileRepository is the profile side of a store backend.
type ProfileRepository interface {
	CreateProfile(ctx context.Context, profile *user.Profile) error
	GetProfileByClerkID(ctx context.Context, clerkID string) (*user.Profile, error)
	UpdateProfileByClerkID(ctx context.Context, clerkID string, req *user.UpdateProfileRequest) (*user.Profile, error)
	DeleteProfileByClerkID(ctx context.Context, clerkID string) error
}

type UserService struct {
	profiles ProfileRepository
	location *time.Location
	logger   *zap.Logger
	now      func() time.Time
}

func NewUserService(profiles ProfileRepository, location *time.Location, logger *zap.Logger) *UserService {
	if location == nil {
		location = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		profiles: profiles,
		location: location,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *UserService) CreateUser(ctx context.Context, req *user.CreateUserRequest) (*user.Profile, error) {
	if req.ClerkID == "" {
		return nil, fmt.Errorf("%w: clerk id is required", ErrInvalidRequest)
	}

	profile := &user.Profile{
		ClerkID:       req.ClerkID,
		Email:         req.Email,
		Username:      req.Username,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		ImageURL:      req.ImageURL,
		EmailVerified: req.EmailVerified,
	}
	if err := s.profiles.CreateProfile(ctx, profile); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user created", zap.String("clerk_id", profile.ClerkID), zap.String("user_id", profile.ID))
	return profile, nil
}

func (s *UserService) GetUserByClerkID(ctx context.Context, clerkID string) (*user.Profile, error) {
	profile, err := s.profiles.GetProfileByClerkID(ctx, clerkID)
	if err != nil {
		return nil, translateNotFound(err)
	}
	return profile, nil
}

func (s *UserService) UpdateProfileByClerkID(ctx context.Context, clerkID string, req *user.UpdateProfileRequest) (*user.Profile, error) {
	profile, err := s.profiles.UpdateProfileByClerkID(ctx, clerkID, req)
	if err != nil {
		return nil, translateNotFound(err)
	}
	return profile, nil
}

// DeleteUserByClerkID removes the profile together with its streak and entries.
func (s *UserService) DeleteUserByClerkID(ctx context.Context, clerkID string) error {
	if err := s.profiles.DeleteProfileByClerkID(ctx, clerkID); err != nil {
		return translateNotFound(err)
	}
	s.logger.Info("user deleted", zap.String("clerk_id", clerkID))
	return nil
}

// GetStreak reports the stored streak and the one the user currently holds.
// It never writes.
func (s *UserService) GetStreak(ctx context.Context, clerkID string) (*streakTypes.Response, error) {
	profile, err := s.GetUserByClerkID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	state := streak.State{CurrentStreak: profile.CurrentStreak, LastLogDate: profile.LastLogDate}
	loggedToday := state.LastLogDate != nil && streak.DaysBetween(*state.LastLogDate, now, s.location) == 0

	return &streakTypes.Response{
		CurrentStreak:   state.CurrentStreak,
		DisplayedStreak: state.DisplayedAt(now, s.location),
		LastLogDate:     state.LastLogDate,
		LoggedToday:     loggedToday,
		Timezone:        s.location.String(),
	}, nil
}

func translateNotFound(err error) error {
	if errors.Is(err, streak.ErrProfileNotFound) {
		return fmt.Errorf("%w: %w", ErrUserNotFound, err)
	}
	return err
}
