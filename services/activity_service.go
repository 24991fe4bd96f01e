package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"dietTrackerAPI/internal/types/activity"
	"dietTrackerAPI/internal/types/calendar"
)

var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrInvalidDate    = errors.New("date must be formatted as YYYY-MM-DD")
)

const dayLayout = "2006-01-02"

type ActivityRepository interface {
	InsertActivity(ctx context.Context, entry *activity.Entry) error
	ListActivities(ctx context.Context, userID string, from, to time.Time) ([]activity.Entry, error)
}

// StreakRecorder advances a user's logging streak after a qualifying log.
type StreakRecorder interface {
	RecordActivity(ctx context.Context, userID string, now time.Time) error
}

type ActivityService struct {
	profiles   ProfileRepository
	activities ActivityRepository
	streaks    StreakRecorder
	location   *time.Location
	logger     *zap.Logger
	now        func() time.Time
}

func NewActivityService(
	profiles ProfileRepository,
	activities ActivityRepository,
	streaks StreakRecorder,
	location *time.Location,
	logger *zap.Logger,
) *ActivityService {
	if location == nil {
		location = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityService{
		profiles:   profiles,
		activities: activities,
		streaks:    streaks,
		location:   location,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *ActivityService) LogFood(ctx context.Context, clerkID string, req *activity.FoodLogRequest) (*activity.Entry, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return s.log(ctx, clerkID, activity.Entry{
		Kind:     activity.KindFood,
		Name:     req.Name,
		MealType: req.MealType,
		Calories: req.Calories,
		ProteinG: req.ProteinG,
		CarbsG:   req.CarbsG,
		FatG:     req.FatG,
	})
}

func (s *ActivityService) LogWater(ctx context.Context, clerkID string, req *activity.WaterLogRequest) (*activity.Entry, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return s.log(ctx, clerkID, activity.Entry{
		Kind:    activity.KindWater,
		WaterML: req.AmountML,
	})
}

func (s *ActivityService) CompleteWorkout(ctx context.Context, clerkID string, req *activity.WorkoutCompletionRequest) (*activity.Entry, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return s.log(ctx, clerkID, activity.Entry{
		Kind:            activity.KindWorkout,
		Name:            req.Name,
		Calories:        req.CaloriesBurned,
		DurationMinutes: req.DurationMinutes,
	})
}

func (s *ActivityService) QuickAddFood(ctx context.Context, clerkID string, req *activity.QuickAddRequest) (*activity.Entry, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return s.log(ctx, clerkID, activity.Entry{
		Kind:     activity.KindQuickAdd,
		Name:     "Quick add",
		MealType: req.MealType,
		Calories: req.Calories,
		ProteinG: req.ProteinG,
		CarbsG:   req.CarbsG,
		FatG:     req.FatG,
	})
}

// GetDay returns the entries logged on date (YYYY-MM-DD) in the service's
// reference zone. An empty date means today.
func (s *ActivityService) GetDay(ctx context.Context, clerkID, date string) (*activity.DaySummary, error) {
	var from time.Time
	if date == "" {
		now := s.now().In(s.location)
		from = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.location)
	} else {
		parsed, err := time.ParseInLocation(dayLayout, date, s.location)
		if err != nil {
			return nil, ErrInvalidDate
		}
		from = parsed
	}
	to := from.AddDate(0, 0, 1)

	profile, err := s.profiles.GetProfileByClerkID(ctx, clerkID)
	if err != nil {
		return nil, translateNotFound(err)
	}

	entries, err := s.activities.ListActivities(ctx, profile.ID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}

	summary := activity.Summarize(from.Format(dayLayout), entries)
	return &summary, nil
}

// GetCalendar marks which days of the month had at least one log, using the
// same reference zone as the streak.
func (s *ActivityService) GetCalendar(ctx context.Context, clerkID string, year, month int) (*calendar.CalendarResponse, error) {
	if year < 1 || month < 1 || month > 12 {
		return nil, fmt.Errorf("%w: year and month out of range", ErrInvalidRequest)
	}

	profile, err := s.profiles.GetProfileByClerkID(ctx, clerkID)
	if err != nil {
		return nil, translateNotFound(err)
	}

	startDate := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, s.location)
	endDate := startDate.AddDate(0, 1, 0)

	entries, err := s.activities.ListActivities(ctx, profile.ID, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch calendar: %w", err)
	}

	dayCounts := make(map[string]int)
	for _, e := range entries {
		dayCounts[e.LoggedAt.In(s.location).Format(dayLayout)]++
	}

	resp := &calendar.CalendarResponse{Year: year, Month: month}
	today := s.now().In(s.location).Format(dayLayout)
	for d := startDate; d.Before(endDate); d = d.AddDate(0, 0, 1) {
		dateStr := d.Format(dayLayout)
		day := &calendar.CalendarDay{
			Date:    dateStr,
			Logged:  dayCounts[dateStr] > 0,
			Entries: dayCounts[dateStr],
			IsToday: dateStr == today,
		}
		if day.Logged {
			resp.LoggedDays++
		}
		resp.Days = append(resp.Days, day)
	}

	return resp, nil
}

// log writes the entry and then advances the streak. The entry is the
// primary effect; a streak failure is reported but never returned.
func (s *ActivityService) log(ctx context.Context, clerkID string, entry activity.Entry) (*activity.Entry, error) {
	profile, err := s.profiles.GetProfileByClerkID(ctx, clerkID)
	if err != nil {
		return nil, translateNotFound(err)
	}

	now := s.now()
	entry.UserID = profile.ID
	entry.LoggedAt = now
	if err := s.activities.InsertActivity(ctx, &entry); err != nil {
		return nil, fmt.Errorf("failed to save %s log: %w", entry.Kind, translateNotFound(err))
	}

	if err := s.streaks.RecordActivity(ctx, profile.ID, now); err != nil {
		s.logger.Warn("streak update failed",
			zap.String("user_id", profile.ID),
			zap.String("kind", string(entry.Kind)),
			zap.Error(err),
		)
	}

	return &entry, nil
}
