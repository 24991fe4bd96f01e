package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"dietTrackerAPI/internal/types/activity"
	"dietTrackerAPI/internal/types/calendar"
	"dietTrackerAPI/middleware"
)

type ActivityService interface {
	LogFood(ctx context.Context, clerkID string, req *activity.FoodLogRequest) (*activity.Entry, error)
	LogWater(ctx context.Context, clerkID string, req *activity.WaterLogRequest) (*activity.Entry, error)
	CompleteWorkout(ctx context.Context, clerkID string, req *activity.WorkoutCompletionRequest) (*activity.Entry, error)
	QuickAddFood(ctx context.Context, clerkID string, req *activity.QuickAddRequest) (*activity.Entry, error)
	GetDay(ctx context.Context, clerkID, date string) (*activity.DaySummary, error)
	GetCalendar(ctx context.Context, clerkID string, year, month int) (*calendar.CalendarResponse, error)
}

type ActivityHandler struct {
	activityService ActivityService
	logger          *zap.Logger
}

func NewActivityHandler(activityService ActivityService, logger *zap.Logger) *ActivityHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityHandler{
		activityService: activityService,
		logger:          logger,
	}
}

func (h *ActivityHandler) LogFood(w http.ResponseWriter, r *http.Request) {
	var req activity.FoodLogRequest
	h.handleLog(w, r, &req, func(ctx context.Context, clerkID string) (*activity.Entry, error) {
		return h.activityService.LogFood(ctx, clerkID, &req)
	})
}

func (h *ActivityHandler) LogWater(w http.ResponseWriter, r *http.Request) {
	var req activity.WaterLogRequest
	h.handleLog(w, r, &req, func(ctx context.Context, clerkID string) (*activity.Entry, error) {
		return h.activityService.LogWater(ctx, clerkID, &req)
	})
}

func (h *ActivityHandler) CompleteWorkout(w http.ResponseWriter, r *http.Request) {
	var req activity.WorkoutCompletionRequest
	h.handleLog(w, r, &req, func(ctx context.Context, clerkID string) (*activity.Entry, error) {
		return h.activityService.CompleteWorkout(ctx, clerkID, &req)
	})
}

func (h *ActivityHandler) QuickAddFood(w http.ResponseWriter, r *http.Request) {
	var req activity.QuickAddRequest
	h.handleLog(w, r, &req, func(ctx context.Context, clerkID string) (*activity.Entry, error) {
		return h.activityService.QuickAddFood(ctx, clerkID, &req)
	})
}

func (h *ActivityHandler) GetDay(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	summary, err := h.activityService.GetDay(ctx, clerkID, r.URL.Query().Get("date"))
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, summary)
}

func (h *ActivityHandler) GetCalendar(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	year := r.URL.Query().Get("year")
	month := r.URL.Query().Get("month")
	if year == "" || month == "" {
		respondWithError(w, http.StatusBadRequest, "year and month are required")
		return
	}

	yearInt, err := strconv.Atoi(year)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid year format")
		return
	}
	monthInt, err := strconv.Atoi(month)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid month format")
		return
	}

	cal, err := h.activityService.GetCalendar(ctx, clerkID, yearInt, monthInt)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, cal)
}

// handleLog decodes body into req and runs one log operation for the caller.
func (h *ActivityHandler) handleLog(w http.ResponseWriter, r *http.Request, req any, run func(ctx context.Context, clerkID string) (*activity.Entry, error)) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	entry, err := run(ctx, clerkID)
	if err != nil {
		h.logger.Warn("log rejected", zap.String("clerk_id", clerkID), zap.Error(err))
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, entry)
}
