package activity

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind is a qualifying log event type; every kind counts toward the streak.
type Kind string

const (
	KindFood     Kind = "food"
	KindWater    Kind = "water"
	KindWorkout  Kind = "workout"
	KindQuickAdd Kind = "quick_add"
)

type MealType string

const (
	MealBreakfast MealType = "breakfast"
	MealLunch     MealType = "lunch"
	MealDinner    MealType = "dinner"
	MealSnack     MealType = "snack"
)

var (
	ErrInvalidName     = errors.New("name is required")
	ErrInvalidMealType = errors.New("meal type must be breakfast, lunch, dinner or snack")
	ErrInvalidAmount   = errors.New("amount must be positive")
	ErrNegativeMacro   = errors.New("calories and macros must not be negative")
	ErrEmptyQuickAdd   = errors.New("quick add needs calories or macros")
)

type Entry struct {
	ID              uuid.UUID `json:"id"`
	UserID          string    `json:"user_id"`
	Kind            Kind      `json:"kind"`
	Name            string    `json:"name,omitempty"`
	MealType        MealType  `json:"meal_type,omitempty"`
	Calories        int       `json:"calories"`
	ProteinG        float64   `json:"protein_g"`
	CarbsG          float64   `json:"carbs_g"`
	FatG            float64   `json:"fat_g"`
	WaterML         int       `json:"water_ml,omitempty"`
	DurationMinutes int       `json:"duration_minutes,omitempty"`
	LoggedAt        time.Time `json:"logged_at"`
}

type FoodLogRequest struct {
	Name     string   `json:"name"`
	MealType MealType `json:"meal_type"`
	Calories int      `json:"calories"`
	ProteinG float64  `json:"protein_g"`
	CarbsG   float64  `json:"carbs_g"`
	FatG     float64  `json:"fat_g"`
}

func (r FoodLogRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrInvalidName
	}
	if !r.MealType.valid() {
		return ErrInvalidMealType
	}
	return checkMacros(r.Calories, r.ProteinG, r.CarbsG, r.FatG)
}

type WaterLogRequest struct {
	AmountML int `json:"amount_ml"`
}

func (r WaterLogRequest) Validate() error {
	if r.AmountML <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

type WorkoutCompletionRequest struct {
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
	CaloriesBurned  int    `json:"calories_burned"`
}

func (r WorkoutCompletionRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrInvalidName
	}
	if r.DurationMinutes <= 0 {
		return ErrInvalidAmount
	}
	if r.CaloriesBurned < 0 {
		return ErrNegativeMacro
	}
	return nil
}

type QuickAddRequest struct {
	MealType MealType `json:"meal_type"`
	Calories int      `json:"calories"`
	ProteinG float64  `json:"protein_g"`
	CarbsG   float64  `json:"carbs_g"`
	FatG     float64  `json:"fat_g"`
}

func (r QuickAddRequest) Validate() error {
	if !r.MealType.valid() {
		return ErrInvalidMealType
	}
	if err := checkMacros(r.Calories, r.ProteinG, r.CarbsG, r.FatG); err != nil {
		return err
	}
	if r.Calories == 0 && r.ProteinG == 0 && r.CarbsG == 0 && r.FatG == 0 {
		return ErrEmptyQuickAdd
	}
	return nil
}

func (m MealType) valid() bool {
	switch m {
	case MealBreakfast, MealLunch, MealDinner, MealSnack:
		return true
	}
	return false
}

func checkMacros(calories int, protein, carbs, fat float64) error {
	if calories < 0 || protein < 0 || carbs < 0 || fat < 0 {
		return ErrNegativeMacro
	}
	return nil
}

// DaySummary aggregates one calendar day of entries.
type DaySummary struct {
	Date           string  `json:"date"`
	Entries        []Entry `json:"entries"`
	CaloriesIn     int     `json:"calories_in"`
	CaloriesBurned int     `json:"calories_burned"`
	ProteinG       float64 `json:"protein_g"`
	CarbsG         float64 `json:"carbs_g"`
	FatG           float64 `json:"fat_g"`
	WaterML        int     `json:"water_ml"`
}

func Summarize(date string, entries []Entry) DaySummary {
	summary := DaySummary{Date: date, Entries: entries}
	if summary.Entries == nil {
		summary.Entries = []Entry{}
	}
	for _, e := range entries {
		switch e.Kind {
		case KindWorkout:
			summary.CaloriesBurned += e.Calories
		case KindWater:
			summary.WaterML += e.WaterML
		default:
			summary.CaloriesIn += e.Calories
			summary.ProteinG += e.ProteinG
			summary.CarbsG += e.CarbsG
			summary.FatG += e.FatG
		}
	}
	return summary
}
