package streak

import (
	"errors"
	"time"
)

// State is the streak slice of a user profile.
type State struct {
	CurrentStreak int        `json:"current_streak"`
	LastLogDate   *time.Time `json:"last_log_date"`
}

// Outcome describes which day-adjacency branch produced a new State.
type Outcome string

const (
	OutcomeStarted   Outcome = "started"
	OutcomeContinued Outcome = "continued"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeRestarted Outcome = "restarted"
	OutcomeStale     Outcome = "stale"
)

var ErrInvalidState = errors.New("invalid streak state")

func (s State) Validate() error {
	if s.CurrentStreak < 0 {
		return ErrInvalidState
	}
	if s.LastLogDate == nil && s.CurrentStreak != 0 {
		return ErrInvalidState
	}
	if s.LastLogDate != nil && s.CurrentStreak < 1 {
		return ErrInvalidState
	}
	return nil
}

// Equal compares streak values and instants, ignoring monotonic clock readings
// and location.
func (s State) Equal(other State) bool {
	if s.CurrentStreak != other.CurrentStreak {
		return false
	}
	if s.LastLogDate == nil || other.LastLogDate == nil {
		return s.LastLogDate == nil && other.LastLogDate == nil
	}
	return s.LastLogDate.Equal(*other.LastLogDate)
}

// CalendarDay returns midnight of the day containing t in loc.
func CalendarDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	localized := t.In(loc)
	year, month, day := localized.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}

// DaysBetween counts calendar days from a to b in loc. It is negative when b
// falls on an earlier day than a. Day arithmetic is done on dates so DST
// transitions never shorten or stretch a day.
func DaysBetween(a, b time.Time, loc *time.Location) int {
	dayA := CalendarDay(a, loc)
	dayB := CalendarDay(b, loc)
	ya, ma, da := dayA.Date()
	yb, mb, db := dayB.Date()
	ua := time.Date(ya, ma, da, 0, 0, 0, 0, time.UTC)
	ub := time.Date(yb, mb, db, 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}

// Advance applies one qualifying log at now to prev.
func Advance(prev State, now time.Time, loc *time.Location) (State, Outcome) {
	stamp := now
	if prev.LastLogDate == nil {
		return State{CurrentStreak: 1, LastLogDate: &stamp}, OutcomeStarted
	}

	last := *prev.LastLogDate
	if now.Before(last) {
		// lastLogDate never moves backwards; a late event is absorbed.
		kept := last
		return State{CurrentStreak: prev.CurrentStreak, LastLogDate: &kept}, OutcomeStale
	}

	switch DaysBetween(last, now, loc) {
	case 0:
		return State{CurrentStreak: prev.CurrentStreak, LastLogDate: &stamp}, OutcomeUnchanged
	case 1:
		return State{CurrentStreak: prev.CurrentStreak + 1, LastLogDate: &stamp}, OutcomeContinued
	default:
		return State{CurrentStreak: 1, LastLogDate: &stamp}, OutcomeRestarted
	}
}

// DisplayedAt is the streak the user still holds at now: the stored value if
// the last log was today or yesterday, otherwise zero. It never writes.
func (s State) DisplayedAt(now time.Time, loc *time.Location) int {
	if s.LastLogDate == nil {
		return 0
	}
	gap := DaysBetween(*s.LastLogDate, now, loc)
	if gap <= 1 {
		return s.CurrentStreak
	}
	return 0
}
