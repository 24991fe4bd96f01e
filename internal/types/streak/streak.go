package streak

import "time"

// Response is the streak view returned to clients.
type Response struct {
	CurrentStreak   int        `json:"current_streak"`
	DisplayedStreak int        `json:"displayed_streak"`
	LastLogDate     *time.Time `json:"last_log_date"`
	LoggedToday     bool       `json:"logged_today"`
	Timezone        string     `json:"timezone"`
}
