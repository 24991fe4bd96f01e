package calendar

type CalendarDay struct {
	Date    string `json:"date"`
	Logged  bool   `json:"logged"`
	Entries int    `json:"entries"`
	IsToday bool   `json:"is_today"`
}

type CalendarResponse struct {
	Year       int            `json:"year"`
	Month      int            `json:"month"`
	LoggedDays int            `json:"logged_days"`
	Days       []*CalendarDay `json:"days"`
}
