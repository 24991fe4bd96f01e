package user

import (
	"errors"
	"time"
)

var ErrDuplicateProfile = errors.New("profile already exists")

// Profile is the stored user record. Streak fields are written only through
// the streak tracker.
type Profile struct {
	ID            string     `json:"id"`
	ClerkID       string     `json:"clerkId"`
	Email         string     `json:"email"`
	Username      string     `json:"username"`
	FirstName     string     `json:"firstName"`
	LastName      string     `json:"lastName"`
	ImageURL      string     `json:"imageUrl,omitempty"`
	EmailVerified bool       `json:"emailVerified"`
	CurrentStreak int        `json:"currentStreak"`
	LastLogDate   *time.Time `json:"lastLogDate"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

type CreateUserRequest struct {
	ClerkID       string `json:"clerkId"`
	Email         string `json:"email"`
	Username      string `json:"username"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	ImageURL      string `json:"imageUrl,omitempty"`
	EmailVerified bool   `json:"emailVerified"`
}

type UpdateProfileRequest struct {
	Username  string `json:"username,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	ImageURL  string `json:"imageUrl,omitempty"`
}
