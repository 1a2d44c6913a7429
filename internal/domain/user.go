package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Role is an actor's relationship to a transaction or the system.
type Role string

const (
	RoleSeller Role = "seller"
	RoleBuyer  Role = "buyer"
	RoleAdmin  Role = "admin"
	RoleUser   Role = "user"
	RoleNone   Role = "none"
)

// UserStats accumulates trade outcomes. Stats are updated exactly once per
// terminal transition of a transaction the user participated in.
type UserStats struct {
	TotalTransactions     int     `json:"totalTransactions"`
	CompletedTransactions int     `json:"completedTransactions"`
	CancelledTransactions int     `json:"cancelledTransactions"`
	TotalVolume           int64   `json:"totalVolume"`
	Rating                float64 `json:"rating"`
	RatingCount           int     `json:"ratingCount"`
}

// User is a party to escrow transactions. A user owns its own stats;
// transactions reference users only by ID.
type User struct {
	ID           string
	Name         string
	Username     string
	Phone        string
	Role         Role
	IsRegistered bool

	Blocked     bool
	BlockReason string
	BlockedAt   *time.Time

	Stats UserStats

	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastActivity time.Time
}

// NewUser creates an unregistered user with the default role.
func NewUser(username string, now time.Time) *User {
	return &User{
		ID:           uuid.New().String(),
		Username:     username,
		Role:         RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
		LastActivity: now,
	}
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// CompleteRegistration records the user's display name and phone.
func (u *User) CompleteRegistration(name, phone string, now time.Time) {
	u.Name = name
	u.Phone = phone
	u.IsRegistered = true
	u.UpdatedAt = now
}

// Touch bumps the last-activity timestamp.
func (u *User) Touch(now time.Time) {
	u.LastActivity = now
}

// Block marks the user as blocked with a reason.
func (u *User) Block(reason string, now time.Time) {
	u.Blocked = true
	u.BlockReason = reason
	u.BlockedAt = &now
	u.UpdatedAt = now
}

// Unblock clears the block.
func (u *User) Unblock(now time.Time) {
	u.Blocked = false
	u.BlockReason = ""
	u.BlockedAt = nil
	u.UpdatedAt = now
}

// RecordOutcome updates stats for one terminal transition. Volume counts
// only completed trades.
func (u *User) RecordOutcome(finalState State, amount int64, now time.Time) {
	u.Stats.TotalTransactions++
	switch finalState {
	case StateCompleted:
		u.Stats.CompletedTransactions++
		u.Stats.TotalVolume += amount
	case StateCancelled, StateFailed:
		u.Stats.CancelledTransactions++
	}
	u.UpdatedAt = now
}

// AddRating folds one rating into the running average.
func (u *User) AddRating(rating float64, now time.Time) {
	total := u.Stats.Rating * float64(u.Stats.RatingCount)
	u.Stats.RatingCount++
	u.Stats.Rating = (total + rating) / float64(u.Stats.RatingCount)
	u.UpdatedAt = now
}

// DisplayName returns the best available human-readable name.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	if u.Username != "" {
		return u.Username
	}
	return fmt.Sprintf("user %s", u.ID)
}

// Validate checks registration requirements. Like Transaction.Validate it
// never errors.
func (u *User) Validate() ValidationResult {
	var errs []string

	if u.ID == "" {
		errs = append(errs, "user ID is required")
	}
	if u.Username == "" {
		errs = append(errs, "username is required")
	}
	if u.IsRegistered {
		if len(u.Name) < 2 {
			errs = append(errs, "name must be at least 2 characters")
		}
		if u.Phone == "" {
			errs = append(errs, "phone number is required")
		}
	}

	return ValidationResult{IsValid: len(errs) == 0, Errors: errs}
}
