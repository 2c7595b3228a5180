package domain

import (
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// UserStatus represents the lifecycle state of a user account
type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusInactive UserStatus = "inactive"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Email is a validated email address value object.
// Addresses are stored and compared exactly as given (case-sensitive).
type Email struct {
	address string
}

// NewEmail validates and wraps an email address
func NewEmail(address string) (Email, error) {
	if !emailPattern.MatchString(address) {
		return Email{}, fmt.Errorf("%w: %q", ErrInvalidEmail, address)
	}
	return Email{address: address}, nil
}

// String returns the address exactly as stored
func (e Email) String() string {
	return e.address
}

// Equals compares two addresses case-sensitively
func (e Email) Equals(other Email) bool {
	return e.address == other.address
}

// User represents a member of the community platform
type User struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Email       Email      `json:"-"`
	TotalPoints int        `json:"total_points"`
	Status      UserStatus `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
}

// NewUser creates an active user with zero points
func NewUser(name string, email Email) *User {
	return &User{
		ID:        uuid.New().String(),
		Name:      name,
		Email:     email,
		Status:    UserStatusActive,
		CreatedAt: time.Now().UTC(),
	}
}

// Active reports whether the user may engage and be ranked
func (u *User) Active() bool {
	return u.Status == UserStatusActive
}

// Deactivate soft-deletes the user. Idempotent: deactivating an
// inactive user is a no-op, not an error.
func (u *User) Deactivate() {
	u.Status = UserStatusInactive
}

// Activate restores a deactivated user. Idempotent.
func (u *User) Activate() {
	u.Status = UserStatusActive
}

// AddPoints increases the running total. The only sanctioned mutation
// path outside of ledger reconciliation.
func (u *User) AddPoints(amount int) error {
	if amount <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidAmount, amount)
	}
	u.TotalPoints += amount
	return nil
}
