package domain

import "errors"

// Domain errors
var (
	ErrUserNotFound            = errors.New("user not found")
	ErrContentNotFound         = errors.New("content not found")
	ErrRankingNotFound         = errors.New("ranking not found")
	ErrInvalidAmount           = errors.New("point amount must be positive")
	ErrInactiveUser            = errors.New("user is inactive")
	ErrInvalidContentReference = errors.New("target content does not exist")
	ErrDuplicateRanking        = errors.New("ranking snapshot already exists for this period and date")
	ErrDuplicateEmail          = errors.New("email address already registered")
	ErrInvalidEmail            = errors.New("invalid email address")
	ErrUnknownEngagementKind   = errors.New("unknown engagement kind")
	ErrInvalidRequest          = errors.New("invalid request")
	ErrInternalError           = errors.New("internal server error")
)

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrContentNotFound) ||
		errors.Is(err, ErrRankingNotFound)
}

// IsConflictError checks if an error signals a uniqueness violation
func IsConflictError(err error) bool {
	return errors.Is(err, ErrDuplicateRanking) || errors.Is(err, ErrDuplicateEmail)
}
