package domain

import "errors"

var (
	// ErrNotFound is returned when no progress record or team exists for an id.
	ErrNotFound = errors.New("not found")
	// ErrLocked is returned when a slot has not been unlocked yet.
	ErrLocked = errors.New("question is locked")
	// ErrAlreadyCompleted is returned on resubmission of a finished slot.
	ErrAlreadyCompleted = errors.New("question already completed")
	// ErrAttemptsExhausted is returned once an aptitude slot has used all its attempts.
	ErrAttemptsExhausted = errors.New("maximum attempts reached for this question")
	// ErrInvalidInput covers malformed slot indexes, challenge kinds, answers and durations.
	ErrInvalidInput = errors.New("invalid input")
	// ErrConflict means a concurrent write won the race; re-read and retry.
	ErrConflict = errors.New("concurrent update conflict")
	// ErrStorageUnavailable wraps backend failures so they are never mistaken for domain outcomes.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrTeamExists is returned when registering a team name that is taken.
	ErrTeamExists = errors.New("team already exists")
	// ErrInvalidCredentials is returned on a failed login.
	ErrInvalidCredentials = errors.New("invalid team name or password")
	// ErrUnauthorized indicates a missing, invalid or expired token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden indicates an authenticated caller without the required role.
	ErrForbidden = errors.New("forbidden")
)
