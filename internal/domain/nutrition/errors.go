package nutrition

import "errors"

// Domain errors for nutrition tracking
var (
	ErrUnknownGender    = errors.New("gender must be male or female")
	ErrInvalidWeight    = errors.New("weight must be greater than 0")
	ErrInvalidHeight    = errors.New("height must be greater than 0")
	ErrMissingBirthday  = errors.New("date of birth is required")
	ErrBirthdayInFuture = errors.New("date of birth cannot be in the future")

	ErrProfileNotFound = errors.New("user profile not found")
	ErrTargetNotFound  = errors.New("nutrition target not found")
)
