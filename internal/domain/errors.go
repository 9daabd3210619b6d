package domain

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrHandleNotFound    = errors.New("handle not found on platform")
	ErrRateLimited       = errors.New("rate limited by platform")
	ErrUnavailable       = errors.New("platform unavailable")
	ErrValidation        = errors.New("invalid activity record")
	ErrSyncInProgress    = errors.New("sync already in progress")
	ErrUserNotFound      = errors.New("user not found")
	ErrNoHandle          = errors.New("no handle configured for platform")
	ErrProfileNotFound   = errors.New("platform profile not found")
	ErrProgressNotFound  = errors.New("progress not found")
	ErrDuplicatePlatform = errors.New("platform already configured for user")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrInternalError     = errors.New("internal server error")
)

// PlatformError attaches the originating platform to an extractor or sync
// failure so callers always know which site misbehaved
type PlatformError struct {
	Platform Platform
	Err      error
}

func (e *PlatformError) Error() string {
	return fmt.Sprintf("%s: %v", e.Platform, e.Err)
}

func (e *PlatformError) Unwrap() error {
	return e.Err
}

// WrapPlatform wraps err with the platform name unless it already carries one
func WrapPlatform(p Platform, err error) error {
	if err == nil {
		return nil
	}
	var pe *PlatformError
	if errors.As(err, &pe) {
		return err
	}
	return &PlatformError{Platform: p, Err: err}
}

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrHandleNotFound) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrProfileNotFound) ||
		errors.Is(err, ErrProgressNotFound) ||
		errors.Is(err, ErrNoHandle)
}
