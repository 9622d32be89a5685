package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the initializer, adapters, store and notifier.
// Callers match with errors.Is; messages are wrapped with context on the way up.
var (
	ErrValidation          = errors.New("validation error")
	ErrSourceUnavailable   = errors.New("source unavailable")
	ErrRateLimited         = errors.New("rate limited")
	ErrPollTimeout         = errors.New("poll timeout")
	ErrParse               = errors.New("parse error")
	ErrNotificationFailed  = errors.New("notification failed")
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrStoreUnavailable    = errors.New("store unavailable")
)

// Validationf returns an error wrapping ErrValidation.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// ErrorKind maps an error to the name reported in outcomes.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "ValidationError"
	case errors.Is(err, ErrRateLimited):
		return "RateLimited"
	case errors.Is(err, ErrPollTimeout):
		return "PollTimeout"
	case errors.Is(err, ErrCredentialsNotFound):
		return "CredentialsNotFound"
	case errors.Is(err, ErrSourceUnavailable):
		return "SourceUnavailable"
	case errors.Is(err, ErrParse):
		return "ParseError"
	case errors.Is(err, ErrNotificationFailed):
		return "NotificationFailed"
	case errors.Is(err, ErrStoreUnavailable):
		return "StoreUnavailable"
	default:
		return "InternalError"
	}
}
