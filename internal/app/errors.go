package app

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by a service wraps exactly one of these so the
// HTTP layer can map it to a status code with errors.Is.
var (
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrUpstream           = errors.New("upstream provider failure")
	ErrConfiguration      = errors.New("service misconfigured")
	ErrSimulationDisabled = errors.New("simulated payments are disabled")
	ErrInvalidClaimToken  = errors.New("invalid claim token")
)

// User-facing messages shared between services and tests.
const (
	msgUserNotFound         = "User not found"
	msgBusinessNotFound     = "Business not found"
	msgSubscriptionNotFound = "Subscription not found"
	msgEmailTaken           = "User with this email already exists"
	msgUserHasBusiness      = "User already has a business"
	msgBusinessClaimed      = "Business already claimed"
	msgQueryRequired        = "Query parameter is required"
	msgSearchFailed         = "Failed to search places"
	msgDetailsFailed        = "Failed to fetch place details"
)

// Error is a classified service error carrying a message safe to show to clients.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func validationError(format string, args ...any) error {
	return newError(ErrValidation, format, args...)
}

func notFound(message string) error {
	return newError(ErrNotFound, "%s", message)
}

func conflict(message string) error {
	return newError(ErrConflict, "%s", message)
}

// PublicMessage returns the client-safe message of err, or fallback for unclassified errors.
func PublicMessage(err error, fallback string) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return fallback
}
