package store

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	uniqueViolationCode     = "23505"
	foreignKeyViolationCode = "23503"
)

// Constraint names declared in schema.go.
const (
	ConstraintUserEmail              = "users_email_key"
	ConstraintBusinessUser           = "businesses_user_id_key"
	ConstraintBusinessPlace          = "businesses_google_place_id_key"
	ConstraintSubscriptionExternalID = "subscriptions_external_subscription_id_key"
)

var (
	// ErrNotFound is returned when a query matches no rows.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an insert or update hits a unique constraint.
	ErrDuplicate = errors.New("duplicate record")
	// ErrMissingReference is returned when a foreign key target does not exist.
	ErrMissingReference = errors.New("referenced record does not exist")
)

// ConstraintError reports which constraint rejected a write.
type ConstraintError struct {
	Constraint string
	err        error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("%v (constraint %s)", e.err, e.Constraint)
}

func (e *ConstraintError) Unwrap() error {
	return e.err
}

// NewConstraintError wraps kind (ErrDuplicate or ErrMissingReference) with the constraint name.
func NewConstraintError(constraint string, kind error) *ConstraintError {
	return &ConstraintError{Constraint: constraint, err: kind}
}

// IsConstraint reports whether err was raised by the named constraint.
func IsConstraint(err error, constraint string) bool {
	var cErr *ConstraintError
	return errors.As(err, &cErr) && cErr.Constraint == constraint
}

func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolationCode:
			return NewConstraintError(pgErr.ConstraintName, ErrDuplicate)
		case foreignKeyViolationCode:
			return NewConstraintError(pgErr.ConstraintName, ErrMissingReference)
		}
	}
	return err
}
