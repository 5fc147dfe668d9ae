/**
 * @description
 * This file implements the data access layer for users. Reads join the user's
 * business (if any) so callers get the full owner record in one round trip.
 */
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/swipesavvy/claim-service/internal/domain"
)

const userWithBusinessSelect = `
        SELECT u.id, u.email, u.name, u.password_hash, u.has_accepted_terms, u.payment_customer_id,
               u.created_at, u.updated_at,
               b.id, b.google_place_id, b.name, b.address, b.phone, b.created_at, b.updated_at
        FROM users u
        LEFT JOIN businesses b ON b.user_id = u.id
`

// UserRepository is the PostgreSQL implementation of user storage.
type UserRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// CreateUser inserts a user. The caller assigns the ID.
func (r *UserRepository) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	query := `
        INSERT INTO users (id, email, name, password_hash, has_accepted_terms, payment_customer_id)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING created_at, updated_at
    `
	created := *user
	err := r.db.QueryRow(ctx, query,
		user.ID,
		user.Email,
		user.Name,
		user.PasswordHash,
		user.HasAcceptedTerms,
		user.PaymentCustomerID,
	).Scan(&created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		return nil, translateError(err)
	}
	return &created, nil
}

// GetUserByID retrieves a user and its business.
func (r *UserRepository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	return scanUserWithBusiness(r.db.QueryRow(ctx, userWithBusinessSelect+` WHERE u.id = $1`, id))
}

// GetUserByEmail retrieves a user and its business by email address.
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return scanUserWithBusiness(r.db.QueryRow(ctx, userWithBusinessSelect+` WHERE u.email = $1`, email))
}

// ListUsers returns all users, newest first.
func (r *UserRepository) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.Query(ctx, userWithBusinessSelect+` ORDER BY u.created_at DESC`)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	users := []domain.User{}
	for rows.Next() {
		user, err := scanUserWithBusiness(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError(err)
	}
	return users, nil
}

// UpdateUser applies the non-nil fields of update and returns the refreshed user.
func (r *UserRepository) UpdateUser(ctx context.Context, id string, update domain.UserUpdate) (*domain.User, error) {
	query := `
        UPDATE users SET
            email = COALESCE($2, email),
            name = COALESCE($3, name),
            password_hash = COALESCE($4, password_hash),
            has_accepted_terms = COALESCE($5, has_accepted_terms),
            payment_customer_id = COALESCE($6, payment_customer_id),
            updated_at = NOW()
        WHERE id = $1
    `
	tag, err := r.db.Exec(ctx, query,
		id,
		update.Email,
		update.Name,
		update.PasswordHash,
		update.HasAcceptedTerms,
		update.PaymentCustomerID,
	)
	if err != nil {
		return nil, translateError(err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return r.GetUserByID(ctx, id)
}

// SetPaymentCustomerID stores the payment customer reference only if none is set yet.
// It reports whether the row was changed.
func (r *UserRepository) SetPaymentCustomerID(ctx context.Context, userID, customerID string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
        UPDATE users SET payment_customer_id = $2, updated_at = NOW()
        WHERE id = $1 AND payment_customer_id IS NULL
    `, userID, customerID)
	if err != nil {
		return false, translateError(err)
	}
	return tag.RowsAffected() == 1, nil
}

// DeleteUser removes a user; businesses and subscriptions cascade.
func (r *UserRepository) DeleteUser(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return translateError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUserWithBusiness(row pgx.Row) (*domain.User, error) {
	var (
		user              domain.User
		businessID        *string
		businessPlaceID   *string
		businessName      *string
		businessAddress   *string
		businessPhone     *string
		businessCreatedAt *time.Time
		businessUpdatedAt *time.Time
	)
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.PasswordHash,
		&user.HasAcceptedTerms,
		&user.PaymentCustomerID,
		&user.CreatedAt,
		&user.UpdatedAt,
		&businessID,
		&businessPlaceID,
		&businessName,
		&businessAddress,
		&businessPhone,
		&businessCreatedAt,
		&businessUpdatedAt,
	)
	if err != nil {
		return nil, translateError(err)
	}

	if businessID != nil {
		user.Business = &domain.Business{
			ID:            *businessID,
			GooglePlaceID: derefString(businessPlaceID),
			Name:          derefString(businessName),
			Address:       derefString(businessAddress),
			Phone:         derefString(businessPhone),
			UserID:        user.ID,
		}
		if businessCreatedAt != nil {
			user.Business.CreatedAt = *businessCreatedAt
		}
		if businessUpdatedAt != nil {
			user.Business.UpdatedAt = *businessUpdatedAt
		}
	}
	return &user, nil
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
